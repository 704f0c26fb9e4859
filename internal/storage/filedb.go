package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"cuentas-bot/internal/domain"
)

// FileDB keeps the whole document in memory behind a single write lock and
// rewrites the backing JSON file after every mutation. At most one mutating
// operation runs at a time regardless of how the transport dispatches
// commands; reads see a consistent snapshot under the shared lock.
type FileDB struct {
	mu   sync.RWMutex
	path string
	doc  *domain.Document
	log  *slog.Logger
}

// Open loads the document at path, creating an empty one when no prior state
// exists. An unreadable file is kept aside as a ".corrupt" sibling and the
// store starts empty; that recovery is logged loudly, unlike the quiet
// first-run path. Loaded documents are reconciled so that legacy drift between
// accounts and client purchase lists is repaired before the first command.
func Open(path string, log *slog.Logger) (*FileDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db := &FileDB{path: path, doc: domain.NewDocument(), log: log}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info("no prior state, starting empty", "path", path)
		return db, db.flushLocked()
	case err != nil:
		return nil, err
	}

	var doc domain.Document
	if uerr := json.Unmarshal(raw, &doc); uerr != nil {
		quarantine := path + ".corrupt"
		if rerr := os.Rename(path, quarantine); rerr != nil {
			return nil, fmt.Errorf("leyendo %s: %w", path, uerr)
		}
		log.Error("prior state unreadable, starting empty", "path", path, "kept_as", quarantine, "error", uerr)
		return db, db.flushLocked()
	}
	normalize(&doc)

	verified, repaired := reconcile(&doc)
	db.doc = &doc
	if repaired > 0 {
		log.Warn("document reconciled on load", "verified", verified, "repaired", repaired)
		return db, db.flushLocked()
	}
	return db, nil
}

// View runs fn against the current document under the shared lock. fn must not
// mutate the document.
func (db *FileDB) View(fn func(*domain.Document) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.doc)
}

// Update runs fn against the document under the exclusive lock. When fn
// succeeds the by-client view is regenerated and the document is flushed; a
// failed flush surfaces as the operation's error and is not retried. When fn
// fails nothing is persisted and the in-memory rollback copy is restored.
func (db *FileDB) Update(ctx context.Context, fn func(*domain.Document) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	backup := clone(db.doc)
	if err := fn(db.doc); err != nil {
		db.doc = backup
		return err
	}
	db.doc.RebuildClients()
	if err := db.flushLocked(); err != nil {
		db.doc = backup
		return fmt.Errorf("guardando %s: %w", db.path, err)
	}
	return nil
}

// Reconcile re-runs the load-time repair pass and persists the result.
// Against a document maintained by this store it verifies every purchase
// entry and repairs nothing.
func (db *FileDB) Reconcile(ctx context.Context) (verified int, err error) {
	err = db.Update(ctx, func(doc *domain.Document) error {
		verified, _ = reconcile(doc)
		return nil
	})
	return verified, err
}

func (db *FileDB) flushLocked() error {
	data, err := json.MarshalIndent(db.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, db.path)
}

// normalize fills in maps a hand-edited file may have left null.
func normalize(doc *domain.Document) {
	if doc.Accounts == nil {
		doc.Accounts = []*domain.Account{}
	}
	if doc.Clients == nil {
		doc.Clients = map[domain.ClientID][]domain.Purchase{}
	}
	if doc.Revenue == nil {
		doc.Revenue = map[string]int64{}
	}
}

// reconcile walks the purchase entries and forces each one's account into Sold
// with the entry's client and expiry; entries whose account no longer exists
// are dropped, and Sold accounts left without a client are released. Clients
// are visited in sorted order so conflicting entries resolve deterministically.
// Returns the number of entries verified and the number of records repaired.
func reconcile(doc *domain.Document) (verified, repaired int) {
	clients := make([]domain.ClientID, 0, len(doc.Clients))
	for c := range doc.Clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })

	for _, client := range clients {
		for _, p := range doc.Clients[client] {
			acc := doc.Find(p.Platform, p.Email)
			if acc == nil {
				repaired++
				continue
			}
			verified++
			if acc.Status != domain.StatusSold || acc.AssignedTo() != client || acc.Expiry != p.Expiry {
				acc.Sell(client, p.Expiry)
				repaired++
			}
		}
	}
	for _, a := range doc.Accounts {
		if a.Status == domain.StatusSold && a.Client == nil {
			a.Release()
			repaired++
		}
	}
	doc.RebuildClients()
	return verified, repaired
}

func clone(doc *domain.Document) *domain.Document {
	out := domain.NewDocument()
	for _, a := range doc.Accounts {
		cp := *a
		if a.Client != nil {
			c := *a.Client
			cp.Client = &c
		}
		out.Accounts = append(out.Accounts, &cp)
	}
	for c, ps := range doc.Clients {
		out.Clients[c] = append([]domain.Purchase(nil), ps...)
	}
	for p, v := range doc.Revenue {
		out.Revenue[p] = v
	}
	return out
}
