package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"cuentas-bot/internal/domain"
	"cuentas-bot/internal/storage"
)

// AlertWindowDays is how many days ahead of today an expiry counts as "about
// to expire" in Statistics.
const AlertWindowDays = 2

// Ledger exposes every command's operation over the shared document. Each call
// is one critical section in the store: validate, mutate, persist.
type Ledger struct {
	store *storage.FileDB
	log   *slog.Logger
}

func New(store *storage.FileDB, log *slog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// BatchResult reports a partial-success batch add: valid entries commit,
// invalid ones are listed individually.
type BatchResult struct {
	Added    int
	Rejected []string
}

// AddAccounts appends one Available account per entry. Each entry is the raw
// "correo contraseña" chunk of the batch; a malformed chunk or a duplicate
// (platform, email) pair is rejected without aborting the rest.
func (l *Ledger) AddAccounts(ctx context.Context, platform string, entries []string) (BatchResult, error) {
	platform = strings.TrimSpace(platform)
	if platform == "" || len(entries) == 0 {
		return BatchResult{}, domain.ErrInvalidArgument
	}

	var res BatchResult
	err := l.store.Update(ctx, func(doc *domain.Document) error {
		for _, entry := range entries {
			parts := strings.Fields(entry)
			if len(parts) < 2 {
				res.Rejected = append(res.Rejected, fmt.Sprintf("Formato incorrecto en cuenta: '%s'", entry))
				continue
			}
			email := parts[0]
			password := strings.Join(parts[1:], " ")
			if doc.Find(platform, email) != nil {
				res.Rejected = append(res.Rejected, fmt.Sprintf("La cuenta %s ya está registrada.", email))
				continue
			}
			doc.Accounts = append(doc.Accounts, &domain.Account{
				Platform: platform,
				Email:    email,
				Password: password,
				Status:   domain.StatusAvailable,
			})
			res.Added++
		}
		return nil
	})
	return res, err
}

// PurchaseFirstAvailable sells the first Available account of the platform, in
// list order, to the client, and adds amount to the platform's revenue total.
// Revenue is only ever incremented; cancellations never reverse it.
func (l *Ledger) PurchaseFirstAvailable(ctx context.Context, client domain.ClientID, platform, expiry string, amount int64) (domain.Account, error) {
	if strings.TrimSpace(string(client)) == "" || amount < 0 {
		return domain.Account{}, domain.ErrInvalidArgument
	}
	var sold domain.Account
	err := l.store.Update(ctx, func(doc *domain.Document) error {
		acc := doc.FirstAvailable(platform)
		if acc == nil {
			return domain.ErrNoAccountAvailable
		}
		acc.Sell(client, expiry)
		doc.Revenue[strings.ToLower(platform)] += amount
		sold = *acc
		return nil
	})
	return sold, err
}

// AssignAccount sells a specific account to the client. Unlike a purchase it
// never touches revenue.
func (l *Ledger) AssignAccount(ctx context.Context, platform, email string, client domain.ClientID, expiry string) (domain.Account, error) {
	if strings.TrimSpace(string(client)) == "" {
		return domain.Account{}, domain.ErrInvalidArgument
	}
	var assigned domain.Account
	err := l.store.Update(ctx, func(doc *domain.Document) error {
		acc := doc.Find(platform, email)
		if acc == nil {
			return domain.ErrAccountNotFound
		}
		if acc.Status != domain.StatusAvailable {
			return domain.ErrAccountNotAvailable
		}
		acc.Sell(client, expiry)
		assigned = *acc
		return nil
	})
	return assigned, err
}

// RenewAccount updates the expiry of an account sold to this exact client.
func (l *Ledger) RenewAccount(ctx context.Context, client domain.ClientID, platform, email, expiry string) (domain.Account, error) {
	var renewed domain.Account
	err := l.store.Update(ctx, func(doc *domain.Document) error {
		acc := doc.Find(platform, email)
		if acc == nil || acc.AssignedTo() != client {
			return domain.ErrAccountNotFound
		}
		acc.Expiry = expiry
		renewed = *acc
		return nil
	})
	return renewed, err
}

// ReplaceCredentials swaps the account's email and password in place. Status,
// client and expiry are untouched; the assigned client's purchase view picks
// up the new credentials because it is derived from the account.
func (l *Ledger) ReplaceCredentials(ctx context.Context, platform, oldEmail, newEmail, newPassword string) (domain.Account, error) {
	var updated domain.Account
	err := l.store.Update(ctx, func(doc *domain.Document) error {
		acc := doc.Find(platform, oldEmail)
		if acc == nil {
			return domain.ErrAccountNotFound
		}
		acc.Email = newEmail
		acc.Password = newPassword
		updated = *acc
		return nil
	})
	return updated, err
}

// RemoveAccount deletes the account record entirely and returns its last
// state, so the caller can still reach the client it was assigned to.
func (l *Ledger) RemoveAccount(ctx context.Context, platform, email string) (domain.Account, error) {
	var removed domain.Account
	err := l.store.Update(ctx, func(doc *domain.Document) error {
		for i, a := range doc.Accounts {
			if a.Matches(platform, email) {
				removed = *a
				doc.Accounts = append(doc.Accounts[:i], doc.Accounts[i+1:]...)
				return nil
			}
		}
		return domain.ErrAccountNotFound
	})
	return removed, err
}

// CancelPurchase releases an account sold to this exact client back to the
// pool. The platform's revenue total stays as it is.
func (l *Ledger) CancelPurchase(ctx context.Context, client domain.ClientID, platform, email string) error {
	return l.store.Update(ctx, func(doc *domain.Document) error {
		acc := doc.Find(platform, email)
		if acc == nil || acc.Status != domain.StatusSold || acc.AssignedTo() != client {
			return domain.ErrPurchaseNotFound
		}
		acc.Release()
		return nil
	})
}

// Synchronize re-runs the account/purchase reconciliation and reports how many
// purchase entries it verified. The store keeps both sides consistent on every
// write, so this is a diagnostic; running it twice yields the same document.
func (l *Ledger) Synchronize(ctx context.Context) (int, error) {
	return l.store.Reconcile(ctx)
}

// Search returns the accounts whose email or platform contains the query,
// case-insensitively.
func (l *Ledger) Search(ctx context.Context, query string) ([]domain.Account, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, domain.ErrInvalidArgument
	}
	var out []domain.Account
	err := l.store.View(func(doc *domain.Document) error {
		for _, a := range doc.Accounts {
			if strings.Contains(strings.ToLower(a.Email), query) || strings.Contains(strings.ToLower(a.Platform), query) {
				out = append(out, *a)
			}
		}
		return nil
	})
	return out, err
}

// ClientInfo returns the client's purchase list.
func (l *Ledger) ClientInfo(ctx context.Context, client domain.ClientID) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := l.store.View(func(doc *domain.Document) error {
		out = doc.PurchasesOf(client)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrClientNotFound
	}
	return out, nil
}

// ListAccounts returns a copy of every account in list order.
func (l *Ledger) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var out []domain.Account
	err := l.store.View(func(doc *domain.Document) error {
		for _, a := range doc.Accounts {
			out = append(out, *a)
		}
		return nil
	})
	return out, err
}

// PlatformRevenue is one platform's accumulated total.
type PlatformRevenue struct {
	Platform string
	Total    int64
}

// ExpiringAccount is a sold account whose expiry falls inside the alert window.
type ExpiringAccount struct {
	Platform string
	Email    string
	Client   domain.ClientID
	Expiry   string
}

type Stats struct {
	Revenue   []PlatformRevenue
	Sold      int
	Available int
	Clients   int
	Expiring  []ExpiringAccount
}

// Statistics aggregates revenue (sorted by platform), account counts, distinct
// clients, and accounts expiring within AlertWindowDays of today. Unparseable
// expiry dates are logged and skipped; they never fail the aggregation.
func (l *Ledger) Statistics(ctx context.Context, today time.Time) (Stats, error) {
	var stats Stats
	err := l.store.View(func(doc *domain.Document) error {
		for platform, total := range doc.Revenue {
			stats.Revenue = append(stats.Revenue, PlatformRevenue{Platform: platform, Total: total})
		}
		sort.Slice(stats.Revenue, func(i, j int) bool { return stats.Revenue[i].Platform < stats.Revenue[j].Platform })

		day := dateOnly(today)
		limit := day.AddDate(0, 0, AlertWindowDays)
		for _, a := range doc.Accounts {
			switch a.Status {
			case domain.StatusSold:
				stats.Sold++
			case domain.StatusAvailable:
				stats.Available++
			}
			if a.Status != domain.StatusSold || a.Expiry == "" {
				continue
			}
			due, err := ParseExpiry(a.Expiry)
			if err != nil {
				l.log.Error("fecha de vencimiento ilegible", "platform", a.Platform, "email", a.Email, "expiry", a.Expiry)
				continue
			}
			if d := dateOnly(due); !d.Before(day) && !d.After(limit) {
				stats.Expiring = append(stats.Expiring, ExpiringAccount{
					Platform: a.Platform,
					Email:    a.Email,
					Client:   a.AssignedTo(),
					Expiry:   a.Expiry,
				})
			}
		}
		stats.Clients = len(doc.Clients)
		return nil
	})
	return stats, err
}
