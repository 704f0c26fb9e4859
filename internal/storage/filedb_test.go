package storage

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenFreshStateCreatesEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "data.json")
	db, err := Open(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, db.View(func(doc *domain.Document) error {
		assert.Empty(t, doc.Accounts)
		assert.Empty(t, doc.Clients)
		assert.Empty(t, doc.Revenue)
		return nil
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"cuentas"`)
}

func TestUpdatePersistsAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	db, err := Open(path, testLogger())
	require.NoError(t, err)

	err = db.Update(context.Background(), func(doc *domain.Document) error {
		doc.Accounts = append(doc.Accounts, &domain.Account{
			Platform: "Netflix", Email: "a@a.com", Password: "p", Status: domain.StatusAvailable,
		})
		doc.Revenue["netflix"] = 10
		return nil
	})
	require.NoError(t, err)

	reopened, err := Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, reopened.View(func(doc *domain.Document) error {
		require.Len(t, doc.Accounts, 1)
		assert.Equal(t, "a@a.com", doc.Accounts[0].Email)
		assert.Equal(t, int64(10), doc.Revenue["netflix"])
		return nil
	}))
}

func TestUpdateRollsBackOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	db, err := Open(path, testLogger())
	require.NoError(t, err)

	boom := domain.ErrInvalidArgument
	err = db.Update(context.Background(), func(doc *domain.Document) error {
		doc.Revenue["netflix"] = 99
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, db.View(func(doc *domain.Document) error {
		assert.Empty(t, doc.Revenue)
		return nil
	}))
}

func TestUpdateHonorsCanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	db, err := Open(path, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = db.Update(ctx, func(doc *domain.Document) error {
		t.Fatal("no debería ejecutarse")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenUnreadableStateQuarantinesAndStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{esto no es json"), 0o600))

	db, err := Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, db.View(func(doc *domain.Document) error {
		assert.Empty(t, doc.Accounts)
		return nil
	}))

	kept, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err, "el archivo ilegible se conserva aparte")
	assert.Equal(t, "{esto no es json", string(kept))
}

func TestOpenReconcilesDriftedDocument(t *testing.T) {
	// hand-built document with every drift class: a purchase pointing at an
	// available account, an orphaned purchase, and a sold account without client
	drifted := `{
	  "cuentas": [
	    {"plataforma": "Netflix", "correo": "a@a.com", "contraseña": "p1", "estado": "disponible", "cliente": null, "fecha_vencimiento": ""},
	    {"plataforma": "Netflix", "correo": "b@b.com", "contraseña": "p2", "estado": "vendido", "cliente": null, "fecha_vencimiento": "2025-01-01"}
	  ],
	  "clientes": {
	    "519": [
	      {"plataforma": "netflix", "correo": "A@A.COM", "contraseña": "p1", "fecha_vencimiento": "2025-02-01"},
	      {"plataforma": "hbo", "correo": "huerfana@x.com", "contraseña": "x", "fecha_vencimiento": "2025-02-01"}
	    ]
	  },
	  "ganancias": {"netflix": 25}
	}`
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(drifted), 0o600))

	db, err := Open(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, db.View(func(doc *domain.Document) error {
		a := doc.Find("netflix", "a@a.com")
		require.NotNil(t, a)
		assert.Equal(t, domain.StatusSold, a.Status)
		assert.Equal(t, domain.ClientID("519"), a.AssignedTo())
		assert.Equal(t, "2025-02-01", a.Expiry)

		b := doc.Find("netflix", "b@b.com")
		require.NotNil(t, b)
		assert.Equal(t, domain.StatusAvailable, b.Status, "vendida sin cliente se libera")

		purchases := doc.Clients["519"]
		require.Len(t, purchases, 1, "la compra huérfana se descarta")
		assert.Equal(t, "a@a.com", purchases[0].Email)

		assert.Equal(t, int64(25), doc.Revenue["netflix"])
		return nil
	}))

	// the repaired document was flushed
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc domain.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, domain.StatusSold, doc.Accounts[0].Status)
}

func TestReconcileOnConsistentDocumentVerifiesAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	db, err := Open(path, testLogger())
	require.NoError(t, err)

	client := domain.ClientID("519")
	require.NoError(t, db.Update(context.Background(), func(doc *domain.Document) error {
		doc.Accounts = append(doc.Accounts,
			&domain.Account{Platform: "Netflix", Email: "a@a.com", Password: "p1", Status: domain.StatusSold, Client: &client, Expiry: "2025-01-01"},
			&domain.Account{Platform: "Disney", Email: "b@b.com", Password: "p2", Status: domain.StatusAvailable},
		)
		return nil
	}))

	verified, err := db.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, verified)
}
