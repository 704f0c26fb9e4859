package ledger

import (
	"context"
	"fmt"
	"time"

	"cuentas-bot/internal/domain"
)

// Expiry dates arrive in either layout; the first one that parses wins.
var expiryLayouts = []string{"2006-01-02", "02/01/06"}

// ParseExpiry parses an expiry string, trying YYYY-MM-DD then DD/MM/YY.
func ParseExpiry(s string) (time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("fecha inválida: %q", s)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SweepExpired releases every sold account whose expiry is on or before the
// reference date (date-only comparison) and returns the released accounts
// grouped by the client they belonged to, so the caller can send one
// notification per client. An unparseable expiry is logged and the account is
// left untouched. The sweep itself sends nothing.
func (l *Ledger) SweepExpired(ctx context.Context, reference time.Time) (map[domain.ClientID][]domain.Account, error) {
	expired := map[domain.ClientID][]domain.Account{}
	today := dateOnly(reference)

	err := l.store.Update(ctx, func(doc *domain.Document) error {
		for _, a := range doc.Accounts {
			if a.Status != domain.StatusSold || a.Expiry == "" {
				continue
			}
			due, err := ParseExpiry(a.Expiry)
			if err != nil {
				l.log.Error("fecha de vencimiento ilegible, cuenta omitida", "platform", a.Platform, "email", a.Email, "expiry", a.Expiry)
				continue
			}
			if dateOnly(due).After(today) {
				continue
			}
			client := a.AssignedTo()
			if client == "" {
				l.log.Warn("cuenta vencida sin cliente asignado", "platform", a.Platform, "email", a.Email)
				continue
			}
			expired[client] = append(expired[client], *a)
			a.Release()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
