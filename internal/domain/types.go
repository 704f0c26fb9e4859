package domain

import "strings"

// ClientID is the client's contact number, kept as free text.
type ClientID string

type Status string

const (
	StatusAvailable Status = "disponible"
	StatusSold      Status = "vendido"
)

// Account is one sellable platform credential. An account is identified by its
// (platform, email) pair, compared case-insensitively; the casing of the first
// write is what gets stored.
type Account struct {
	Platform string    `json:"plataforma"`
	Email    string    `json:"correo"`
	Password string    `json:"contraseña"`
	Status   Status    `json:"estado"`
	Client   *ClientID `json:"cliente"`
	Expiry   string    `json:"fecha_vencimiento"`
}

// Purchase is the client-side snapshot of a sold account. It is a view derived
// from the Sold accounts assigned to the client, never stored independently.
type Purchase struct {
	Platform string `json:"plataforma"`
	Email    string `json:"correo"`
	Password string `json:"contraseña"`
	Expiry   string `json:"fecha_vencimiento"`
}

// Document is the aggregate persisted as one JSON file. Accounts are the
// source of truth; Clients is regenerated from them before every flush so the
// on-disk format round-trips.
type Document struct {
	Accounts []*Account              `json:"cuentas"`
	Clients  map[ClientID][]Purchase `json:"clientes"`
	Revenue  map[string]int64        `json:"ganancias"`
}

func NewDocument() *Document {
	return &Document{
		Accounts: []*Account{},
		Clients:  map[ClientID][]Purchase{},
		Revenue:  map[string]int64{},
	}
}

// Matches reports whether the account is identified by (platform, email).
func (a *Account) Matches(platform, email string) bool {
	return strings.EqualFold(a.Platform, platform) && strings.EqualFold(a.Email, email)
}

// AssignedTo returns the assigned client, or "" when the account is free.
func (a *Account) AssignedTo() ClientID {
	if a.Client == nil {
		return ""
	}
	return *a.Client
}

// Sell marks the account sold to the given client.
func (a *Account) Sell(client ClientID, expiry string) {
	a.Status = StatusSold
	a.Client = &client
	a.Expiry = expiry
}

// Release returns the account to the available pool.
func (a *Account) Release() {
	a.Status = StatusAvailable
	a.Client = nil
	a.Expiry = ""
}

// AsPurchase renders the account as the client-side snapshot.
func (a *Account) AsPurchase() Purchase {
	return Purchase{
		Platform: a.Platform,
		Email:    a.Email,
		Password: a.Password,
		Expiry:   a.Expiry,
	}
}

// Find returns the account identified by (platform, email), or nil.
func (d *Document) Find(platform, email string) *Account {
	for _, a := range d.Accounts {
		if a.Matches(platform, email) {
			return a
		}
	}
	return nil
}

// FirstAvailable returns the first account in list order for the platform that
// is free to sell, or nil.
func (d *Document) FirstAvailable(platform string) *Account {
	for _, a := range d.Accounts {
		if strings.EqualFold(a.Platform, platform) && a.Status == StatusAvailable {
			return a
		}
	}
	return nil
}

// PurchasesOf derives the client's purchase list from the Sold accounts
// assigned to it, in account list order.
func (d *Document) PurchasesOf(client ClientID) []Purchase {
	var out []Purchase
	for _, a := range d.Accounts {
		if a.Status == StatusSold && a.AssignedTo() == client {
			out = append(out, a.AsPurchase())
		}
	}
	return out
}

// RebuildClients regenerates the by-client view from the accounts. Clients
// with no remaining purchases are pruned.
func (d *Document) RebuildClients() {
	clients := map[ClientID][]Purchase{}
	for _, a := range d.Accounts {
		if a.Status == StatusSold && a.Client != nil {
			clients[*a.Client] = append(clients[*a.Client], a.AsPurchase())
		}
	}
	d.Clients = clients
}
