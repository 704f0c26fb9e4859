package bot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cuentas-bot/internal/ledger"
	"cuentas-bot/internal/storage"
)

type fakeAPI struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

func newBot(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.Open(filepath.Join(t.TempDir(), "data.json"), log)
	require.NoError(t, err)
	api := &fakeAPI{}
	return New(api, ledger.New(store, log), log, ""), api
}

func commandMessage(text string) *tgbotapi.Message {
	length := len(text)
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		length = i
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 7},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func lastReply(t *testing.T, api *fakeAPI) string {
	t.Helper()
	require.NotEmpty(t, api.sent)
	return api.sent[len(api.sent)-1].Text
}

func TestAgregarAcceptsAnyWhitespaceAfterPlatform(t *testing.T) {
	b, api := newBot(t)
	ctx := context.Background()

	// newline and tab instead of plain spaces must not kill the handler
	b.handleCommand(ctx, commandMessage("/agregarcc netflix\nuser@mail.com\tclave"))

	assert.Contains(t, lastReply(t, api), "Se agregaron 1 cuentas a netflix")
	accounts, err := b.ledger.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "user@mail.com", accounts[0].Email)
	assert.Equal(t, "clave", accounts[0].Password)
}

func TestAgregarWithoutAccountsShowsUsage(t *testing.T) {
	b, api := newBot(t)
	b.handleCommand(context.Background(), commandMessage("/agregarcc netflix"))
	assert.Contains(t, lastReply(t, api), "Uso correcto")

	b.handleCommand(context.Background(), commandMessage("/agregarcc"))
	assert.Contains(t, lastReply(t, api), "Uso correcto")
}

func TestAgregarBatch(t *testing.T) {
	b, api := newBot(t)
	ctx := context.Background()
	b.handleCommand(ctx, commandMessage("/agregarcc netflix a@a.com p1 / b@b.com p2"))

	assert.Contains(t, lastReply(t, api), "Se agregaron 2 cuentas a netflix")
	accounts, err := b.ledger.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestEliminarEchoesTypedPlatform(t *testing.T) {
	b, api := newBot(t)
	ctx := context.Background()
	_, err := b.ledger.AddAccounts(ctx, "netflix", []string{"a@a.com p1"})
	require.NoError(t, err)
	_, err = b.ledger.AssignAccount(ctx, "netflix", "a@a.com", "519", "2025-01-01")
	require.NoError(t, err)

	b.handleCommand(ctx, commandMessage("/eliminar NETFLIX a@a.com"))
	assert.Contains(t, lastReply(t, api), "Asignar cuenta NETFLIX", "la plataforma se repite tal como la escribió el operador")
}
