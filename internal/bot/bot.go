package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cuentas-bot/internal/domain"
	"cuentas-bot/internal/ledger"
)

// telegramAPI is the slice of *tgbotapi.BotAPI the bot actually uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot turns incoming Telegram commands into ledger operations and renders the
// replies. The ledger serializes access to the document internally, so every
// update can be handled as it arrives.
type Bot struct {
	api         telegramAPI
	ledger      *ledger.Ledger
	log         *slog.Logger
	paymentNote string
}

func New(api telegramAPI, l *ledger.Ledger, log *slog.Logger, paymentNote string) *Bot {
	return &Bot{api: api, ledger: l, log: log, paymentNote: paymentNote}
}

// Run long-polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			if !update.Message.IsCommand() {
				b.send(tgbotapi.NewMessage(update.Message.Chat.ID, "ℹ️ Use /comandos para ver la lista de comandos"))
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("no se pudo enviar la respuesta", "chat_id", msg.ChatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("el comando provocó un pánico", "command", msg.Command(), "panic", r)
			b.send(tgbotapi.NewMessage(chatID, "❌ Ocurrió un error procesando el comando."))
		}
	}()

	args := strings.Fields(msg.CommandArguments())
	response := tgbotapi.NewMessage(chatID, "")

	switch msg.Command() {
	case "comandos", "start", "help":
		response.Text = commandsText

	case "basecc":
		accounts, err := b.ledger.ListAccounts(ctx)
		switch {
		case err != nil:
			response.Text = "❌ " + err.Error()
		case len(accounts) == 0:
			response.Text = "No hay cuentas registradas aún."
		default:
			response.Text = baseText(accounts)
		}

	case "agregarcc":
		// the platform is the first field; the account chunks after it may be
		// separated from it by any whitespace, not just a single space
		raw := strings.TrimSpace(msg.CommandArguments())
		cut := strings.IndexFunc(raw, unicode.IsSpace)
		if cut < 0 {
			response.Text = "Uso correcto:\n/agregarcc (plataforma) (correo contraseña) / (correo contraseña) / ..."
			break
		}
		platform := raw[:cut]
		entries := splitBatch(raw[cut:])
		res, err := b.ledger.AddAccounts(ctx, platform, entries)
		if err != nil {
			response.Text = "❌ " + err.Error()
			break
		}
		text := "✅ Se agregaron " + strconv.Itoa(res.Added) + " cuentas a " + platform + ".\n"
		if len(res.Rejected) > 0 {
			text += "⚠️ Algunos errores:\n" + strings.Join(res.Rejected, "\n")
		}
		response.Text = text

	case "comprarcc":
		if len(args) < 4 {
			response.Text = "Uso correcto:\n/comprarcc (número_cliente) (plataforma) (fecha_vencimiento) (ganancia)"
			break
		}
		amount, err := strconv.ParseInt(args[len(args)-1], 10, 64)
		if err != nil || amount < 0 {
			response.Text = "Ganancia inválida, debe ser un número entero positivo sin decimales."
			break
		}
		expiry := args[len(args)-2]
		platform := args[len(args)-3]
		client := domain.ClientID(strings.Join(args[:len(args)-3], " "))
		acc, err := b.ledger.PurchaseFirstAvailable(ctx, client, platform, expiry, amount)
		if err != nil {
			if errors.Is(err, domain.ErrNoAccountAvailable) {
				response.Text = "No hay cuentas disponibles para esa plataforma."
			} else {
				response.Text = "❌ " + err.Error()
			}
			break
		}
		response.Text = purchaseText(acc)
		response.ParseMode = tgbotapi.ModeMarkdown
		response.ReplyMarkup = contactButton(client, response.Text)

	case "asignarcc":
		if len(args) < 4 {
			response.Text = "Uso correcto:\n/asignarcc (plataforma) (correo) (número_cliente) (fecha_vencimiento)"
			break
		}
		client := domain.ClientID(args[2])
		acc, err := b.ledger.AssignAccount(ctx, args[0], args[1], client, args[3])
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			response.Text = "No se encontró la cuenta especificada."
		case errors.Is(err, domain.ErrAccountNotAvailable):
			response.Text = "La cuenta no está disponible para asignar."
		case err != nil:
			response.Text = "❌ " + err.Error()
		default:
			response.Text = assignText(acc)
			response.ParseMode = tgbotapi.ModeMarkdown
			response.ReplyMarkup = contactButton(client, response.Text)
		}

	case "info":
		if len(args) < 1 {
			response.Text = "Uso correcto:\n/info (número_cliente)"
			break
		}
		client := domain.ClientID(args[0])
		purchases, err := b.ledger.ClientInfo(ctx, client)
		if err != nil {
			response.Text = "No se encontró información para ese número de cliente."
			break
		}
		response.Text = infoText(client, purchases)
		response.ReplyMarkup = contactButton(client, response.Text)

	case "renovar":
		if len(args) < 4 {
			response.Text = "Uso correcto:\n/renovar (número_cliente) (plataforma) (correo) (fecha_vencimiento)"
			break
		}
		client := domain.ClientID(args[0])
		acc, err := b.ledger.RenewAccount(ctx, client, args[1], args[2], args[3])
		if err != nil {
			response.Text = "No se encontró la cuenta para renovar."
			break
		}
		response.Text = renewText(acc)
		response.ParseMode = tgbotapi.ModeMarkdown
		response.ReplyMarkup = contactButton(client, response.Text)

	case "reemplazar":
		if len(args) < 4 {
			response.Text = "Uso correcto:\n/reemplazar (plataforma) (correo_viejo) (correo_nuevo) (contraseña_nueva)"
			break
		}
		acc, err := b.ledger.ReplaceCredentials(ctx, args[0], args[1], args[2], args[3])
		if err != nil {
			response.Text = "No se encontró la cuenta para reemplazar."
			break
		}
		response.Text = replaceText(acc)
		response.ParseMode = tgbotapi.ModeMarkdown
		if client := acc.AssignedTo(); client != "" {
			response.ReplyMarkup = contactButton(client, response.Text)
		}

	case "vencidos", "vencidas":
		expired, err := b.ledger.SweepExpired(ctx, time.Now())
		if err != nil {
			response.Text = "❌ " + err.Error()
			break
		}
		if len(expired) == 0 {
			response.Text = "No hay cuentas vencidas para notificar."
			break
		}
		for client, accounts := range expired {
			notice := tgbotapi.NewMessage(chatID, expiredText(accounts, b.paymentNote))
			notice.ParseMode = tgbotapi.ModeMarkdown
			notice.ReplyMarkup = contactButton(client, notice.Text)
			b.send(notice)
		}
		return

	case "eliminar":
		if len(args) < 2 {
			response.Text = "Uso correcto:\n/eliminar (plataforma) (correo)"
			break
		}
		acc, err := b.ledger.RemoveAccount(ctx, args[0], args[1])
		if err != nil {
			response.Text = "No se encontró la cuenta para eliminar."
			break
		}
		if client := acc.AssignedTo(); client != "" {
			response.Text = removedText(args[0], acc)
			response.ReplyMarkup = contactButton(client, response.Text)
		} else {
			response.Text = "Cuenta eliminada correctamente."
		}

	case "sincronizar":
		n, err := b.ledger.Synchronize(ctx)
		if err != nil {
			response.Text = "❌ " + err.Error()
			break
		}
		response.Text = "Sincronización completada. Se actualizaron " + strconv.Itoa(n) + " cuentas y se limpiaron compras inexistentes."

	case "estadisticas":
		stats, err := b.ledger.Statistics(ctx, time.Now())
		if err != nil {
			response.Text = "❌ " + err.Error()
			break
		}
		response.Text = statsText(stats)
		response.ParseMode = tgbotapi.ModeMarkdown

	case "buscarcc":
		if len(args) < 1 {
			response.Text = "Uso correcto:\n/buscarcc (correo_o_plataforma)"
			break
		}
		results, err := b.ledger.Search(ctx, args[0])
		switch {
		case err != nil:
			response.Text = "❌ " + err.Error()
		case len(results) == 0:
			response.Text = "No se encontraron cuentas con ese correo o plataforma."
		default:
			response.Text = searchText(results)
		}

	case "cancelarcompra":
		if len(args) < 3 {
			response.Text = "Uso correcto:\n/cancelarcompra (número_cliente) (plataforma) (correo)"
			break
		}
		err := b.ledger.CancelPurchase(ctx, domain.ClientID(args[0]), args[1], args[2])
		if err != nil {
			response.Text = "No se encontró la compra para cancelar."
			break
		}
		response.Text = "Compra cancelada y cuenta liberada para plataforma " + args[1] + "."

	default:
		response.Text = "Comando desconocido. Use /comandos"
	}

	b.send(response)
}

// splitBatch cuts the "correo contraseña / correo contraseña" tail of
// /agregarcc into per-account chunks.
func splitBatch(raw string) []string {
	var out []string
	for _, chunk := range strings.Split(raw, " / ") {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}
