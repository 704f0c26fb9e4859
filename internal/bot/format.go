package bot

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cuentas-bot/internal/domain"
	"cuentas-bot/internal/ledger"
)

const commandsText = `*** COMANDOS PRINCIPALES ***

/comandos - Mostrar comandos
/basecc - Mostrar todas las cuentas completas
/agregarcc (plataforma) (correo contraseña) / (correo contraseña) / ... - Agregar cuentas múltiples
/comprarcc (número_cliente) (plataforma) (fecha_vencimiento) (ganancia_entera) - Comprar cuenta con ganancia
/asignarcc (plataforma) (correo) (número_cliente) (fecha_vencimiento) - Asignar cuenta disponible a cliente con fecha
/info (número_cliente) - Info compras cliente
/renovar (número_cliente) (plataforma) (correo) (fecha_vencimiento) - Renovar servicio
/reemplazar (plataforma) (correo_viejo) (correo_nuevo) (contraseña_nueva) - Reemplazar cuenta
/vencidos - Listar cuentas vencidas, liberar y sincronizar base
/eliminar (plataforma) (correo) - Eliminar cuenta
/sincronizar - Sincronizar bases clientes y cuentas
/estadisticas - Mostrar resumen de estadísticas
/buscarcc (correo_o_plataforma) - Buscar cuentas por correo o plataforma
/cancelarcompra (número_cliente) (plataforma) (correo) - Cancelar compra (liberar cuenta)`

// WhatsAppLink builds the wa.me deep link pre-filled with the message.
func WhatsAppLink(number domain.ClientID, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + url.PathEscape(string(number)) + "?text=" + text
}

func contactButton(number domain.ClientID, message string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("📲 WhatsApp Cliente", WhatsAppLink(number, message)),
	))
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func statusLabel(s domain.Status) string {
	if s == domain.StatusSold {
		return "Vendido"
	}
	return "Disponible"
}

func clientLabel(a domain.Account) string {
	if c := a.AssignedTo(); c != "" {
		return string(c)
	}
	return "Libre"
}

// baseText lists every account grouped under its upper-cased platform, in
// first-seen platform order.
func baseText(accounts []domain.Account) string {
	var order []string
	groups := map[string][]domain.Account{}
	for _, a := range accounts {
		p := strings.ToUpper(a.Platform)
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], a)
	}

	var b strings.Builder
	for _, p := range order {
		fmt.Fprintf(&b, "-- (%s) -- (%d)\n", p, len(groups[p]))
		for _, a := range groups[p] {
			fmt.Fprintf(&b, "- %s  /  %s\n%s  /  %s\n", a.Email, statusLabel(a.Status), clientLabel(a), a.Expiry)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func purchaseText(acc domain.Account) string {
	return fmt.Sprintf(`- - - - - - - - - - - - - - - -
-- *%s* --

correo: %s
contraseña: %s
*Toca renovar:* %s
`, strings.ToUpper(acc.Platform), acc.Email, acc.Password, acc.Expiry)
}

func assignText(acc domain.Account) string {
	return fmt.Sprintf(`Cuenta asignada a cliente %s:

-- *%s* --
Correo: %s
*Estado:* Vendido
*Fecha de vencimiento:* %s
`, acc.AssignedTo(), strings.ToUpper(acc.Platform), acc.Email, acc.Expiry)
}

func infoText(client domain.ClientID, purchases []domain.Purchase) string {
	var parts []string
	for _, p := range purchases {
		parts = append(parts, fmt.Sprintf(`-- %s --
- %s
- %s / %s
  - - -   %s   - - -
`, client, p.Platform, p.Email, p.Password, p.Expiry))
	}
	return strings.Join(parts, "\n")
}

func renewText(acc domain.Account) string {
	return fmt.Sprintf(`- - - SERVICIO RENOVADO DE *%s* - - -
- Correo: %s
- *TOCA RENOVAR:* %s
/// *GRACIAS POR SU PREFERENCIA* ///
`, strings.ToUpper(acc.Platform), acc.Email, acc.Expiry)
}

func replaceText(acc domain.Account) string {
	return fmt.Sprintf(`ACTUALIZACIÓN - *%s*
- Correo: %s
- Contraseña: %s
`, strings.ToUpper(acc.Platform), acc.Email, acc.Password)
}

// removedText reminds the operator to reassign the client the removed account
// belonged to. The platform is echoed as the operator typed it.
func removedText(platform string, acc domain.Account) string {
	return fmt.Sprintf("Asignar cuenta %s\n(%s) // (%s)\n", platform, acc.AssignedTo(), acc.Expiry)
}

// expiredText is the per-client notification for swept accounts; the wording
// switches between one and several expired services. paymentNote, when
// configured, is appended with the payment instructions.
func expiredText(accounts []domain.Account, paymentNote string) string {
	var b strings.Builder
	if len(accounts) == 1 {
		a := accounts[0]
		fmt.Fprintf(&b, "Buen día, tu servicio de %s *(%s)* a vencido confirma renovación para evitar cortes innecesarios.\n", a.Platform, a.Email)
	} else {
		b.WriteString("Buen día, tus servicios streaming han vencido\n")
		for _, a := range accounts {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Email, a.Platform)
		}
		b.WriteString("confirma renovación para evitar cortes innecesarios.\n")
	}
	if paymentNote != "" {
		b.WriteString("*METODOS DE PAGO*\n")
		b.WriteString(paymentNote)
	}
	return b.String()
}

func searchText(results []domain.Account) string {
	var parts []string
	for _, a := range results {
		parts = append(parts, fmt.Sprintf("-- %s --\nCorreo: %s\nEstado: %s\nCliente: %s\n",
			capitalize(a.Platform), a.Email, statusLabel(a.Status), clientLabel(a)))
	}
	return strings.Join(parts, "\n")
}

func statsText(stats ledger.Stats) string {
	var b strings.Builder
	b.WriteString("📊 *Estadísticas rápidas* 📊\n\n")

	b.WriteString("💰 *Total de ingresos por plataforma:*\n")
	for _, r := range stats.Revenue {
		fmt.Fprintf(&b, "- %s: S/. %.2f\n", capitalize(r.Platform), float64(r.Total))
	}
	if len(stats.Revenue) == 0 {
		b.WriteString("- Sin registros aún\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "✅ Total cuentas vendidas: %d\n", stats.Sold)
	fmt.Fprintf(&b, "📦 Total cuentas disponibles: %d\n", stats.Available)
	fmt.Fprintf(&b, "👥 Total clientes activos: %d\n\n", stats.Clients)

	fmt.Fprintf(&b, "⏰ *Cuentas próximas a vencer en %d días:*\n", ledger.AlertWindowDays)
	for _, e := range stats.Expiring {
		fmt.Fprintf(&b, "- %s (%s) cliente: %s vence: %s\n", capitalize(e.Platform), e.Email, e.Client, e.Expiry)
	}
	if len(stats.Expiring) == 0 {
		b.WriteString("No hay cuentas próximas a vencer.\n")
	}
	return b.String()
}
