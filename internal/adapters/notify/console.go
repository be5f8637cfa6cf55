package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polywhale/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo alertas de whale trades.
// Es el sustituto headless de la notificación de escritorio: una línea por
// trade, más una tabla de recientes bajo demanda.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify imprime la alerta de un whale trade nuevo.
func (c *Console) Notify(_ context.Context, t domain.Trade) error {
	when := time.Unix(t.Timestamp, 0).Format("2006-01-02 15:04:05")
	_, err := fmt.Fprintf(c.out, "🐋 Whale Trade: $%s | %s | %s %s | %s\n",
		formatUSD(t.Amount), truncate(t.MarketName, 50), t.Side, t.Outcome, when)
	if err != nil {
		return fmt.Errorf("notify.Notify: %w", err)
	}
	return nil
}

// PrintRecent imprime una tabla con los whale trades dados (los más
// recientes primero, como los devuelve el store).
func (c *Console) PrintRecent(trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintf(c.out, "[%s] no whale trades stored\n", time.Now().Format("15:04:05"))
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Amount", "Market", "Outcome", "Side", "Trader", "Time")

	for i, t := range trades {
		table.Append(
			strconv.Itoa(i+1),
			"$"+formatUSD(t.Amount),
			truncate(t.MarketName, 40),
			t.Outcome,
			t.Side,
			truncate(t.TraderAddress, 12),
			time.Unix(t.Timestamp, 0).Format("01-02 15:04"),
		)
	}

	table.Render()
	fmt.Fprintf(c.out, "  %d whale trades\n", len(trades))
}

// formatUSD formatea un amount con separador de miles y dos decimales.
func formatUSD(amount float64) string {
	neg := amount < 0
	amount = math.Abs(amount)

	whole := int64(amount)
	cents := int64(math.Round((amount - float64(whole)) * 100))
	if cents == 100 { // redondeo hacia arriba cruza el entero
		whole++
		cents = 0
	}

	digits := strconv.FormatInt(whole, 10)
	var sb strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(d)
	}

	out := fmt.Sprintf("%s.%02d", sb.String(), cents)
	if neg {
		return "-" + out
	}
	return out
}

// truncate corta un string a maxLen runas añadiendo "..." si hace falta.
// Corta por runas para no partir títulos con caracteres multibyte.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
