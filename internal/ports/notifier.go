package ports

import (
	"context"

	"github.com/alejandrodnm/polywhale/internal/domain"
)

// Notifier presenta un whale trade nuevo al usuario (alerta de escritorio,
// consola, etc.). Es fire-and-forget: un error se loggea y no afecta al
// ciclo de ingesta.
type Notifier interface {
	Notify(ctx context.Context, trade domain.Trade) error
}
