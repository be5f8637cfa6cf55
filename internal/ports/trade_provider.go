package ports

import (
	"context"

	"github.com/alejandrodnm/polywhale/internal/domain"
)

// TradeProvider obtiene whale trades normalizados desde la Data API.
type TradeProvider interface {
	// FetchTrades devuelve los trades por encima del threshold actual dentro
	// de la ventana [start, end] (unix seconds; 0 = sin límite), ordenados
	// por timestamp descendente. limit se recorta al máximo de la API (500).
	FetchTrades(ctx context.Context, start, end int64, limit int) ([]domain.Trade, error)

	// FetchInitial hace el fetch de arranque: prueba las últimas 24h y si la
	// ventana viene vacía reintenta con 7 días. Una ventana vacía no es error.
	FetchInitial(ctx context.Context) ([]domain.Trade, error)

	// FetchSince devuelve los trades desde lastFetch hasta ahora.
	FetchSince(ctx context.Context, lastFetch int64) ([]domain.Trade, error)

	// SetThreshold actualiza el threshold en vivo; el siguiente fetch lo usa
	// sin reconstruir el provider.
	SetThreshold(amount float64)
}
