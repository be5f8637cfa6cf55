package ports

import (
	"context"

	"github.com/alejandrodnm/polywhale/internal/domain"
)

// TradeStore persiste trades deduplicados más el estado del poller
// (watermark de último fetch y threshold configurado).
type TradeStore interface {
	// Insert guarda un trade. Devuelve true si es nuevo, false si el tx_hash
	// ya existía — un duplicado no es un error y nunca sobreescribe la fila.
	Insert(ctx context.Context, trade domain.Trade) (bool, error)

	// AllTrades devuelve los trades ordenados por timestamp descendente.
	// limit <= 0 significa sin límite.
	AllTrades(ctx context.Context, limit int) ([]domain.Trade, error)

	// ByHash devuelve el trade con ese tx_hash, o found=false si no existe.
	ByHash(ctx context.Context, txHash string) (trade domain.Trade, found bool, err error)

	// Exists indica si ya hay un trade con ese tx_hash.
	Exists(ctx context.Context, txHash string) (bool, error)

	// Count devuelve el total de trades almacenados.
	Count(ctx context.Context) (int, error)

	// LastFetchTime devuelve el watermark, o found=false en el primer arranque.
	LastFetchTime(ctx context.Context) (ts int64, found bool, err error)
	SetLastFetchTime(ctx context.Context, ts int64) error

	// WhaleThreshold devuelve el threshold persistido o el default configurado.
	WhaleThreshold(ctx context.Context) (float64, error)
	// SetWhaleThreshold rechaza valores no positivos.
	SetWhaleThreshold(ctx context.Context, amount float64) error

	Close() error
}
