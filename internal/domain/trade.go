package domain

// Side de un trade según la Data API.
const (
	SideBuy     = "BUY"
	SideSell    = "SELL"
	SideUnknown = "UNKNOWN"
)

// Trade es un whale trade normalizado de la Data API de Polymarket.
// Amount es el notional (price × size) y siempre es > 0 para trades
// almacenados. TxHash es la clave natural de deduplicación.
type Trade struct {
	ID            int64          `json:"id,omitempty"`
	TxHash        string         `json:"tx_hash"`
	Amount        float64        `json:"amount"`
	MarketName    string         `json:"market_name"`
	MarketID      string         `json:"market_id"`
	Outcome       string         `json:"outcome"`
	Side          string         `json:"side"` // BUY | SELL | UNKNOWN
	TraderAddress string         `json:"trader_address"`
	Timestamp     int64          `json:"timestamp"`  // unix seconds, hora del evento
	Details       map[string]any `json:"details,omitempty"` // payload crudo + campos derivados
	CreatedAt     int64          `json:"created_at"` // unix seconds, lo asigna el store al insertar
}
