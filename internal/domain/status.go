package domain

// Status es el snapshot de estado del servicio de polling.
// LastFetch es nil hasta que el primer ciclo termina con éxito.
type Status struct {
	Running             bool   `json:"is_running"`
	LastFetch           *int64 `json:"last_fetch"`
	TotalTrades         int    `json:"total_trades"`
	PollIntervalMinutes int    `json:"poll_interval"`
}
