package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/polywhale/internal/domain"
)

const (
	initialFetchWindow  = 24 * time.Hour
	fallbackFetchWindow = 7 * 24 * time.Hour
)

// FetchTrades obtiene los whale trades de la ventana [start, end] (unix
// seconds; 0 = sin límite) usando el threshold actual como filterAmount.
// Devuelve los trades normalizados, ordenados por timestamp descendente.
func (c *Client) FetchTrades(ctx context.Context, start, end int64, limit int) ([]domain.Trade, error) {
	if limit <= 0 || limit > c.maxLimit {
		limit = c.maxLimit
	}

	params := url.Values{}
	params.Set("filterType", "CASH")
	params.Set("filterAmount", strconv.FormatFloat(c.Threshold(), 'f', -1, 64))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sortBy", "TIMESTAMP")
	params.Set("sortDirection", "DESC")
	if start > 0 {
		params.Set("start", strconv.FormatInt(start, 10))
	}
	if end > 0 {
		params.Set("end", strconv.FormatInt(end, 10))
	}

	var raw []rawTrade
	if err := c.get(ctx, c.baseURL+"/trades?"+params.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("polymarket.FetchTrades: %w", err)
	}

	trades, dropped := mapTrades(raw)
	if dropped > 0 {
		slog.Debug("dropped unusable trade records", "dropped", dropped, "kept", len(trades))
	}
	return trades, nil
}

// FetchInitial hace el fetch de arranque: prueba las últimas 24h y, si la
// ventana viene vacía, reintenta con los últimos 7 días. Una ventana vacía
// no es un error — devuelve el resultado (posiblemente vacío) del fallback.
func (c *Client) FetchInitial(ctx context.Context) ([]domain.Trade, error) {
	now := time.Now().Unix()

	start24h := now - int64(c.initialWindow.Seconds())
	slog.Info("fetching initial trades", "window", "24h")
	trades, err := c.FetchTrades(ctx, start24h, now, 0)
	if err != nil {
		return nil, err
	}
	if len(trades) > 0 {
		slog.Info("initial fetch complete", "window", "24h", "trades", len(trades))
		return trades, nil
	}

	// Nota: una ventana vacía puede significar "no hubo trades" o "el
	// threshold filtró todo"; no distinguimos, igual que no lo hace la API.
	slog.Info("no trades in last 24h, falling back", "window", "7d")
	start7d := now - int64(c.fallbackWindow.Seconds())
	trades, err = c.FetchTrades(ctx, start7d, now, 0)
	if err != nil {
		return nil, err
	}
	slog.Info("initial fetch complete", "window", "7d", "trades", len(trades))
	return trades, nil
}

// FetchSince devuelve los trades desde lastFetch hasta ahora.
func (c *Client) FetchSince(ctx context.Context, lastFetch int64) ([]domain.Trade, error) {
	now := time.Now().Unix()
	slog.Debug("fetching trades since last poll",
		"since", time.Unix(lastFetch, 0).Format(time.RFC3339))
	return c.FetchTrades(ctx, lastFetch, now, 0)
}
