package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultDataAPIBase = "https://data-api.polymarket.com"

	// Data API pública: sin auth, límites generosos. 10 req/s con burst de 5
	// deja margen de sobra para un poller de 5 minutos más refreshes manuales.
	dataRatePerSec = 10

	maxRetries     = 3
	baseRetryWait  = 1 * time.Second
	requestTimeout = 30 * time.Second

	// La Data API no devuelve más de 500 trades por request.
	maxTradesLimit = 500
)

// Client es el HTTP client de la Data API de Polymarket con rate limiting,
// retries y threshold mutable en vivo.
type Client struct {
	http           *http.Client
	baseURL        string
	limiter        *rate.Limiter
	maxLimit       int
	initialWindow  time.Duration
	fallbackWindow time.Duration

	mu        sync.Mutex
	threshold float64 // whale threshold en USD, se lee fresco en cada fetch
}

// Option configura el Client.
type Option func(*Client)

// WithMaxLimit fija el límite máximo de trades por request (se recorta a 500).
func WithMaxLimit(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= maxTradesLimit {
			c.maxLimit = n
		}
	}
}

// WithFetchWindows fija las ventanas del fetch inicial (corta y fallback).
func WithFetchWindows(initial, fallback time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.initialWindow = initial
		}
		if fallback > 0 {
			c.fallbackWindow = fallback
		}
	}
}

// NewClient crea un Client contra el base URL dado (vacío = producción)
// con el whale threshold inicial.
func NewClient(baseURL string, threshold float64, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultDataAPIBase
	}
	c := &Client{
		http:           &http.Client{Timeout: requestTimeout},
		baseURL:        baseURL,
		limiter:        rate.NewLimiter(dataRatePerSec, 5),
		maxLimit:       maxTradesLimit,
		initialWindow:  initialFetchWindow,
		fallbackWindow: fallbackFetchWindow,
		threshold:      threshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetThreshold actualiza el whale threshold. El siguiente fetch lo usa sin
// reconstruir el client.
func (c *Client) SetThreshold(amount float64) {
	c.mu.Lock()
	c.threshold = amount
	c.mu.Unlock()
}

// Threshold devuelve el whale threshold actual.
func (c *Client) Threshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// get hace un GET con rate limiting y retries, decodificando el body en out.
func (c *Client) get(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := c.do(ctx, url)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			slog.Warn("data-api request failed, retrying",
				"attempt", attempt+1, "max", maxRetries+1, "err", err)
			c.sleep(ctx, attempt)
			continue
		}

		// Cualquier non-2xx (429, 5xx y también 4xx) se reintenta con backoff;
		// la API devuelve errores transitorios con códigos variados.
		if resp.StatusCode >= 400 {
			status := resp.StatusCode
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries: %s", status, maxRetries, string(body))
			}
			slog.Warn("data-api error status, retrying", "status", status, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		dec := json.NewDecoder(resp.Body)
		dec.UseNumber() // preserva price/size tal cual (la API los manda como string o número)
		err = dec.Decode(out)
		resp.Body.Close()
		if err != nil {
			// Body malformado: misma categoría que un fallo de transporte
			if attempt == maxRetries {
				return fmt.Errorf("decode response after %d retries: %w", maxRetries, err)
			}
			slog.Warn("data-api malformed response, retrying", "attempt", attempt+1, "err", err)
			c.sleep(ctx, attempt)
			continue
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// sleep espera con backoff exponencial (1s, 2s, 4s), respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
