package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polywhale/internal/domain"
	"github.com/alejandrodnm/polywhale/internal/ports"
)

// Config contiene la configuración del poller.
type Config struct {
	PollInterval time.Duration
}

// Observer recibe cada whale trade nuevo en el orden en que llegó del fetch.
// Se invoca de forma síncrona dentro del ciclo — debe ser barato.
type Observer func(domain.Trade)

// Poller es el scheduler de ingesta: decide bootstrap vs incremental,
// orquesta fetch → insert → notify y es el único escritor del watermark.
type Poller struct {
	cfg      Config
	provider ports.TradeProvider
	store    ports.TradeStore
	notifier ports.Notifier

	// cycleMu garantiza "un ciclo a la vez" — cubre el ticker y PollNow.
	cycleMu sync.Mutex

	mu        sync.Mutex // protege running, cancel, done, observers
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	observers map[string]Observer
}

// New crea un Poller con todas las dependencias inyectadas.
func New(cfg Config, provider ports.TradeProvider, store ports.TradeStore, notifier ports.Notifier) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	return &Poller{
		cfg:       cfg,
		provider:  provider,
		store:     store,
		notifier:  notifier,
		observers: make(map[string]Observer),
	}
}

// Start arranca el servicio: lee el threshold persistido, lo propaga al
// provider, hace el fetch inicial o incremental según haya watermark, y
// registra el job periódico. Llamar Start sobre un servicio ya corriendo
// es un no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		slog.Info("service already running")
		return nil
	}
	p.mu.Unlock()

	slog.Info("starting polywhale service", "interval", p.cfg.PollInterval)

	threshold, err := p.store.WhaleThreshold(ctx)
	if err != nil {
		return fmt.Errorf("poller.Start: read threshold: %w", err)
	}
	p.provider.SetThreshold(threshold)
	slog.Info("whale threshold loaded", "threshold", threshold)

	_, found, err := p.store.LastFetchTime(ctx)
	if err != nil {
		return fmt.Errorf("poller.Start: read watermark: %w", err)
	}
	if !found {
		slog.Info("first run detected, fetching initial trades")
		// El error no impide arrancar: el watermark sigue ausente y el
		// siguiente ciclo periódico reintenta el bootstrap.
		if err := p.bootstrap(ctx); err != nil {
			slog.Error("initial fetch failed", "err", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.running = true
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.loop(runCtx, done)

	slog.Info("service started", "interval", p.cfg.PollInterval)
	return nil
}

// loop dispara un ciclo por tick hasta que el contexto se cancele.
func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.cycle(ctx); err != nil {
				slog.Error("poll cycle failed", "err", err)
			}
		}
	}
}

// PollNow ejecuta un ciclo fuera del schedule. Comparte el lock de ciclo
// con el job periódico, así que nunca corre en paralelo con él.
func (p *Poller) PollNow(ctx context.Context) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return fmt.Errorf("poller.PollNow: service not running")
	}

	slog.Info("manual poll triggered")
	return p.cycle(ctx)
}

// cycle es un ciclo completo de ingesta: fetch incremental desde el
// watermark, insert deduplicado, notificación por trade nuevo y avance del
// watermark — solo si el fetch tuvo éxito.
func (p *Poller) cycle(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	start := time.Now()

	lastFetch, found, err := p.store.LastFetchTime(ctx)
	if err != nil {
		return fmt.Errorf("poller.cycle: read watermark: %w", err)
	}
	if !found {
		// No debería pasar tras el bootstrap; fallback defensivo.
		return p.bootstrapLocked(ctx)
	}

	trades, err := p.provider.FetchSince(ctx, lastFetch)
	if err != nil {
		// Watermark intacto: el siguiente ciclo reintenta la misma ventana.
		return fmt.Errorf("poller.cycle: fetch: %w", err)
	}

	newCount := 0
	for _, t := range trades {
		inserted, err := p.store.Insert(ctx, t)
		if err != nil {
			slog.Warn("failed to store trade", "tx_hash", t.TxHash, "err", err)
			continue
		}
		if !inserted {
			continue // duplicado — redelivery absorbida
		}
		newCount++
		p.publish(ctx, t)
	}

	if err := p.store.SetLastFetchTime(ctx, time.Now().Unix()); err != nil {
		return fmt.Errorf("poller.cycle: advance watermark: %w", err)
	}

	slog.Info("poll cycle complete",
		"fetched", len(trades),
		"new", newCount,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// bootstrap siembra el histórico inicial en silencio: sin notificaciones
// ni observers, y deja el watermark puesto.
func (p *Poller) bootstrap(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()
	return p.bootstrapLocked(ctx)
}

func (p *Poller) bootstrapLocked(ctx context.Context) error {
	trades, err := p.provider.FetchInitial(ctx)
	if err != nil {
		return fmt.Errorf("poller.bootstrap: fetch: %w", err)
	}

	newCount := 0
	for _, t := range trades {
		inserted, err := p.store.Insert(ctx, t)
		if err != nil {
			slog.Warn("failed to store trade", "tx_hash", t.TxHash, "err", err)
			continue
		}
		if inserted {
			newCount++
		}
	}

	if err := p.store.SetLastFetchTime(ctx, time.Now().Unix()); err != nil {
		return fmt.Errorf("poller.bootstrap: set watermark: %w", err)
	}

	slog.Info("initial fetch complete", "fetched", len(trades), "stored", newCount)
	return nil
}

// publish entrega un trade nuevo al notifier y a los observers registrados.
// Los fallos se contienen aquí: nunca abortan el ciclo.
func (p *Poller) publish(ctx context.Context, t domain.Trade) {
	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, t); err != nil {
			slog.Warn("notifier error", "tx_hash", t.TxHash, "err", err)
		}
	}

	p.mu.Lock()
	obs := make([]Observer, 0, len(p.observers))
	for _, fn := range p.observers {
		obs = append(obs, fn)
	}
	p.mu.Unlock()

	for _, fn := range obs {
		fn(t)
	}
}

// Subscribe registra un observer y devuelve su id de suscripción.
func (p *Poller) Subscribe(fn Observer) string {
	id := uuid.New().String()
	p.mu.Lock()
	p.observers[id] = fn
	p.mu.Unlock()
	return id
}

// Unsubscribe elimina el observer con ese id. Ids desconocidos son no-op.
func (p *Poller) Unsubscribe(id string) {
	p.mu.Lock()
	delete(p.observers, id)
	p.mu.Unlock()
}

// UpdateThreshold persiste el nuevo threshold y lo propaga al provider para
// que el siguiente fetch lo use. No refiltra el histórico almacenado.
func (p *Poller) UpdateThreshold(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("poller.UpdateThreshold: threshold must be positive, got %v", amount)
	}
	if err := p.store.SetWhaleThreshold(ctx, amount); err != nil {
		return err
	}
	p.provider.SetThreshold(amount)
	slog.Info("whale threshold updated", "threshold", amount)
	return nil
}

// Threshold devuelve el threshold vigente.
func (p *Poller) Threshold(ctx context.Context) (float64, error) {
	return p.store.WhaleThreshold(ctx)
}

// Trades devuelve los trades almacenados, los más recientes primero.
func (p *Poller) Trades(ctx context.Context, limit int) ([]domain.Trade, error) {
	return p.store.AllTrades(ctx, limit)
}

// Status devuelve el snapshot de estado. Es una lectura pura, segura
// incluso con el servicio parado.
func (p *Poller) Status(ctx context.Context) domain.Status {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	st := domain.Status{
		Running:             running,
		PollIntervalMinutes: int(p.cfg.PollInterval / time.Minute),
	}

	// Tras Stop el store está cerrado; el snapshot degrada a ceros.
	if ts, found, err := p.store.LastFetchTime(ctx); err == nil && found {
		st.LastFetch = &ts
	}
	if n, err := p.store.Count(ctx); err == nil {
		st.TotalTrades = n
	}
	return st
}

// Stop cancela el job periódico, espera a que el ciclo en vuelo termine y
// cierra el store. Es idempotente.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	slog.Info("stopping service")
	cancel()
	<-done

	if err := p.store.Close(); err != nil {
		slog.Warn("error closing store", "err", err)
	}
	slog.Info("service stopped")
}
