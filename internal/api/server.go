package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/polywhale/internal/domain"
)

const (
	defaultTradesLimit = 100
	maxTradesLimit     = 500
)

// Service es lo que el servidor HTTP necesita del poller. Recibe el handle
// explícito — no hay instancia global.
type Service interface {
	Trades(ctx context.Context, limit int) ([]domain.Trade, error)
	Status(ctx context.Context) domain.Status
	PollNow(ctx context.Context) error
	Threshold(ctx context.Context) (float64, error)
	UpdateThreshold(ctx context.Context, amount float64) error
}

// Server expone el pipeline por HTTP para el frontend local.
type Server struct {
	svc  Service
	addr string
}

// NewServer crea el servidor HTTP sobre el service dado.
func NewServer(svc Service, addr string) *Server {
	return &Server{svc: svc, addr: addr}
}

// Handler devuelve el http.Handler con todas las rutas montadas.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/threshold", s.handleGetThreshold)
	mux.HandleFunc("POST /api/threshold", s.handleSetThreshold)
	return mux
}

// Run sirve hasta que el contexto se cancele; entonces apaga con gracia.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api.Run: %w", err)
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	// Clamp server-side a [1, 500]
	limit = max(1, min(maxTradesLimit, limit))

	trades, err := s.svc.Trades(r.Context(), limit)
	if err != nil {
		slog.Error("list transactions failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": trades,
		"count":        len(trades),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  s.svc.Status(r.Context()),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.PollNow(r.Context()); err != nil {
		slog.Error("manual refresh failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Refresh triggered",
	})
}

func (s *Server) handleGetThreshold(w http.ResponseWriter, r *http.Request) {
	threshold, err := s.svc.Threshold(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"threshold": threshold,
	})
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	raw, ok := body["amount"]
	if !ok || raw == nil {
		writeError(w, http.StatusBadRequest, "Amount is required")
		return
	}

	amount, err := toFloat(raw)
	if err != nil || amount <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid amount: must be a positive number")
		return
	}

	if err := s.svc.UpdateThreshold(r.Context(), amount); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"threshold": amount,
		"message":   "Threshold updated successfully",
	})
}

// toFloat acepta el amount como número o como string numérico.
func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	case json.Number:
		return x.Float64()
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
