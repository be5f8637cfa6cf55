package storage

// sqlite.go — persistencia deduplicada de whale trades.
//
// Dos tablas:
//   - `whale_transactions`: una fila por trade, tx_hash UNIQUE como clave
//     natural. Un INSERT duplicado es un no-op que se reporta como boolean,
//     nunca como error, y nunca sobreescribe la fila existente.
//   - `settings`: key/value para el estado del poller (last_fetch_time,
//     whale_threshold). Sobreviven reinicios del proceso.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/polywhale/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS whale_transactions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    tx_hash        TEXT UNIQUE NOT NULL,
    amount         REAL NOT NULL,
    market_name    TEXT,
    market_id      TEXT,
    outcome        TEXT,
    side           TEXT,
    trader_address TEXT,
    timestamp      INTEGER NOT NULL,
    details_json   TEXT,
    created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_whale_ts ON whale_transactions(timestamp DESC);
`

const (
	settingLastFetch = "last_fetch_time"
	settingThreshold = "whale_threshold"
)

// SQLiteStore implementa ports.TradeStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db               *sql.DB
	defaultThreshold float64
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el
// schema. defaultThreshold se devuelve cuando no hay threshold persistido.
func NewSQLiteStore(path string, defaultThreshold float64) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	return &SQLiteStore{db: db, defaultThreshold: defaultThreshold}, nil
}

// Insert guarda un trade nuevo. Devuelve (true, nil) si se insertó,
// (false, nil) si el tx_hash ya existía. El created_at lo asigna el store.
func (s *SQLiteStore) Insert(ctx context.Context, t domain.Trade) (bool, error) {
	if t.TxHash == "" {
		return false, fmt.Errorf("storage.Insert: empty tx_hash")
	}
	if t.Amount <= 0 {
		return false, fmt.Errorf("storage.Insert: non-positive amount %v for %s", t.Amount, t.TxHash)
	}

	detailsJSON, err := json.Marshal(t.Details)
	if err != nil {
		return false, fmt.Errorf("storage.Insert: marshal details for %s: %w", t.TxHash, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO whale_transactions
			(tx_hash, amount, market_name, market_id, outcome,
			 side, trader_address, timestamp, details_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TxHash, t.Amount, t.MarketName, t.MarketID, t.Outcome,
		t.Side, t.TraderAddress, t.Timestamp, string(detailsJSON), time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("storage.Insert: %s: %w", t.TxHash, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.Insert: rows affected: %w", err)
	}
	return n > 0, nil
}

// AllTrades devuelve los trades ordenados por timestamp descendente, con
// desempate determinista por id descendente. limit <= 0 significa sin límite.
func (s *SQLiteStore) AllTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	query := `
		SELECT id, tx_hash, amount, market_name, market_id, outcome,
		       side, trader_address, timestamp, details_json, created_at
		FROM whale_transactions
		ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.AllTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.AllTrades: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ByHash devuelve el trade con ese tx_hash, o found=false si no existe.
func (s *SQLiteStore) ByHash(ctx context.Context, txHash string) (domain.Trade, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tx_hash, amount, market_name, market_id, outcome,
		       side, trader_address, timestamp, details_json, created_at
		FROM whale_transactions
		WHERE tx_hash = ?`, txHash)

	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return domain.Trade{}, false, nil
	}
	if err != nil {
		return domain.Trade{}, false, fmt.Errorf("storage.ByHash: %s: %w", txHash, err)
	}
	return t, true, nil
}

// Exists indica si ya hay un trade con ese tx_hash.
func (s *SQLiteStore) Exists(ctx context.Context, txHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM whale_transactions WHERE tx_hash = ? LIMIT 1`, txHash,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.Exists: %s: %w", txHash, err)
	}
	return true, nil
}

// Count devuelve el total de trades almacenados.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM whale_transactions`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.Count: %w", err)
	}
	return n, nil
}

// LastFetchTime devuelve el watermark del último fetch exitoso, o
// found=false en el primer arranque (señal de bootstrap).
func (s *SQLiteStore) LastFetchTime(ctx context.Context) (int64, bool, error) {
	v, found, err := s.getSetting(ctx, settingLastFetch)
	if err != nil || !found {
		return 0, false, err
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("storage.LastFetchTime: parse %q: %w", v, err)
	}
	return ts, true, nil
}

// SetLastFetchTime avanza el watermark.
func (s *SQLiteStore) SetLastFetchTime(ctx context.Context, ts int64) error {
	return s.setSetting(ctx, settingLastFetch, strconv.FormatInt(ts, 10))
}

// WhaleThreshold devuelve el threshold persistido, o el default si nunca se
// ha configurado.
func (s *SQLiteStore) WhaleThreshold(ctx context.Context) (float64, error) {
	v, found, err := s.getSetting(ctx, settingThreshold)
	if err != nil {
		return 0, err
	}
	if !found {
		return s.defaultThreshold, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("storage.WhaleThreshold: parse %q: %w", v, err)
	}
	return f, nil
}

// SetWhaleThreshold persiste el threshold. Rechaza valores no positivos.
func (s *SQLiteStore) SetWhaleThreshold(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("storage.SetWhaleThreshold: threshold must be positive, got %v", amount)
	}
	return s.setSetting(ctx, settingThreshold, strconv.FormatFloat(amount, 'f', -1, 64))
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// scanner abstrae *sql.Row y *sql.Rows para scanTrade.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(row scanner) (domain.Trade, error) {
	var t domain.Trade
	var detailsJSON sql.NullString
	if err := row.Scan(
		&t.ID, &t.TxHash, &t.Amount, &t.MarketName, &t.MarketID, &t.Outcome,
		&t.Side, &t.TraderAddress, &t.Timestamp, &detailsJSON, &t.CreatedAt,
	); err != nil {
		return domain.Trade{}, err
	}

	if detailsJSON.Valid && detailsJSON.String != "" && detailsJSON.String != "null" {
		if err := json.Unmarshal([]byte(detailsJSON.String), &t.Details); err != nil {
			// details es payload opaco de auditoría — un JSON corrupto no
			// invalida el trade
			t.Details = nil
		}
	}
	return t, nil
}

func (s *SQLiteStore) getSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage.getSetting: %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) setSetting(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value,
	); err != nil {
		return fmt.Errorf("storage.setSetting: %s: %w", key, err)
	}
	return nil
}
