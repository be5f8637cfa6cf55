package polymarket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/alejandrodnm/polywhale/internal/domain"
)

// mapTrades convierte los registros crudos a domain.Trade.
// Los registros con campos numéricos no coercibles se saltan con un warning;
// los que no producen tx_hash o amount positivo se descartan en silencio.
// Devuelve los trades válidos y cuántos registros se descartaron.
func mapTrades(raw []rawTrade) ([]domain.Trade, int) {
	trades := make([]domain.Trade, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		t, err := mapTrade(r)
		if err != nil {
			slog.Warn("error parsing trade record", "err", err)
			dropped++
			continue
		}
		if t.TxHash == "" || t.Amount <= 0 {
			dropped++
			continue
		}
		trades = append(trades, t)
	}

	return trades, dropped
}

// mapTrade normaliza un registro crudo a domain.Trade.
// Preferencias de campos (las mismas que usa el frontend de Polymarket):
//   - tx_hash: transactionHash, fallback id
//   - market_id: eventSlug (agrupa los outcome markets de un evento bajo una
//     entidad navegable), fallback slug del mercado concreto
//   - trader: proxyWallet, fallback takerAddress, fallback makerAddress
//   - timestamp: timestamp, fallback matchTime
func mapTrade(r rawTrade) (domain.Trade, error) {
	price, err := num(r["price"])
	if err != nil {
		return domain.Trade{}, fmt.Errorf("price: %w", err)
	}
	size, err := num(r["size"])
	if err != nil {
		return domain.Trade{}, fmt.Errorf("size: %w", err)
	}

	ts, err := integer(coalesce(r["timestamp"], r["matchTime"]))
	if err != nil {
		return domain.Trade{}, fmt.Errorf("timestamp: %w", err)
	}

	return domain.Trade{
		TxHash:        str(coalesce(r["transactionHash"], r["id"])),
		Amount:        price * size,
		MarketName:    strDefault(r["title"], "Unknown Market"),
		MarketID:      str(coalesce(r["eventSlug"], r["slug"])),
		Outcome:       str(r["outcome"]),
		Side:          strDefault(r["side"], domain.SideUnknown),
		TraderAddress: str(coalesce(r["proxyWallet"], r["takerAddress"], r["makerAddress"])),
		Timestamp:     ts,
		Details: map[string]any{
			"price":            r["price"],
			"size":             r["size"],
			"fee_rate":         r["feeRateBps"],
			"transaction_hash": r["transactionHash"],
			"bucket_index":     r["bucketIndex"],
			"match_time":       r["matchTime"],
			"slug":             r["slug"],
			"event_slug":       r["eventSlug"],
			"raw_data":         map[string]any(r),
		},
	}, nil
}

// coalesce devuelve el primer valor no vacío (ni nil ni string vacío ni 0).
func coalesce(vals ...any) any {
	for _, v := range vals {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			if x != "" {
				return x
			}
		case json.Number:
			if x != "" && x != "0" {
				return x
			}
		default:
			return v
		}
	}
	return nil
}

// str coerce un valor a string; los valores ausentes devuelven "".
func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// strDefault coerce a string con fallback para valores ausentes o vacíos.
func strDefault(v any, def string) string {
	if s := str(v); s != "" {
		return s
	}
	return def
}

// num coerce un valor a float64. nil (campo ausente) vale 0; un valor
// presente pero no numérico es un error de parseo del registro.
func num(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return x.Float64()
	case string:
		if x == "" {
			return 0, nil
		}
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}

// integer coerce un valor a int64 truncando decimales.
func integer(v any) (int64, error) {
	f, err := num(v)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
