package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alejandrodnm/polywhale/internal/adapters/polymarket"
	"github.com/alejandrodnm/polywhale/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server, threshold float64) *polymarket.Client {
	return polymarket.NewClient(srv.URL, threshold)
}

func TestFetchTrades_NormalizesRecord(t *testing.T) {
	// price y size llegan como string, timestamp como número — la API mezcla
	fixture := `[{
		"transactionHash": "0xabc",
		"price": "0.5",
		"size": "25000",
		"side": "BUY",
		"timestamp": 1700000000,
		"eventSlug": "m1",
		"slug": "m1-yes",
		"outcome": "Yes",
		"takerAddress": "0xT",
		"title": "Will it happen?",
		"feeRateBps": "0"
	}]`

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades", r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	client := newTestClient(srv, 10000)
	trades, err := client.FetchTrades(context.Background(), 1699990000, 1700000100, 200)

	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "0xabc", tr.TxHash)
	assert.InDelta(t, 12500.0, tr.Amount, 0.0001) // 0.5 × 25000
	assert.Equal(t, "m1", tr.MarketID)            // eventSlug gana sobre slug
	assert.Equal(t, "Will it happen?", tr.MarketName)
	assert.Equal(t, "Yes", tr.Outcome)
	assert.Equal(t, domain.SideBuy, tr.Side)
	assert.Equal(t, "0xT", tr.TraderAddress)
	assert.Equal(t, int64(1700000000), tr.Timestamp)
	assert.NotNil(t, tr.Details["raw_data"])

	// Parámetros del filtro según el contrato de la Data API
	assert.Equal(t, "CASH", gotQuery["filterType"])
	assert.Equal(t, "10000", gotQuery["filterAmount"])
	assert.Equal(t, "200", gotQuery["limit"])
	assert.Equal(t, "TIMESTAMP", gotQuery["sortBy"])
	assert.Equal(t, "DESC", gotQuery["sortDirection"])
	assert.Equal(t, "1699990000", gotQuery["start"])
	assert.Equal(t, "1700000100", gotQuery["end"])
}

func TestFetchTrades_FieldFallbacks(t *testing.T) {
	fixture := `[{
		"id": "trade-17",
		"price": 0.25,
		"size": 100000,
		"matchTime": "1700000050",
		"slug": "only-market-slug",
		"makerAddress": "0xM"
	}]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv, 10000).FetchTrades(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "trade-17", tr.TxHash) // sin transactionHash → id
	assert.Equal(t, "only-market-slug", tr.MarketID)
	assert.Equal(t, "0xM", tr.TraderAddress)
	assert.Equal(t, int64(1700000050), tr.Timestamp) // sin timestamp → matchTime
	assert.Equal(t, domain.SideUnknown, tr.Side)
	assert.Equal(t, "Unknown Market", tr.MarketName)
}

func TestFetchTrades_DropsUnusableRecords(t *testing.T) {
	// 1º: sin hash ni id → drop. 2º: amount 0 → drop.
	// 3º: price no numérico → warning + drop. 4º: válido.
	fixture := `[
		{"price": "0.5", "size": "30000", "timestamp": 1700000001},
		{"transactionHash": "0xzero", "price": "0", "size": "30000", "timestamp": 1700000002},
		{"transactionHash": "0xbad", "price": "n/a", "size": "30000", "timestamp": 1700000003},
		{"transactionHash": "0xok", "price": "0.4", "size": "50000", "timestamp": 1700000004}
	]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv, 10000).FetchTrades(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "0xok", trades[0].TxHash)
	assert.InDelta(t, 20000.0, trades[0].Amount, 0.0001)
}

func TestFetchTrades_RetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv, 10000).FetchTrades(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, 2, calls)
}

func TestFetchTrades_RetriesClientError(t *testing.T) {
	// Los 4xx también se reintentan: la Data API devuelve errores transitorios
	// con códigos variados, igual que los 5xx.
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv, 10000).FetchTrades(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Greater(t, calls, 1)
}

func TestFetchInitial_FallbackTo7Days(t *testing.T) {
	var starts []string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		starts = append(starts, r.URL.Query().Get("start"))
		if calls == 1 {
			w.Write([]byte(`[]`)) // 24h vacía
			return
		}
		w.Write([]byte(`[{"transactionHash": "0xweek", "price": "0.8", "size": "20000", "timestamp": 1700000000}]`))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv, 10000).FetchInitial(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, trades, 1)
	assert.Equal(t, "0xweek", trades[0].TxHash)

	// La segunda ventana empieza antes que la primera (7d vs 24h)
	s24, err := strconv.ParseInt(starts[0], 10, 64)
	require.NoError(t, err)
	s7d, err := strconv.ParseInt(starts[1], 10, 64)
	require.NoError(t, err)
	assert.Less(t, s7d, s24)
}

func TestFetchInitial_EmptyBothWindows(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv, 10000).FetchInitial(context.Background())
	require.NoError(t, err) // cero resultados nunca es error
	assert.Empty(t, trades)
	assert.Equal(t, 2, calls)
}

func TestSetThreshold_AppliesToNextFetch(t *testing.T) {
	var amounts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		amounts = append(amounts, r.URL.Query().Get("filterAmount"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := newTestClient(srv, 10000)
	_, err := client.FetchTrades(context.Background(), 0, 0, 0)
	require.NoError(t, err)

	client.SetThreshold(25000)
	_, err = client.FetchTrades(context.Background(), 0, 0, 0)
	require.NoError(t, err)

	require.Len(t, amounts, 2)
	assert.Equal(t, "10000", amounts[0])
	assert.Equal(t, "25000", amounts[1])
}
