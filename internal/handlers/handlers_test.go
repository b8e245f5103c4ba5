package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-tracker/internal/config"
	"portfolio-tracker/internal/database"
	"portfolio-tracker/internal/marketstack"
	"portfolio-tracker/internal/service"
)

type stubSource struct {
	bars  []marketstack.Bar
	err   error
	calls int
}

func (s *stubSource) EOD(ctx context.Context, q marketstack.EODQuery) ([]marketstack.Bar, error) {
	s.calls++
	return s.bars, s.err
}

type testEnv struct {
	router *gin.Engine
	db     *sqlx.DB
	src    *stubSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, database.RunMigrations(config.DriverSQLite, path))
	db, err := database.Open(context.Background(), config.DriverSQLite, path, 4)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	src := &stubSource{}
	h := NewHandler(database.New(db, logger), service.NewPriceResolver(src, logger), logger)

	r := gin.New()
	r.Use(RequestLogger(logger))
	h.Register(r)
	return &testEnv{router: r, db: db, src: src}
}

func (e *testEnv) do(method, path string, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func snapshotBody(client, ts string, stocks string) string {
	return fmt.Sprintf(`{
		"clientName": %q,
		"startDate": "2024-01-02",
		"initialBalance": 10000,
		"currentValue": 11250.75,
		"totalReturn": 1250.75,
		"totalReturnPercentage": 12.5075,
		"timestamp": %q,
		"stocks": [%s]
	}`, client, ts, stocks)
}

const twoStocks = `
	{"symbol":"AAPL","allocation":0.6,"initialValue":6000,"currentValue":6900,"return":900,"returnPercentage":15},
	{"symbol":"MSFT","allocation":0.4,"initialValue":4000,"currentValue":4350.75,"return":350.75,"returnPercentage":8.76875}`

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestPostHistory_ThenGet(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/history", snapshotBody("Alice", "2024-06-01T10:00:00", twoStocks))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decodeMap(t, w)
	assert.Equal(t, true, created["success"])
	id := int64(created["id"].(float64))
	assert.NotZero(t, id)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/history/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeMap(t, w)
	assert.Equal(t, "Alice", got["clientName"])
	assert.Equal(t, "2024-01-02", got["startDate"])
	assert.Equal(t, 11250.75, got["currentValue"])
	assert.Equal(t, 12.5075, got["totalReturnPercentage"])
	assert.Equal(t, "2024-06-01T10:00:00", got["timestamp"])

	stocks := got["stocks"].([]any)
	require.Len(t, stocks, 2)
	symbols := []string{}
	for _, s := range stocks {
		pos := s.(map[string]any)
		symbols = append(symbols, pos["symbol"].(string))
		if pos["symbol"] == "MSFT" {
			assert.Equal(t, 350.75, pos["return"])
			assert.Equal(t, 8.76875, pos["returnPercentage"])
		}
	}
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestPostHistory_AcceptsNumericStrings(t *testing.T) {
	e := newTestEnv(t)

	body := `{"clientName":"Str","startDate":"2024-01-02","initialBalance":"10000.50","currentValue":"1","totalReturn":"-9999.50","totalReturnPercentage":"-99.99","timestamp":"2024-06-01T10:00:00","stocks":[]}`
	w := e.do(http.MethodPost, "/api/history", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPostHistory_EmptyStocks(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/history", snapshotBody("Bob", "2024-06-01T10:00:00", ""))
	require.Equal(t, http.StatusOK, w.Code)
	id := int64(decodeMap(t, w)["id"].(float64))

	w = e.do(http.MethodGet, fmt.Sprintf("/api/history/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decodeMap(t, w)["stocks"])
}

func TestPostHistory_BadJSON(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/history", `{"clientName": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/history", `{"initialBalance": "lots"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostHistory_PersistenceFailureIs500(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.db.Exec(`DROP TABLE stock_performance`)
	require.NoError(t, err)

	w := e.do(http.MethodPost, "/api/history", snapshotBody("Eve", "2024-06-01T10:00:00", twoStocks))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeMap(t, w)["error"], "stock_performance")

	w = e.do(http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListHistory_OrderedAndWithoutStocks(t *testing.T) {
	e := newTestEnv(t)

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/history", snapshotBody("Jan", "2024-01-01T00:00:00", twoStocks)).Code)
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/history", snapshotBody("Jun", "2024-06-01T00:00:00", twoStocks)).Code)

	w := e.do(http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Jun", list[0]["clientName"])
	assert.Equal(t, "Jan", list[1]["clientName"])
	for _, item := range list {
		assert.NotContains(t, item, "stocks")
		assert.Contains(t, item, "id")
	}
}

func TestGetHistory_NotFound(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/history/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", decodeMap(t, w)["error"])
}

func TestGetHistory_BadID(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/history/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStockPrice(t *testing.T) {
	e := newTestEnv(t)
	e.src.bars = []marketstack.Bar{
		{Symbol: "AAPL", Close: decimal.RequireFromString("169.12"), Date: "2024-03-06T00:00:00+0000"},
		{Symbol: "AAPL", Close: decimal.RequireFromString("170.12"), Date: "2024-03-05T00:00:00+0000"},
	}

	w := e.do(http.MethodGet, "/api/stock/price?symbol=AAPL&date=2024-03-05", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"price":170.12,"date":"2024-03-05T00:00:00+0000"}`, w.Body.String())
}

func TestGetStockPrice_Errors(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		bars      []marketstack.Bar
		err       error
		want      int
		wantCalls int
	}{
		{name: "missing symbol", path: "/api/stock/price", want: http.StatusBadRequest},
		{name: "malformed date", path: "/api/stock/price?symbol=AAPL&date=2024-13-40", want: http.StatusBadRequest},
		{name: "no data", path: "/api/stock/price?symbol=AAPL", bars: []marketstack.Bar{}, want: http.StatusNotFound, wantCalls: 1},
		{name: "upstream failure", path: "/api/stock/price?symbol=AAPL&date=2024-03-05", err: errors.New("dial tcp: i/o timeout"), want: http.StatusInternalServerError, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.src.bars, e.src.err = tt.bars, tt.err

			w := e.do(http.MethodGet, tt.path, "")
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, decodeMap(t, w)["error"])
			assert.Equal(t, tt.wantCalls, e.src.calls)
		})
	}
}

func TestHealthAndRequestID(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		wantOrigin  string
		wantCreds string
	}{
		{name: "wildcard", origins: []string{"*"}, origin: "http://localhost:3000", wantOrigin: "*"},
		{name: "explicit origin", origins: []string{"http://localhost:3000"}, origin: "http://localhost:3000", wantOrigin: "http://localhost:3000", wantCreds: "true"},
		{name: "origin not listed", origins: []string{"http://localhost:3000"}, origin: "http://evil.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			h := CORS(tt.origins)(e.router)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
