package ledgerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"paperledger/internal/history"
	"paperledger/internal/ledger"
	"paperledger/internal/store/gormstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRefresher struct {
	res ledger.MarkResult
	err error
}

func (s stubRefresher) Refresh(context.Context) (ledger.MarkResult, error) { return s.res, s.err }

type stubHistory []history.Snapshot

func (s stubHistory) List(_ context.Context, limit int) ([]history.Snapshot, error) {
	if limit > 0 && limit < len(s) {
		return s[:limit], nil
	}
	return s, nil
}

type testEnv struct {
	handler http.Handler
	engine  *ledger.Engine
}

func newTestEnv(t *testing.T, refresher Refresher, hist HistoryReader) testEnv {
	t.Helper()
	st, err := gormstore.Open(gormstore.Options{Driver: gormstore.DriverSQLite, Path: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	engine := ledger.NewEngine(st)
	srv, err := NewServer(ServerConfig{Engine: engine, Refresher: refresher, History: hist})
	require.NoError(t, err)
	return testEnv{handler: srv.Handler(), engine: engine}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (e testEnv) do(t *testing.T, method, path, body string) (int, response) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	var out response
	if rec.Body.Len() > 0 && path != "/healthz" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	code, _ := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestOrderFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	code, resp := env.do(t, http.MethodGet, "/api/account", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "account_not_initialized", resp.Error)

	code, resp = env.do(t, http.MethodPost, "/api/account/init", `{"initial_cash": 100000}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	code, resp = env.do(t, http.MethodPost, "/api/orders", `{"code":"000001.SZ","action":"buy","price":10,"volume":1000,"fee":2}`)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var order ledger.Order
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, ledger.ActionBuy, order.Action)

	code, resp = env.do(t, http.MethodPost, "/api/orders", `{"code":"000001.SZ","action":"SELL","price":12,"volume":500}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "insufficient_volume", resp.Error)

	code, _ = env.do(t, http.MethodPost, "/api/settle", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPost, "/api/orders", `{"code":"000001.SZ","action":"SELL","price":12,"volume":500,"fee":1.2}`)
	require.Equal(t, http.StatusCreated, code)

	code, resp = env.do(t, http.MethodGet, "/api/account", "")
	require.Equal(t, http.StatusOK, code)
	var acct ledger.Account
	require.NoError(t, json.Unmarshal(resp.Data, &acct))
	assert.InDelta(t, 95996.8, acct.Cash, 1e-9)

	code, resp = env.do(t, http.MethodGet, "/api/orders?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	var orders []ledger.Order
	require.NoError(t, json.Unmarshal(resp.Data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, ledger.ActionSell, orders[0].Action)

	code, resp = env.do(t, http.MethodPost, "/api/orders", `{"code":"000001.SZ","action":"BUY","price":1000,"volume":1000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "insufficient_funds", resp.Error)
}

func TestOrderSchemaRejectsMalformedBodies(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	bodies := []string{
		`not json`,
		`{"code":"A","action":"HOLD","price":1,"volume":1}`,
		`{"code":"A","action":"BUY","price":0,"volume":1}`,
		`{"code":"A","action":"BUY","price":1,"volume":1.5}`,
		`{"code":"A","action":"BUY","price":1}`,
		`{"code":"A","action":"BUY","price":1,"volume":1,"trade_date":"2024-01-02"}`,
		`{"code":"A","action":"BUY","price":1,"volume":1,"extra":true}`,
	}
	for _, body := range bodies {
		code, resp := env.do(t, http.MethodPost, "/api/orders", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
		assert.Equal(t, "invalid_request", resp.Error, body)
	}
}

func TestPositionsEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	_, err := env.engine.InitializeAccount(ctx, 100000)
	require.NoError(t, err)
	_, err = env.engine.ApplyOrder(ctx, ledger.OrderRequest{Code: "000001", Action: ledger.ActionBuy, Price: 10, Volume: 100})
	require.NoError(t, err)
	_, err = env.engine.ApplyOrder(ctx, ledger.OrderRequest{Code: "000002", Action: ledger.ActionBuy, Price: 10, Volume: 100})
	require.NoError(t, err)

	code, resp := env.do(t, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, code)
	var positions []ledger.Position
	require.NoError(t, json.Unmarshal(resp.Data, &positions))
	require.Len(t, positions, 2)

	code, resp = env.do(t, http.MethodGet, "/api/positions/000009", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "position_not_found", resp.Error)

	code, _ = env.do(t, http.MethodGet, "/api/positions/000001", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodDelete, "/api/positions/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodDelete, "/api/positions/"+jsonInt(positions[0].ID), "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodDelete, "/api/positions/"+jsonInt(positions[0].ID), "")
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = env.do(t, http.MethodDelete, "/api/positions", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"removed":1}`, string(resp.Data))
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestMarksAndCash(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	code, _ := env.do(t, http.MethodPost, "/api/account/cash", `{"delta": 10}`)
	assert.Equal(t, http.StatusConflict, code)

	_, _ = env.do(t, http.MethodPost, "/api/account/init", `{"initial_cash": 1000}`)
	code, _ = env.do(t, http.MethodPost, "/api/account/init", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := env.do(t, http.MethodPost, "/api/account/cash", `{"delta": -5000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "insufficient_funds", resp.Error)

	code, _ = env.do(t, http.MethodPost, "/api/orders", `{"code":"000001","action":"BUY","price":5,"volume":100}`)
	require.Equal(t, http.StatusCreated, code)

	code, resp = env.do(t, http.MethodPost, "/api/marks", `{"prices":{"000001":6}}`)
	require.Equal(t, http.StatusOK, code)
	var res ledger.MarkResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, 1, res.Matched)
	assert.InDelta(t, 1100.0, res.TotalAsset, 1e-9)

	code, _ = env.do(t, http.MethodPost, "/api/marks", `{"prices":{"000001":-6}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = env.do(t, http.MethodGet, "/api/marks?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	var marks []ledger.MarkEvent
	require.NoError(t, json.Unmarshal(resp.Data, &marks))
	assert.Len(t, marks, 1)

	code, _ = env.do(t, http.MethodGet, "/api/marks?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRefreshAndHistoryAvailability(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	code, resp := env.do(t, http.MethodPost, "/api/marks/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "pricing_disabled", resp.Error)
	code, _ = env.do(t, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	hist := stubHistory{{TradeDate: "20240103"}, {TradeDate: "20240102"}}
	env = newTestEnv(t, stubRefresher{err: errors.New("upstream timeout")}, hist)
	code, resp = env.do(t, http.MethodPost, "/api/marks/refresh", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "pricing_unavailable", resp.Error)

	code, resp = env.do(t, http.MethodGet, "/api/history?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	var snaps []history.Snapshot
	require.NoError(t, json.Unmarshal(resp.Data, &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "20240103", snaps[0].TradeDate)

	env = newTestEnv(t, stubRefresher{res: ledger.MarkResult{Matched: 2}}, nil)
	code, resp = env.do(t, http.MethodPost, "/api/marks/refresh", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}

func TestSettleWithCodes(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	code, resp := env.do(t, http.MethodPost, "/api/settle", `{"codes":["000001"]}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "account_not_initialized", resp.Error)

	_, _ = env.do(t, http.MethodPost, "/api/account/init", `{"initial_cash": 1000}`)
	code, resp = env.do(t, http.MethodPost, "/api/settle", `{"codes":["000001"]}`)
	require.Equal(t, http.StatusOK, code)
	var res ledger.SettleResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, []string{"000001"}, res.Unknown)

	code, _ = env.do(t, http.MethodPost, "/api/settle", `{"codes":"000001"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
