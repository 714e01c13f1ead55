package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/screening"
	"github.com/twquant/screener/internal/store"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/logger"
)

type fakeProvider struct {
	err error
}

func (p *fakeProvider) Table(context.Context, string) (*table.Frame, error) {
	return nil, p.err
}

func (p *fakeProvider) Bundle(context.Context, []string) (*data.Bundle, error) {
	if p.err != nil {
		return nil, p.err
	}
	return data.NewBundle(), nil
}

type testEnv struct {
	handler *Handler
	store   *store.Store
	server  *httptest.Server
}

func newTestEnv(t *testing.T, provider data.Provider) *testEnv {
	t.Helper()
	cfg := &config.Config{LogLevel: "error", LogFormat: "json"}
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "screener.db")
	log := logger.New(cfg)

	st, err := store.Open(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	manager := screening.NewManager(log, screening.FilterDefaults{})
	h := NewHandler(manager, provider, st, nil, NewHub(log), log)

	server := httptest.NewServer(NewRouter(h, log))
	t.Cleanup(server.Close)

	return &testEnv{handler: h, store: st, server: server}
}

func getJSON(t *testing.T, url string, dest interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp
}

func seedSelections(t *testing.T, env *testEnv, key, name, date string, stocks ...string) {
	t.Helper()
	result := &screening.Result{StrategyKey: key, StrategyName: name, SelectionDate: date}
	for i, stock := range stocks {
		result.Rows = append(result.Rows, screening.Row{StockID: stock, Score: float64(90 - i), Rank: i + 1})
	}
	require.NoError(t, env.store.SaveSelections(context.Background(), result))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	var body map[string]string
	resp := getJSON(t, env.server.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestListStrategies(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	var body struct {
		Count      int              `json:"count"`
		Strategies []screening.Info `json:"strategies"`
	}
	resp := getJSON(t, env.server.URL+"/api/strategies", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 12, body.Count)
	assert.Equal(t, "revenue_momentum", body.Strategies[0].Key)
}

func TestScreenOneUnknownKey(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	resp, err := http.Post(env.server.URL+"/api/screen/nope", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScreenOneProviderDown(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{err: fmt.Errorf("upstream down")})

	resp, err := http.Post(env.server.URL+"/api/screen/breakout", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestScreenAllEmptyTables(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	resp, err := http.Post(env.server.URL+"/api/screen", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Summary screening.Summary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 12, body.Summary.Executed)
	// 空表 ⇒ 全部空結果
	assert.Zero(t, body.Summary.WithResults)
}

func TestSelectionsAndExport(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	seedSelections(t, env, "breakout", "突破", "2025-06-10", "2330", "1101")

	var body struct {
		Date  string                  `json:"date"`
		Count int                     `json:"count"`
		Items []store.SelectionRecord `json:"items"`
	}
	resp := getJSON(t, env.server.URL+"/api/selections/breakout", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2025-06-10", body.Date)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "2330", body.Items[0].StockID)

	csvResp, err := http.Get(env.server.URL + "/api/selections/breakout/export")
	require.NoError(t, err)
	defer csvResp.Body.Close()
	assert.Contains(t, csvResp.Header.Get("Content-Type"), "text/csv")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(csvResp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "stock_id")
	assert.Contains(t, lines[1], "2330")
}

func TestAppearances(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	seedSelections(t, env, "breakout", "突破", "2025-06-10", "2330", "1101")
	seedSelections(t, env, "revenue_momentum", "營收動能", "2025-06-10", "2330")

	var body struct {
		Count int                    `json:"count"`
		Items []screening.Appearance `json:"items"`
	}
	resp := getJSON(t, env.server.URL+"/api/appearances?min=2", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "2330", body.Items[0].StockID)
	assert.Equal(t, 2, body.Items[0].Appearances)
}

func TestDashboardUnconfigured(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	resp, err := http.Get(env.server.URL + "/api/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWatchlistEndpoints(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	payload := bytes.NewBufferString(`{"stock_id":"2330","stock_name":"台積電","buy_price":980}`)
	resp, err := http.Post(env.server.URL+"/api/watchlist", "application/json", payload)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Count int                    `json:"count"`
		Items []store.WatchlistEntry `json:"items"`
	}
	getJSON(t, env.server.URL+"/api/watchlist", &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "台積電", body.Items[0].StockName)

	req, err := http.NewRequest(http.MethodDelete, env.server.URL+"/api/watchlist/2330", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	getJSON(t, env.server.URL+"/api/watchlist", &body)
	assert.Zero(t, body.Count)
}

func TestWatchlistValidation(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	resp, err := http.Post(env.server.URL+"/api/watchlist", "application/json",
		bytes.NewBufferString(`{"stock_name":"no id"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProgressStream(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/progress"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// 等訂閱註冊完成再廣播
	require.Eventually(t, func() bool {
		return env.handler.hub.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	env.handler.hub.Broadcast(ProgressEvent{Type: "batch_started", Total: 12})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event ProgressEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "batch_started", event.Type)
	assert.Equal(t, 12, event.Total)
}
