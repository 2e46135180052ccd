package restapi

import (
	"context"
	stdjson "encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_monitor/internal/domain/entity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQuery struct {
	mu       sync.Mutex
	snapshot *entity.PortfolioSnapshot
	started  atomic.Bool
	triggers atomic.Int32
}

func (f *fakeQuery) GetCurrentSnapshot() (*entity.PortfolioSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot == nil {
		return nil, entity.ErrNotYetAvailable
	}
	return f.snapshot, nil
}

func (f *fakeQuery) GetWalletSnapshot(chain, address string) (*entity.WalletSnapshot, error) {
	snapshot, err := f.GetCurrentSnapshot()
	if err != nil {
		return nil, err
	}
	w, ok := snapshot.FindWallet(chain, address)
	if !ok {
		return nil, entity.ErrNotFound
	}
	return w, nil
}

func (f *fakeQuery) TriggerRefresh() entity.RefreshResult {
	f.triggers.Add(1)
	return entity.RefreshResult{Started: f.started.Load()}
}

func (f *fakeQuery) GetStatus() entity.CoordinatorStatus {
	return entity.CoordinatorStatus{State: entity.StateIdle, WalletsMonitored: 2, Chains: []string{"ethereum"}}
}

type fakeHistory struct {
	since   time.Time
	records []entity.HistoryRecord
}

func (f *fakeHistory) Append(context.Context, entity.HistoryRecord) error { return nil }

func (f *fakeHistory) Query(_ context.Context, since time.Time) ([]entity.HistoryRecord, error) {
	f.since = since
	return f.records, nil
}

func testSnapshot() *entity.PortfolioSnapshot {
	return &entity.PortfolioSnapshot{
		CycleID: "cycle-1",
		Wallets: []entity.WalletSnapshot{
			{Chain: "ethereum", Address: "0xAbC", Label: "main", NativeSymbol: "ETH", NativeBalance: decimal.RequireFromString("1.5"), TotalUSDValue: 3000},
			{Chain: "solana", Address: "SoLWallet", NativeSymbol: "SOL", NativeBalance: decimal.NewFromInt(10), TotalUSDValue: 1500},
		},
		TotalUSDValue: 4500,
		PartialFailures: []entity.PortfolioError{
			{Chain: "aptos", WalletAddress: "0x1", Kind: "upstream_unavailable", Message: "down"},
		},
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

type envelope struct {
	Data          stdjson.RawMessage      `json:"data"`
	ServiceErrors []entity.PortfolioError `json:"service_errors"`
	StatusMessage string                  `json:"status_message"`
}

func newTestRouter(q *fakeQuery, h *fakeHistory) (*gin.Engine, *PortfolioHandler) {
	handler := NewPortfolioHandler(q, h, zap.NewNop())
	handler.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }
	return SetupRouter(handler, NewStreamHub(q, zap.NewNop()), zap.NewNop()), handler
}

func serve(t *testing.T, router http.Handler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, stdjson.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestSummaryHandler(t *testing.T) {
	t.Run("no snapshot yet", func(t *testing.T) {
		router, _ := newTestRouter(&fakeQuery{}, &fakeHistory{})
		rec, env := serve(t, router, http.MethodGet, "/api/v1/summary")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, env.StatusMessage, "No portfolio snapshot")
	})

	t.Run("summary with partial failures", func(t *testing.T) {
		router, _ := newTestRouter(&fakeQuery{snapshot: testSnapshot()}, &fakeHistory{})
		rec, env := serve(t, router, http.MethodGet, "/api/v1/summary")
		require.Equal(t, http.StatusOK, rec.Code)

		var summary entity.PortfolioSummary
		require.NoError(t, stdjson.Unmarshal(env.Data, &summary))
		assert.Equal(t, 4500.0, summary.TotalUSDValue)
		assert.Equal(t, 2, summary.WalletCount)
		assert.Equal(t, 1, summary.FailureCount)
		assert.Equal(t, 3000.0, summary.Chains["ethereum"])
		require.Len(t, env.ServiceErrors, 1)
		assert.Equal(t, "aptos", env.ServiceErrors[0].Chain)
		assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	})
}

func TestWalletHandlers(t *testing.T) {
	router, _ := newTestRouter(&fakeQuery{snapshot: testSnapshot()}, &fakeHistory{})

	rec, env := serve(t, router, http.MethodGet, "/api/v1/wallets")
	require.Equal(t, http.StatusOK, rec.Code)
	var wallets []entity.WalletSnapshot
	require.NoError(t, stdjson.Unmarshal(env.Data, &wallets))
	assert.Len(t, wallets, 2)

	rec, env = serve(t, router, http.MethodGet, "/api/v1/wallets/ETHEREUM/0xabc")
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet entity.WalletSnapshot
	require.NoError(t, stdjson.Unmarshal(env.Data, &wallet))
	assert.Equal(t, "main", wallet.Label)
	assert.Equal(t, "1.5", wallet.NativeBalance.String())

	rec, _ = serve(t, router, http.MethodGet, "/api/v1/wallets/ethereum/0xdef")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryHandler(t *testing.T) {
	history := &fakeHistory{records: []entity.HistoryRecord{{Timestamp: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), TotalUSD: 10}}}
	router, _ := newTestRouter(&fakeQuery{}, history)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantSince time.Time
	}{
		{"default seven days", "", http.StatusOK, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"explicit days", "?days=30", http.StatusOK, time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)},
		{"since wins", "?since=2026-01-01T00:00:00Z&days=2", http.StatusOK, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days out of range", "?days=0", http.StatusBadRequest, time.Time{}},
		{"days too large", "?days=366", http.StatusBadRequest, time.Time{}},
		{"bad since", "?since=yesterday", http.StatusBadRequest, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history.since = time.Time{}
			rec, env := serve(t, router, http.MethodGet, "/api/v1/history"+tt.query)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				assert.NotEmpty(t, env.StatusMessage)
				return
			}
			assert.True(t, tt.wantSince.Equal(history.since), "since = %s", history.since)

			var resp HistoryResponse
			require.NoError(t, stdjson.Unmarshal(env.Data, &resp))
			assert.Len(t, resp.Records, 1)
		})
	}
}

func TestHistoryHandler_EmptyIsArray(t *testing.T) {
	router, _ := newTestRouter(&fakeQuery{}, &fakeHistory{})
	rec, _ := serve(t, router, http.MethodGet, "/api/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)
}

func TestRefreshAndStatusHandlers(t *testing.T) {
	q := &fakeQuery{}
	router, _ := newTestRouter(q, &fakeHistory{})

	q.started.Store(true)
	rec, env := serve(t, router, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, string(env.Data), `"started"`)

	q.started.Store(false)
	rec, env = serve(t, router, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "already_updating")
	assert.Equal(t, int32(2), q.triggers.Load())

	rec, env = serve(t, router, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status entity.CoordinatorStatus
	require.NoError(t, stdjson.Unmarshal(env.Data, &status))
	assert.Equal(t, entity.StateIdle, status.State)
	assert.Equal(t, 2, status.WalletsMonitored)
}

func TestRouter_Infrastructure(t *testing.T) {
	router, _ := newTestRouter(&fakeQuery{}, &fakeHistory{})

	rec, _ := serve(t, router, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(t, router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	req.Header.Set("Origin", "https://dashboard.example")
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	assert.Equal(t, "abc-123", out.Header().Get(requestIDHeader))
	assert.Equal(t, "*", out.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamHub(t *testing.T) {
	q := &fakeQuery{snapshot: testSnapshot()}
	hub := NewStreamHub(q, zap.NewNop())
	defer hub.Close()

	engine := gin.New()
	engine.GET("/stream", hub.StreamHandler)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	readSummary := func() entity.PortfolioSummary {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var s entity.PortfolioSummary
		require.NoError(t, stdjson.Unmarshal(msg, &s))
		return s
	}

	assert.Equal(t, 4500.0, readSummary().TotalUSDValue, "current summary sent on connect")
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	next := testSnapshot()
	next.TotalUSDValue = 5000
	hub.OnSnapshot(context.Background(), next)
	assert.Equal(t, 5000.0, readSummary().TotalUSDValue)

	_ = conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHub_NilSnapshotIgnored(t *testing.T) {
	hub := NewStreamHub(&fakeQuery{}, zap.NewNop())
	assert.NotPanics(t, func() { hub.OnSnapshot(context.Background(), nil) })
}
