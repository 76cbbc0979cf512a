package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/ingestion"
)

type stubSnapshots struct {
	mu   sync.Mutex
	snap *domain.Snapshot
}

func (s *stubSnapshots) Latest() (*domain.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.snap != nil
}

type stubSupply struct {
	n  int
	at time.Time
}

func (s stubSupply) Len() int            { return s.n }
func (s stubSupply) LoadedAt() time.Time { return s.at }

func scored(symbol string, score float64) domain.ScoredRecord {
	return domain.ScoredRecord{
		CanonicalSymbolRecord: domain.CanonicalSymbolRecord{Symbol: symbol},
		VolatilityScore:       score,
	}
}

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		ID:         "snap-7",
		Sequence:   7,
		ComputedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		BatchSize:  3,
		Eligible:   3,
		Volatility: []domain.ScoredRecord{scored("AUSDT", 1), scored("BUSDT", 0.6), scored("CUSDT", 0.2)},
		MarketCap: []domain.CapRecord{{
			CanonicalSymbolRecord: domain.CanonicalSymbolRecord{Symbol: "AUSDT"},
			CirculatingSupply:     1000,
			MarketCap:             100000,
		}},
	}
}

func newTestRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(opts)
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(Options{})

	w := get(t, r, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatus(t *testing.T) {
	loaded := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	r := newTestRouter(Options{
		Snapshots: &stubSnapshots{snap: testSnapshot()},
		Stats: func() ingestion.Stats {
			return ingestion.Stats{BatchesProcessed: 7, FeedConnected: true, LastSequence: 7}
		},
		Supply:    stubSupply{n: 42, at: loaded},
		Clients:   func() int { return 3 },
		StartedAt: time.Now().Add(-time.Minute),
	})

	w := get(t, r, "/status")

	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.NotEmpty(t, resp.Uptime)
	require.NotNil(t, resp.Runner)
	assert.Equal(t, uint64(7), resp.Runner.BatchesProcessed)
	assert.True(t, resp.Runner.FeedConnected)
	assert.Equal(t, "snap-7", resp.LastSnapshotID)
	assert.Equal(t, 42, resp.SupplyAssets)
	require.NotNil(t, resp.SupplyLoadedAt)
	assert.True(t, loaded.Equal(*resp.SupplyLoadedAt))
	assert.Equal(t, 3, resp.StreamClients)
}

func TestStatus_Minimal(t *testing.T) {
	r := newTestRouter(Options{})

	w := get(t, r, "/status")

	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Runner)
	assert.Empty(t, resp.LastSnapshotID)
	assert.Nil(t, resp.SupplyLoadedAt)
}

func TestRankings_NoSnapshot(t *testing.T) {
	r := newTestRouter(Options{Snapshots: &stubSnapshots{}})

	for _, path := range []string{"/api/v1/snapshot", "/api/v1/rankings/volatility", "/api/v1/rankings/marketcap"} {
		w := get(t, r, path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestVolatilityRanking(t *testing.T) {
	r := newTestRouter(Options{Snapshots: &stubSnapshots{snap: testSnapshot()}})

	w := get(t, r, "/api/v1/rankings/volatility")

	require.Equal(t, http.StatusOK, w.Code)
	var resp RankingResponse[domain.ScoredRecord]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "snap-7", resp.SnapshotID)
	assert.Equal(t, uint64(7), resp.Sequence)
	require.Len(t, resp.Rows, 3)
	assert.Equal(t, "AUSDT", resp.Rows[0].Symbol)
	assert.Equal(t, "CUSDT", resp.Rows[2].Symbol)
}

func TestVolatilityRanking_Limit(t *testing.T) {
	r := newTestRouter(Options{Snapshots: &stubSnapshots{snap: testSnapshot()}})

	tests := []struct {
		query string
		code  int
		rows  int
	}{
		{"?limit=2", http.StatusOK, 2},
		{"?limit=0", http.StatusOK, 3},
		{"?limit=50", http.StatusOK, 3},
		{"?limit=-1", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, r, "/api/v1/rankings/volatility"+tt.query)
			require.Equal(t, tt.code, w.Code)
			if tt.code != http.StatusOK {
				return
			}
			var resp RankingResponse[domain.ScoredRecord]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Len(t, resp.Rows, tt.rows)
		})
	}
}

func TestMarketCapRanking(t *testing.T) {
	r := newTestRouter(Options{Snapshots: &stubSnapshots{snap: testSnapshot()}})

	w := get(t, r, "/api/v1/rankings/marketcap")

	require.Equal(t, http.StatusOK, w.Code)
	var resp RankingResponse[domain.CapRecord]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, 100000.0, resp.Rows[0].MarketCap)
}

func TestMarketCapRanking_EmptyTableIsArray(t *testing.T) {
	snap := testSnapshot()
	snap.MarketCap = nil
	r := newTestRouter(Options{Snapshots: &stubSnapshots{snap: snap}})

	w := get(t, r, "/api/v1/rankings/marketcap")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rows":[]`)
}

func TestSnapshot(t *testing.T) {
	r := newTestRouter(Options{Snapshots: &stubSnapshots{snap: testSnapshot()}})

	w := get(t, r, "/api/v1/snapshot")

	require.Equal(t, http.StatusOK, w.Code)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "snap-7", snap.ID)
	assert.Len(t, snap.Volatility, 3)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(Options{})

	w := get(t, r, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "volatility_radar_")
}

func TestStreamRoute(t *testing.T) {
	called := false
	r := newTestRouter(Options{Stream: func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}})

	w := get(t, r, "/api/v1/stream")

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestStreamRoute_NotRegistered(t *testing.T) {
	r := newTestRouter(Options{})

	w := get(t, r, "/api/v1/stream")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSHeaders(t *testing.T) {
	r := newTestRouter(Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
