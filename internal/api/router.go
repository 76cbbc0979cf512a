// Package api serves the latest rankings, service status and metrics over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/ingestion"
	"volatility-radar/internal/observability"
)

// SnapshotSource returns the most recent snapshot. *publish.Hub satisfies it.
type SnapshotSource interface {
	Latest() (*domain.Snapshot, bool)
}

// SupplyStatus reports the state of the circulating supply cache. *supply.Cache satisfies it.
type SupplyStatus interface {
	Len() int
	LoadedAt() time.Time
}

// Options wires the router to the running service.
type Options struct {
	Snapshots SnapshotSource
	// Stream upgrades /api/v1/stream. Optional.
	Stream http.HandlerFunc
	// Stats reports runner counters for /status. Optional.
	Stats func() ingestion.Stats
	// Supply reports the supply cache for /status. Optional.
	Supply SupplyStatus
	// Clients reports connected stream clients for /status. Optional.
	Clients func() int
	// StartedAt is reported as the service start time.
	StartedAt time.Time
	Logger    *zap.Logger
}

type server struct {
	snapshots SnapshotSource
	stats     func() ingestion.Stats
	supply    SupplyStatus
	clients   func() int
	startedAt time.Time
}

// NewRouter builds the gin engine with access logging, recovery and CORS.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	s := &server{
		snapshots: opts.Snapshots,
		stats:     opts.Stats,
		supply:    opts.Supply,
		clients:   opts.Clients,
		startedAt: opts.StartedAt,
	}
	if s.startedAt.IsZero() {
		s.startedAt = time.Now().UTC()
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/health", s.health)
	router.GET("/status", s.status)
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/snapshot", s.snapshot)
		v1.GET("/rankings/volatility", s.volatility)
		v1.GET("/rankings/marketcap", s.marketCap)
		if opts.Stream != nil {
			v1.GET("/stream", gin.WrapF(opts.Stream))
		}
	}

	return router
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status         string           `json:"status"`
	Uptime         string           `json:"uptime"`
	StartedAt      time.Time        `json:"started_at"`
	Runner         *ingestion.Stats `json:"runner,omitempty"`
	LastSnapshotID string           `json:"last_snapshot_id,omitempty"`
	SupplyAssets   int              `json:"supply_assets"`
	SupplyLoadedAt *time.Time       `json:"supply_loaded_at,omitempty"`
	StreamClients  int              `json:"stream_clients"`
}

func (s *server) status(c *gin.Context) {
	resp := StatusResponse{
		Status:    "running",
		Uptime:    time.Since(s.startedAt).Truncate(time.Second).String(),
		StartedAt: s.startedAt,
	}
	if s.stats != nil {
		st := s.stats()
		resp.Runner = &st
	}
	if snap, ok := s.latest(); ok {
		resp.LastSnapshotID = snap.ID
	}
	if s.supply != nil {
		resp.SupplyAssets = s.supply.Len()
		if at := s.supply.LoadedAt(); !at.IsZero() {
			resp.SupplyLoadedAt = &at
		}
	}
	if s.clients != nil {
		resp.StreamClients = s.clients()
	}
	c.JSON(http.StatusOK, resp)
}

// RankingResponse is one ranked table with its snapshot metadata.
type RankingResponse[T any] struct {
	SnapshotID string    `json:"snapshot_id"`
	Sequence   uint64    `json:"sequence"`
	ComputedAt time.Time `json:"computed_at"`
	Rows       []T       `json:"rows"`
}

func (s *server) snapshot(c *gin.Context) {
	snap, ok := s.latest()
	if !ok {
		noSnapshot(c)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *server) volatility(c *gin.Context) {
	snap, ok := s.latest()
	if !ok {
		noSnapshot(c)
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, RankingResponse[domain.ScoredRecord]{
		SnapshotID: snap.ID,
		Sequence:   snap.Sequence,
		ComputedAt: snap.ComputedAt,
		Rows:       head(snap.Volatility, limit),
	})
}

func (s *server) marketCap(c *gin.Context) {
	snap, ok := s.latest()
	if !ok {
		noSnapshot(c)
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, RankingResponse[domain.CapRecord]{
		SnapshotID: snap.ID,
		Sequence:   snap.Sequence,
		ComputedAt: snap.ComputedAt,
		Rows:       head(snap.MarketCap, limit),
	})
}

func (s *server) latest() (*domain.Snapshot, bool) {
	if s.snapshots == nil {
		return nil, false
	}
	return s.snapshots.Latest()
}

func noSnapshot(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot computed yet"})
}

// parseLimit reads ?limit=. Zero means no limit. Writes 400 and returns false when invalid.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

func head[T any](rows []T, limit int) []T {
	if rows == nil {
		return []T{}
	}
	if limit > 0 && limit < len(rows) {
		return rows[:limit]
	}
	return rows
}
