// Package main replays captured ticker batches through the ranking engine and
// prints one snapshot per batch as a JSON line, a Markdown report or CSV rows.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"volatility-radar/internal/config"
	"volatility-radar/internal/domain"
	"volatility-radar/internal/ingestion"
	"volatility-radar/internal/logging"
	"volatility-radar/internal/pipeline"
	"volatility-radar/internal/ranking"
	"volatility-radar/internal/replay"
	"volatility-radar/internal/reporting"
	"volatility-radar/internal/storage/memory"
	"volatility-radar/internal/supply"
	"volatility-radar/internal/verification"
)

func main() {
	input := flag.String("input", "-", "Capture file, one feed message per line (- for stdin)")
	configPath := flag.String("config", "", "Path to YAML config file (scoring settings)")
	supplyFile := flag.String("supply-file", "", "Circulating supply YAML file (overrides config)")
	skipInvalid := flag.Bool("skip-invalid", false, "Skip undecodable lines instead of failing")
	verify := flag.Bool("verify", false, "Check every snapshot against the ranking rules")
	expectPath := flag.String("expect", "", "JSON-lines snapshots to compare replayed output against")
	format := flag.String("format", formatJSONL, "Output format: jsonl, markdown, csv-volatility, csv-marketcap")
	logLevel := flag.String("log-level", "warn", "Log level (written to stderr)")

	flag.Parse()

	logger, err := logging.NewWithWriter(*logLevel, "console", os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if !validFormat(*format) {
		logger.Fatal("unknown output format", zap.String("format", *format))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *supplyFile != "" {
		cfg.Supply.File = *supplyFile
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn("received signal, stopping replay", zap.String("signal", sig.String()))
		cancel()
	}()

	var r io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			logger.Fatal("open capture", zap.Error(err))
		}
		defer f.Close()
		r = f
	}

	lookup, err := loadSupply(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("load supply", zap.Error(err))
	}

	var expected []*domain.Snapshot
	if *expectPath != "" {
		expected, err = loadSnapshots(*expectPath)
		if err != nil {
			logger.Fatal("load expected snapshots", zap.Error(err))
		}
	}

	stats, err := replayCapture(ctx, r, os.Stdout, replayOptions{
		Pipeline:    cfg.PipelineConfig(),
		Lookup:      lookup,
		SkipInvalid: *skipInvalid,
		Verify:      *verify,
		Expected:    expected,
		Format:      *format,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}

	logger.Info("replay complete",
		zap.Int("frames", stats.Frames),
		zap.Int("tickers", stats.Tickers),
		zap.Int("skipped", stats.Skipped))
}

// loadSupply seeds an in-memory store from cfg.Supply.File. No file means no lookup.
func loadSupply(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ranking.SupplyLookup, error) {
	if cfg.Supply.File == "" {
		return nil, nil
	}

	store := memory.NewSupplyStore()
	if _, err := supply.Seed(ctx, store, cfg.Supply.File); err != nil {
		return nil, err
	}

	cache := supply.NewCache(store, supply.CacheOptions{
		QuoteSuffix: cfg.Scoring.QuoteSuffix,
		Logger:      logger,
	})
	if err := cache.Refresh(ctx); err != nil {
		return nil, err
	}
	return cache.Lookup, nil
}

type replayOptions struct {
	Pipeline    pipeline.Config
	Lookup      ranking.SupplyLookup
	SkipInvalid bool
	// Verify checks each snapshot with verification.CheckSnapshot.
	Verify bool
	// Expected snapshots are compared with replayed ones by position.
	Expected []*domain.Snapshot
	// Format defaults to jsonl.
	Format string
	Logger *zap.Logger
	// Clock stamps snapshots. Defaults to the wall clock.
	Clock func() time.Time
	// NewID names snapshots. Defaults to random UUIDs.
	NewID func() string
}

// replayCapture runs every frame of r through a runner and writes each snapshot to w.
func replayCapture(ctx context.Context, r io.Reader, w io.Writer, opts replayOptions) (replay.Stats, error) {
	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Lookup: opts.Lookup,
		Config: opts.Pipeline,
		Logger: opts.Logger,
		Clock:  opts.Clock,
		NewID:  opts.NewID,
	})

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := &snapshotWriter{w: w, enc: json.NewEncoder(w), format: opts.Format}
	produced := 0
	engine := replay.EngineFunc(func(ctx context.Context, frame replay.Frame) error {
		snap, err := runner.ProcessBatch(ctx, frame.Batch)
		if err != nil {
			return err
		}
		if err := out.write(snap); err != nil {
			return err
		}
		produced++

		if opts.Verify {
			if violations := verification.CheckSnapshot(snap, opts.Pipeline); len(violations) > 0 {
				for _, v := range violations {
					logger.Error("snapshot violation", zap.Uint64("sequence", snap.Sequence), zap.Stringer("violation", v))
				}
				return fmt.Errorf("%w: snapshot %d has %d violations", errVerification, snap.Sequence, len(violations))
			}
		}

		if opts.Expected != nil {
			if produced > len(opts.Expected) {
				return fmt.Errorf("%w: no expected snapshot for sequence %d", errVerification, snap.Sequence)
			}
			if divs := verification.CompareSnapshots(opts.Expected[produced-1], snap); len(divs) > 0 {
				for _, d := range divs {
					logger.Error("snapshot divergence",
						zap.Uint64("sequence", snap.Sequence),
						zap.String("field", d.Field),
						zap.Any("expected", d.Expected),
						zap.Any("actual", d.Actual))
				}
				return fmt.Errorf("%w: snapshot %d diverges in %d fields", errVerification, snap.Sequence, len(divs))
			}
		}
		return nil
	})

	stats, err := replay.NewRunner(replay.Options{
		SkipInvalid: opts.SkipInvalid,
		Logger:      logger,
	}).Run(ctx, r, engine)
	if err != nil {
		return stats, err
	}
	if opts.Expected != nil && produced < len(opts.Expected) {
		return stats, fmt.Errorf("%w: replay produced %d snapshots, expected %d", errVerification, produced, len(opts.Expected))
	}
	return stats, nil
}

var errVerification = errors.New("verification failed")

// loadSnapshots reads JSON-lines snapshots, as written by -format jsonl.
func loadSnapshots(path string) ([]*domain.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snaps := []*domain.Snapshot{}
	dec := json.NewDecoder(f)
	for {
		var snap domain.Snapshot
		if err := dec.Decode(&snap); err != nil {
			if errors.Is(err, io.EOF) {
				return snaps, nil
			}
			return nil, fmt.Errorf("decode snapshot %d: %w", len(snaps)+1, err)
		}
		snaps = append(snaps, &snap)
	}
}

// Output formats.
const (
	formatJSONL         = "jsonl"
	formatMarkdown      = "markdown"
	formatCSVVolatility = "csv-volatility"
	formatCSVMarketCap  = "csv-marketcap"
)

func validFormat(f string) bool {
	switch f {
	case formatJSONL, formatMarkdown, formatCSVVolatility, formatCSVMarketCap:
		return true
	}
	return false
}

// snapshotWriter writes snapshots in one output format.
// CSV formats prefix every row with the snapshot sequence and print the header once.
type snapshotWriter struct {
	w        io.Writer
	enc      *json.Encoder
	format   string
	wroteCSV bool
}

func (sw *snapshotWriter) write(snap *domain.Snapshot) error {
	var err error
	switch sw.format {
	case formatMarkdown:
		_, err = io.WriteString(sw.w, reporting.RenderMarkdown(snap))
	case formatCSVVolatility:
		err = sw.writeCSV(snap.Sequence, reporting.RenderVolatilityCSV(snap.Volatility))
	case formatCSVMarketCap:
		err = sw.writeCSV(snap.Sequence, reporting.RenderMarketCapCSV(snap.MarketCap))
	default:
		err = sw.enc.Encode(snap)
	}
	if err != nil {
		return fmt.Errorf("write snapshot %d: %w", snap.Sequence, err)
	}
	return nil
}

func (sw *snapshotWriter) writeCSV(seq uint64, table string) error {
	header, rows, _ := strings.Cut(table, "\n")

	var sb strings.Builder
	if !sw.wroteCSV {
		sb.WriteString("sequence," + header + "\n")
		sw.wroteCSV = true
	}
	for _, row := range strings.Split(strings.TrimSuffix(rows, "\n"), "\n") {
		if row == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%d,%s\n", seq, row))
	}

	_, err := io.WriteString(sw.w, sb.String())
	return err
}
