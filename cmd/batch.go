package main

import (
	"context"
	"errors"
	"io"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/billboard-signals/internal/model"
	"github.com/sells-group/billboard-signals/internal/signal"
)

var (
	batchFile        string
	batchKind        string
	batchRefresh     bool
	batchConcurrency int
	batchNoProgress  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Compute signals for every location in a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := ossignal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		kinds, err := parseKinds(batchKind)
		if err != nil {
			return err
		}
		locs, err := readLocationsFile(batchFile)
		if err != nil {
			return err
		}

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}
		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		var progress io.Writer = os.Stderr
		if batchNoProgress {
			progress = io.Discard
		}

		summary := processBatch(ctx, env.Gateway, locs, kinds, batchRefresh, cfg.Batch.Concurrency, progress)
		if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
		if summary.Failed > 0 {
			return eris.Errorf("batch: %d of %d signals failed", summary.Failed, summary.Total)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "locations.yaml", "YAML file with a top-level locations list")
	batchCmd.Flags().StringVar(&batchKind, "kind", "all", "traffic, demographic or all")
	batchCmd.Flags().BoolVar(&batchRefresh, "refresh", false, "ignore the cache and recompute")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel locations (default from config)")
	batchCmd.Flags().BoolVar(&batchNoProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(batchCmd)
}

type locationsFile struct {
	Locations []model.Location `yaml:"locations"`
}

func readLocationsFile(path string) ([]model.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read locations file")
	}
	var lf locationsFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, eris.Wrap(err, "parse locations file")
	}
	if len(lf.Locations) == 0 {
		return nil, eris.Errorf("no locations in %s", path)
	}
	return lf.Locations, nil
}

// batchSummary counts outcomes per (location, kind) pair.
type batchSummary struct {
	Total       int            `json:"total"`
	Cached      int            `json:"cached"`
	Fresh       int            `json:"fresh"`
	CacheWrite  int            `json:"cache_write_failed"`
	Unavailable int            `json:"unavailable"`
	Invalid     int            `json:"invalid"`
	Failed      int            `json:"failed"`
	FailedByKey map[string]int `json:"failed_by_key,omitempty"`
	Interrupted bool           `json:"interrupted,omitempty"`

	mu sync.Mutex
}

func (s *batchSummary) record(key string, res *signal.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res != nil {
		if res.Source == model.SourceCache {
			s.Cached++
		} else {
			s.Fresh++
		}
	}
	switch {
	case err == nil:
		return
	case errors.Is(err, signal.ErrPersistenceFailure):
		s.CacheWrite++
		return
	case errors.Is(err, signal.ErrSignalUnavailable):
		s.Unavailable++
	case errors.Is(err, signal.ErrInvalidInput):
		s.Invalid++
	}
	s.Failed++
	if s.FailedByKey == nil {
		s.FailedByKey = make(map[string]int)
	}
	s.FailedByKey[key]++
}

// processBatch computes every kind for every location with at most
// concurrency locations in flight. Per-signal failures are counted, not
// returned, so one bad location never stops the batch.
func processBatch(ctx context.Context, gw *signal.Gateway, locs []model.Location, kinds []model.SignalKind, refresh bool, concurrency int, progress io.Writer) *batchSummary {
	summary := &batchSummary{Total: len(locs) * len(kinds)}
	bar := progressbar.NewOptions(summary.Total,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("signals"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for _, loc := range locs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for _, kind := range kinds {
				res, err := gw.GetOrCompute(gctx, loc, kind, refresh)
				if err != nil {
					zap.L().Warn("batch: signal failed",
						zap.String("location_key", loc.Key),
						zap.String("kind", string(kind)),
						zap.Error(err),
					)
				}
				summary.record(loc.Key, res, err)
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	_ = bar.Finish()

	if ctx.Err() != nil {
		summary.Interrupted = true
	}
	zap.L().Info("batch complete",
		zap.Int("total", summary.Total),
		zap.Int("cached", summary.Cached),
		zap.Int("fresh", summary.Fresh),
		zap.Int("failed", summary.Failed),
	)
	return summary
}
