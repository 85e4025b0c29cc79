package evaluation

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds scoring parameters.
type Config struct {
	// Strategy picks the built-in matcher. Ignored when Matcher is set.
	Strategy MatchStrategy `json:"strategy" yaml:"strategy"`
	// Matcher overrides Strategy with a custom implementation.
	Matcher Matcher `json:"-" yaml:"-"`
	// Overlap configures the IoU computation.
	Overlap OverlapConfig `json:"overlap" yaml:"overlap"`
	// Policy decides how absent categories are scored.
	Policy RatioPolicy `json:"policy" yaml:"policy"`
	// Weights multiply the per-category mean ratios.
	Weights CategoryWeights `json:"weights" yaml:"weights"`
	// Categories names the category ids in results.
	Categories *CategorySet `json:"-" yaml:"-"`
	// Workers is the number of images scored concurrently. Values below 2
	// score sequentially.
	Workers int `json:"workers" yaml:"workers"`
	// Logger receives per-run and per-image diagnostics. Nil disables logging.
	Logger *zap.Logger `json:"-" yaml:"-"`
	// Progress, if set, is called after every scored image. It may be called
	// from several goroutines at once.
	Progress func(done, total int) `json:"-" yaml:"-"`
}

// DefaultConfig returns the configuration that reproduces the reference
// scores: greedy matching, raster IoU and calibrated weights.
func DefaultConfig() Config {
	return Config{
		Strategy:   StrategyGreedy,
		Overlap:    DefaultOverlapConfig(),
		Policy:     PolicyExcludeEmpty,
		Weights:    DefaultWeights,
		Categories: DefectCategories,
		Workers:    runtime.NumCPU(),
	}
}

// Scorer matches predictions against ground truth and aggregates the result.
// A Scorer holds no per-run state and is safe for concurrent use.
type Scorer struct {
	cfg     Config
	matcher Matcher
	logger  *zap.Logger
}

// NewScorer creates a scorer. Zero-valued fields of cfg fall back to the
// values of DefaultConfig, except Workers, Logger and Progress.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
	if cfg.Overlap.Mode == "" && cfg.Overlap.DownsampleAbove == 0 && cfg.Overlap.DownsampleSize == 0 {
		downsampler := cfg.Overlap.Downsampler
		cfg.Overlap = def.Overlap
		if downsampler != nil {
			cfg.Overlap.Downsampler = downsampler
		}
	}
	if cfg.Overlap.Mode == "" {
		cfg.Overlap.Mode = def.Overlap.Mode
	}
	if cfg.Overlap.Downsampler == nil {
		cfg.Overlap.Downsampler = def.Overlap.Downsampler
	}
	if cfg.Weights == (CategoryWeights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Categories == nil {
		cfg.Categories = def.Categories
	}

	matcher := cfg.Matcher
	if matcher == nil {
		matcher = NewMatcher(cfg.Strategy)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{cfg: cfg, matcher: matcher, logger: logger}
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score evaluates predictions against groundTruth with the default configuration.
func Score(predictions, groundTruth Table) (*Result, error) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	return NewScorer(cfg).Score(context.Background(), predictions, groundTruth)
}

// Score evaluates a prediction table against a ground-truth table.
//
// The tables are aligned first; any mismatch aborts before scoring starts.
// Images are then scored independently, possibly in parallel. The first
// invalid ground-truth box (by image order) aborts the run. Cancellation is
// only observed between images.
//
// Arguments:
//   - ctx: Cancels the run between images.
//   - predictions: The prediction table.
//   - groundTruth: The ground-truth table, in the same image order.
//
// Returns:
//   - *Result: Per-image and aggregate scores.
//   - error: An *AlignmentError, *InvalidBoxError, ErrCategory or context error.
func (s *Scorer) Score(ctx context.Context, predictions, groundTruth Table) (*Result, error) {
	records, err := Align(predictions, groundTruth)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	counts := make([]Counts, len(records))
	if err := s.scoreAll(ctx, records, counts); err != nil {
		return nil, err
	}

	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	r := newResult(ids, counts, s.cfg)
	s.logger.Info("scored predictions",
		zap.Int("images", len(records)),
		zap.String("strategy", string(s.cfg.Strategy)),
		zap.String("overlap", string(s.cfg.Overlap.Mode)),
		zap.String("policy", string(s.cfg.Policy)),
		zap.Float64("total", r.Total),
		zap.Duration("elapsed", time.Since(start)),
	)

	return r, nil
}

func (s *Scorer) scoreAll(ctx context.Context, records []ImageRecord, counts []Counts) error {
	var done atomic.Int64
	tick := func() {
		n := done.Add(1)
		if s.cfg.Progress != nil {
			s.cfg.Progress(int(n), len(records))
		}
	}

	if s.cfg.Workers < 2 || len(records) < 2 {
		for i, rec := range records {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "scoring cancelled")
			}
			c, err := s.ScoreImage(rec)
			if err != nil {
				return err
			}
			counts[i] = c
			tick()
		}
		return nil
	}

	errs := make([]error, len(records))
	var failed atomic.Bool

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, rec := range records {
		// Every image before a failure has already been started, so the
		// lowest failing index is always found.
		if failed.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			c, err := s.ScoreImage(rec)
			if err != nil {
				errs[i] = err
				failed.Store(true)
				return nil
			}
			counts[i] = c
			tick()
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "scoring cancelled")
	}
	return nil
}

// ScoreImage tallies one image. It is the unit of work of Score and can be used
// directly to distribute scoring; the Counts of several images simply add up.
func (s *Scorer) ScoreImage(rec ImageRecord) (Counts, error) {
	var c Counts
	for i, gt := range rec.GroundTruth {
		if !ValidCategory(gt.Category) {
			return Counts{}, errors.Wrapf(ErrCategory, "image %d ground truth #%d has category %d",
				rec.ID, i, gt.Category)
		}
		c.GroundTruth[gt.Category-1]++
	}

	matches, err := s.matcher.Match(rec.GroundTruth, rec.Predictions, s.cfg.Overlap.IoU)
	if err != nil {
		var boxErr *InvalidBoxError
		if errors.As(err, &boxErr) {
			boxErr.ImageID = rec.ID
			return Counts{}, boxErr
		}
		return Counts{}, errors.Wrapf(err, "image %d", rec.ID)
	}

	if len(matches) != len(rec.GroundTruth) {
		return Counts{}, errors.Errorf("image %d: matcher returned %d matches for %d ground-truth boxes",
			rec.ID, len(matches), len(rec.GroundTruth))
	}
	for i, j := range matches {
		if j < 0 || j >= len(rec.Predictions) {
			continue
		}
		gt := rec.GroundTruth[i]
		if rec.Predictions[j].Category == gt.Category {
			c.Matched[gt.Category-1]++
		}
	}

	if ce := s.logger.Check(zap.DebugLevel, "scored image"); ce != nil {
		ce.Write(
			zap.Int64("image", rec.ID),
			zap.Int("groundTruth", len(rec.GroundTruth)),
			zap.Int("predictions", len(rec.Predictions)),
			zap.Float64("ap", c.AP(s.cfg.Policy)),
		)
	}

	return c, nil
}
