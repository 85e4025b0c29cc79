package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/nvr-ai/defect-eval/annotations"
	"github.com/nvr-ai/defect-eval/config"
	"github.com/nvr-ai/defect-eval/evaluation"
	"github.com/nvr-ai/defect-eval/postprocess"
	"github.com/nvr-ai/defect-eval/report"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultEnvFile is loaded on start when present.
const DefaultEnvFile = ".env"

// options holds the command line. Only flags the user actually set override
// the config file and environment.
type options struct {
	configPath string
	gt         string
	pred       string
	strategy   string
	policy     string
	overlap    string
	workers    int
	format     string
	perImage   bool
	out        string
	logLevel   string
	progress   bool
	set        map[string]bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&o.gt, "gt", "", "Path to the ground-truth annotation file")
	fs.StringVar(&o.pred, "pred", "", "Path to the predictions (COCO document or results array)")
	fs.StringVar(&o.strategy, "strategy", "", "Matching strategy: greedy or exclusive")
	fs.StringVar(&o.policy, "policy", "", "Absent category policy: exclude-empty or legacy")
	fs.StringVar(&o.overlap, "overlap", "", "IoU computation: raster or exact")
	fs.IntVar(&o.workers, "workers", 0, "Images scored in parallel (0 = one per CPU)")
	fs.StringVar(&o.format, "format", "", "Report format: table or json")
	fs.BoolVar(&o.perImage, "per-image", false, "Include per-image scores in the report")
	fs.StringVar(&o.out, "out", "", "Write the report to this file instead of stdout")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.BoolVar(&o.progress, "progress", true, "Show a progress bar on stderr")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overrides cfg with the flags that were given explicitly.
func (o *options) apply(cfg *config.Config) {
	if o.set["gt"] {
		cfg.GroundTruth = o.gt
	}
	if o.set["pred"] {
		cfg.Predictions = o.pred
	}
	if o.set["strategy"] {
		cfg.Strategy = o.strategy
	}
	if o.set["policy"] {
		cfg.Policy = o.policy
	}
	if o.set["overlap"] {
		cfg.Overlap.Mode = o.overlap
	}
	if o.set["workers"] {
		cfg.Workers = o.workers
	}
	if o.set["format"] {
		cfg.Report.Format = o.format
	}
	if o.set["per-image"] {
		cfg.Report.PerImage = o.perImage
	}
	if o.set["out"] {
		cfg.Report.Output = o.out
	}
	if o.set["log-level"] {
		cfg.LogLevel = o.logLevel
	}
}

// loadConfig resolves the effective configuration: defaults, then the config
// file, then the environment, then explicit flags.
func loadConfig(o *options) (config.Config, error) {
	if err := config.LoadEnvFiles(DefaultEnvFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	o.apply(&cfg)

	if cfg.GroundTruth == "" || cfg.Predictions == "" {
		return cfg, errors.New("both -gt and -pred are required")
	}
	return cfg, cfg.Validate()
}

// evaluate runs the full pipeline and writes the report to stdout unless the
// config names an output file.
func evaluate(ctx context.Context, cfg config.Config, logger *zap.Logger, showProgress bool, stdout io.Writer) error {
	gt, err := annotations.Load(cfg.GroundTruth)
	if err != nil {
		return err
	}
	pred, err := annotations.LoadPredictions(cfg.Predictions, gt)
	if err != nil {
		return err
	}
	logger.Info("loaded annotations",
		zap.Int("images", len(gt.Images)),
		zap.Int("predictionImages", len(pred.Images)),
	)

	if cfg.Postprocess.Enabled() {
		pred = pred.Filter(func(d []evaluation.Detection) []evaluation.Detection {
			return postprocess.Apply(d, cfg.Postprocess)
		})
		logger.Debug("filtered predictions",
			zap.Float64("minScore", cfg.Postprocess.MinScore),
			zap.Bool("nms", cfg.Postprocess.NMS),
		)
	}

	table, err := gt.Align(pred)
	if err != nil {
		return err
	}

	evCfg, err := cfg.Evaluation()
	if err != nil {
		return err
	}
	evCfg.Logger = logger
	evCfg.Categories = evaluation.DefectCategories.WithNames(gt.Categories)

	var tracker *progress.Tracker
	var pw progress.Writer
	if showProgress && len(table) > 0 {
		pw, tracker = newProgress(len(table))
		evCfg.Progress = func(int, int) { tracker.Increment(1) }
		go pw.Render()
	}

	result, err := evaluation.NewScorer(evCfg).Score(ctx, table, gt.Table())
	if tracker != nil {
		if err != nil {
			tracker.MarkAsErrored()
		} else {
			tracker.MarkAsDone()
		}
		for pw.IsRenderInProgress() {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if err != nil {
		return err
	}

	w := stdout
	if cfg.Report.Output != "" {
		f, err := os.Create(cfg.Report.Output)
		if err != nil {
			return errors.Wrap(err, "create report file")
		}
		defer f.Close()
		w = f
	}
	if err := report.Write(w, result, cfg.Report.Format, cfg.Report.PerImage); err != nil {
		return err
	}

	logger.Info("evaluation finished", zap.Float64("score", result.Total))
	return nil
}

func newProgress(total int) (progress.Writer, *progress.Tracker) {
	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stderr)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true

	tracker := &progress.Tracker{Message: "scoring images", Total: int64(total), Units: progress.UnitsDefault}
	pw.AppendTracker(tracker)
	return pw, tracker
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = evaluate(ctx, cfg, logger, o.progress, os.Stdout)
	stop()
	_ = logger.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluation failed: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -gt annotations.json -pred predictions.json [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Scores defect detections against ground truth.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment overrides use the %s prefix, e.g. %sWORKERS=4.\n", config.EnvPrefix, config.EnvPrefix)
	}
}
