package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trailcraft-group/augment-cli/internal/docstore"
	"github.com/trailcraft-group/augment-cli/internal/model"
	"github.com/trailcraft-group/augment-cli/internal/resilience"
	"github.com/trailcraft-group/augment-cli/pkg/anthropic"
)

// RunRecorder is the slice of the run-history store the orchestrator uses.
// A nil recorder disables history.
type RunRecorder interface {
	CreateRun(ctx context.Context, run model.Run) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStatistics, errMsg string) error
	RecordDocument(ctx context.Context, runID string, result model.DocumentResult) error
}

// Options configures one batch run.
type Options struct {
	Pattern        string
	MaxFiles       int
	DryRun         bool
	SkipBackup     bool
	MinContentSize int
	Delay          time.Duration
	Mode           string // "extract" or "combined"
}

// RunReport is the outcome of one batch run.
type RunReport struct {
	RunID    string
	DryRun   bool
	Mode     string
	Stats    model.RunStatistics
	Results  []model.DocumentResult
	Usage    anthropic.TokenUsage
	Model    string
	Duration time.Duration
}

// Orchestrator walks a guide corpus and applies the extract, match, augment,
// persist pipeline to each document. Documents are processed strictly
// sequentially; per-document failures are recorded and never abort the
// batch.
type Orchestrator struct {
	docs      *docstore.Store
	extractor *Extractor
	matcher   *Matcher
	rewriter  *Rewriter
	recorder  RunRecorder
	modelID   string
	opts      Options
}

// NewOrchestrator creates an Orchestrator. recorder may be nil.
func NewOrchestrator(docs *docstore.Store, extractor *Extractor, matcher *Matcher, rewriter *Rewriter, recorder RunRecorder, modelID string, opts Options) *Orchestrator {
	return &Orchestrator{
		docs:      docs,
		extractor: extractor,
		matcher:   matcher,
		rewriter:  rewriter,
		recorder:  recorder,
		modelID:   modelID,
		opts:      opts,
	}
}

// Run processes the given document paths, or the corpus selected by the
// configured pattern and max-file cap when paths is empty. The returned
// error reports top-level failures only (corpus listing); per-document
// failures land in the report.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*RunReport, error) {
	start := time.Now()

	if len(paths) == 0 {
		var err error
		paths, err = o.docs.List(o.opts.Pattern, o.opts.MaxFiles)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: list corpus")
		}
	}

	runID := uuid.New().String()
	o.recordStart(ctx, runID, start)

	zap.L().Info("starting augmentation run",
		zap.String("run_id", runID),
		zap.Int("documents", len(paths)),
		zap.Bool("dry_run", o.opts.DryRun),
		zap.String("mode", o.opts.Mode),
	)

	// One extraction call per interval keeps the batch under the provider's
	// rate limit. The limiter starts full, so the first document is not
	// delayed and there is no trailing delay after the last.
	var limiter *rate.Limiter
	if o.opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(o.opts.Delay), 1)
	}

	results := make([]model.DocumentResult, 0, len(paths))
	for _, path := range paths {
		result := o.processDocument(ctx, path, limiter, start)
		results = append(results, result)

		zap.L().Info("document finished",
			zap.String("path", result.Path),
			zap.String("status", string(result.Status)),
			zap.Int("products_added", result.ProductsAdded),
		)

		if o.recorder != nil {
			if err := o.recorder.RecordDocument(ctx, runID, result); err != nil {
				zap.L().Warn("run history record failed", zap.Error(err))
			}
		}
	}

	stats := model.AggregateResults(results)
	o.recordFinish(ctx, runID, stats)

	report := &RunReport{
		RunID:    runID,
		DryRun:   o.opts.DryRun,
		Mode:     o.opts.Mode,
		Stats:    stats,
		Results:  results,
		Model:    o.modelID,
		Duration: time.Since(start),
	}
	if o.extractor != nil {
		report.Usage.Add(o.extractor.Usage())
	}
	if o.rewriter != nil {
		report.Usage.Add(o.rewriter.Usage())
	}
	return report, nil
}

// processDocument runs one document to a terminal state. Every failure path
// returns an errored result; nothing escapes to abort the batch.
func (o *Orchestrator) processDocument(ctx context.Context, path string, limiter *rate.Limiter, runStart time.Time) model.DocumentResult {
	doc, err := o.docs.Load(path)
	if err != nil {
		return errored(path, err)
	}

	if len(strings.TrimSpace(doc.Body)) < o.opts.MinContentSize {
		return skipped(path, "content below minimum size")
	}

	if AlreadyAugmented(doc) {
		return skipped(path, "already augmented")
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return errored(path, err)
		}
	}

	var newBody string
	var added, soft int
	switch o.opts.Mode {
	case "combined":
		newBody, err = resilience.DoVal(ctx, resilience.Default("anthropic", "rewrite_guide"),
			func(ctx context.Context) (string, error) {
				return o.rewriter.Rewrite(ctx, doc.Body)
			})
		if err != nil {
			return errored(path, err)
		}
		added = countRecommendedProducts(newBody) - countRecommendedProducts(doc.Body)
		if added <= 0 {
			return skipped(path, "no qualifying recommendations")
		}
	default:
		mentions, err := resilience.DoVal(ctx, resilience.Default("anthropic", "extract_gear"),
			func(ctx context.Context) ([]model.GearMention, error) {
				return o.extractor.Extract(ctx, doc.Body)
			})
		if err != nil {
			return errored(path, err)
		}
		if len(mentions) == 0 {
			return skipped(path, "no gear mentions")
		}

		gears, softErrs := o.matcher.Match(ctx, mentions)
		soft = softErrs

		res := Augment(doc, gears)
		if res.TotalProductsAdded == 0 {
			r := skipped(path, "no qualifying recommendations")
			r.SoftErrors = soft
			return r
		}
		newBody = res.AugmentedContent
		added = res.TotalProductsAdded
	}

	if o.opts.DryRun {
		zap.L().Info("dry run, not writing",
			zap.String("path", path),
			zap.Int("would_add", added),
		)
		return model.DocumentResult{
			Path:          path,
			Status:        model.DocEnhanced,
			ProductsAdded: added,
			SoftErrors:    soft,
		}
	}

	// Backup before overwrite: if the backup fails the original is
	// untouched.
	if !o.opts.SkipBackup {
		backupPath, err := o.docs.Backup(path, runStart)
		if err != nil {
			return errored(path, &WriteError{Path: path, Err: err})
		}
		zap.L().Debug("backed up document", zap.String("backup", backupPath))
	}

	doc = doc.WithOwnedKey(SentinelKey, "true")
	if err := o.docs.Save(doc, newBody); err != nil {
		return errored(path, &WriteError{Path: path, Err: err})
	}

	return model.DocumentResult{
		Path:          path,
		Status:        model.DocEnhanced,
		ProductsAdded: added,
		SoftErrors:    soft,
	}
}

func (o *Orchestrator) recordStart(ctx context.Context, runID string, start time.Time) {
	if o.recorder == nil {
		return
	}
	err := o.recorder.CreateRun(ctx, model.Run{
		ID:        runID,
		Status:    model.RunStatusRunning,
		DryRun:    o.opts.DryRun,
		Mode:      o.opts.Mode,
		StartedAt: start,
	})
	if err != nil {
		zap.L().Warn("run history create failed", zap.Error(err))
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, runID string, stats model.RunStatistics) {
	if o.recorder == nil {
		return
	}
	status := model.RunStatusComplete
	if stats.Processed > 0 && stats.Errors == stats.Processed {
		status = model.RunStatusFailed
	}
	if err := o.recorder.CompleteRun(ctx, runID, status, &stats, ""); err != nil {
		zap.L().Warn("run history complete failed", zap.Error(err))
	}
}

func skipped(path, reason string) model.DocumentResult {
	return model.DocumentResult{Path: path, Status: model.DocSkipped, Reason: reason}
}

func errored(path string, err error) model.DocumentResult {
	zap.L().Error("document failed", zap.String("path", path), zap.Error(err))
	return model.DocumentResult{Path: path, Status: model.DocErrored, Error: err.Error()}
}
