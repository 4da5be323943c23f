package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trailcraft-group/augment-cli/internal/docstore"
	"github.com/trailcraft-group/augment-cli/internal/pipeline"
	anthropicpkg "github.com/trailcraft-group/augment-cli/pkg/anthropic"
	"github.com/trailcraft-group/augment-cli/pkg/catalog"
)

var (
	augmentDryRun     bool
	augmentSkipBackup bool
	augmentMaxFiles   int
	augmentPattern    string
)

var augmentCmd = &cobra.Command{
	Use:   "augment [paths...]",
	Short: "Augment a corpus of guides with product recommendations",
	Long:  "Walks the guide directory (or the given paths), extracts gear mentions, matches them against the catalog, and rewrites each guide with recommendation blocks. Originals are backed up before every write.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applyPipelineFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		recorder := openRecorder(cmd)

		orch := buildOrchestrator(recorder, pipeline.Options{
			Pattern:        augmentPattern,
			MaxFiles:       augmentMaxFiles,
			DryRun:         augmentDryRun,
			SkipBackup:     augmentSkipBackup,
			MinContentSize: cfg.Augment.MinContentSize,
			Delay:          time.Duration(cfg.Augment.DelayMs) * time.Millisecond,
			Mode:           cfg.Augment.Mode,
		})

		report, err := orch.Run(ctx, args)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stdout, pipeline.FormatReport(report))

		if report.Stats.Processed > 0 && report.Stats.Errors == report.Stats.Processed {
			return eris.Errorf("all %d documents failed", report.Stats.Processed)
		}
		return nil
	},
}

func init() {
	augmentCmd.Flags().BoolVar(&augmentDryRun, "dry-run", false, "report changes without writing anything")
	augmentCmd.Flags().BoolVar(&augmentSkipBackup, "skip-backup", false, "do not back up originals before overwriting")
	augmentCmd.Flags().IntVar(&augmentMaxFiles, "max-files", 0, "process at most N documents (0 = no cap)")
	augmentCmd.Flags().StringVar(&augmentPattern, "pattern", "", "file name glob to select documents (default *.md)")
	registerPipelineFlags(augmentCmd)
	rootCmd.AddCommand(augmentCmd)
}

// registerPipelineFlags adds the flags shared by augment and run, bound to
// viper-backed config so the precedence is flag > env > config file.
func registerPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&cfgThreshold, "threshold", -1, "similarity threshold in [0,1]")
	cmd.Flags().IntVar(&cfgMaxProducts, "max-products", -1, "max products per gear mention")
	cmd.Flags().StringVar(&cfgCatalogURL, "catalog-url", "", "catalog search service base URL")
	cmd.Flags().StringVar(&cfgMode, "mode", "", "pipeline mode: extract or combined")
	cmd.Flags().IntVar(&cfgDelayMS, "delay-ms", -1, "delay between extraction calls in milliseconds")
}

var (
	cfgThreshold   float64
	cfgMaxProducts int
	cfgCatalogURL  string
	cfgMode        string
	cfgDelayMS     int
)

// applyPipelineFlags folds explicitly-set shared flags into cfg.
func applyPipelineFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("threshold") {
		cfg.Augment.SimilarityThreshold = cfgThreshold
	}
	if cmd.Flags().Changed("max-products") {
		cfg.Augment.MaxProductsPerGear = cfgMaxProducts
	}
	if cmd.Flags().Changed("catalog-url") {
		cfg.Catalog.BaseURL = cfgCatalogURL
	}
	if cmd.Flags().Changed("mode") {
		cfg.Augment.Mode = cfgMode
	}
	if cmd.Flags().Changed("delay-ms") {
		cfg.Augment.DelayMs = cfgDelayMS
	}
}

// openRecorder opens the run-history store. History is best-effort: any
// failure here downgrades to a warning and the run proceeds unrecorded.
func openRecorder(cmd *cobra.Command) pipeline.RunRecorder {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("run history migrate failed", zap.Error(err))
		_ = st.Close()
		return nil
	}
	cobra.OnFinalize(func() { _ = st.Close() })
	return st
}

func buildOrchestrator(recorder pipeline.RunRecorder, opts pipeline.Options) *pipeline.Orchestrator {
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Key)
	docs := docstore.New(cfg.Guides.Dir, cfg.Guides.BackupDir)

	extractor := pipeline.NewExtractor(anthropicClient, cfg.Anthropic.Model)
	matcher := pipeline.NewMatcher(catalogClient,
		cfg.Augment.SimilarityThreshold,
		cfg.Augment.MaxProductsPerGear,
		cfg.Augment.MatchConcurrency,
	)
	rewriter := pipeline.NewRewriter(anthropicClient, catalogClient,
		cfg.Anthropic.Model,
		cfg.Augment.SimilarityThreshold,
		cfg.Augment.MaxProductsPerGear,
	)

	return pipeline.NewOrchestrator(docs, extractor, matcher, rewriter, recorder, cfg.Anthropic.Model, opts)
}
