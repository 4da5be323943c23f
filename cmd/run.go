package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailcraft-group/augment-cli/internal/model"
	"github.com/trailcraft-group/augment-cli/internal/pipeline"
)

var (
	runDryRun     bool
	runSkipBackup bool
)

var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Augment a single guide document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applyPipelineFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		orch := buildOrchestrator(nil, pipeline.Options{
			DryRun:         runDryRun,
			SkipBackup:     runSkipBackup,
			MinContentSize: cfg.Augment.MinContentSize,
			Delay:          time.Duration(cfg.Augment.DelayMs) * time.Millisecond,
			Mode:           cfg.Augment.Mode,
		})

		report, err := orch.Run(ctx, args)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stdout, pipeline.FormatReport(report))

		res := report.Results[0]
		if res.Status == model.DocErrored {
			return fmt.Errorf("document failed: %s", res.Error)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "report changes without writing anything")
	runCmd.Flags().BoolVar(&runSkipBackup, "skip-backup", false, "do not back up the original before overwriting")
	registerPipelineFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
