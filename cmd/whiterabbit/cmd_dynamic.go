package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"whiterabbit/internal/report"
	"whiterabbit/internal/store"
)

var (
	dynamicAPK      string
	dynamicDuration time.Duration
	dynamicNoSave   bool
)

// dynamicCmd runs only the monitoring pipeline, without fusion.
var dynamicCmd = &cobra.Command{
	Use:   "dynamic [package]",
	Short: "Run the dynamic monitoring pipeline only",
	Long: `Monitors the named package through the four capture stages and
prints the collected feature table. The run is persisted unless
--no-save is given; fusion can be attached later with 'whiterabbit fuse --run'.

Example:
  whiterabbit dynamic com.example.app --apk sample.apk --duration 60s`,
	Args: cobra.ExactArgs(1),
	RunE: runDynamic,
}

func init() {
	dynamicCmd.Flags().StringVar(&dynamicAPK, "apk", "", "APK file to install before monitoring")
	dynamicCmd.Flags().DurationVar(&dynamicDuration, "duration", 0, "Per-stage observation window (overrides config)")
	dynamicCmd.Flags().BoolVar(&dynamicNoSave, "no-save", false, "Skip persisting the run record")
}

func runDynamic(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	result, _, err := runDynamicPipeline(ctx, args[0], dynamicAPK, dynamicDuration)
	if err != nil {
		return err
	}

	if !dynamicNoSave {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		err = db.SaveRun(store.RunRecord{
			ID:         result.RunID,
			Package:    result.Package,
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
			RunDir:     result.Dir,
			Features:   result.Features,
			Degraded:   result.Degraded,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s persisted\n\n", result.RunID)
	}

	return report.Render(cmd.OutOrStdout(), report.RunInfo{
		Package:    result.Package,
		RunID:      result.RunID,
		RunDir:     result.Dir,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Features:   result.Features,
		Degraded:   result.Degraded,
	})
}
