package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"whiterabbit/internal/dynamic"
	"whiterabbit/internal/fusion"
	"whiterabbit/internal/report"
	"whiterabbit/internal/static"
	"whiterabbit/internal/store"
)

var (
	analyzeAPK           string
	analyzeStaticResult  string
	analyzeDynamicResult string
	analyzeDuration      time.Duration
)

// analyzeCmd runs the full hybrid pipeline: dynamic monitoring,
// persistence, and (when both classifier results are supplied) fusion.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [package]",
	Short: "Run the full hybrid analysis of an app package",
	Long: `Runs the dynamic monitoring pipeline against the named package and
persists the run. When both --static-result and --dynamic-result point
to {classification, confidence} JSON files, the two verdicts are fused
and attached to the run record.

Example:
  whiterabbit analyze com.example.app --apk sample.apk \
    --static-result static.json --dynamic-result dynamic.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeAPK, "apk", "", "APK file to install before monitoring")
	analyzeCmd.Flags().StringVar(&analyzeStaticResult, "static-result", "", "Static classifier result JSON")
	analyzeCmd.Flags().StringVar(&analyzeDynamicResult, "dynamic-result", "", "Dynamic classifier result JSON")
	analyzeCmd.Flags().DurationVar(&analyzeDuration, "duration", 0, "Per-stage observation window (overrides config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	pkg := args[0]
	ctx, cancel := signalContext()
	defer cancel()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	result, _, err := runDynamicPipeline(ctx, pkg, analyzeAPK, analyzeDuration)
	if err != nil {
		return err
	}

	rec := store.RunRecord{
		ID:         result.RunID,
		Package:    result.Package,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		RunDir:     result.Dir,
		Features:   result.Features,
		Degraded:   result.Degraded,
	}
	if err := db.SaveRun(rec); err != nil {
		return err
	}
	logger.Info("Run persisted", zap.String("run_id", result.RunID))

	info := report.RunInfo{
		Package:    result.Package,
		RunID:      result.RunID,
		RunDir:     result.Dir,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Features:   result.Features,
		Degraded:   result.Degraded,
	}

	if analyzeStaticResult != "" && analyzeDynamicResult != "" {
		staticRes, err := static.LoadResult(analyzeStaticResult)
		if err != nil {
			return err
		}
		dynamicRes, err := static.LoadResult(analyzeDynamicResult)
		if err != nil {
			return err
		}

		outcome, err := fusion.Fuse(staticRes, dynamicRes, fusion.Weights{
			Dynamic: cfg.Fusion.DynamicWeight,
			Static:  cfg.Fusion.StaticWeight,
		})
		if err != nil {
			return err
		}
		if err := db.AttachFusion(result.RunID, outcome); err != nil {
			return err
		}

		info.Static = &staticRes
		info.Dynamic = &dynamicRes
		info.Outcome = &outcome
	} else if analyzeStaticResult != "" || analyzeDynamicResult != "" {
		fmt.Fprintln(os.Stderr, "Note: fusion needs both --static-result and --dynamic-result; skipping")
	}

	return report.Render(cmd.OutOrStdout(), info)
}

// runDynamicPipeline wires the bridge, gate, and runner and executes
// one monitoring run. Shared by analyze and dynamic.
func runDynamicPipeline(ctx context.Context, pkg, apkPath string, duration time.Duration) (*dynamic.Result, *dynamic.Session, error) {
	bridge := newBridge()
	gate := newGate(bridge)

	if duration <= 0 {
		duration = cfg.Analysis.StageDuration()
	}

	notifier := dynamic.NewNotifier()
	notifier.Subscribe(func(e dynamic.Event) {
		if e.Stage != "" {
			logger.Info("Pipeline event", zap.String("type", string(e.Type)), zap.String("stage", e.Stage), zap.String("message", e.Message))
			return
		}
		logger.Info("Pipeline event", zap.String("type", string(e.Type)), zap.String("message", e.Message))
	})

	sess, err := dynamic.NewSession(cfg.Analysis.OutputRoot, pkg, apkPath)
	if err != nil {
		return nil, nil, err
	}

	runner := dynamic.NewRunner(dynamic.RunnerConfig{
		Bridge:        bridge,
		Gate:          gate,
		Notifier:      notifier,
		StageDuration: duration,
		DeviceToolDir: cfg.Analysis.DeviceToolDir,
		MonitorDir:    cfg.Analysis.MonitorDir,
	})

	result, err := runner.Run(ctx, sess)
	if err != nil {
		return nil, nil, err
	}
	return result, sess, nil
}
