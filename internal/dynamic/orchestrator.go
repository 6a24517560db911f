package dynamic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"whiterabbit/internal/logging"
)

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Bridge        DeviceBridge
	Gate          *Gate
	Notifier      *Notifier // optional
	StageDuration time.Duration
	DeviceToolDir string // on-device tool directory
	MonitorDir    string // on-device directory the filesystem stage watches
	TsharkPath    string // host tshark binary, default "tshark"
}

// Runner drives one dynamic analysis run: dependency gate, app
// install/launch, then the four capture stages in a fixed order, each
// blocking for its observation window. Stages run strictly
// sequentially; the only concurrency is each stage's supervised
// capture process.
type Runner struct {
	bridge   DeviceBridge
	gate     *Gate
	notifier *Notifier
	agg      *Aggregate
	cfg      RunnerConfig
}

// Result summarizes a completed (possibly partial) run.
type Result struct {
	RunID      string           `json:"run_id"`
	Package    string           `json:"package"`
	Dir        string           `json:"dir"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Features   map[string]int64 `json:"features"`
	Degraded   []string         `json:"degraded,omitempty"`
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.StageDuration <= 0 {
		cfg.StageDuration = 30 * time.Second
	}
	if cfg.DeviceToolDir == "" {
		cfg.DeviceToolDir = "/data/local/tmp"
	}
	if cfg.MonitorDir == "" {
		cfg.MonitorDir = "/sdcard"
	}
	return &Runner{
		bridge:   cfg.Bridge,
		gate:     cfg.Gate,
		notifier: cfg.Notifier,
		agg:      NewAggregate(),
		cfg:      cfg,
	}
}

// buildStages returns the capture pipeline in its fixed order.
func (r *Runner) buildStages(sess *Session) []stageRunner {
	return []stageRunner{
		&logcatStage{bridge: r.bridge, agg: r.agg, outPath: sess.LogcatFile},
		&straceStage{
			bridge:     r.bridge,
			agg:        r.agg,
			pkg:        sess.Package,
			toolDir:    r.cfg.DeviceToolDir,
			remotePath: sess.StraceRemote,
			localPath:  sess.StraceFile,
		},
		&fsmonStage{
			bridge:     r.bridge,
			agg:        r.agg,
			toolDir:    r.cfg.DeviceToolDir,
			monitorDir: r.cfg.MonitorDir,
			outPath:    sess.FSMonFile,
		},
		&netcapStage{
			bridge:     r.bridge,
			agg:        r.agg,
			remotePcap: sess.PcapRemote,
			localPcap:  sess.PcapFile,
			trafficLog: sess.TrafficLog,
			tsharkPath: r.cfg.TsharkPath,
		},
	}
}

// Run executes the full pipeline. Only gate preconditions and an
// install failure for a provided APK are fatal; every stage-level
// problem is logged, recorded in Result.Degraded, and skipped past.
// The run always terminates and always yields a (possibly partial)
// feature aggregate.
func (r *Runner) Run(ctx context.Context, sess *Session) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()

	logging.Stage("run %s: starting dynamic analysis of %s", runID, sess.Package)
	r.notifier.publish(EventRunStarted, "", fmt.Sprintf("analyzing %s", sess.Package))

	if r.gate != nil {
		if err := r.gate.Run(ctx); err != nil {
			return nil, fmt.Errorf("dependency gate: %w", err)
		}
		r.notifier.publish(EventGatePassed, "", "all dependency checks passed")
	}

	if err := sess.Install(ctx, r.bridge); err != nil {
		return nil, fmt.Errorf("install %s: %w", sess.Package, err)
	}
	sess.Launch(ctx, r.bridge)

	// Best-effort artifact notifications while stages write.
	if watcher, err := NewArtifactWatcher(sess.Dir, r.notifier); err != nil {
		logging.StageWarn("artifact watcher unavailable: %v", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	var degraded []string
	for _, stage := range r.buildStages(sess) {
		r.notifier.publish(EventStageStarted, stage.Name(), "capture started")

		err := stage.Run(ctx, r.cfg.StageDuration)
		switch {
		case err == nil:
			r.notifier.publish(EventStageFinished, stage.Name(), "capture finished")
		case errors.Is(err, ErrStageSkipped):
			logging.StageWarn("%s: %v", stage.Name(), err)
			degraded = append(degraded, fmt.Sprintf("%s: %v", stage.Name(), err))
			r.notifier.publish(EventStageSkipped, stage.Name(), err.Error())
		default:
			logging.StageWarn("%s degraded: %v", stage.Name(), err)
			degraded = append(degraded, fmt.Sprintf("%s: %v", stage.Name(), err))
			r.notifier.publish(EventStageFinished, stage.Name(), "degraded: "+err.Error())
		}
	}

	result := &Result{
		RunID:      runID,
		Package:    sess.Package,
		Dir:        sess.Dir,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Features:   r.agg.Snapshot(),
		Degraded:   degraded,
	}

	if err := writeFeatures(sess.FeaturesJSON, result.Features); err != nil {
		logging.StageWarn("saving feature snapshot: %v", err)
	} else {
		logging.Stage("run %s: features saved to %s", runID, sess.FeaturesJSON)
	}

	r.notifier.publish(EventRunFinished, "", fmt.Sprintf("%d features collected, %d stage(s) degraded", len(result.Features), len(degraded)))
	logging.Stage("run %s: dynamic analysis completed", runID)
	return result, nil
}

// writeFeatures persists the aggregate snapshot as the run's
// dynamic_features.json, written once and never mutated.
func writeFeatures(path string, features map[string]int64) error {
	data, err := json.MarshalIndent(features, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
