package dynamic

import (
	"context"
	"fmt"
	"time"

	"whiterabbit/internal/logging"
)

// straceStage attaches strace to the target app's process for the
// observation window, pulls the trace back, and counts system call
// classes. If the app is not running when the stage begins it skips
// entirely; dynamic analysis tolerates partial instrumentation.
type straceStage struct {
	bridge     DeviceBridge
	agg        *Aggregate
	pkg        string
	toolDir    string // on-device tool directory
	remotePath string
	localPath  string
}

func (s *straceStage) Name() string { return "syscall" }

func (s *straceStage) Run(ctx context.Context, duration time.Duration) error {
	pid, ok := s.bridge.Pidof(ctx, s.pkg)
	if !ok {
		return fmt.Errorf("%w: %s is not running", ErrStageSkipped, s.pkg)
	}
	logging.Stage("syscall: tracing pid %s of %s", pid, s.pkg)

	cmd := fmt.Sprintf("%s/strace -p %s -o %s", s.toolDir, pid, s.remotePath)
	h, err := StartCapture(s.bridge, cmd, s.localPath, "strace")
	defer h.Stop(ctx)
	if err != nil {
		return fmt.Errorf("strace failed to start: %w", err)
	}

	observe(ctx, s.Name(), duration)
	h.Stop(ctx)

	// The trace lands on the device; bring it home. A transport
	// failure degrades to "no features", never aborts the run.
	if err := s.bridge.Pull(ctx, s.remotePath, s.localPath); err != nil {
		return fmt.Errorf("pull strace output: %w", err)
	}

	total, err := countLines(s.localPath)
	if err != nil {
		return fmt.Errorf("parse strace output: %w", err)
	}
	counts, err := countLineMarkers(s.localPath, map[string][]string{
		"file_access_calls": {"open", "read", "write"},
		"network_calls":     {"connect", "send", "recv"},
	})
	if err != nil {
		return fmt.Errorf("parse strace output: %w", err)
	}

	s.agg.Set("system_calls_count", total)
	for key, value := range counts {
		s.agg.Set(key, value)
	}
	return nil
}
