package dynamic

import (
	"context"
	"fmt"
	"time"

	"whiterabbit/internal/logging"
)

// fsmonStage watches an on-device directory tree with inotifywait for
// the observation window and counts file creations and deletions.
type fsmonStage struct {
	bridge     DeviceBridge
	agg        *Aggregate
	toolDir    string // on-device tool directory, also LD_LIBRARY_PATH
	monitorDir string // on-device directory to watch
	outPath    string
}

func (s *fsmonStage) Name() string { return "filesystem" }

func (s *fsmonStage) Run(ctx context.Context, duration time.Duration) error {
	cmd := fmt.Sprintf("LD_LIBRARY_PATH=%s %s/inotifywait -m -r %s", s.toolDir, s.toolDir, s.monitorDir)
	h, err := StartCapture(s.bridge, cmd, s.outPath, "inotifywait")
	defer h.Stop(ctx)
	if err != nil {
		return fmt.Errorf("inotifywait failed to start: %w", err)
	}

	observe(ctx, s.Name(), duration)
	h.Stop(ctx)
	logging.Stage("filesystem: changes saved to %s", s.outPath)

	counts, err := countLineMarkers(s.outPath, map[string][]string{
		"files_created": {"CREATE"},
		"files_deleted": {"DELETE"},
	})
	if err != nil {
		return fmt.Errorf("parse filesystem changes: %w", err)
	}

	for key, value := range counts {
		s.agg.Set(key, value)
	}
	return nil
}
