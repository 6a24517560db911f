package dynamic

import (
	"context"
	"fmt"
	"time"

	"whiterabbit/internal/logging"
)

// logcatStage streams device logs for the observation window and
// counts error and warning lines.
type logcatStage struct {
	bridge  DeviceBridge
	agg     *Aggregate
	outPath string
}

func (s *logcatStage) Name() string { return "logcat" }

func (s *logcatStage) Run(ctx context.Context, duration time.Duration) error {
	h, err := StartCapture(s.bridge, "logcat -v time", s.outPath, "")
	defer h.Stop(ctx)
	if err != nil {
		return fmt.Errorf("logcat failed to start: %w", err)
	}

	observe(ctx, s.Name(), duration)
	h.Stop(ctx)
	logging.Stage("logcat: logs saved to %s", s.outPath)

	counts, err := countLineMarkers(s.outPath, map[string][]string{
		"log_errors":   {"ERROR"},
		"log_warnings": {"WARNING"},
	})
	if err != nil {
		return fmt.Errorf("parse log file: %w", err)
	}

	for key, value := range counts {
		s.agg.Set(key, value)
	}
	return nil
}
