package dynamic

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"whiterabbit/internal/logging"
)

// ErrStageSkipped marks a stage that decided not to capture at all
// (e.g. the target app is not running). Skips are not failures: the
// run continues and the stage contributes zero feature keys.
var ErrStageSkipped = errors.New("stage skipped")

// stageRunner is one timed capture channel. Run blocks for the whole
// observation window. A non-nil error means the stage degraded (or
// skipped); it never aborts the run.
type stageRunner interface {
	Name() string
	Run(ctx context.Context, duration time.Duration) error
}

// observe blocks for the stage's fixed observation window. This is the
// sole suspension point of a stage; there is no event-driven early
// exit. The context check only serves process shutdown.
func observe(ctx context.Context, name string, d time.Duration) {
	logging.Stage("%s: observing for %v", name, d)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// countLineMarkers scans a text artifact line by line and counts, per
// named counter, how many lines contain at least one of its marker
// substrings. The artifact parsers are all variations of this.
func countLineMarkers(path string, counters map[string][]string) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	counts := make(map[string]int64, len(counters))
	for name := range counters {
		counts[name] = 0
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for name, markers := range counters {
			for _, m := range markers {
				if strings.Contains(line, m) {
					counts[name]++
					break
				}
			}
		}
	}
	return counts, scanner.Err()
}

// countLines returns the total line count of a text artifact.
func countLines(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var n int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}
