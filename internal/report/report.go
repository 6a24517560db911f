// Package report renders a plain-text summary of a completed analysis
// run: the dynamic feature table plus the per-channel and fused
// verdicts.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"whiterabbit/internal/fusion"
	"whiterabbit/internal/logging"
)

// RunInfo carries everything the report needs. Fusion fields are
// optional: a dynamic-only run renders without a verdict section.
type RunInfo struct {
	Package    string
	RunID      string
	RunDir     string
	StartedAt  time.Time
	FinishedAt time.Time

	Features map[string]int64
	Degraded []string

	Static  *fusion.Result
	Dynamic *fusion.Result
	Outcome *fusion.Outcome
}

// featureOrder fixes the display order of the known dynamic features;
// anything else is appended alphabetically.
var featureOrder = []string{
	"log_errors",
	"log_warnings",
	"system_calls_count",
	"file_access_calls",
	"network_calls",
	"files_created",
	"files_deleted",
	"network_connections",
	"data_sent_bytes",
	"data_received_bytes",
}

// Render writes the report to w.
func Render(w io.Writer, info RunInfo) error {
	var b strings.Builder

	b.WriteString("=== Hybrid Analysis Report ===\n\n")
	fmt.Fprintf(&b, "Package:    %s\n", info.Package)
	fmt.Fprintf(&b, "Run ID:     %s\n", info.RunID)
	fmt.Fprintf(&b, "Run dir:    %s\n", info.RunDir)
	if !info.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started:    %s\n", info.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "Finished:   %s\n", info.FinishedAt.Format(time.RFC3339))
	}

	b.WriteString("\n--- Dynamic Features ---\n")
	if len(info.Features) == 0 {
		b.WriteString("(no features collected)\n")
	} else {
		for _, name := range orderedFeatures(info.Features) {
			fmt.Fprintf(&b, "%-22s %d\n", name, info.Features[name])
		}
	}

	if len(info.Degraded) > 0 {
		b.WriteString("\n--- Degraded Stages ---\n")
		for _, d := range info.Degraded {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	if info.Static != nil || info.Dynamic != nil {
		b.WriteString("\n--- Classifier Outputs ---\n")
		if info.Static != nil {
			fmt.Fprintf(&b, "Static:     %s (confidence %.2f)\n", info.Static.Classification, info.Static.Confidence)
		}
		if info.Dynamic != nil {
			fmt.Fprintf(&b, "Dynamic:    %s (confidence %.2f)\n", info.Dynamic.Classification, info.Dynamic.Confidence)
		}
	}

	if info.Outcome != nil {
		b.WriteString("\n--- Verdict ---\n")
		fmt.Fprintf(&b, "Combined Confidence:   %.4f\n", info.Outcome.CombinedProbability)
		fmt.Fprintf(&b, "Distance from Neutral: %.2f\n", info.Outcome.CertaintyScore)
		fmt.Fprintf(&b, "Final Classification:  %s\n", strings.ToUpper(string(info.Outcome.FinalClassification)))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logging.Get(logging.CategoryReport).Info("rendered report for run %s", info.RunID)
	return nil
}

func orderedFeatures(feats map[string]int64) []string {
	seen := make(map[string]bool, len(feats))
	var names []string
	for _, name := range featureOrder {
		if _, ok := feats[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range feats {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
