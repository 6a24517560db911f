package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiterabbit/internal/fusion"
)

func TestRenderFullReport(t *testing.T) {
	info := RunInfo{
		Package:    "com.example.dropper",
		RunID:      "abc-123",
		RunDir:     "/tmp/out/20260825_120000",
		StartedAt:  time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 25, 12, 2, 0, 0, time.UTC),
		Features: map[string]int64{
			"log_errors":          4,
			"log_warnings":        11,
			"system_calls_count":  1207,
			"network_connections": 6,
		},
		Degraded: []string{"network_capture: pull failed"},
		Static:   &fusion.Result{Classification: fusion.Malicious, Confidence: 0.90},
		Dynamic:  &fusion.Result{Classification: fusion.Malicious, Confidence: 0.80},
		Outcome: &fusion.Outcome{
			CombinedProbability: 0.84,
			CertaintyScore:      34.0,
			FinalClassification: fusion.Malicious,
		},
	}

	var sb strings.Builder
	require.NoError(t, Render(&sb, info))
	out := sb.String()

	assert.Contains(t, out, "com.example.dropper")
	assert.Contains(t, out, "Run ID:     abc-123")
	assert.Contains(t, out, "system_calls_count")
	assert.Contains(t, out, "1207")
	assert.Contains(t, out, "network_capture: pull failed")
	assert.Contains(t, out, "Static:     malicious (confidence 0.90)")
	assert.Contains(t, out, "Dynamic:    malicious (confidence 0.80)")
	assert.Contains(t, out, "Combined Confidence:   0.8400")
	assert.Contains(t, out, "Distance from Neutral: 34.00")
	assert.Contains(t, out, "Final Classification:  MALICIOUS")
}

func TestRenderDynamicOnly(t *testing.T) {
	info := RunInfo{
		Package:  "com.example.app",
		RunID:    "run-7",
		RunDir:   "/tmp/out",
		Features: map[string]int64{"files_created": 2},
	}

	var sb strings.Builder
	require.NoError(t, Render(&sb, info))
	out := sb.String()

	assert.Contains(t, out, "files_created")
	assert.NotContains(t, out, "Final Classification")
	assert.NotContains(t, out, "Classifier Outputs")
	assert.NotContains(t, out, "Degraded Stages")
}

func TestRenderNoFeatures(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Render(&sb, RunInfo{Package: "com.x", RunID: "r"}))
	assert.Contains(t, sb.String(), "(no features collected)")
}

func TestRenderFeatureOrderIsStable(t *testing.T) {
	info := RunInfo{
		Package: "com.x",
		RunID:   "r",
		Features: map[string]int64{
			"zz_custom":     1,
			"files_created": 3,
			"log_errors":    9,
		},
	}

	var sb strings.Builder
	require.NoError(t, Render(&sb, info))
	out := sb.String()

	// known keys in canonical order, unknown keys appended last
	errIdx := strings.Index(out, "log_errors")
	createdIdx := strings.Index(out, "files_created")
	customIdx := strings.Index(out, "zz_custom")
	assert.Less(t, errIdx, createdIdx)
	assert.Less(t, createdIdx, customIdx)
}
