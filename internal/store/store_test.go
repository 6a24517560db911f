package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiterabbit/internal/fusion"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, started time.Time) RunRecord {
	return RunRecord{
		ID:         id,
		Package:    "com.example.app",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Minute),
		RunDir:     "/tmp/out/20260825_120000",
		Features: map[string]int64{
			"log_errors":         4,
			"system_calls_count": 1207,
			"files_created":      3,
		},
		Degraded: []string{"network_capture"},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := testStore(t)

	rec := sampleRun("run-1", time.Now())
	require.NoError(t, s.SaveRun(rec))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Package, got.Package)
	assert.Equal(t, rec.Features, got.Features)
	assert.Equal(t, rec.Degraded, got.Degraded)
	assert.Nil(t, got.Fusion)
}

func TestSaveRunIsWriteOnce(t *testing.T) {
	s := testStore(t)

	rec := sampleRun("run-1", time.Now())
	require.NoError(t, s.SaveRun(rec))
	assert.Error(t, s.SaveRun(rec))
}

func TestAttachFusionExactlyOnce(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveRun(sampleRun("run-1", time.Now())))

	out := fusion.Outcome{
		CombinedProbability: 0.84,
		CertaintyScore:      34.0,
		FinalClassification: fusion.Malicious,
	}
	require.NoError(t, s.AttachFusion("run-1", out))

	got, err := s.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got.Fusion)
	assert.Equal(t, out, *got.Fusion)

	// second attach must be rejected
	err = s.AttachFusion("run-1", fusion.Outcome{FinalClassification: fusion.Benign})
	assert.Error(t, err)

	got, err = s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, fusion.Malicious, got.Fusion.FinalClassification)
}

func TestAttachFusionUnknownRun(t *testing.T) {
	s := testStore(t)
	err := s.AttachFusion("ghost", fusion.Outcome{FinalClassification: fusion.Benign})
	assert.Error(t, err)
}

func TestGetRunNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRun("missing")
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := testStore(t)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(sampleRun("run-old", base)))
	require.NoError(t, s.SaveRun(sampleRun("run-mid", base.Add(time.Hour))))
	require.NoError(t, s.SaveRun(sampleRun("run-new", base.Add(2*time.Hour))))

	runs, err := s.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-mid", runs[1].ID)
}

func TestListRunsDefaultLimit(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveRun(sampleRun("run-1", time.Now())))

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
