package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseBothMalicious(t *testing.T) {
	// static 0.90 malicious, dynamic 0.80 malicious:
	// combined = 0.6*0.80 + 0.4*0.90 = 0.84
	out, err := Fuse(
		Result{Classification: Malicious, Confidence: 0.90},
		Result{Classification: Malicious, Confidence: 0.80},
		DefaultWeights,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.84, out.CombinedProbability, 1e-9)
	assert.InDelta(t, 34.0, out.CertaintyScore, 1e-9)
	assert.Equal(t, Malicious, out.FinalClassification)
}

func TestFuseBothBenignReExpressesReportedProbability(t *testing.T) {
	// static benign with malicious tail 0.30, dynamic benign 0.65:
	// Pdynamic = 1-0.65 = 0.35, combined = 0.6*0.35 + 0.4*0.30 = 0.33,
	// classified benign on 0.33 < 0.5, then reported as 1-0.33 = 0.67.
	out, err := Fuse(
		Result{Classification: Benign, Confidence: 0.30},
		Result{Classification: Benign, Confidence: 0.65},
		DefaultWeights,
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.67, out.CombinedProbability, 1e-9)
	assert.Equal(t, Benign, out.FinalClassification)
}

func TestFuseTieBreakFavorsMalicious(t *testing.T) {
	// Equal weights with 0.5 on both sides lands exactly on the
	// decision boundary.
	out, err := Fuse(
		Result{Classification: Malicious, Confidence: 0.5},
		Result{Classification: Malicious, Confidence: 0.5},
		DefaultWeights,
	)
	require.NoError(t, err)

	assert.Equal(t, 0.5, out.CombinedProbability)
	assert.Equal(t, 0.0, out.CertaintyScore)
	assert.Equal(t, Malicious, out.FinalClassification)
}

func TestFuseBenignDynamicInversion(t *testing.T) {
	// dynamic benign 0.9 becomes malicious probability 0.1
	out, err := Fuse(
		Result{Classification: Malicious, Confidence: 0.8},
		Result{Classification: Benign, Confidence: 0.9},
		DefaultWeights,
	)
	require.NoError(t, err)

	// combined = 0.6*0.1 + 0.4*0.8 = 0.38; mixed verdicts, no re-expression
	assert.InDelta(t, 0.38, out.CombinedProbability, 1e-9)
	assert.Equal(t, Benign, out.FinalClassification)
}

func TestFuseBoundsAndIdempotence(t *testing.T) {
	cases := []struct {
		staticRes, dynamicRes Result
	}{
		{Result{Benign, 0.0}, Result{Benign, 0.0}},
		{Result{Benign, 1.0}, Result{Benign, 1.0}},
		{Result{Malicious, 0.0}, Result{Malicious, 1.0}},
		{Result{Malicious, 1.0}, Result{Benign, 0.0}},
		{Result{Benign, 0.42}, Result{Malicious, 0.77}},
	}

	for _, tc := range cases {
		first, err := Fuse(tc.staticRes, tc.dynamicRes, DefaultWeights)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, first.CombinedProbability, 0.0)
		assert.LessOrEqual(t, first.CombinedProbability, 1.0)
		assert.GreaterOrEqual(t, first.CertaintyScore, 0.0)
		assert.LessOrEqual(t, first.CertaintyScore, 100.0)
		assert.True(t, first.FinalClassification.Valid())

		second, err := Fuse(tc.staticRes, tc.dynamicRes, DefaultWeights)
		require.NoError(t, err)
		assert.Equal(t, first, second, "fuse must be stateless")
	}
}

func TestFuseRejectsInvalidInputs(t *testing.T) {
	valid := Result{Classification: Benign, Confidence: 0.5}

	_, err := Fuse(Result{Classification: "suspicious", Confidence: 0.5}, valid, DefaultWeights)
	assert.Error(t, err)

	_, err = Fuse(valid, Result{Classification: Malicious, Confidence: 1.5}, DefaultWeights)
	assert.Error(t, err)

	_, err = Fuse(valid, valid, Weights{Dynamic: 0.7, Static: 0.7})
	assert.Error(t, err)

	_, err = Fuse(valid, valid, Weights{Dynamic: -0.2, Static: 1.2})
	assert.Error(t, err)
}

func TestFuseCustomWeights(t *testing.T) {
	out, err := Fuse(
		Result{Classification: Malicious, Confidence: 1.0},
		Result{Classification: Malicious, Confidence: 0.0},
		Weights{Dynamic: 0.5, Static: 0.5},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.CombinedProbability, 1e-9)
	assert.Equal(t, Malicious, out.FinalClassification)
}
