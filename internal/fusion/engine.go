// Package fusion combines the static and dynamic classifier outputs
// into one calibrated verdict. Fuse is a pure function: no state
// survives between calls and identical inputs always produce
// identical outcomes.
package fusion

import (
	"fmt"
	"math"

	"whiterabbit/internal/logging"
)

// Classification is a binary verdict.
type Classification string

const (
	Benign    Classification = "benign"
	Malicious Classification = "malicious"
)

// Valid reports whether c is one of the two known verdicts.
func (c Classification) Valid() bool {
	return c == Benign || c == Malicious
}

// Result is one classifier's output: a verdict plus a confidence in
// [0,1]. Immutable once produced. For the static path the confidence
// is the probability-of-malicious tail as emitted by the upstream
// classifier, for both verdicts. For the dynamic path the confidence
// accompanies the verdict directly and is inverted here when benign.
type Result struct {
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
}

func (r Result) validate(side string) error {
	if !r.Classification.Valid() {
		return fmt.Errorf("%s classification %q is not benign or malicious", side, r.Classification)
	}
	if r.Confidence < 0 || r.Confidence > 1 || math.IsNaN(r.Confidence) {
		return fmt.Errorf("%s confidence %v outside [0,1]", side, r.Confidence)
	}
	return nil
}

// Weights are the fusion coefficients. They must be non-negative and
// sum to 1.
type Weights struct {
	Dynamic float64
	Static  float64
}

// DefaultWeights favors the dynamic channel 60/40.
var DefaultWeights = Weights{Dynamic: 0.60, Static: 0.40}

func (w Weights) validate() error {
	if w.Dynamic < 0 || w.Static < 0 || math.Abs(w.Dynamic+w.Static-1.0) > 1e-9 {
		return fmt.Errorf("weights must be non-negative and sum to 1.0, got dynamic=%v static=%v", w.Dynamic, w.Static)
	}
	return nil
}

// Outcome is the fused verdict.
type Outcome struct {
	CombinedProbability float64        `json:"combined_probability"` // in [0,1]
	CertaintyScore      float64        `json:"certainty_score"`      // distance from neutral, in [0,100]
	FinalClassification Classification `json:"final_classification"`
}

// Fuse combines the two classifier results.
//
// The dynamic confidence is inverted into a malicious probability when
// its verdict is benign; the static confidence is taken as-is. The
// classification is decided on the weighted combination before the
// benign/benign adjustment below, with the 0.5 tie going to malicious.
// When both inputs are benign the reported combined probability is
// re-expressed as 1-P so it reads as benign confidence; the
// already-decided classification is not revisited.
func Fuse(staticRes, dynamicRes Result, weights Weights) (Outcome, error) {
	if err := staticRes.validate("static"); err != nil {
		return Outcome{}, err
	}
	if err := dynamicRes.validate("dynamic"); err != nil {
		return Outcome{}, err
	}
	if err := weights.validate(); err != nil {
		return Outcome{}, err
	}

	pStatic := staticRes.Confidence
	pDynamic := dynamicRes.Confidence
	if dynamicRes.Classification == Benign {
		pDynamic = 1 - pDynamic
	}

	combined := weights.Dynamic*pDynamic + weights.Static*pStatic
	certainty := math.Abs(combined-0.5) * 100

	final := Benign
	if combined >= 0.5 {
		final = Malicious
	}

	reported := combined
	if staticRes.Classification == Benign && dynamicRes.Classification == Benign {
		reported = 1 - combined
	}

	logging.Fusion("static=%s/%.4f dynamic=%s/%.4f -> combined=%.4f certainty=%.2f final=%s",
		staticRes.Classification, staticRes.Confidence,
		dynamicRes.Classification, dynamicRes.Confidence,
		reported, certainty, final)

	return Outcome{
		CombinedProbability: reported,
		CertaintyScore:      certainty,
		FinalClassification: final,
	}, nil
}
