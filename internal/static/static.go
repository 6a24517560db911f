// Package static defines the boundary to the static analysis path.
// Feature extraction and model inference live outside this repository;
// the core only consumes their outputs through these interfaces.
package static

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"whiterabbit/internal/fusion"
)

// FeatureVector is the fixed-width indicator vector produced by the
// external APK feature extractor: one 0/1 flag per known permission,
// API call signature, or intent.
type FeatureVector struct {
	Names   []string `json:"names"`
	Present []uint8  `json:"present"`
}

// Len returns the vector width.
func (v *FeatureVector) Len() int { return len(v.Present) }

// Attribution is one entry of a local-interpretability explanation:
// how strongly a feature pushed the verdict.
type Attribution struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Extractor turns an APK into an indicator vector.
type Extractor interface {
	Extract(ctx context.Context, apkPath string) (*FeatureVector, error)
}

// Classifier scores an indicator vector. The confidence in the
// returned result is the probability-of-malicious tail, for both
// verdicts, which is exactly what the fusion engine expects on the
// static side.
type Classifier interface {
	Classify(ctx context.Context, vec *FeatureVector) (fusion.Result, []Attribution, error)
}

// LoadResult reads an externally produced classification result from
// a JSON file, so runs can be fused without an in-process model.
func LoadResult(path string) (fusion.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fusion.Result{}, fmt.Errorf("read static result: %w", err)
	}

	var res fusion.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return fusion.Result{}, fmt.Errorf("parse static result %s: %w", path, err)
	}
	return res, nil
}
