package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"whiterabbit/internal/fusion"
	"whiterabbit/internal/static"
)

var (
	fuseStaticFile  string
	fuseDynamicFile string
	fuseStaticClass string
	fuseStaticConf  float64
	fuseDynClass    string
	fuseDynConf     float64
	fuseRunID       string
)

// fuseCmd combines a static and a dynamic classifier result.
var fuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Fuse static and dynamic classifier results into a verdict",
	Long: `Combines two (classification, confidence) pairs with the configured
weights and prints the fused verdict. Inputs come either from JSON
files or directly from flags; with --run the verdict is also attached
to the persisted run record.

Examples:
  whiterabbit fuse --static-result static.json --dynamic-result dynamic.json
  whiterabbit fuse --static-class malicious --static-confidence 0.9 \
    --dynamic-class malicious --dynamic-confidence 0.8 --run <run-id>`,
	RunE: runFuse,
}

func init() {
	fuseCmd.Flags().StringVar(&fuseStaticFile, "static-result", "", "Static classifier result JSON")
	fuseCmd.Flags().StringVar(&fuseDynamicFile, "dynamic-result", "", "Dynamic classifier result JSON")
	fuseCmd.Flags().StringVar(&fuseStaticClass, "static-class", "", "Static classification (benign|malicious)")
	fuseCmd.Flags().Float64Var(&fuseStaticConf, "static-confidence", -1, "Static confidence in [0,1]")
	fuseCmd.Flags().StringVar(&fuseDynClass, "dynamic-class", "", "Dynamic classification (benign|malicious)")
	fuseCmd.Flags().Float64Var(&fuseDynConf, "dynamic-confidence", -1, "Dynamic confidence in [0,1]")
	fuseCmd.Flags().StringVar(&fuseRunID, "run", "", "Attach the verdict to this persisted run")
}

// loadSide resolves one classifier result from a file or flag pair.
func loadSide(file, class string, conf float64, side string) (fusion.Result, error) {
	if file != "" {
		return static.LoadResult(file)
	}
	if class == "" || conf < 0 {
		return fusion.Result{}, fmt.Errorf("%s result required: give --%s-result or --%s-class with --%s-confidence", side, side, side, side)
	}
	return fusion.Result{Classification: fusion.Classification(class), Confidence: conf}, nil
}

func runFuse(cmd *cobra.Command, args []string) error {
	staticRes, err := loadSide(fuseStaticFile, fuseStaticClass, fuseStaticConf, "static")
	if err != nil {
		return err
	}
	dynamicRes, err := loadSide(fuseDynamicFile, fuseDynClass, fuseDynConf, "dynamic")
	if err != nil {
		return err
	}

	outcome, err := fusion.Fuse(staticRes, dynamicRes, fusion.Weights{
		Dynamic: cfg.Fusion.DynamicWeight,
		Static:  cfg.Fusion.StaticWeight,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Static:                %s (confidence %.2f)\n", staticRes.Classification, staticRes.Confidence)
	fmt.Fprintf(out, "Dynamic:               %s (confidence %.2f)\n", dynamicRes.Classification, dynamicRes.Confidence)
	fmt.Fprintf(out, "Combined Confidence:   %.4f\n", outcome.CombinedProbability)
	fmt.Fprintf(out, "Distance from Neutral: %.2f\n", outcome.CertaintyScore)
	fmt.Fprintf(out, "Final Classification:  %s\n", outcome.FinalClassification)

	if fuseRunID != "" {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.AttachFusion(fuseRunID, outcome); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nVerdict attached to run %s\n", fuseRunID)
	}
	return nil
}
