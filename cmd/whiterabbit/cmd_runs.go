package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"whiterabbit/internal/report"
)

var runsLimit int

// runsCmd lists and shows persisted run records.
var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List persisted analysis runs or show one in full",
	Long: `Without arguments, lists the most recent runs. With a run id,
renders the full report for that run, including the fused verdict when
one has been attached.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
}

func runRuns(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		rec, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		return report.Render(out, report.RunInfo{
			Package:    rec.Package,
			RunID:      rec.ID,
			RunDir:     rec.RunDir,
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
			Features:   rec.Features,
			Degraded:   rec.Degraded,
			Outcome:    rec.Fusion,
		})
	}

	records, err := db.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	for _, rec := range records {
		verdict := "-"
		if rec.Fusion != nil {
			verdict = string(rec.Fusion.FinalClassification)
		}
		fmt.Fprintf(out, "%s  %-24s  %s  features=%d  verdict=%s\n",
			rec.StartedAt.Format("2006-01-02 15:04:05"), rec.Package, rec.ID, len(rec.Features), verdict)
	}
	return nil
}
