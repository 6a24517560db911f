package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var depsProvision bool

// depsCmd runs the dependency gate checks without starting a run.
var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Check host and device analysis dependencies",
	Long: `Verifies that the required host tools are on PATH, that a device is
connected, and that the on-device monitoring tools are available.
With --provision, missing device tools are pushed from the configured
tool source directory.`,
	RunE: runDeps,
}

func init() {
	depsCmd.Flags().BoolVar(&depsProvision, "provision", false, "Push missing device tools")
}

func runDeps(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	bridge := newBridge()
	gate := newGate(bridge)
	out := cmd.OutOrStdout()

	if missing := gate.CheckHost(cfg.Analysis.HostTools); len(missing) > 0 {
		return fmt.Errorf("missing host tools: %v", missing)
	}
	fmt.Fprintf(out, "Host tools:   ok (%v)\n", cfg.Analysis.HostTools)

	if !gate.CheckDeviceConnected(ctx) {
		return fmt.Errorf("no device connected")
	}
	fmt.Fprintln(out, "Device:       connected")

	missing := gate.CheckDeviceTools(ctx, cfg.Analysis.DeviceTools)
	if len(missing) == 0 {
		fmt.Fprintf(out, "Device tools: ok (%v)\n", cfg.Analysis.DeviceTools)
		return nil
	}

	fmt.Fprintf(out, "Device tools: missing %v\n", missing)
	if !depsProvision {
		fmt.Fprintln(out, "Run again with --provision to push them")
		return nil
	}

	if err := gate.Provision(ctx, missing); err != nil {
		return err
	}
	fmt.Fprintln(out, "Provisioning complete")
	return nil
}
