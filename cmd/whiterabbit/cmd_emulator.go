package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"whiterabbit/internal/adb"
)

// emulatorCmd starts the configured emulator and waits for boot.
var emulatorCmd = &cobra.Command{
	Use:   "emulator",
	Short: "Start the configured emulator and wait for it to boot",
	Long: `Launches the emulator command from the configuration and polls the
device until sys.boot_completed is set or the boot timeout elapses.
The emulator process keeps running after this command returns.`,
	RunE: runEmulator,
}

func runEmulator(cmd *cobra.Command, args []string) error {
	if cfg.Emulator.Command == "" {
		return fmt.Errorf("emulator.command is not configured")
	}

	ctx, cancel := signalContext()
	defer cancel()

	emu := &adb.Emulator{Dir: cfg.Emulator.Dir, Command: cfg.Emulator.Command}
	proc, err := emu.Start()
	if err != nil {
		return err
	}
	logger.Info("Emulator process started", zap.Int("pid", proc.Process.Pid))

	bridge := newBridge()
	if err := bridge.WaitForBoot(ctx, cfg.Emulator.BootTimeoutDuration(), cfg.Emulator.PollIntervalDuration()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Emulator booted")
	return nil
}
