package adb

import (
	"fmt"
	"os/exec"
	"syscall"

	"whiterabbit/internal/logging"
)

// Emulator starts the configured emulator command in its directory.
// The command is run through the shell because emulator launch lines
// typically carry avd flags and redirections.
type Emulator struct {
	Dir     string
	Command string
}

// Start launches the emulator process. The returned command has been
// started but not waited on; callers should follow up with
// Bridge.WaitForBoot to know when the device is usable.
func (e *Emulator) Start() (*exec.Cmd, error) {
	if e.Command == "" {
		return nil, fmt.Errorf("no emulator command configured")
	}

	cmd := exec.Command("sh", "-c", e.Command)
	cmd.Dir = e.Dir
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start emulator: %w", err)
	}

	logging.Emulator("emulator started (pid %d): %s", cmd.Process.Pid, e.Command)
	return cmd, nil
}

// Running reports whether the started emulator process is still alive.
func Running(cmd *exec.Cmd) bool {
	if cmd == nil || cmd.Process == nil {
		return false
	}
	return cmd.Process.Signal(syscall.Signal(0)) == nil
}
