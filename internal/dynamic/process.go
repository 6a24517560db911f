package dynamic

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"whiterabbit/internal/logging"
)

// stopGrace is how long Stop waits for a capture process to exit after
// SIGTERM before killing it outright. Keeps the stop tail bounded.
const stopGrace = 5 * time.Second

// Handle supervises one external capture process: an adb shell command
// whose output streams into a local sink file. Stop is safe to call on
// a nil handle and is idempotent, so stages can defer it
// unconditionally even when the spawn failed.
type Handle struct {
	bridge   DeviceBridge
	cmd      *exec.Cmd
	sink     *os.File
	killName string // device-side process name pkill'd on stop

	stopOnce sync.Once
}

// StartCapture opens sinkPath and starts shellCmd on the device with
// output redirected into it. On spawn failure the sink is closed and a
// nil handle is returned; the caller can still defer Stop on it.
func StartCapture(bridge DeviceBridge, shellCmd, sinkPath, killName string) (*Handle, error) {
	sink, err := os.Create(sinkPath)
	if err != nil {
		return nil, fmt.Errorf("create capture sink %s: %w", sinkPath, err)
	}

	cmd, err := bridge.StartShell(shellCmd, sink)
	if err != nil {
		sink.Close()
		return nil, fmt.Errorf("spawn capture process: %w", err)
	}

	return &Handle{
		bridge:   bridge,
		cmd:      cmd,
		sink:     sink,
		killName: killName,
	}, nil
}

// Stop terminates the capture: device-side pkill of the tool, then
// SIGTERM (escalating to SIGKILL after a grace period) on the local
// supervising process, a blocking wait, and finally the sink close.
// Every step runs even when an earlier one fails.
func (h *Handle) Stop(ctx context.Context) {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		if h.killName != "" && h.bridge != nil {
			if _, err := h.bridge.Shell(ctx, "pkill "+h.killName); err != nil {
				logging.StageWarn("pkill %s on device failed: %v", h.killName, err)
			}
		}

		if h.cmd != nil && h.cmd.Process != nil {
			h.terminate()
		}

		if h.sink != nil {
			if err := h.sink.Close(); err != nil {
				logging.StageWarn("closing capture sink: %v", err)
			}
		}
	})
}

// terminate signals the local process and waits for it, escalating to
// a kill if it does not exit within the grace period.
func (h *Handle) terminate() {
	_ = h.cmd.Process.Signal(os.Interrupt)

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(stopGrace):
		logging.StageWarn("capture process %d ignored interrupt, killing", h.cmd.Process.Pid)
		_ = h.cmd.Process.Kill()
		<-done
	}
}

// SinkPath returns the local artifact path the capture writes to.
func (h *Handle) SinkPath() string {
	if h == nil || h.sink == nil {
		return ""
	}
	return h.sink.Name()
}
