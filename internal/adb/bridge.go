// Package adb wraps the Android Debug Bridge command line tool.
// All device control in whiterabbit (enumeration, install, shell
// execution, file transfer, process lookup) goes through a Bridge so
// the monitoring core never spawns adb directly.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"whiterabbit/internal/logging"
)

// ExecResult captures one adb invocation.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Bridge invokes the adb binary against one device.
type Bridge struct {
	path    string
	serial  string // optional -s target
	timeout time.Duration

	// Install retry policy. The original flow retried installs
	// indefinitely; this is the bounded replacement.
	installAttempts int
	installBackoff  time.Duration
}

// New creates a Bridge for the given adb binary and device serial.
// An empty serial targets the only connected device.
func New(path, serial string, timeout time.Duration) *Bridge {
	if path == "" {
		path = "adb"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Bridge{
		path:            path,
		serial:          serial,
		timeout:         timeout,
		installAttempts: 3,
		installBackoff:  15 * time.Second,
	}
}

// args prepends the serial selector when configured.
func (b *Bridge) args(rest ...string) []string {
	if b.serial == "" {
		return rest
	}
	return append([]string{"-s", b.serial}, rest...)
}

// run executes one adb invocation with the bridge timeout.
func (b *Bridge) run(ctx context.Context, rest ...string) (ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, b.path, b.args(rest...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	logging.DeviceDebug("adb %s -> exit=%d dur=%v", strings.Join(rest, " "), res.ExitCode, res.Duration)

	if err != nil {
		return res, fmt.Errorf("adb %s: %w (stderr: %s)", strings.Join(rest, " "), err, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// Devices returns the serials of connected devices in "device" state.
func (b *Bridge) Devices(ctx context.Context) ([]string, error) {
	res, err := b.run(ctx, "devices")
	if err != nil {
		return nil, err
	}

	var serials []string
	for i, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if i == 0 {
			continue // header line
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials, nil
}

// Connected reports whether at least one device is reachable.
func (b *Bridge) Connected(ctx context.Context) bool {
	serials, err := b.Devices(ctx)
	if err != nil {
		logging.Device("device connection check failed: %v", err)
		return false
	}
	return len(serials) > 0
}

// Shell runs a command string through adb shell.
func (b *Bridge) Shell(ctx context.Context, command string) (ExecResult, error) {
	return b.run(ctx, "shell", command)
}

// Push copies a local file to the device.
func (b *Bridge) Push(ctx context.Context, local, remote string) error {
	if _, err := b.run(ctx, "push", local, remote); err != nil {
		return fmt.Errorf("push %s -> %s: %w", local, remote, err)
	}
	return nil
}

// Pull copies a device file back to the host.
func (b *Bridge) Pull(ctx context.Context, remote, local string) error {
	if _, err := b.run(ctx, "pull", remote, local); err != nil {
		return fmt.Errorf("pull %s -> %s: %w", remote, local, err)
	}
	return nil
}

// Install installs an APK, retrying with a fixed backoff up to the
// configured attempt limit.
func (b *Bridge) Install(ctx context.Context, apkPath string) error {
	var lastErr error
	for attempt := 1; attempt <= b.installAttempts; attempt++ {
		if _, lastErr = b.run(ctx, "install", apkPath); lastErr == nil {
			logging.Device("installed %s (attempt %d)", apkPath, attempt)
			return nil
		}
		logging.Device("install attempt %d/%d failed: %v", attempt, b.installAttempts, lastErr)
		if attempt < b.installAttempts {
			select {
			case <-time.After(b.installBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("install %s failed after %d attempts: %w", apkPath, b.installAttempts, lastErr)
}

// Uninstall removes a package from the device.
func (b *Bridge) Uninstall(ctx context.Context, pkg string) error {
	if _, err := b.run(ctx, "uninstall", pkg); err != nil {
		return fmt.Errorf("uninstall %s: %w", pkg, err)
	}
	return nil
}

// PackageInstalled reports whether pkg appears in pm list packages.
func (b *Bridge) PackageInstalled(ctx context.Context, pkg string) (bool, error) {
	res, err := b.Shell(ctx, "pm list packages")
	if err != nil {
		return false, fmt.Errorf("list packages: %w", err)
	}
	return strings.Contains(res.Stdout, pkg), nil
}

// Pidof resolves the process id of a running package. ok is false when
// the application is not running.
func (b *Bridge) Pidof(ctx context.Context, pkg string) (string, bool) {
	res, err := b.Shell(ctx, "pidof "+pkg)
	if err != nil {
		logging.Device("pidof %s failed: %v", pkg, err)
		return "", false
	}
	pid := strings.TrimSpace(res.Stdout)
	if pid == "" {
		return "", false
	}
	// pidof can report several pids for multi-process apps; trace the first.
	if i := strings.IndexByte(pid, ' '); i > 0 {
		pid = pid[:i]
	}
	return pid, true
}

// LaunchMonkey launches the package's LAUNCHER activity via monkey.
func (b *Bridge) LaunchMonkey(ctx context.Context, pkg string) error {
	cmd := fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", pkg)
	if _, err := b.Shell(ctx, cmd); err != nil {
		return fmt.Errorf("launch %s: %w", pkg, err)
	}
	return nil
}

// Rooted reports whether the adb shell runs as uid 0.
func (b *Bridge) Rooted(ctx context.Context) bool {
	res, err := b.Shell(ctx, "id")
	if err != nil {
		return false
	}
	return strings.Contains(res.Stdout, "uid=0")
}

// WaitForBoot polls until the device reports sys.boot_completed=1 or
// the timeout elapses. Bounded by construction: one check per interval,
// no recursion.
func (b *Bridge) WaitForBoot(ctx context.Context, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if b.Connected(ctx) {
			res, err := b.Shell(ctx, "getprop sys.boot_completed")
			if err == nil && strings.TrimSpace(res.Stdout) == "1" {
				logging.Emulator("device reported boot completed")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("device did not finish booting within %v", timeout)
		}
		logging.Emulator("device not ready, retrying in %v", interval)
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// StartShell starts a long-running adb shell command with stdout and
// stderr redirected to sink. The returned command has been started but
// not waited on; the caller owns its lifecycle. No timeout is applied:
// capture processes are stopped explicitly by their stage.
func (b *Bridge) StartShell(command string, sink io.Writer) (*exec.Cmd, error) {
	cmd := exec.Command(b.path, b.args("shell", command)...)
	cmd.Stdout = sink
	cmd.Stderr = sink
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start adb shell %q: %w", command, err)
	}
	logging.Device("started capture process: adb shell %s (pid %d)", command, cmd.Process.Pid)
	return cmd, nil
}
