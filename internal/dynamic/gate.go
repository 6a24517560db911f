package dynamic

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"whiterabbit/internal/logging"
)

// ErrPrecondition marks unrecoverable environment failures: missing
// host tooling or no reachable device. Callers abort before any stage
// runs when Gate.Run returns an error wrapping it.
var ErrPrecondition = errors.New("precondition failed")

// GateConfig describes what the dependency gate verifies and where it
// provisions missing on-device tools from.
type GateConfig struct {
	HostTools     []string // must resolve on PATH
	DeviceTools   []string // must resolve via `which` on the device
	ToolSourceDir string   // host dir: <dir>/<tool>/src/<tool> binaries
	DeviceToolDir string   // usually /data/local/tmp
	RuntimeLib    string   // optional libc++_shared.so pushed first
}

// Gate verifies host and device tooling before a run. Idempotent:
// when everything is present it performs only read checks.
type Gate struct {
	bridge DeviceBridge
	cfg    GateConfig

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
}

// NewGate creates a dependency gate over the given bridge.
func NewGate(bridge DeviceBridge, cfg GateConfig) *Gate {
	if cfg.DeviceToolDir == "" {
		cfg.DeviceToolDir = "/data/local/tmp"
	}
	return &Gate{bridge: bridge, cfg: cfg, lookPath: exec.LookPath}
}

// CheckHost returns the subset of tools not found on the host PATH.
func (g *Gate) CheckHost(tools []string) []string {
	var missing []string
	for _, tool := range tools {
		if _, err := g.lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}

// CheckDeviceConnected reports device reachability.
func (g *Gate) CheckDeviceConnected(ctx context.Context) bool {
	return g.bridge.Connected(ctx)
}

// CheckDeviceTools returns the subset of tools `which` cannot resolve
// on the device. Tools already provisioned under DeviceToolDir count
// as present.
func (g *Gate) CheckDeviceTools(ctx context.Context, tools []string) []string {
	var missing []string
	for _, tool := range tools {
		if g.deviceToolPresent(ctx, tool) {
			continue
		}
		missing = append(missing, tool)
	}
	return missing
}

func (g *Gate) deviceToolPresent(ctx context.Context, tool string) bool {
	res, err := g.bridge.Shell(ctx, "which "+tool)
	if err == nil && strings.Contains(res.Stdout, tool) {
		return true
	}
	provisioned := g.cfg.DeviceToolDir + "/" + tool
	res, err = g.bridge.Shell(ctx, "ls "+provisioned)
	return err == nil && !strings.Contains(res.Stdout, "No such file")
}

// Provision pushes missing device tools (and the runtime library, when
// configured) to DeviceToolDir and marks them executable. A failure
// for an individual tool is logged and that tool skipped: some
// channels stay usable without it. Only a runtime library failure is
// returned as an error, since every provisioned tool links against it.
func (g *Gate) Provision(ctx context.Context, missing []string) error {
	if g.cfg.RuntimeLib != "" {
		target := g.cfg.DeviceToolDir + "/" + filepath.Base(g.cfg.RuntimeLib)
		if err := g.pushExecutable(ctx, g.cfg.RuntimeLib, target); err != nil {
			return fmt.Errorf("provision runtime library: %w", err)
		}
		logging.Deps("runtime library pushed to %s", target)
	}

	for _, tool := range missing {
		src := filepath.Join(g.cfg.ToolSourceDir, tool, "src", tool)
		target := g.cfg.DeviceToolDir + "/" + tool
		if err := g.pushExecutable(ctx, src, target); err != nil {
			logging.DepsWarn("skipping %s: %v", tool, err)
			continue
		}
		logging.Deps("%s provisioned at %s", tool, target)
	}
	return nil
}

func (g *Gate) pushExecutable(ctx context.Context, local, remote string) error {
	if err := g.bridge.Push(ctx, local, remote); err != nil {
		return err
	}
	if _, err := g.bridge.Shell(ctx, "chmod 755 "+remote); err != nil {
		return fmt.Errorf("chmod %s: %w", remote, err)
	}
	return nil
}

// Run performs the full gate sequence. Missing host tools or an
// unreachable device are returned as errors wrapping ErrPrecondition;
// missing device tools trigger provisioning but never abort.
func (g *Gate) Run(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryDeps, "dependency gate")
	defer timer.Stop()

	if missing := g.CheckHost(g.cfg.HostTools); len(missing) > 0 {
		return fmt.Errorf("%w: missing host tools: %s", ErrPrecondition, strings.Join(missing, ", "))
	}
	logging.Deps("all required host tools present")

	if !g.CheckDeviceConnected(ctx) {
		return fmt.Errorf("%w: no device connected", ErrPrecondition)
	}
	logging.Deps("device connected")

	missing := g.CheckDeviceTools(ctx, g.cfg.DeviceTools)
	if len(missing) == 0 {
		logging.Deps("all required device tools present")
		return nil
	}

	logging.DepsWarn("missing device tools: %s", strings.Join(missing, ", "))
	if err := g.Provision(ctx, missing); err != nil {
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	return nil
}
