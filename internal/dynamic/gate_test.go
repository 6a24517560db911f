package dynamic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiterabbit/internal/adb"
)

// allToolsPresent answers every `which` probe positively.
func allToolsPresent(cmd string) (adb.ExecResult, error) {
	if strings.HasPrefix(cmd, "which ") {
		return adb.ExecResult{Stdout: "/system/bin/" + strings.TrimPrefix(cmd, "which ")}, nil
	}
	return adb.ExecResult{}, nil
}

// noToolsPresent fails `which` and `ls` probes.
func noToolsPresent(cmd string) (adb.ExecResult, error) {
	if strings.HasPrefix(cmd, "which ") {
		return adb.ExecResult{ExitCode: 1}, errors.New("exit status 1")
	}
	if strings.HasPrefix(cmd, "ls ") {
		return adb.ExecResult{Stdout: "No such file or directory"}, nil
	}
	return adb.ExecResult{}, nil
}

func TestGateMissingHostToolIsFatal(t *testing.T) {
	bridge := newFakeBridge()
	g := NewGate(bridge, GateConfig{HostTools: []string{"adb", "tshark"}})
	g.lookPath = func(tool string) (string, error) {
		if tool == "tshark" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + tool, nil
	}

	err := g.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "tshark")
	assert.Empty(t, bridge.shellCommands(), "host failure must abort before device checks")
}

func TestGateNoDeviceIsFatal(t *testing.T) {
	bridge := newFakeBridge()
	bridge.connected = false
	g := NewGate(bridge, GateConfig{})
	g.lookPath = func(string) (string, error) { return "/usr/bin/x", nil }

	err := g.Run(context.Background())
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestGateAllPresentPerformsNoPushes(t *testing.T) {
	bridge := newFakeBridge()
	bridge.shellFn = allToolsPresent
	g := NewGate(bridge, GateConfig{
		HostTools:   []string{"adb"},
		DeviceTools: []string{"strace", "inotifywait", "tcpdump"},
	})
	g.lookPath = func(string) (string, error) { return "/usr/bin/x", nil }

	require.NoError(t, g.Run(context.Background()))
	assert.Empty(t, bridge.pushes())
}

func TestGateProvisionedToolCountsAsPresent(t *testing.T) {
	bridge := newFakeBridge()
	bridge.shellFn = func(cmd string) (adb.ExecResult, error) {
		if strings.HasPrefix(cmd, "which ") {
			return adb.ExecResult{ExitCode: 1}, errors.New("exit status 1")
		}
		// ls of the provisioned path succeeds
		return adb.ExecResult{Stdout: "/data/local/tmp/strace"}, nil
	}
	g := NewGate(bridge, GateConfig{DeviceTools: []string{"strace"}})
	g.lookPath = func(string) (string, error) { return "/usr/bin/x", nil }

	require.NoError(t, g.Run(context.Background()))
	assert.Empty(t, bridge.pushes())
}

func TestGateProvisionsMissingTools(t *testing.T) {
	bridge := newFakeBridge()
	bridge.shellFn = noToolsPresent
	g := NewGate(bridge, GateConfig{
		DeviceTools:   []string{"strace", "tcpdump"},
		ToolSourceDir: "/opt/tools",
		DeviceToolDir: "/data/local/tmp",
		RuntimeLib:    "/opt/tools/libc++_shared.so",
	})
	g.lookPath = func(string) (string, error) { return "/usr/bin/x", nil }

	require.NoError(t, g.Run(context.Background()))

	pushes := bridge.pushes()
	require.Len(t, pushes, 3)
	// runtime library first, then each tool from its src layout
	assert.Equal(t, "/opt/tools/libc++_shared.so -> /data/local/tmp/libc++_shared.so", pushes[0])
	assert.Contains(t, pushes, "/opt/tools/strace/src/strace -> /data/local/tmp/strace")
	assert.Contains(t, pushes, "/opt/tools/tcpdump/src/tcpdump -> /data/local/tmp/tcpdump")

	// each push is followed by a chmod 755
	var chmods int
	for _, cmd := range bridge.shellCommands() {
		if strings.HasPrefix(cmd, "chmod 755 ") {
			chmods++
		}
	}
	assert.Equal(t, 3, chmods)
}

func TestGateProvisionSkipsFailedTool(t *testing.T) {
	bridge := newFakeBridge()
	bridge.shellFn = noToolsPresent
	bridge.pushFn = func(local, remote string) error {
		if strings.Contains(local, "inotifywait") {
			return fmt.Errorf("push rejected")
		}
		return nil
	}
	g := NewGate(bridge, GateConfig{
		DeviceTools:   []string{"strace", "inotifywait"},
		ToolSourceDir: "/opt/tools",
	})
	g.lookPath = func(string) (string, error) { return "/usr/bin/x", nil }

	// an individual tool failure never fails the gate
	require.NoError(t, g.Run(context.Background()))
	assert.Contains(t, bridge.pushes(), "/opt/tools/strace/src/strace -> /data/local/tmp/strace")
}

func TestGateRuntimeLibFailureIsFatal(t *testing.T) {
	bridge := newFakeBridge()
	bridge.shellFn = noToolsPresent
	bridge.pushFn = func(local, remote string) error {
		if strings.Contains(local, "libc++_shared.so") {
			return fmt.Errorf("device storage full")
		}
		return nil
	}
	g := NewGate(bridge, GateConfig{
		DeviceTools: []string{"strace"},
		RuntimeLib:  "/opt/tools/libc++_shared.so",
	})
	g.lookPath = func(string) (string, error) { return "/usr/bin/x", nil }

	err := g.Run(context.Background())
	assert.ErrorIs(t, err, ErrPrecondition)
}
