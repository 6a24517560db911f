// Package dynamic implements the time-boxed behavioral monitoring
// pipeline: dependency gate, device/app session lifecycle, four timed
// capture stages, and the shared feature aggregate they write into.
package dynamic

import (
	"context"
	"io"
	"os/exec"

	"whiterabbit/internal/adb"
)

// DeviceBridge is the slice of the adb bridge the pipeline needs.
// Tests substitute a scripted fake.
type DeviceBridge interface {
	Connected(ctx context.Context) bool
	Shell(ctx context.Context, command string) (adb.ExecResult, error)
	Push(ctx context.Context, local, remote string) error
	Pull(ctx context.Context, remote, local string) error
	Install(ctx context.Context, apkPath string) error
	Uninstall(ctx context.Context, pkg string) error
	PackageInstalled(ctx context.Context, pkg string) (bool, error)
	Pidof(ctx context.Context, pkg string) (string, bool)
	LaunchMonkey(ctx context.Context, pkg string) error
	StartShell(command string, sink io.Writer) (*exec.Cmd, error)
}

var _ DeviceBridge = (*adb.Bridge)(nil)
