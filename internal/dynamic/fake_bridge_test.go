package dynamic

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"whiterabbit/internal/adb"
)

// fakeBridge is a scripted DeviceBridge. Capture commands write canned
// content into the sink and spawn a short sleeper so the Handle's
// interrupt/wait path is exercised for real.
type fakeBridge struct {
	mu       sync.Mutex
	shellLog []string
	pushLog  []string
	startLog []string

	connected    bool
	shellFn      func(cmd string) (adb.ExecResult, error)
	pushFn       func(local, remote string) error
	pullFn       func(remote, local string) error
	installErr   error
	uninstallErr error
	uninstalled  []string
	pkgInstalled bool
	pkgErr       error
	pid          string
	pidOK        bool
	launchErr    error
	launched     []string
	captures     map[string]string // command substring -> sink content
	startErr     error
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{connected: true, captures: make(map[string]string)}
}

func (f *fakeBridge) Connected(ctx context.Context) bool { return f.connected }

func (f *fakeBridge) Shell(ctx context.Context, command string) (adb.ExecResult, error) {
	f.mu.Lock()
	f.shellLog = append(f.shellLog, command)
	f.mu.Unlock()
	if f.shellFn != nil {
		return f.shellFn(command)
	}
	return adb.ExecResult{}, nil
}

func (f *fakeBridge) Push(ctx context.Context, local, remote string) error {
	f.mu.Lock()
	f.pushLog = append(f.pushLog, local+" -> "+remote)
	f.mu.Unlock()
	if f.pushFn != nil {
		return f.pushFn(local, remote)
	}
	return nil
}

func (f *fakeBridge) Pull(ctx context.Context, remote, local string) error {
	if f.pullFn != nil {
		return f.pullFn(remote, local)
	}
	return os.WriteFile(local, nil, 0644)
}

func (f *fakeBridge) Install(ctx context.Context, apkPath string) error { return f.installErr }

func (f *fakeBridge) Uninstall(ctx context.Context, pkg string) error {
	f.mu.Lock()
	f.uninstalled = append(f.uninstalled, pkg)
	f.mu.Unlock()
	return f.uninstallErr
}

func (f *fakeBridge) PackageInstalled(ctx context.Context, pkg string) (bool, error) {
	return f.pkgInstalled, f.pkgErr
}

func (f *fakeBridge) Pidof(ctx context.Context, pkg string) (string, bool) {
	return f.pid, f.pidOK
}

func (f *fakeBridge) LaunchMonkey(ctx context.Context, pkg string) error {
	f.mu.Lock()
	f.launched = append(f.launched, pkg)
	f.mu.Unlock()
	return f.launchErr
}

func (f *fakeBridge) StartShell(command string, sink io.Writer) (*exec.Cmd, error) {
	f.mu.Lock()
	f.startLog = append(f.startLog, command)
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}

	for substr, content := range f.captures {
		if strings.Contains(command, substr) {
			io.WriteString(sink, content)
			break
		}
	}

	cmd := exec.Command("sleep", "10")
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (f *fakeBridge) shellCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.shellLog...)
}

func (f *fakeBridge) startCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.startLog...)
}

func (f *fakeBridge) pushes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pushLog...)
}
