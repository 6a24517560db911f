package dynamic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"whiterabbit/internal/logging"
)

// launchSettle is how long the session waits after launching the app
// before the first stage begins, matching the original flow.
const launchSettle = 2 * time.Second

// Session ties one analysis run to a target package and a timestamped
// run directory that collects every artifact. It spans from
// install/launch through the end of all stages; teardown leaves the
// app installed.
type Session struct {
	Package string
	APKPath string // optional; empty means the app is already on the device
	Dir     string // run directory on the host

	// Local artifact paths inside Dir.
	LogcatFile   string
	StraceFile   string
	FSMonFile    string
	PcapFile     string
	TrafficLog   string
	FeaturesJSON string

	// Remote artifact paths on the device.
	StraceRemote string
	PcapRemote   string
}

// NewSession creates the timestamped run directory under outputRoot
// and lays out the artifact paths.
func NewSession(outputRoot, pkg, apkPath string) (*Session, error) {
	dir := filepath.Join(outputRoot, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	return &Session{
		Package:      pkg,
		APKPath:      apkPath,
		Dir:          dir,
		LogcatFile:   filepath.Join(dir, "dynamic_analysis_log.txt"),
		StraceFile:   filepath.Join(dir, "strace_output.txt"),
		FSMonFile:    filepath.Join(dir, "filesystem_changes.txt"),
		PcapFile:     filepath.Join(dir, "network_capture.pcap"),
		TrafficLog:   filepath.Join(dir, "traffic_log.txt"),
		FeaturesJSON: filepath.Join(dir, "dynamic_features.json"),
		StraceRemote: "/data/local/tmp/strace_output.txt",
		PcapRemote:   "/data/local/tmp/network_capture.pcap",
	}, nil
}

// Install puts the APK on the device, uninstalling any existing copy
// of the package first. A no-op when no APK path was provided.
func (s *Session) Install(ctx context.Context, bridge DeviceBridge) error {
	if s.APKPath == "" {
		return nil
	}
	if _, err := os.Stat(s.APKPath); err != nil {
		return fmt.Errorf("apk not found at %s: %w", s.APKPath, err)
	}

	installed, err := bridge.PackageInstalled(ctx, s.Package)
	if err != nil {
		return fmt.Errorf("check installed packages: %w", err)
	}
	if installed {
		logging.Device("%s already installed, uninstalling first", s.Package)
		if err := bridge.Uninstall(ctx, s.Package); err != nil {
			return fmt.Errorf("uninstall existing %s: %w", s.Package, err)
		}
	}

	if err := bridge.Install(ctx, s.APKPath); err != nil {
		return err
	}
	return nil
}

// Launch starts the app via monkey and waits for it to settle. Launch
// failures are tolerated: monitoring proceeds, stages that need a
// running target skip themselves.
func (s *Session) Launch(ctx context.Context, bridge DeviceBridge) {
	installed, err := bridge.PackageInstalled(ctx, s.Package)
	if err != nil || !installed {
		logging.StageWarn("%s not installed, proceeding without launch", s.Package)
		return
	}

	if err := bridge.LaunchMonkey(ctx, s.Package); err != nil {
		logging.StageWarn("failed to launch %s: %v", s.Package, err)
		return
	}
	logging.Device("launched %s", s.Package)
	time.Sleep(launchSettle)
}
