package dynamic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionLaysOutRunDirectory(t *testing.T) {
	root := t.TempDir()
	sess, err := NewSession(root, "com.example.app", "")
	require.NoError(t, err)

	info, err := os.Stat(sess.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, root, filepath.Dir(sess.Dir))

	for _, p := range []string{sess.LogcatFile, sess.StraceFile, sess.FSMonFile, sess.PcapFile, sess.TrafficLog, sess.FeaturesJSON} {
		assert.Equal(t, sess.Dir, filepath.Dir(p))
	}
	assert.True(t, strings.HasPrefix(sess.StraceRemote, "/data/local/tmp/"))
	assert.True(t, strings.HasPrefix(sess.PcapRemote, "/data/local/tmp/"))
}

func TestInstallNoopWithoutAPK(t *testing.T) {
	bridge := newFakeBridge()
	sess, err := NewSession(t.TempDir(), "com.example.app", "")
	require.NoError(t, err)

	require.NoError(t, sess.Install(context.Background(), bridge))
	assert.Empty(t, bridge.uninstalled)
}

func TestInstallMissingAPKIsFatal(t *testing.T) {
	bridge := newFakeBridge()
	sess, err := NewSession(t.TempDir(), "com.example.app", "/nonexistent/sample.apk")
	require.NoError(t, err)

	assert.Error(t, sess.Install(context.Background(), bridge))
}

func TestInstallUninstallsExistingCopyFirst(t *testing.T) {
	apk := filepath.Join(t.TempDir(), "sample.apk")
	require.NoError(t, os.WriteFile(apk, []byte("PK"), 0644))

	bridge := newFakeBridge()
	bridge.pkgInstalled = true

	sess, err := NewSession(t.TempDir(), "com.example.app", apk)
	require.NoError(t, err)

	require.NoError(t, sess.Install(context.Background(), bridge))
	assert.Equal(t, []string{"com.example.app"}, bridge.uninstalled)
}

func TestInstallFailureIsFatal(t *testing.T) {
	apk := filepath.Join(t.TempDir(), "sample.apk")
	require.NoError(t, os.WriteFile(apk, []byte("PK"), 0644))

	bridge := newFakeBridge()
	bridge.installErr = errors.New("INSTALL_FAILED_INSUFFICIENT_STORAGE")

	sess, err := NewSession(t.TempDir(), "com.example.app", apk)
	require.NoError(t, err)

	assert.Error(t, sess.Install(context.Background(), bridge))
}

func TestLaunchToleratesMissingPackage(t *testing.T) {
	bridge := newFakeBridge()
	bridge.pkgInstalled = false

	sess, err := NewSession(t.TempDir(), "com.example.app", "")
	require.NoError(t, err)

	sess.Launch(context.Background(), bridge)
	assert.Empty(t, bridge.launched)
}

func TestLaunchToleratesMonkeyFailure(t *testing.T) {
	bridge := newFakeBridge()
	bridge.pkgInstalled = true
	bridge.launchErr = errors.New("monkey aborted")

	sess, err := NewSession(t.TempDir(), "com.example.app", "")
	require.NoError(t, err)

	// must not panic or block; monitoring proceeds without the app
	sess.Launch(context.Background(), bridge)
	assert.Equal(t, []string{"com.example.app"}, bridge.launched)
}
