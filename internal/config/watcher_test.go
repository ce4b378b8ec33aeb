package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mcpgateway/internal/config"
)

func writeConfig(t *testing.T, path, logLevel string) {
	t.Helper()
	data := []byte("gateway:\n  log_level: " + logLevel + "\nbackends: {}\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestWatcherLoadsInitialConfig(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/gateway.yaml"
	writeConfig(t, path, "info")

	w, err := config.NewWatcher(path, nil, config.WithInterval(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	assert.Equal(t, "info", w.Current().Gateway.LogLevel)
}

func TestWatcherReloadsOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/gateway.yaml"
	writeConfig(t, path, "info")

	var callbackOld, callbackNew *config.Config
	done := make(chan struct{})
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		callbackOld, callbackNew = old, new
		close(done)
	}, config.WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	time.Sleep(15 * time.Millisecond)
	writeConfig(t, path, "debug")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}

	assert.Equal(t, "info", callbackOld.Gateway.LogLevel)
	assert.Equal(t, "debug", callbackNew.Gateway.LogLevel)
	assert.Equal(t, "debug", w.Current().Gateway.LogLevel)
}

func TestWatcherKeepsPreviousConfigOnMalformedReload(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/gateway.yaml"
	writeConfig(t, path, "info")

	w, err := config.NewWatcher(path, nil, config.WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  log_level: nonsense\nbackends: {}\n"), 0o644))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, "info", w.Current().Gateway.LogLevel)
}
