package cli

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Auto-Bike/frontend/internal/sim"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSim(t *testing.T) (*sim.Server, string) {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := sim.NewServer(sim.DefaultScenario(), logrus.NewEntry(l))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`backend-url: %s
bike-id: bike1
log:
  output: file
  file: %s
`, ts.URL, filepath.Join(dir, "bikepilot.log"))
	configPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return s, configPath
}

func execute(configPath string, args ...string) error {
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	return rootCmd.ExecuteContext(context.Background())
}

func TestSendMovesSimulatedBike(t *testing.T) {
	s, cfg := startSim(t)
	before, ok := s.Fleet().Get("bike1")
	require.True(t, ok)

	require.NoError(t, execute(cfg, "send", "forward", "--speed", "100"))

	after, _ := s.Fleet().Get("bike1")
	assert.Greater(t, after.Position.Lat, before.Position.Lat)
	assert.Equal(t, "forward", after.LastCommand)
}

func TestSendRejectsUnknownCommand(t *testing.T) {
	_, cfg := startSim(t)
	err := execute(cfg, "send", "wheelie")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wheelie")
}

func TestGPSOnce(t *testing.T) {
	s, cfg := startSim(t)
	require.NoError(t, execute(cfg, "gps"))

	b, _ := s.Fleet().Get("bike1")
	assert.Equal(t, 1, b.GPSReads)
}

func TestConnect(t *testing.T) {
	s, cfg := startSim(t)
	require.NoError(t, execute(cfg, "connect"))

	b, _ := s.Fleet().Get("bike1")
	assert.True(t, b.Connected)
}
