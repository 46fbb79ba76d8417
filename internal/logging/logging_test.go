package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFileOutput(t *testing.T) {
	t.Cleanup(func() { Logger = newDefault() })

	path := filepath.Join(t.TempDir(), "nested", "console.log")
	closer, err := Init(Config{Level: "debug", Format: FormatJSON, Output: OutputFile, File: path})
	require.NoError(t, err)

	For("poller").Debug("tick")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"poller"`)
	assert.Contains(t, string(data), `"message":"tick"`)
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
}

func TestInitRejectsBadValues(t *testing.T) {
	t.Cleanup(func() { Logger = newDefault() })

	_, err := Init(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = Init(Config{Format: "xml"})
	assert.Error(t, err)

	_, err = Init(Config{Output: "syslog"})
	assert.Error(t, err)
}

func TestDefaultFileHonoursXDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/state")
	assert.Equal(t, "/var/state/bikepilot/bikepilot.log", DefaultFile())
}
