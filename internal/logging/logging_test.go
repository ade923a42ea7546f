package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"pressroom/internal/config"
)

func TestNew(t *testing.T) {
	log, err := New(config.Logging{})
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, log.GetLevel())

	log, err = New(config.Logging{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, log.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	_, err = New(config.Logging{Level: "loud"})
	require.Error(t, err)
	_, err = New(config.Logging{Format: "xml"})
	require.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pressroom.log")
	log, err := New(config.Logging{Level: "info", Format: "json", File: path})
	require.NoError(t, err)
	log.WithField("task_id", 7).Info("task created")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"task_id":7`)
	require.Contains(t, string(data), "task created")
}
