package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultTemplateIsValid(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	require.NoError(t, err)
	require.Equal(t, "/v0", cfg.Server.BasePath)
	require.Equal(t, 24*time.Hour, cfg.Workflow.RecentWindow)
	require.True(t, cfg.Notifications.Log)
	require.Equal(t, 256, cfg.Notifications.QueueSize)
}

func TestValidateRoster(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing caller id", "roster:\n  - outlet: daily-news\n"},
		{"duplicate caller id", "roster:\n  - {caller_id: a, outlet: x}\n  - {caller_id: a, outlet: y}\n"},
		{"super without editor", "roster:\n  - {caller_id: a, super_editor: true}\n"},
		{"no role", "roster:\n  - {caller_id: a}\n"},
		{"webhook without url", "notifications:\n  webhooks:\n    - {secret: s}\n"},
		{"negative queue size", "notifications:\n  queue_size: -1\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"relative base path", "server:\n  base_path: v0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yaml))
			require.Error(t, err)
		})
	}

	cfg, err := FromYAML([]byte("roster:\n  - {caller_id: chief, editor: true, super_editor: true}\n  - {caller_id: tg-2, outlet: daily-news}\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Roster, 2)
}

func TestLoadResolvesWorkspace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("database:\n  workspace: data\n"), 0o644))
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "data"), cfg.Database.Workspace)

	require.NoError(t, os.WriteFile(Path(dir), []byte(GenerateDefault()), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.Database.Workspace)
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.Database.Workspace)

	require.NoError(t, os.WriteFile(Path(dir), []byte("logging:\n  format: xml\n"), 0o644))
	_, err = LoadOptional(dir)
	require.Error(t, err, "an invalid file is not silently replaced by defaults")
}
