package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "sqlite", cfg.Workspace.Surface.Type)
	require.Equal(t, map[string]interface{}{"path": "mdesk.db"}, cfg.Workspace.Surface.Data)
	require.Equal(t, int64(30), cfg.Remote.Timeout)
	require.Equal(t, int64(32*1024*1024), cfg.Import.MaxBytes)
	require.Equal(t, SyncPolicyTimestamp, cfg.Sync.Policy)
	require.Equal(t, "*/5 * * * *", cfg.Sync.Cron)
	require.Equal(t, 128, cfg.Sync.MetadataCacheSize)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "local", cfg.Server.FileStore.Type)
}

func TestLoadExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"workspace": {"surface": {"type": "Memory"}},
		"remote": {"base_url": "http://localhost:8080/", "timeout": 5},
		"sync": {"policy": "manual", "paths": ["notes/a.md"]},
		"server": {"upload_interval_ms": 1500, "cors_origins": ["https://editor.example"]}
	}`))
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Workspace.Surface.Type)
	require.Equal(t, "http://localhost:8080/", cfg.Remote.BaseURL)
	require.Equal(t, int64(5), cfg.Remote.Timeout)
	require.Equal(t, SyncPolicyManual, cfg.Sync.Policy)
	require.Equal(t, []string{"notes/a.md"}, cfg.Sync.Paths)
	require.Equal(t, int64(1500), cfg.Server.UploadInterval)
	require.Equal(t, []string{"https://editor.example"}, cfg.Server.CORSOrigins)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad surface", content: `{"workspace": {"surface": {"type": "redis"}}}`},
		{name: "postgres without data", content: `{"workspace": {"surface": {"type": "postgres"}}}`},
		{name: "bad base url", content: `{"remote": {"base_url": "not a url"}}`},
		{name: "bad policy", content: `{"sync": {"policy": "newest"}}`},
		{name: "s3 without data", content: `{"server": {"file_store": {"type": "s3"}}}`},
		{name: "bad store", content: `{"server": {"file_store": {"type": "ftp"}}}`},
		{name: "not json", content: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.LogConfig.Console)
	require.Equal(t, "sqlite", cfg.Workspace.Surface.Type)
	require.Empty(t, cfg.Remote.BaseURL)
}
