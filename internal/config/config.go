package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

const (
	SyncPolicyTimestamp = "timestamp"
	SyncPolicyRemote    = "remote"
	SyncPolicyManual    = "manual"
)

type Config struct {
	LogConfig logger.LogConfig `json:"log_config"`
	Workspace WorkspaceConfig  `json:"workspace"`
	Remote    RemoteConfig     `json:"remote"`
	Import    ImportConfig     `json:"import"`
	Sync      SyncConfig       `json:"sync"`
	Server    ServerConfig     `json:"server"`
}

type WorkspaceConfig struct {
	Surface SurfaceConfig `json:"surface"`
}

type SurfaceConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type RemoteConfig struct {
	BaseURL string `json:"base_url"`
	Timeout int64  `json:"timeout"`
}

type ImportConfig struct {
	MaxBytes int64 `json:"max_bytes"`
}

type SyncConfig struct {
	Policy            string   `json:"policy"`
	Cron              string   `json:"cron"`
	Paths             []string `json:"paths"`
	MetadataCacheSize int      `json:"metadata_cache_size"`
	MetadataCacheTTL  int64    `json:"metadata_cache_ttl"`
}

type ServerConfig struct {
	Port           int             `json:"port"`
	DocsDir        string          `json:"docs_dir"`
	MaxUpload      int64           `json:"max_upload"`
	UploadInterval int64           `json:"upload_interval_ms"`
	CORSOrigins    []string        `json:"cors_origins"`
	FileStore      FileStoreConfig `json:"file_store"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config usable without a file: sqlite surface in the
// working directory, no remote.
func Default() *Config {
	cfg := &Config{}
	cfg.LogConfig.Console = true
	_ = cfg.normalize()
	return cfg
}

func (c *Config) normalize() error {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	c.Workspace.Surface.Type = strings.ToLower(strings.TrimSpace(c.Workspace.Surface.Type))
	if c.Workspace.Surface.Type == "" {
		c.Workspace.Surface.Type = "sqlite"
	}
	switch c.Workspace.Surface.Type {
	case "sqlite":
		if c.Workspace.Surface.Data == nil {
			c.Workspace.Surface.Data = map[string]interface{}{"path": "mdesk.db"}
		}
	case "postgres":
		if c.Workspace.Surface.Data == nil {
			return fmt.Errorf("workspace.surface.data is required for postgres surface")
		}
	case "memory":
	default:
		return fmt.Errorf("workspace.surface.type must be sqlite, postgres or memory")
	}

	c.Remote.BaseURL = strings.TrimSpace(c.Remote.BaseURL)
	if c.Remote.BaseURL != "" {
		u, err := url.Parse(c.Remote.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("remote.base_url is invalid: %q", c.Remote.BaseURL)
		}
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 30
	}
	if c.Import.MaxBytes <= 0 {
		c.Import.MaxBytes = 32 * 1024 * 1024
	}

	c.Sync.Policy = strings.ToLower(strings.TrimSpace(c.Sync.Policy))
	if c.Sync.Policy == "" {
		c.Sync.Policy = SyncPolicyTimestamp
	}
	switch c.Sync.Policy {
	case SyncPolicyTimestamp, SyncPolicyRemote, SyncPolicyManual:
	default:
		return fmt.Errorf("sync.policy must be timestamp, remote or manual")
	}
	if c.Sync.Cron == "" {
		c.Sync.Cron = "*/5 * * * *"
	}
	if c.Sync.MetadataCacheSize <= 0 {
		c.Sync.MetadataCacheSize = 128
	}
	if c.Sync.MetadataCacheTTL <= 0 {
		c.Sync.MetadataCacheTTL = 30
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.DocsDir == "" {
		c.Server.DocsDir = "docs"
	}
	if c.Server.MaxUpload <= 0 {
		c.Server.MaxUpload = 20 * 1024 * 1024
	}
	if c.Server.UploadInterval < 0 {
		c.Server.UploadInterval = 0
	}
	if c.Server.FileStore.Type == "" {
		c.Server.FileStore.Type = "local"
	}
	switch c.Server.FileStore.Type {
	case "local":
		if c.Server.FileStore.Data == nil {
			c.Server.FileStore.Data = map[string]interface{}{"dir": "uploads"}
		}
	case "s3":
		if c.Server.FileStore.Data == nil {
			return fmt.Errorf("server.file_store.data is required for s3 store")
		}
	default:
		return fmt.Errorf("server.file_store.type must be local or s3")
	}
	return nil
}
