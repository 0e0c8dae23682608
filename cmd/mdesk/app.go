package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/config"
	"github.com/xxxsen/mdesk/internal/editor"
	"github.com/xxxsen/mdesk/internal/gateway"
	"github.com/xxxsen/mdesk/internal/importer"
	"github.com/xxxsen/mdesk/internal/kv"
	"github.com/xxxsen/mdesk/internal/model"
	"github.com/xxxsen/mdesk/internal/notify"
	"github.com/xxxsen/mdesk/internal/remote"
	"github.com/xxxsen/mdesk/internal/syncer"
	"github.com/xxxsen/mdesk/internal/workspace"
)

const configEnv = "MDESK_CONFIG"

// loadConfig reads --config, falling back to MDESK_CONFIG (a .env file in
// the working directory is honoured) and finally to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	_ = godotenv.Load()
	if path == "" {
		path = strings.TrimSpace(os.Getenv(configEnv))
	}
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(path); err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Debug("config loaded", zap.String("config", path), zap.String("surface", cfg.Workspace.Surface.Type))
	return cfg, nil
}

type app struct {
	cfg      *config.Config
	surface  kv.Surface
	buffer   *editor.Buffer
	notifier notify.Notifier
	store    *workspace.Store
	client   *remote.Client
	shown    *model.Document
	refresh  <-chan struct{}
	stop     func()
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	surface, err := kv.New(cfg.Workspace.Surface)
	if err != nil {
		return nil, fmt.Errorf("open workspace surface: %w", err)
	}
	buffer := editor.NewBuffer("")
	notifier := notify.NewLogNotifier()
	store, err := workspace.New(ctx, workspace.Options{Surface: surface, Editor: buffer, Notifier: notifier})
	if err != nil {
		_ = surface.Close()
		return nil, err
	}
	a := &app{cfg: cfg, surface: surface, buffer: buffer, notifier: notifier, store: store}
	a.refresh, a.stop = store.Subscribe()
	a.reloadEditor()
	if cfg.Remote.BaseURL != "" {
		a.client, err = remote.New(cfg.Remote.BaseURL, time.Duration(cfg.Remote.Timeout)*time.Second)
		if err != nil {
			_ = surface.Close()
			return nil, err
		}
	}
	return a, nil
}

// reloadEditor shows the current document in the editor buffer.
func (a *app) reloadEditor() {
	current := a.store.Current()
	a.shown = current
	if current != nil {
		a.buffer.SetText(current.Body)
	}
}

// settle reloads the editor when a refresh is pending or the current
// document changed under it, then pulls editor text into the current
// document.
func (a *app) settle() {
	select {
	case <-a.refresh:
		a.reloadEditor()
	default:
		if a.store.Current() != a.shown {
			a.reloadEditor()
		}
	}
	a.store.CurrentBody()
}

// close flushes the workspace before releasing the surface.
func (a *app) close(ctx context.Context) {
	a.settle()
	a.stop()
	if err := a.store.Flush(ctx); err != nil {
		logutil.GetLogger(ctx).Error("flush workspace failed", zap.Error(err))
	}
	if err := a.surface.Close(); err != nil {
		logutil.GetLogger(ctx).Error("close workspace surface failed", zap.Error(err))
	}
}

func (a *app) requireRemote() error {
	if a.client == nil {
		return fmt.Errorf("remote.base_url is not configured")
	}
	return nil
}

func (a *app) pipeline() *importer.Pipeline {
	c := importer.Config{Store: a.store, Notifier: a.notifier, MaxBytes: a.cfg.Import.MaxBytes}
	if a.client != nil {
		c.Converter = gateway.NewConverter(a.client, a.store, a.notifier)
		c.Uploader = gateway.NewUploader(a.client, a.store, a.notifier)
	}
	return importer.New(c)
}

func (a *app) syncEngine() (*syncer.Engine, error) {
	if err := a.requireRemote(); err != nil {
		return nil, err
	}
	src := syncer.WrapMetadataCache(a.client, a.cfg.Sync.MetadataCacheSize, time.Duration(a.cfg.Sync.MetadataCacheTTL)*time.Second)
	return syncer.New(syncer.Options{Store: a.store, Remote: src, Policy: a.cfg.Sync.Policy})
}
