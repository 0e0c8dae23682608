package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/config"
	"github.com/xxxsen/mdesk/internal/filestore"
	"github.com/xxxsen/mdesk/internal/handler"
	"github.com/xxxsen/mdesk/internal/middleware"
)

func runServer(ctx context.Context, cfg *config.Config) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.String("addr", addr),
		zap.String("docs_dir", cfg.Server.DocsDir),
		zap.String("file_store", cfg.Server.FileStore.Type),
	)

	store, err := filestore.New(cfg.Server.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	deps := handler.RouterDeps{
		Convert:        handler.NewConvertHandler(cfg.Server.MaxUpload),
		Images:         handler.NewImageHandler(store, cfg.Server.MaxUpload),
		Documents:      handler.NewDocumentHandler(cfg.Server.DocsDir),
		Files:          handler.NewFileHandler(store),
		UploadInterval: time.Duration(cfg.Server.UploadInterval) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.Server.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
