package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/model"
	"github.com/xxxsen/mdesk/internal/notify"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
	"github.com/xxxsen/mdesk/internal/sniff"
	"github.com/xxxsen/mdesk/internal/source"
	"github.com/xxxsen/mdesk/internal/workspace"
)

const (
	tipMessage    = "You can also drag and drop files into the editor"
	binaryMessage = "Importing binary files will cause the editor to become unresponsive"

	defaultMaxBytes = 32 * 1024 * 1024
)

type Route string

const (
	RouteNone     Route = ""
	RouteMarkdown Route = "markdown"
	RouteHTML     Route = "html"
	RouteImage    Route = "image"
)

type Options struct {
	ShowTip bool
	IsHTML  bool
}

type HTMLConverter interface {
	Convert(ctx context.Context, html string) error
}

type ImageUploader interface {
	Upload(ctx context.Context, file source.File) error
}

type Pipeline struct {
	store     *workspace.Store
	converter HTMLConverter
	uploader  ImageUploader
	notifier  notify.Notifier
	maxBytes  int64
}

type Config struct {
	Store     *workspace.Store
	Converter HTMLConverter
	Uploader  ImageUploader
	Notifier  notify.Notifier
	MaxBytes  int64
}

func New(c Config) *Pipeline {
	p := &Pipeline{
		store:     c.Store,
		converter: c.Converter,
		uploader:  c.Uploader,
		notifier:  c.Notifier,
		maxBytes:  c.MaxBytes,
	}
	if p.notifier == nil {
		p.notifier = notify.NewLogNotifier()
	}
	if p.maxBytes <= 0 {
		p.maxBytes = defaultMaxBytes
	}
	return p
}

// ImportFile reads file, classifies it by its first four bytes and hands it
// to the matching reader. The returned route tells which reader ran.
func (p *Pipeline) ImportFile(ctx context.Context, file source.File, opts Options) (Route, error) {
	if file == nil {
		logutil.GetLogger(ctx).Warn("no file passed to import")
		return RouteNone, appErr.ErrNoFile
	}
	name := file.Name()
	data, err := file.ReadAll(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Error("read import file failed", zap.String("name", name), zap.Error(err))
		return RouteNone, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > p.maxBytes {
		logutil.GetLogger(ctx).Warn("import file too large", zap.String("name", name), zap.Int("size", len(data)), zap.Int64("limit", p.maxBytes))
		return RouteNone, fmt.Errorf("%s is %d bytes: %w", name, len(data), appErr.ErrFileTooLarge)
	}

	typ := sniff.Classify(data)
	logutil.GetLogger(ctx).Debug("import file classified", zap.String("name", name), zap.String("header", sniff.Header(data)), zap.String("type", typ.String()))

	if opts.ShowTip {
		notify.Info(ctx, p.notifier, tipMessage, 3*time.Second)
	}

	switch {
	case typ.IsImage():
		return RouteImage, p.readImage(ctx, name, data)
	case opts.IsHTML:
		return RouteHTML, p.readHTML(ctx, name, data)
	default:
		return RouteMarkdown, p.readMarkdown(ctx, name, data)
	}
}

func (p *Pipeline) readMarkdown(ctx context.Context, name string, data []byte) error {
	text := string(data)
	if sniff.IsBinaryText(text) {
		notify.Warn(ctx, p.notifier, binaryMessage, 4*time.Second)
		logutil.GetLogger(ctx).Warn("refused binary import", zap.String("name", name))
		return fmt.Errorf("import %s: %w", name, appErr.ErrBinaryContent)
	}
	doc := p.openDocument(ctx, name)
	p.store.SetCurrentBody(text)
	if err := p.store.Save(ctx, doc, false); err != nil {
		logutil.GetLogger(ctx).Error("persist imported document failed", zap.Int64("id", doc.ID), zap.Error(err))
	}
	p.store.NotifyRefresh()
	logutil.GetLogger(ctx).Info("markdown imported", zap.String("name", name), zap.Int64("id", doc.ID), zap.Int("size", len(data)))
	return nil
}

func (p *Pipeline) readHTML(ctx context.Context, name string, data []byte) error {
	if p.converter == nil {
		return fmt.Errorf("import %s: html converter not configured: %w", name, appErr.ErrInvalid)
	}
	doc := p.openDocument(ctx, name)
	logutil.GetLogger(ctx).Info("html import started", zap.String("name", name), zap.Int64("id", doc.ID))
	return p.converter.Convert(ctx, string(data))
}

func (p *Pipeline) readImage(ctx context.Context, name string, data []byte) error {
	if p.uploader == nil {
		return fmt.Errorf("import %s: image uploader not configured: %w", name, appErr.ErrInvalid)
	}
	return p.uploader.Upload(ctx, source.FromBytes(name, data))
}

func (p *Pipeline) openDocument(ctx context.Context, name string) *model.Document {
	doc := p.store.Create()
	p.store.Add(ctx, doc)
	p.store.SetCurrent(doc)
	p.store.SetCurrentTitle(name)
	// observers must drop the previous document's text before any later step fails
	p.store.NotifyRefresh()
	return doc
}
