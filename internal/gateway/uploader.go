package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/notify"
	"github.com/xxxsen/mdesk/internal/remote"
	"github.com/xxxsen/mdesk/internal/source"
	"github.com/xxxsen/mdesk/internal/workspace"
)

type ImageUploader interface {
	UploadImage(ctx context.Context, name, dataURL string) (string, error)
}

type Uploader struct {
	client   ImageUploader
	store    *workspace.Store
	notifier notify.Notifier
}

func NewUploader(client ImageUploader, store *workspace.Store, notifier notify.Notifier) *Uploader {
	if notifier == nil {
		notifier = notify.NewLogNotifier()
	}
	return &Uploader{client: client, store: store, notifier: notifier}
}

// Upload sends the image once and inserts a Markdown image reference at the
// editor cursor.
func (u *Uploader) Upload(ctx context.Context, file source.File) error {
	name := file.Name()
	dataURL, err := source.ReadDataURL(ctx, file)
	if err != nil {
		notify.Error(ctx, u.notifier, "An Error occured: "+err.Error(), 5*time.Second)
		return fmt.Errorf("read image %s: %w", name, err)
	}
	pending := notify.Info(ctx, u.notifier, "Uploading Image...", 5*time.Second)
	publicURL, err := u.client.UploadImage(ctx, name, dataURL)
	pending.Dismiss()
	if err != nil {
		logutil.GetLogger(ctx).Error("upload image failed", zap.String("name", name), zap.Error(err))
		notify.Error(ctx, u.notifier, "An Error occured: "+failureMessage(err), 5*time.Second)
		return fmt.Errorf("upload image %s: %w", name, err)
	}
	u.store.InsertAtCursor(ctx, ImageMarkdown(name, publicURL))
	notify.Success(ctx, u.notifier, "Successfully uploaded image.", 4*time.Second)
	logutil.GetLogger(ctx).Info("image uploaded", zap.String("name", name), zap.String("url", publicURL))
	return nil
}

func ImageMarkdown(name, url string) string {
	return "![" + name + "](" + url + ")"
}

func failureMessage(err error) string {
	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Message
	}
	return err.Error()
}
