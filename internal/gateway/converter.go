package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/notify"
	"github.com/xxxsen/mdesk/internal/workspace"
)

type HTMLConverter interface {
	ConvertHTML(ctx context.Context, html string) (string, error)
}

type Converter struct {
	client   HTMLConverter
	store    *workspace.Store
	notifier notify.Notifier
}

func NewConverter(client HTMLConverter, store *workspace.Store, notifier notify.Notifier) *Converter {
	if notifier == nil {
		notifier = notify.NewLogNotifier()
	}
	return &Converter{client: client, store: store, notifier: notifier}
}

// Convert sends html for conversion once and writes the Markdown into the
// current document. On failure nothing in the store changes.
func (c *Converter) Convert(ctx context.Context, html string) error {
	pending := notify.Info(ctx, c.notifier, "Converting HTML to Markdown...", 2500*time.Millisecond)
	md, err := c.client.ConvertHTML(ctx, html)
	pending.Dismiss()
	if err != nil {
		logutil.GetLogger(ctx).Error("convert html to markdown failed", zap.Error(err))
		notify.Error(ctx, c.notifier, "An Error occured: "+failureMessage(err), 5*time.Second)
		return fmt.Errorf("convert html: %w", err)
	}
	c.store.SetCurrentBody(md)
	if current := c.store.Current(); current != nil {
		if err := c.store.Save(ctx, current, false); err != nil {
			logutil.GetLogger(ctx).Warn("persist converted document failed", zap.Error(err))
		}
	}
	c.store.NotifyRefresh()
	logutil.GetLogger(ctx).Info("html converted", zap.Int("html_size", len(html)), zap.Int("markdown_size", len(md)))
	return nil
}
