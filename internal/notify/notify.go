package notify

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/model"
)

// Handle dismisses a transient notification before its duration elapses.
type Handle interface {
	Dismiss()
}

type Notifier interface {
	Notify(ctx context.Context, n model.Notification) Handle
}

func Info(ctx context.Context, n Notifier, message string, d time.Duration) Handle {
	return n.Notify(ctx, model.Notification{Message: message, Level: model.NotificationInfo, Duration: d})
}

func Success(ctx context.Context, n Notifier, message string, d time.Duration) Handle {
	return n.Notify(ctx, model.Notification{Message: message, Level: model.NotificationSuccess, Duration: d})
}

func Warn(ctx context.Context, n Notifier, message string, d time.Duration) Handle {
	return n.Notify(ctx, model.Notification{Message: message, Level: model.NotificationWarn, Duration: d})
}

func Error(ctx context.Context, n Notifier, message string, d time.Duration) Handle {
	return n.Notify(ctx, model.Notification{Message: message, Level: model.NotificationError, Duration: d})
}

type noopHandle struct{}

func (noopHandle) Dismiss() {}

// LogNotifier writes notifications to the context logger.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Notify(ctx context.Context, n model.Notification) Handle {
	logger := logutil.GetLogger(ctx).With(zap.String("level", string(n.Level)), zap.Duration("duration", n.Duration))
	switch n.Level {
	case model.NotificationError:
		logger.Error(n.Message)
	case model.NotificationWarn:
		logger.Warn(n.Message)
	default:
		logger.Info(n.Message)
	}
	return noopHandle{}
}

// Recorder keeps every notification and its dismissal state. Safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []*RecordedNotification
}

type RecordedNotification struct {
	model.Notification
	mu        *sync.Mutex
	dismissed bool
}

func (r *RecordedNotification) Dismiss() {
	r.mu.Lock()
	r.dismissed = true
	r.mu.Unlock()
}

func (r *RecordedNotification) Dismissed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dismissed
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(ctx context.Context, n model.Notification) Handle {
	_ = ctx
	entry := &RecordedNotification{Notification: n, mu: &r.mu}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return entry
}

func (r *Recorder) Entries() []*RecordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RecordedNotification, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Message)
	}
	return out
}

func (r *Recorder) Last() *RecordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	return r.entries[len(r.entries)-1]
}
