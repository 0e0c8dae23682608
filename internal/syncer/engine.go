package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/config"
	"github.com/xxxsen/mdesk/internal/model"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
	"github.com/xxxsen/mdesk/internal/pkg/hashutil"
	"github.com/xxxsen/mdesk/internal/workspace"
)

type Outcome string

const (
	OutcomeUnchanged     Outcome = "unchanged"
	OutcomeLocalKept     Outcome = "local_kept"
	OutcomeRemoteApplied Outcome = "remote_applied"
	OutcomeCreated       Outcome = "created"
	OutcomeConflict      Outcome = "conflict"
)

// Remote is the part of the remote client the engine talks to.
type Remote interface {
	Metadata(ctx context.Context, path string) (*model.Metadata, error)
	FetchDocument(ctx context.Context, path string) (string, error)
}

// Conflict describes diverged content left for the user to resolve.
type Conflict struct {
	Path            string
	LocalHash       string
	RemoteHash      string
	LocalUpdatedOn  int64
	RemoteUpdatedOn int64
}

type Result struct {
	Path     string
	Document *model.Document
	Outcome  Outcome
	Conflict *Conflict
}

type Options struct {
	Store  *workspace.Store
	Remote Remote
	Policy string
}

type Engine struct {
	store  *workspace.Store
	remote Remote
	policy string
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Remote == nil {
		return nil, fmt.Errorf("sync engine needs a store and a remote: %w", appErr.ErrInvalid)
	}
	policy := strings.ToLower(strings.TrimSpace(opts.Policy))
	switch policy {
	case "":
		policy = config.SyncPolicyTimestamp
	case config.SyncPolicyTimestamp, config.SyncPolicyRemote, config.SyncPolicyManual:
	default:
		return nil, fmt.Errorf("unknown sync policy %q: %w", opts.Policy, appErr.ErrInvalid)
	}
	return &Engine{store: opts.Store, remote: opts.Remote, policy: policy}, nil
}

// TitleFromPath returns the last segment of path, which must name a .md file.
func TitleFromPath(path string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(path), "/")
	title := trimmed
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		title = trimmed[idx+1:]
	}
	if title == ".md" || !strings.HasSuffix(title, ".md") {
		return "", fmt.Errorf("%q: %w", path, appErr.ErrInvalidPath)
	}
	return title, nil
}

// Reconcile compares the local document named by path with the remote
// metadata. An empty localHash is computed from the local body.
func (e *Engine) Reconcile(ctx context.Context, path string, localHash string) (*Result, error) {
	title, err := TitleFromPath(path)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("path", path), zap.String("policy", e.policy))

	meta, err := e.remote.Metadata(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata %s: %w", path, err)
	}

	doc, ok := e.store.FindByTitle(title)
	if !ok {
		return e.create(ctx, path, title, meta)
	}

	if doc == e.store.Current() {
		// pulls unsaved editor text into the document
		e.store.CurrentBody()
	}
	var localUpdatedOn int64
	var body string
	e.store.Update(doc, func(d *model.Document) {
		body = d.Body
		localUpdatedOn = d.UpdatedOn
	})
	if localHash == "" {
		localHash = hashutil.Sum(body)
	}

	if hashutil.Equal(localHash, meta.Hash) {
		logger.Debug("document in sync", zap.Int64("id", doc.ID))
		return &Result{Path: path, Document: doc, Outcome: OutcomeUnchanged}, nil
	}

	switch e.policy {
	case config.SyncPolicyManual:
		conflict := &Conflict{
			Path:            path,
			LocalHash:       strings.ToLower(localHash),
			RemoteHash:      strings.ToLower(meta.Hash),
			LocalUpdatedOn:  localUpdatedOn,
			RemoteUpdatedOn: meta.LastUpdatedOn,
		}
		logger.Warn("document diverged", zap.Int64("id", doc.ID), zap.Int64("local_updated_on", localUpdatedOn), zap.Int64("remote_updated_on", meta.LastUpdatedOn))
		return &Result{Path: path, Document: doc, Outcome: OutcomeConflict, Conflict: conflict},
			fmt.Errorf("%s: %w", path, appErr.ErrConflict)
	case config.SyncPolicyTimestamp:
		if meta.LastUpdatedOn <= localUpdatedOn {
			logger.Info("local document is newer, kept", zap.Int64("id", doc.ID))
			return &Result{Path: path, Document: doc, Outcome: OutcomeLocalKept}, nil
		}
	}

	remoteBody, err := e.remote.FetchDocument(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch document %s: %w", path, err)
	}
	if err := e.store.Replace(ctx, doc, remoteBody, meta.LastUpdatedOn); err != nil {
		return nil, fmt.Errorf("apply remote %s: %w", path, err)
	}
	logger.Info("remote document applied", zap.Int64("id", doc.ID), zap.Int64("updated_on", meta.LastUpdatedOn))
	return &Result{Path: path, Document: doc, Outcome: OutcomeRemoteApplied}, nil
}

func (e *Engine) create(ctx context.Context, path, title string, meta *model.Metadata) (*Result, error) {
	body, err := e.remote.FetchDocument(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch document %s: %w", path, err)
	}
	doc := e.store.Create(model.DocumentProps{Title: &title, Body: &body})
	doc.UpdatedOn = meta.LastUpdatedOn
	e.store.Add(ctx, doc)
	e.store.NotifyRefresh()
	logutil.GetLogger(ctx).Info("remote document created locally", zap.String("path", path), zap.Int64("id", doc.ID))
	return &Result{Path: path, Document: doc, Outcome: OutcomeCreated}, nil
}

// ReconcileAll reconciles each path in order. Failures are logged and joined;
// later paths still run.
func (e *Engine) ReconcileAll(ctx context.Context, paths []string) ([]*Result, error) {
	results := make([]*Result, 0, len(paths))
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		start := time.Now()
		res, err := e.Reconcile(ctx, p, "")
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			logutil.GetLogger(ctx).Error("reconcile failed", zap.String("path", p), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logutil.GetLogger(ctx).Debug("reconciled", zap.String("path", p), zap.String("outcome", string(res.Outcome)), zap.Duration("duration", time.Since(start)))
	}
	return results, errors.Join(errs...)
}
