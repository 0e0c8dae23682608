package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mdesk/internal/config"
	"github.com/xxxsen/mdesk/internal/editor"
	"github.com/xxxsen/mdesk/internal/kv"
	"github.com/xxxsen/mdesk/internal/model"
	"github.com/xxxsen/mdesk/internal/notify"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
	"github.com/xxxsen/mdesk/internal/pkg/hashutil"
	"github.com/xxxsen/mdesk/internal/workspace"
)

type fakeRemote struct {
	mu         sync.Mutex
	docs       map[string]string
	updated    map[string]int64
	metaCalls  int
	fetchCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: map[string]string{}, updated: map[string]int64{}}
}

func (f *fakeRemote) put(path, body string, updatedOn int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[path] = body
	f.updated[path] = updatedOn
}

func (f *fakeRemote) Metadata(ctx context.Context, path string) (*model.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	body, ok := f.docs[path]
	if !ok {
		return nil, fmt.Errorf("metadata %s: %w", path, appErr.ErrNotFound)
	}
	return &model.Metadata{Hash: hashutil.Sum(body), LastUpdatedOn: f.updated[path]}, nil
}

func (f *fakeRemote) FetchDocument(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	body, ok := f.docs[path]
	if !ok {
		return "", appErr.ErrNotFound
	}
	return body, nil
}

type fixture struct {
	store  *workspace.Store
	buf    *editor.Buffer
	surf   kv.Surface
	remote *fakeRemote
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	surf := kv.NewMemory()
	buf := editor.NewBuffer("")
	store, err := workspace.New(context.Background(), workspace.Options{
		Surface:  surf,
		Editor:   buf,
		Notifier: notify.NewRecorder(),
		Clock:    func() time.Time { return time.UnixMilli(1700000000000) },
	})
	require.NoError(t, err)
	return &fixture{store: store, buf: buf, surf: surf, remote: newFakeRemote()}
}

func (f *fixture) engine(t *testing.T, policy string) *Engine {
	t.Helper()
	e, err := New(Options{Store: f.store, Remote: f.remote, Policy: policy})
	require.NoError(t, err)
	return e
}

func (f *fixture) addLocal(title, body string, updatedOn int64) *model.Document {
	doc := f.store.Create(model.DocumentProps{Title: &title, Body: &body})
	doc.UpdatedOn = updatedOn
	return f.store.Add(context.Background(), doc)
}

func TestTitleFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "notes/a.md", want: "a.md"},
		{path: "/a.md", want: "a.md"},
		{path: "a.md/", want: "a.md"},
		{path: "deep/er/My Doc.md", want: "My Doc.md"},
		{path: "notes/a.txt", wantErr: true},
		{path: "notes/", wantErr: true},
		{path: ".md", wantErr: true},
		{path: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := TitleFromPath(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, appErr.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	f := newFixture(t)
	_, err := New(Options{Store: f.store, Remote: f.remote, Policy: "newest"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = New(Options{Store: f.store})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestReconcileHashMatchIsUnchanged(t *testing.T) {
	f := newFixture(t)
	doc := f.addLocal("a.md", "same body", 1)
	f.remote.put("notes/a.md", "same body", 99)

	res, err := f.engine(t, "").Reconcile(context.Background(), "notes/a.md", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, res.Outcome)
	require.Same(t, doc, res.Document)
	require.Equal(t, int64(1), doc.UpdatedOn)
	require.Equal(t, 0, f.remote.fetchCalls)
}

func TestReconcileUsesSuppliedHashCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	f.addLocal("a.md", "local", 1)
	f.remote.put("a.md", "remote", 99)

	res, err := f.engine(t, "").Reconcile(context.Background(), "a.md", strings.ToUpper(hashutil.Sum("remote")))
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, res.Outcome)
}

func TestReconcileTimestampRemoteNewer(t *testing.T) {
	f := newFixture(t)
	doc := f.addLocal("a.md", "old", 100)
	f.remote.put("a.md", "new", 200)

	res, err := f.engine(t, config.SyncPolicyTimestamp).Reconcile(context.Background(), "a.md", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeRemoteApplied, res.Outcome)
	require.Equal(t, "new", doc.Body)
	require.Equal(t, int64(200), doc.UpdatedOn)

	raw, ok, err := f.surf.Get(context.Background(), workspace.KeyFiles)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, raw, `"body":"new"`)
}

func TestReconcileTimestampLocalNewerOrTie(t *testing.T) {
	for _, remoteTS := range []int64{50, 100} {
		f := newFixture(t)
		doc := f.addLocal("a.md", "mine", 100)
		f.remote.put("a.md", "theirs", remoteTS)

		res, err := f.engine(t, config.SyncPolicyTimestamp).Reconcile(context.Background(), "a.md", "")
		require.NoError(t, err)
		require.Equal(t, OutcomeLocalKept, res.Outcome)
		require.Equal(t, "mine", doc.Body)
		require.Equal(t, 0, f.remote.fetchCalls)
	}
}

func TestReconcileRemotePolicyAlwaysApplies(t *testing.T) {
	f := newFixture(t)
	doc := f.addLocal("a.md", "mine", 500)
	f.remote.put("a.md", "theirs", 10)

	res, err := f.engine(t, config.SyncPolicyRemote).Reconcile(context.Background(), "a.md", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeRemoteApplied, res.Outcome)
	require.Equal(t, "theirs", doc.Body)
	require.Equal(t, int64(10), doc.UpdatedOn)
}

func TestReconcileManualReportsConflict(t *testing.T) {
	f := newFixture(t)
	doc := f.addLocal("a.md", "mine", 500)
	f.remote.put("a.md", "theirs", 600)

	res, err := f.engine(t, config.SyncPolicyManual).Reconcile(context.Background(), "a.md", "")
	require.ErrorIs(t, err, appErr.ErrConflict)
	require.True(t, appErr.IsConflict(err))
	require.NotNil(t, res)
	require.Equal(t, OutcomeConflict, res.Outcome)
	require.Equal(t, hashutil.Sum("mine"), res.Conflict.LocalHash)
	require.Equal(t, hashutil.Sum("theirs"), res.Conflict.RemoteHash)
	require.Equal(t, int64(500), res.Conflict.LocalUpdatedOn)
	require.Equal(t, int64(600), res.Conflict.RemoteUpdatedOn)
	require.Equal(t, "mine", doc.Body)
}

func TestReconcileCreatesMissingLocal(t *testing.T) {
	f := newFixture(t)
	f.remote.put("notes/new.md", "# New\n", 1234)
	refresh, stop := f.store.Subscribe()
	defer stop()

	res, err := f.engine(t, "").Reconcile(context.Background(), "notes/new.md", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
	require.Equal(t, "new.md", res.Document.Title)
	require.Equal(t, "# New\n", res.Document.Body)
	require.Equal(t, int64(1234), res.Document.UpdatedOn)
	require.Equal(t, 2, f.store.Size())
	select {
	case <-refresh:
	default:
		t.Fatal("expected refresh")
	}
}

func TestReconcileRemoteNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine(t, "").Reconcile(context.Background(), "gone.md", "")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.Equal(t, 1, f.store.Size())
}

func TestReconcileInvalidPathSkipsRemote(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine(t, "").Reconcile(context.Background(), "notes/a.txt", "")
	require.ErrorIs(t, err, appErr.ErrInvalidPath)
	require.Equal(t, 0, f.remote.metaCalls)
}

func TestReconcileCurrentDocumentReadsEditor(t *testing.T) {
	f := newFixture(t)
	current := f.store.Current()
	f.store.SetCurrentTitle("cur.md")
	f.buf.SetText("typed but unsaved")
	f.remote.put("cur.md", "typed but unsaved", 1)

	res, err := f.engine(t, "").Reconcile(context.Background(), "cur.md", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, res.Outcome)
	require.Same(t, current, res.Document)
}

func TestReconcileAppliesToCurrentEditor(t *testing.T) {
	f := newFixture(t)
	f.store.SetCurrentTitle("cur.md")
	f.buf.SetText("local")
	f.remote.put("cur.md", "remote", 1800000000000)

	res, err := f.engine(t, "").Reconcile(context.Background(), "cur.md", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeRemoteApplied, res.Outcome)
	require.Equal(t, "remote", f.buf.Text())

	raw, ok, err := f.surf.Get(context.Background(), workspace.KeyCurrentDocument)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, raw, `"body":"remote"`)
}

func TestReconcileAllJoinsErrors(t *testing.T) {
	f := newFixture(t)
	f.remote.put("a.md", "a", 1)
	f.remote.put("b.md", "b", 1)

	results, err := f.engine(t, "").ReconcileAll(context.Background(), []string{"a.md", "missing.md", "bad.txt", "b.md"})
	require.Error(t, err)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, err, appErr.ErrInvalidPath)
	require.Len(t, results, 2)
	require.Equal(t, OutcomeCreated, results[0].Outcome)
	require.Equal(t, OutcomeCreated, results[1].Outcome)
}

func TestReconcileAllStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.remote.put("a.md", "a", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := f.engine(t, "").ReconcileAll(ctx, []string{"a.md"})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, results)
	require.Equal(t, 0, f.remote.metaCalls)
}

func TestMetadataCache(t *testing.T) {
	remote := newFakeRemote()
	remote.put("a.md", "a", 1)
	cached := WrapMetadataCache(remote, 8, time.Minute)

	for i := 0; i < 3; i++ {
		meta, err := cached.Metadata(context.Background(), "a.md")
		require.NoError(t, err)
		require.Equal(t, hashutil.Sum("a"), meta.Hash)
	}
	require.Equal(t, 1, remote.metaCalls)

	_, err := cached.Metadata(context.Background(), "missing.md")
	require.Error(t, err)
	_, err = cached.Metadata(context.Background(), "missing.md")
	require.Error(t, err)
	require.Equal(t, 3, remote.metaCalls)

	body, err := cached.FetchDocument(context.Background(), "a.md")
	require.NoError(t, err)
	require.Equal(t, "a", body)

	require.Same(t, remote, WrapMetadataCache(remote, 0, time.Minute))
}

func TestJobRun(t *testing.T) {
	f := newFixture(t)
	f.remote.put("a.md", "a", 1)
	job := NewJob(f.engine(t, ""), []string{"a.md"})
	require.Equal(t, "document_sync", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 2, f.store.Size())

	require.NoError(t, NewJob(f.engine(t, ""), nil).Run(context.Background()))
}
