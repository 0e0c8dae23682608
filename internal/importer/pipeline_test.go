package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mdesk/internal/editor"
	"github.com/xxxsen/mdesk/internal/gateway"
	"github.com/xxxsen/mdesk/internal/kv"
	"github.com/xxxsen/mdesk/internal/notify"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
	"github.com/xxxsen/mdesk/internal/source"
	"github.com/xxxsen/mdesk/internal/workspace"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

type fakeConverter struct {
	calls []string
	err   error
}

func (f *fakeConverter) Convert(ctx context.Context, html string) error {
	f.calls = append(f.calls, html)
	return f.err
}

type fakeUploader struct {
	names []string
	data  [][]byte
}

func (f *fakeUploader) Upload(ctx context.Context, file source.File) error {
	data, err := file.ReadAll(ctx)
	if err != nil {
		return err
	}
	f.names = append(f.names, file.Name())
	f.data = append(f.data, data)
	return nil
}

type fixture struct {
	store     *workspace.Store
	buf       *editor.Buffer
	rec       *notify.Recorder
	converter *fakeConverter
	uploader  *fakeUploader
	pipeline  *Pipeline
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	buf := editor.NewBuffer("")
	rec := notify.NewRecorder()
	store, err := workspace.New(context.Background(), workspace.Options{Surface: kv.NewMemory(), Editor: buf, Notifier: rec})
	require.NoError(t, err)
	f := &fixture{store: store, buf: buf, rec: rec, converter: &fakeConverter{}, uploader: &fakeUploader{}}
	f.pipeline = New(Config{Store: store, Converter: f.converter, Uploader: f.uploader, Notifier: rec, MaxBytes: maxBytes})
	return f
}

func TestImportMarkdown(t *testing.T) {
	f := newFixture(t, 0)
	refresh, stop := f.store.Subscribe()
	defer stop()

	route, err := f.pipeline.ImportFile(context.Background(), source.FromBytes("notes.md", []byte("# Hi\n")), Options{})
	require.NoError(t, err)
	require.Equal(t, RouteMarkdown, route)
	require.Equal(t, 2, f.store.Size())

	current := f.store.Current()
	require.NotNil(t, current)
	require.Equal(t, "notes.md", current.Title)
	require.Equal(t, "# Hi\n", current.Body)
	last, ok := f.store.GetByIndex(1)
	require.True(t, ok)
	require.Same(t, last, current)

	select {
	case <-refresh:
	default:
		t.Fatal("expected refresh")
	}
	require.Empty(t, f.converter.calls)
	require.Empty(t, f.uploader.names)
}

func TestImportFromPath(t *testing.T) {
	f := newFixture(t, 0)
	path := filepath.Join(t.TempDir(), "readme.md")
	require.NoError(t, os.WriteFile(path, []byte("body\twith tab\r\n"), 0o644))

	route, err := f.pipeline.ImportFile(context.Background(), source.FromPath(path), Options{})
	require.NoError(t, err)
	require.Equal(t, RouteMarkdown, route)
	require.Equal(t, "readme.md", f.store.Current().Title)
	require.Equal(t, "body\twith tab\r\n", f.store.Current().Body)
}

func TestImportImageGoesToUploader(t *testing.T) {
	f := newFixture(t, 0)
	before := f.store.Current()

	route, err := f.pipeline.ImportFile(context.Background(), source.FromBytes("cat.png", pngHeader), Options{IsHTML: true})
	require.NoError(t, err)
	require.Equal(t, RouteImage, route)
	require.Equal(t, []string{"cat.png"}, f.uploader.names)
	require.Equal(t, pngHeader, f.uploader.data[0])
	require.Empty(t, f.converter.calls)
	require.Equal(t, 1, f.store.Size())
	require.Same(t, before, f.store.Current())
}

func TestImportHTML(t *testing.T) {
	f := newFixture(t, 0)

	route, err := f.pipeline.ImportFile(context.Background(), source.FromBytes("page.html", []byte("<h1>Hi</h1>")), Options{IsHTML: true})
	require.NoError(t, err)
	require.Equal(t, RouteHTML, route)
	require.Equal(t, []string{"<h1>Hi</h1>"}, f.converter.calls)
	require.Equal(t, "page.html", f.store.Current().Title)
	require.Equal(t, 2, f.store.Size())
}

func TestImportHTMLThroughGateway(t *testing.T) {
	buf := editor.NewBuffer("")
	rec := notify.NewRecorder()
	store, err := workspace.New(context.Background(), workspace.Options{Surface: kv.NewMemory(), Editor: buf, Notifier: rec})
	require.NoError(t, err)
	conv := gateway.NewConverter(staticConverter("# Hi"), store, rec)
	p := New(Config{Store: store, Converter: conv, Notifier: rec})

	_, err = p.ImportFile(context.Background(), source.FromBytes("page.html", []byte("<h1>Hi</h1>")), Options{IsHTML: true})
	require.NoError(t, err)
	require.Equal(t, "page.html", store.Current().Title)
	require.Equal(t, "# Hi", store.Current().Body)
}

func TestImportHTMLFailureStillSignalsRefresh(t *testing.T) {
	f := newFixture(t, 0)
	f.buf.SetText("text of the previous document")
	f.converter.err = errors.New("boom")
	refresh, stop := f.store.Subscribe()
	defer stop()

	_, err := f.pipeline.ImportFile(context.Background(), source.FromBytes("page.html", []byte("<p>x</p>")), Options{IsHTML: true})
	require.Error(t, err)
	require.Equal(t, "page.html", f.store.Current().Title)
	require.Empty(t, f.store.Current().Body)
	select {
	case <-refresh:
	default:
		t.Fatal("expected refresh after the current document changed")
	}
}

type staticConverter string

func (s staticConverter) ConvertHTML(ctx context.Context, html string) (string, error) {
	return string(s), nil
}

func TestImportBinaryRejected(t *testing.T) {
	f := newFixture(t, 0)
	before := f.store.Current()

	route, err := f.pipeline.ImportFile(context.Background(), source.FromBytes("blob.md", []byte("ab\x01cd")), Options{})
	require.ErrorIs(t, err, appErr.ErrBinaryContent)
	require.True(t, appErr.IsInputRejected(err))
	require.Equal(t, RouteMarkdown, route)
	require.Equal(t, 1, f.store.Size())
	require.Same(t, before, f.store.Current())
	require.Equal(t, "Importing binary files will cause the editor to become unresponsive", f.rec.Last().Message)
}

func TestImportNilFile(t *testing.T) {
	f := newFixture(t, 0)
	route, err := f.pipeline.ImportFile(context.Background(), nil, Options{ShowTip: true})
	require.ErrorIs(t, err, appErr.ErrNoFile)
	require.Equal(t, RouteNone, route)
	require.Equal(t, 1, f.store.Size())
	require.Empty(t, f.rec.Entries())
}

func TestImportTooLarge(t *testing.T) {
	f := newFixture(t, 4)
	_, err := f.pipeline.ImportFile(context.Background(), source.FromBytes("big.md", []byte("12345")), Options{})
	require.ErrorIs(t, err, appErr.ErrFileTooLarge)
	require.Equal(t, 1, f.store.Size())
}

func TestImportShowTip(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.pipeline.ImportFile(context.Background(), source.FromBytes("a.md", []byte("hello")), Options{ShowTip: true})
	require.NoError(t, err)
	require.Equal(t, tipMessage, f.rec.Entries()[0].Message)
}

func TestImportShortBufferIsText(t *testing.T) {
	f := newFixture(t, 0)
	route, err := f.pipeline.ImportFile(context.Background(), source.FromBytes("a.md", []byte{0x89, 0x50}), Options{})
	require.Equal(t, RouteMarkdown, route)
	require.NoError(t, err)
}

func TestImportCancelled(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.pipeline.ImportFile(ctx, source.FromBytes("a.md", []byte("x")), Options{})
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 1, f.store.Size())
}
