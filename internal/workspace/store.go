package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/editor"
	"github.com/xxxsen/mdesk/internal/kv"
	"github.com/xxxsen/mdesk/internal/model"
	"github.com/xxxsen/mdesk/internal/notify"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
)

const (
	KeyFiles           = "files"
	KeyCurrentDocument = "currentDocument"
)

var titleSeparatorReplacer = strings.NewReplacer("\\", "_", "/", "_")

type Options struct {
	Surface  kv.Surface
	Editor   editor.Editor
	Notifier notify.Notifier
	Clock    func() time.Time
}

// Store owns the document collection and the current document pointer.
// Documents are handed out by pointer and mutated in place; all mutations go
// through the store lock.
type Store struct {
	mu        sync.Mutex
	persistMu sync.Mutex

	surface  kv.Surface
	editor   editor.Editor
	notifier notify.Notifier
	now      func() time.Time

	files   []*model.Document
	current *model.Document
	lastID  int64

	refresh *broadcaster
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Surface == nil {
		return nil, fmt.Errorf("workspace surface is required: %w", appErr.ErrInvalid)
	}
	s := &Store{
		surface:  opts.Surface,
		editor:   opts.Editor,
		notifier: opts.Notifier,
		now:      opts.Clock,
		refresh:  newBroadcaster(),
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	files := s.loadFiles(ctx)
	snapshot := s.loadCurrent(ctx)

	s.mu.Lock()
	s.files = files
	for _, f := range files {
		if f.ID > s.lastID {
			s.lastID = f.ID
		}
	}
	if len(s.files) > 0 {
		s.current = s.files[0]
		if snapshot != nil {
			if match := s.getLocked(snapshot.ID); match != nil {
				match.Title = snapshot.Title
				match.Body = snapshot.Body
				match.UpdatedOn = snapshot.UpdatedOn
				s.current = match
			}
		}
		s.mu.Unlock()
		logutil.GetLogger(ctx).Debug("workspace restored", zap.Int("files", len(files)), zap.Int64("current", s.current.ID))
		return nil
	}
	s.mu.Unlock()

	doc := s.Create()
	s.Add(ctx, doc)
	s.SetCurrent(doc)
	if err := s.Save(ctx, doc, false); err != nil {
		return fmt.Errorf("persist bootstrap document: %w", err)
	}
	logutil.GetLogger(ctx).Debug("workspace bootstrapped", zap.Int64("id", doc.ID))
	return nil
}

func (s *Store) loadFiles(ctx context.Context) []*model.Document {
	raw, ok, err := s.surface.Get(ctx, KeyFiles)
	if err != nil {
		logutil.GetLogger(ctx).Warn("read persisted files failed", zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var docs []*model.Document
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		logutil.GetLogger(ctx).Debug("persisted files unparsable, using empty default", zap.Error(err))
		return nil
	}
	out := make([]*model.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (s *Store) loadCurrent(ctx context.Context) *model.Document {
	raw, ok, err := s.surface.Get(ctx, KeyCurrentDocument)
	if err != nil {
		logutil.GetLogger(ctx).Warn("read persisted current document failed", zap.Error(err))
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var doc *model.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		logutil.GetLogger(ctx).Debug("persisted current document unparsable, using empty default", zap.Error(err))
		return nil
	}
	return doc
}

func (s *Store) All() []*model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Document, len(s.files))
	copy(out, s.files)
	return out
}

func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *Store) Get(id int64) (*model.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.getLocked(id)
	return doc, doc != nil
}

func (s *Store) getLocked(id int64) *model.Document {
	for _, f := range s.files {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// GetByIndex is bounds-checked: out of range yields false.
func (s *Store) GetByIndex(index int) (*model.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.files) {
		return nil, false
	}
	return s.files[index], true
}

// Find looks a document up by identity.
func (s *Store) Find(doc *model.Document) (*model.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(doc) < 0 {
		return nil, false
	}
	return doc, true
}

func (s *Store) FindByTitle(title string) (*model.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.Title == title {
			return f, true
		}
	}
	return nil, false
}

func (s *Store) indexLocked(doc *model.Document) int {
	if doc == nil {
		return -1
	}
	for i, f := range s.files {
		if f == doc {
			return i
		}
	}
	return -1
}

// Add appends doc without checking for a duplicate id and persists the
// collection.
func (s *Store) Add(ctx context.Context, doc *model.Document) *model.Document {
	if doc == nil {
		return nil
	}
	s.mu.Lock()
	s.files = append(s.files, doc)
	if doc.ID > s.lastID {
		s.lastID = doc.ID
	}
	s.mu.Unlock()
	if err := s.persistFiles(ctx); err != nil {
		logutil.GetLogger(ctx).Error("persist files after add failed", zap.Int64("id", doc.ID), zap.Error(err))
	}
	return doc
}

// Remove drops the first entry identical to doc. Removing the current
// document clears the current pointer.
func (s *Store) Remove(ctx context.Context, doc *model.Document) {
	s.mu.Lock()
	idx := s.indexLocked(doc)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.files = append(s.files[:idx], s.files[idx+1:]...)
	clearedCurrent := s.current == doc
	if clearedCurrent {
		s.current = nil
	}
	s.mu.Unlock()

	if err := s.persistFiles(ctx); err != nil {
		logutil.GetLogger(ctx).Error("persist files after remove failed", zap.Int64("id", doc.ID), zap.Error(err))
	}
	if clearedCurrent {
		if err := s.surface.Delete(ctx, KeyCurrentDocument); err != nil {
			logutil.GetLogger(ctx).Error("clear persisted current document failed", zap.Error(err))
		}
	}
}

func (s *Store) RemoveAll(ctx context.Context) {
	s.mu.Lock()
	s.files = nil
	s.current = nil
	s.mu.Unlock()
	if err := s.persistFiles(ctx); err != nil {
		logutil.GetLogger(ctx).Error("persist files after remove all failed", zap.Error(err))
	}
	if err := s.surface.Delete(ctx, KeyCurrentDocument); err != nil {
		logutil.GetLogger(ctx).Error("clear persisted current document failed", zap.Error(err))
	}
}

// Create builds a document with a clock-derived id. When the clock has not
// moved past the last issued id the next free id is used, so consecutive
// calls never collide. Create does not add the document.
func (s *Store) Create(props ...model.DocumentProps) *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := &model.Document{
		Title: model.DefaultTitle,
		Body:  "",
	}
	explicitID := false
	for _, p := range props {
		if p.ID != nil {
			doc.ID = *p.ID
			explicitID = true
		}
		if p.Title != nil {
			doc.Title = *p.Title
		}
		if p.Body != nil {
			doc.Body = *p.Body
		}
	}
	if !explicitID {
		doc.ID = s.nextIDLocked()
	} else if doc.ID > s.lastID {
		s.lastID = doc.ID
	}
	return doc
}

func (s *Store) nextIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Store) SetCurrent(doc *model.Document) *model.Document {
	s.mu.Lock()
	s.current = doc
	s.mu.Unlock()
	return doc
}

// Current returns nil when no document is current.
func (s *Store) Current() *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) SetCurrentTitle(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return title
	}
	if s.current.Title != title {
		s.current.Title = title
		s.current.UpdatedOn = s.now().UnixMilli()
	}
	return title
}

// CurrentTitle replaces path separators with underscores.
func (s *Store) CurrentTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return titleSeparatorReplacer.Replace(s.current.Title)
}

func (s *Store) SetCurrentBody(body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCurrentBodyLocked(body)
	return body
}

func (s *Store) setCurrentBodyLocked(body string) {
	if s.current == nil {
		return
	}
	if s.current.Body != body {
		s.current.Body = body
		s.current.UpdatedOn = s.now().UnixMilli()
	}
}

// CurrentBody pulls the editor text into the current document before
// returning it.
func (s *Store) CurrentBody() string {
	var text string
	hasEditor := s.editor != nil
	if hasEditor {
		text = s.editor.Text()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	if hasEditor {
		s.setCurrentBodyLocked(text)
	}
	return s.current.Body
}

// InsertAtCursor inserts text at the editor cursor and returns it.
func (s *Store) InsertAtCursor(ctx context.Context, text string) string {
	if s.editor == nil {
		logutil.GetLogger(ctx).Warn("insert at cursor without editor")
		return text
	}
	s.editor.InsertAt(s.editor.Cursor(), text)
	return text
}

// Save writes doc under the currentDocument key. A manual save also tells
// the user.
func (s *Store) Save(ctx context.Context, doc *model.Document, manual bool) error {
	if doc == nil {
		return fmt.Errorf("save document: %w", appErr.ErrInvalid)
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	data, err := json.Marshal(doc)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode current document: %w", err)
	}
	if err := s.surface.Set(ctx, KeyCurrentDocument, string(data)); err != nil {
		return fmt.Errorf("persist current document: %w", err)
	}
	if manual {
		notify.Success(ctx, s.notifier, "Documents Saved!", 3*time.Second)
	}
	return nil
}

// Flush persists the whole collection and the current document.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.persistFiles(ctx); err != nil {
		return err
	}
	if current := s.Current(); current != nil {
		return s.Save(ctx, current, false)
	}
	return nil
}

func (s *Store) persistFiles(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	files := s.files
	if files == nil {
		files = []*model.Document{}
	}
	data, err := json.Marshal(files)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	if err := s.surface.Set(ctx, KeyFiles, string(data)); err != nil {
		return fmt.Errorf("persist files: %w", err)
	}
	return nil
}

// Subscribe registers for document refresh signals. Signals raised before
// subscribing are not replayed.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	return s.refresh.subscribe()
}

func (s *Store) NotifyRefresh() {
	s.refresh.broadcast()
}

// Update mutates a stored document under the store lock.
func (s *Store) Update(doc *model.Document, fn func(d *model.Document)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(doc) < 0 {
		return false
	}
	fn(doc)
	return true
}

type textSetter interface {
	SetText(text string)
}

// Replace overwrites the body of a stored document with content that came
// from elsewhere, stamping updatedOn as given. When doc is current the
// editor text is replaced too. The collection and, for the current document,
// the snapshot are persisted and a refresh is signalled. Replacing with the
// same body and updatedOn is a no-op.
func (s *Store) Replace(ctx context.Context, doc *model.Document, body string, updatedOn int64) error {
	s.mu.Lock()
	if s.indexLocked(doc) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("replace document: %w", appErr.ErrNotFound)
	}
	prev := doc.Clone()
	doc.Body = body
	doc.UpdatedOn = updatedOn
	if prev.SameContent(doc) && prev.UpdatedOn == updatedOn {
		s.mu.Unlock()
		return nil
	}
	isCurrent := s.current == doc
	s.mu.Unlock()

	if isCurrent {
		if setter, ok := s.editor.(textSetter); ok {
			setter.SetText(body)
		}
	}
	if err := s.persistFiles(ctx); err != nil {
		return err
	}
	if isCurrent {
		if err := s.Save(ctx, doc, false); err != nil {
			return err
		}
	}
	s.NotifyRefresh()
	return nil
}

// Snapshot returns deep copies of the collection and current document.
func (s *Store) Snapshot() ([]*model.Document, *model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]*model.Document, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f.Clone())
	}
	return files, s.current.Clone()
}
