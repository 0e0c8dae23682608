package filestore

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xxxsen/mdesk/internal/config"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
)

// Store keeps uploaded images under flat keys.
type Store interface {
	Type() string
	Save(ctx context.Context, key string, r ReadSeekCloser, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URL(key, baseURL string) string
}

type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.FileStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("file_store.type is required: %w", appErr.ErrInvalid)
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported file store type %s: %w", cfg.Type, appErr.ErrInvalid)
	}
	return factory(cfg.Data)
}

// NewKey returns a random key carrying the lowercased extension of name.
func NewKey(name string) string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	key := hex.EncodeToString(buf)
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext == "" || strings.ContainsAny(ext, `/\ `) {
		return key
	}
	return key + ext
}

// ValidKey rejects empty keys and anything that could escape a flat
// namespace.
func ValidKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

type bytesFile struct {
	*bytes.Reader
}

func (bytesFile) Close() error { return nil }

// FromBytes adapts an in-memory payload for Save.
func FromBytes(data []byte) ReadSeekCloser {
	return bytesFile{Reader: bytes.NewReader(data)}
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required: %w", appErr.ErrInvalid)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
