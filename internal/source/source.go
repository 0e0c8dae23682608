package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// File is a named, fully readable input such as a dropped or picked file.
type File interface {
	Name() string
	ReadAll(ctx context.Context) ([]byte, error)
}

type pathFile struct {
	path string
}

func FromPath(path string) File {
	return &pathFile{path: path}
}

func (f *pathFile) Name() string {
	return filepath.Base(f.path)
}

func (f *pathFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(&ctxReader{ctx: ctx, r: file})
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

type memFile struct {
	name string
	data []byte
}

func FromBytes(name string, data []byte) File {
	return &memFile{name: name, data: data}
}

func (f *memFile) Name() string {
	return f.name
}

func (f *memFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out, nil
}

// ReadText decodes the file contents as UTF-8 text.
func ReadText(ctx context.Context, f File) (string, error) {
	data, err := f.ReadAll(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadDataURL returns the contents as `data:<mime>;base64,<payload>`.
func ReadDataURL(ctx context.Context, f File) (string, error) {
	data, err := f.ReadAll(ctx)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(data), nil
}

func EncodeDataURL(data []byte) string {
	return "data:" + DetectMIME(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func DetectMIME(data []byte) string {
	mime := mimetype.Detect(data).String()
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	return strings.TrimSpace(mime)
}

// DecodeDataURL parses a base64 data URL into its media type and payload.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data url has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}
	return mediaType, data, nil
}
