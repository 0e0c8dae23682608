package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mdesk/internal/model"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
	"github.com/xxxsen/mdesk/internal/pkg/hashutil"
)

// DocumentHandler exposes Markdown files under a root directory for sync:
// their metadata and their raw bodies.
type DocumentHandler struct {
	root string
}

func NewDocumentHandler(root string) *DocumentHandler {
	return &DocumentHandler{root: root}
}

func (h *DocumentHandler) Metadata(c *gin.Context) {
	data, info, err := h.read(c.Param("path"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Metadata{
		Hash:          hashutil.SumBytes(data),
		LastUpdatedOn: info.ModTime().UnixMilli(),
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	data, _, err := h.read(c.Param("path"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", data)
}

func (h *DocumentHandler) read(rel string) ([]byte, fs.FileInfo, error) {
	full, err := h.resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, nil, fmt.Errorf("document %s: %w", rel, appErr.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}

// resolve maps a request path onto the root, refusing anything that would
// leave it.
func (h *DocumentHandler) resolve(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || strings.Contains(rel, `\`) {
		return "", fmt.Errorf("document path %q: %w", rel, appErr.ErrInvalidPath)
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", fmt.Errorf("document path %q: %w", rel, appErr.ErrInvalidPath)
		}
	}
	cleaned := path.Clean("/" + rel)
	return filepath.Join(h.root, filepath.FromSlash(cleaned)), nil
}

func (h *DocumentHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		c.String(http.StatusNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalidPath):
		c.String(http.StatusBadRequest, "invalid path")
	default:
		logRequestError(c, "read document failed", err)
		c.String(http.StatusInternalServerError, "internal error")
	}
}
