package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mdesk/internal/filestore"
	"github.com/xxxsen/mdesk/internal/source"
)

type uploadRequest struct {
	ImageName    string `json:"image_name"`
	FileContents string `json:"fileContents"`
}

type uploadData struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

type uploadResponse struct {
	Data uploadData `json:"data"`
}

type ImageHandler struct {
	store    filestore.Store
	maxBytes int64
}

func NewImageHandler(store filestore.Store, maxBytes int64) *ImageHandler {
	return &ImageHandler{store: store, maxBytes: maxBytes}
}

func (h *ImageHandler) Upload(c *gin.Context) {
	// base64 inflates the payload by a third
	limitBody(c, h.maxBytes/3*4+4096)
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		uploadFailed(c, http.StatusBadRequest, "invalid request body")
		return
	}
	_, data, err := source.DecodeDataURL(req.FileContents)
	if err != nil {
		uploadFailed(c, http.StatusBadRequest, err.Error())
		return
	}
	if h.maxBytes > 0 && int64(len(data)) > h.maxBytes {
		uploadFailed(c, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
		return
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		uploadFailed(c, http.StatusBadRequest, "payload is not an image")
		return
	}
	name := req.ImageName
	if filepath.Ext(name) == "" {
		name += mt.Extension()
	}
	key := filestore.NewKey(name)
	if err := h.store.Save(c.Request.Context(), key, filestore.FromBytes(data), int64(len(data))); err != nil {
		logRequestError(c, "save image failed", err)
		uploadFailed(c, http.StatusInternalServerError, "failed to store image")
		return
	}
	url := h.store.URL(key, requestBaseURL(c))
	logutil.GetLogger(c.Request.Context()).Info("image stored",
		zap.String("name", req.ImageName),
		zap.String("key", key),
		zap.String("mime", mt.String()),
		zap.Int("size", len(data)),
	)
	c.JSON(http.StatusOK, uploadResponse{Data: uploadData{URL: url}})
}

func uploadFailed(c *gin.Context, status int, msg string) {
	c.JSON(status, uploadResponse{Data: uploadData{Error: msg}})
}

func rejectUpload(c *gin.Context) {
	uploadFailed(c, http.StatusTooManyRequests, "too many uploads, try again shortly")
}
