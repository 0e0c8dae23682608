package handler

import (
	"net/http"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type convertRequest struct {
	HTML string `json:"html"`
}

type convertResponse struct {
	ConvertedMd string     `json:"convertedMd,omitempty"`
	Error       *errorBody `json:"error,omitempty"`
}

// ConvertHandler turns posted HTML into Markdown. Input is sanitized
// before conversion so scripts and event handlers never reach the output.
type ConvertHandler struct {
	policy    *bluemonday.Policy
	converter *converter.Converter
	maxBytes  int64
}

func NewConvertHandler(maxBytes int64) *ConvertHandler {
	return &ConvertHandler{
		policy: bluemonday.UGCPolicy(),
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		maxBytes: maxBytes,
	}
}

func (h *ConvertHandler) Convert(html string) (string, error) {
	md, err := h.converter.ConvertString(h.policy.Sanitize(html))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

func (h *ConvertHandler) HTMLToMarkdown(c *gin.Context) {
	limitBody(c, h.maxBytes)
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, convertResponse{Error: &errorBody{Message: "invalid request body"}})
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		c.JSON(http.StatusBadRequest, convertResponse{Error: &errorBody{Message: "html is required"}})
		return
	}
	md, err := h.Convert(req.HTML)
	if err != nil {
		logRequestError(c, "convert html failed", err)
		c.JSON(http.StatusInternalServerError, convertResponse{Error: &errorBody{Message: "conversion failed"}})
		return
	}
	logutil.GetLogger(c.Request.Context()).Debug("html converted", zap.Int("html_size", len(req.HTML)), zap.Int("markdown_size", len(md)))
	c.JSON(http.StatusOK, convertResponse{ConvertedMd: md})
}
