package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/mdesk/internal/model"
	appErr "github.com/xxxsen/mdesk/internal/pkg/errors"
)

const maxResponseBytes = 64 * 1024 * 1024

// Error is a failure reported by the server, either as an error field in a
// well-formed response or as a non-2xx status.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 && e.Status != http.StatusOK {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Status == http.StatusNotFound {
		return []error{appErr.ErrRemote, appErr.ErrNotFound}
	}
	return []error{appErr.ErrRemote}
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q: %w", baseURL, appErr.ErrInvalid)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: u, http: hc}, nil
}

type convertRequest struct {
	HTML string `json:"html"`
}

type ErrorBody struct {
	Message string `json:"message"`
}

type ConvertResponse struct {
	ConvertedMd string     `json:"convertedMd"`
	Error       *ErrorBody `json:"error,omitempty"`
}

type UploadRequest struct {
	ImageName    string `json:"image_name"`
	FileContents string `json:"fileContents"`
}

type UploadData struct {
	URL   string          `json:"url,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

type UploadResponse struct {
	Data *UploadData `json:"data"`
}

// ConvertHTML posts html to factory/html_to_md and returns the Markdown.
func (c *Client) ConvertHTML(ctx context.Context, html string) (string, error) {
	const op = "html_to_md"
	var out ConvertResponse
	status, err := c.postJSON(ctx, c.endpoint("factory", "html_to_md"), convertRequest{HTML: html}, &out)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if out.Error != nil {
		return "", &Error{Op: op, Status: status, Message: out.Error.Message}
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", &Error{Op: op, Status: status, Message: http.StatusText(status)}
	}
	return out.ConvertedMd, nil
}

// UploadImage posts a data-URL encoded image and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, name, dataURL string) (string, error) {
	const op = "upload_image"
	var out UploadResponse
	status, err := c.postJSON(ctx, c.endpoint("save", "dropbox", "image"), UploadRequest{ImageName: name, FileContents: dataURL}, &out)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if out.Data != nil && len(out.Data.Error) > 0 && string(out.Data.Error) != "null" {
		return "", &Error{Op: op, Status: status, Message: errorMessage(out.Data.Error)}
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", &Error{Op: op, Status: status, Message: http.StatusText(status)}
	}
	if out.Data == nil || out.Data.URL == "" {
		return "", &Error{Op: op, Status: status, Message: "response has no url"}
	}
	return out.Data.URL, nil
}

func (c *Client) Metadata(ctx context.Context, path string) (*model.Metadata, error) {
	const op = "metadata"
	endpoint, err := c.documentEndpoint("metadata", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp)
	}
	var meta model.Metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return &meta, nil
}

// FetchDocument downloads the raw Markdown body stored at path.
func (c *Client) FetchDocument(ctx context.Context, path string) (string, error) {
	const op = "fetch_document"
	endpoint, err := c.documentEndpoint("documents", path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError(op, resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	return string(data), nil
}

func (c *Client) endpoint(elem ...string) string {
	return c.baseURL.JoinPath(elem...).String()
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// postJSON sends a single request. A non-2xx status is not an error here so
// the caller can still read an error field from the body.
func (c *Client) postJSON(ctx context.Context, endpoint string, in interface{}, out interface{}) (int, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Op: op, Status: resp.StatusCode, Message: msg}
}

// errorMessage accepts either a JSON string or an object with a message field.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var body ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}

// documentEndpoint places path under root. Dot segments and backslashes are
// rejected so the request cannot leave root once the URL is cleaned.
func (c *Client) documentEndpoint(root, path string) (string, error) {
	parts, err := splitPath(path)
	if err != nil {
		return "", err
	}
	return c.endpoint(append([]string{root}, parts...)...), nil
}

func splitPath(path string) ([]string, error) {
	if strings.Contains(path, "\\") {
		return nil, fmt.Errorf("document path %q: %w", path, appErr.ErrInvalidPath)
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "":
			continue
		case ".", "..":
			return nil, fmt.Errorf("document path %q: %w", path, appErr.ErrInvalidPath)
		}
		out = append(out, url.PathEscape(p))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("document path %q: %w", path, appErr.ErrInvalidPath)
	}
	return out, nil
}
