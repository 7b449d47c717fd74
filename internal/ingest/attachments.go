package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// AttachmentResolver fetches attachment bytes and returns an inline data URI.
// Normalization treats resolution as best effort: a failed fetch drops the
// image from the rendered body and nothing else.
type AttachmentResolver interface {
	DataURI(ctx context.Context, src string) (string, error)
}

// HTTPAttachmentResolver downloads attachments over HTTP.
type HTTPAttachmentResolver struct {
	http     *http.Client
	maxBytes int64
}

// NewHTTPAttachmentResolver builds a resolver with sane limits.
func NewHTTPAttachmentResolver() *HTTPAttachmentResolver {
	return &HTTPAttachmentResolver{
		http:     &http.Client{Timeout: 15 * time.Second},
		maxBytes: 8 << 20,
	}
}

func (r *HTTPAttachmentResolver) DataURI(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("attachment fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("data:image/%s;base64,%s", imageExtension(src), base64.StdEncoding.EncodeToString(body)), nil
}

func imageExtension(src string) string {
	parsed, err := url.Parse(src)
	if err != nil {
		return "jpeg"
	}
	ext := strings.TrimPrefix(path.Ext(parsed.Path), ".")
	if ext == "" {
		return "jpeg"
	}
	return ext
}

// NoopAttachmentResolver never resolves; rendered bodies omit all images.
// Used in tests and when inline embedding is disabled.
type NoopAttachmentResolver struct{}

func (NoopAttachmentResolver) DataURI(context.Context, string) (string, error) {
	return "", errors.New("attachment resolution disabled")
}
