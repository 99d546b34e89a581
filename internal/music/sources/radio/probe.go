package radio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var validContentTypes = []string{
	"audio/", // General catch
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/ogg",
	"application/x-scpls",
	"application/xspf+xml",
	"application/octet-stream", // risky but often used for streams
}

// Prober validates stream links by checking headers and heuristics.
type Prober struct {
	Client *http.Client
}

func NewProber() *Prober {
	return &Prober{
		Client: &http.Client{
			Timeout: 5 * time.Second,
			// Follow redirects manually so we can inspect each step if needed
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Check probes rawURL and returns the URL it redirects to when the content
// type or extension looks like audio.
func (r *Prober) Check(ctx context.Context, rawURL string) (string, error) {
	contentType, finalURL, err := r.fetchContentType(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch content type: %w", err)
	}
	if isAllowedType(contentType) || isLikelyPlaylist(finalURL) {
		return finalURL, nil
	}
	return "", fmt.Errorf("invalid stream content-type: %q, url: %s", contentType, finalURL)
}

func (r *Prober) fetchContentType(ctx context.Context, rawURL string) (string, string, error) {
	resp, err := r.do(ctx, http.MethodHead, rawURL)
	if err != nil || resp.StatusCode >= 400 {
		if err == nil {
			resp.Body.Close()
		}
		// Some stream servers refuse HEAD.
		resp, err = r.do(ctx, http.MethodGet, rawURL)
		if err != nil {
			return "", "", fmt.Errorf("GET fallback failed: %w", err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return "", "", fmt.Errorf("status %d", resp.StatusCode)
		}
	}
	// Live streams never end; only the headers are needed.
	resp.Body.Close()
	return resp.Header.Get("Content-Type"), resp.Request.URL.String(), nil
}

func (r *Prober) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	return r.Client.Do(req)
}

func isAllowedType(contentType string) bool {
	// Normalize and strip params like "audio/mpeg; charset=utf-8"
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	for _, allowed := range validContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func isLikelyPlaylist(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".m3u", ".m3u8", ".pls", ".xspf", ".asx":
		return true
	}
	return false
}
