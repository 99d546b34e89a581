package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

var (
	videoPattern    = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)
	ErrNoVideoMatch = errors.New("no video found for the given title")
)

// Searcher finds videos through the public results page.
type Searcher struct {
	BaseURL string
	Client  *http.Client
}

func NewSearcher() *Searcher {
	return &Searcher{
		BaseURL: "https://www.youtube.com",
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FirstVideoURL returns the watch link of the first result for query.
func (s *Searcher) FirstVideoURL(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", s.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search failed with status code %v", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	m := videoPattern.FindSubmatch(body)
	if m == nil {
		return "", ErrNoVideoMatch
	}
	return "https://www.youtube.com/watch?v=" + string(m[1]), nil
}
