package extract

import (
	"context"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// ReadabilityFetcher does a plain GET and extracts the article body with
// go-readability, falling back to a tag strip when no body is found.
type ReadabilityFetcher struct {
	Timeout time.Duration
}

func (r *ReadabilityFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	html, err := get(ctx, rawURL, r.Timeout)
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return stripHTML(html), nil
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return stripHTML(html), nil
	}
	return text, nil
}
