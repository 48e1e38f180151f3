package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsie/config"
)

// browser-like agent; several news sites refuse obvious bot agents
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const DefaultTimeout = 20 * time.Second

// Fetcher retrieves the readable text of an article page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type FetcherType string

const (
	ReadabilityFetcherType FetcherType = "readability"
	ChromedpFetcherType    FetcherType = "chromedp"
)

// Extractor resolves an article URL to its full text: a primary fetcher
// first, then the Jina Reader proxy as fallback. Domains known to block
// direct fetching skip the primary attempt entirely.
type Extractor struct {
	primary  Fetcher
	fallback Fetcher
	blocked  []string
}

// NewExtractor builds the extractor configured for ingestion.
func NewExtractor(cfg config.IngestConfig) (*Extractor, error) {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var primary Fetcher
	switch FetcherType(cfg.Fetcher) {
	case ReadabilityFetcherType, "":
		primary = &ReadabilityFetcher{Timeout: timeout}
	case ChromedpFetcherType:
		primary = &ChromedpFetcher{Timeout: timeout}
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", cfg.Fetcher)
	}

	return &Extractor{
		primary:  primary,
		fallback: &JinaReaderFetcher{Timeout: timeout},
		blocked:  cfg.BlockedDomains,
	}, nil
}

// Extract returns the article text for rawURL, or an empty string when
// every strategy fails. Extraction problems never abort ingestion; callers
// fall back to the RSS summary.
func (e *Extractor) Extract(ctx context.Context, rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return ""
	}

	if !e.isBlocked(rawURL) {
		if text, err := e.primary.Fetch(ctx, rawURL); err == nil && text != "" {
			return text
		}
	}

	text, err := e.fallback.Fetch(ctx, rawURL)
	if err != nil {
		return ""
	}
	return text
}

func (e *Extractor) isBlocked(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	for _, d := range e.blocked {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// JinaReaderFetcher proxies a page through r.jina.ai, which returns the
// readable text for pages that refuse direct fetching.
type JinaReaderFetcher struct {
	Timeout time.Duration

	// BaseURL overrides the proxy endpoint, used by tests.
	BaseURL string
}

func (j *JinaReaderFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	base := j.BaseURL
	if base == "" {
		base = "https://r.jina.ai"
	}
	stripped := regexp.MustCompile(`^https?://`).ReplaceAllString(rawURL, "")
	proxied := fmt.Sprintf("%s/http://%s", base, stripped)

	body, err := get(ctx, proxied, j.Timeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

func get(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s returned status: %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// stripHTML is the last-resort cleanup when readability cannot find an
// article body.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := scriptRe.ReplaceAllString(html, "")
	text = styleRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, "")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
