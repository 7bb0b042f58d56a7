package listcache

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"modguard/internal/metrics"
)

// feedMaxBytes bounds how much of the feed body is read; a misbehaving feed
// must not exhaust memory.
const feedMaxBytes = 4 << 20

// HTTPFeed fetches a plain-text blacklist feed: one domain or filename
// pattern per line, '#' starts a comment.
type HTTPFeed struct {
	url    string
	client *retryablehttp.Client
}

func NewHTTPFeed(url string, timeout time.Duration) *HTTPFeed {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &HTTPFeed{url: url, client: client}
}

func (f *HTTPFeed) FetchPatterns(ctx context.Context) ([]string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.FeedRefreshes.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.FeedRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	patterns, err := parseFeed(io.LimitReader(resp.Body, feedMaxBytes))
	if err != nil {
		metrics.FeedRefreshes.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.FeedRefreshes.WithLabelValues("ok").Inc()
	return patterns, nil
}

func parseFeed(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.ToLower(line))
	}
	return patterns, scanner.Err()
}
