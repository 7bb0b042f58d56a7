package listcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeSource struct {
	white map[string][]string
	black map[string][]string
	calls int
	err   error
}

func (f *fakeSource) ListWhitelistPatterns(ctx context.Context, guildID string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.white[guildID], nil
}

func (f *fakeSource) ListBlacklistPatterns(ctx context.Context, guildID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.black[guildID], nil
}

func TestLazyPopulateAndInvalidate(t *testing.T) {
	source := &fakeSource{
		white: map[string][]string{"g1": {"Example.com"}},
		black: map[string][]string{"g1": {"malware.com"}},
	}
	cache := New(source, nil, 16, time.Minute, zap.NewNop())
	ctx := context.Background()

	white, err := cache.GetWhitelist(ctx, "g1")
	if err != nil {
		t.Fatalf("get whitelist: %v", err)
	}
	if _, ok := white["example.com"]; !ok {
		t.Fatalf("expected lower-cased entry, got %v", white)
	}

	// Second read is served from cache.
	if _, err := cache.GetBlacklist(ctx, "g1"); err != nil {
		t.Fatalf("get blacklist: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected 1 source call, got %d", source.calls)
	}

	source.white["g1"] = []string{"other.com"}
	cache.Invalidate("g1")
	white, err = cache.GetWhitelist(ctx, "g1")
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if _, ok := white["other.com"]; !ok {
		t.Fatalf("expected refreshed entry, got %v", white)
	}
	if source.calls != 2 {
		t.Fatalf("expected 2 source calls, got %d", source.calls)
	}
}

func TestSourceErrorPropagates(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	cache := New(source, nil, 16, time.Minute, zap.NewNop())

	if _, err := cache.GetWhitelist(context.Background(), "g1"); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeFetcher struct {
	patterns []string
	err      error
}

func (f *fakeFetcher) FetchPatterns(ctx context.Context) ([]string, error) {
	return f.patterns, f.err
}

func TestRemoteFeedRefreshKeepsSnapshotOnFailure(t *testing.T) {
	fetcher := &fakeFetcher{patterns: []string{"Bad.com", "# not this"}}
	cache := New(&fakeSource{}, fetcher, 16, time.Minute, zap.NewNop())
	ctx := context.Background()

	if err := cache.RefreshRemoteFeed(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	remote := cache.Remote()
	if _, ok := remote["bad.com"]; !ok {
		t.Fatalf("expected bad.com in snapshot, got %v", remote)
	}

	fetcher.err = errors.New("feed down")
	if err := cache.RefreshRemoteFeed(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	remote = cache.Remote()
	if _, ok := remote["bad.com"]; !ok {
		t.Fatalf("previous snapshot should survive a failed refresh")
	}
}

func TestHTTPFeedParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# comment\nMalware.com\n\nphish.example\n"))
	}))
	defer server.Close()

	feed := NewHTTPFeed(server.URL, 2*time.Second)
	patterns, err := feed.FetchPatterns(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(patterns) != 2 || patterns[0] != "malware.com" || patterns[1] != "phish.example" {
		t.Fatalf("unexpected patterns: %v", patterns)
	}
}

func TestHTTPFeedBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	feed := NewHTTPFeed(server.URL, 2*time.Second)
	feed.client.RetryMax = 0
	if _, err := feed.FetchPatterns(context.Background()); err == nil {
		t.Fatalf("expected error on non-200")
	}
}
