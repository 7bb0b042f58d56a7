package storage

import (
	"context"
	"testing"
	"time"

	"modguard/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpsertGuildConfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg := config.DefaultGuildConfig()
	cfg.FreqLimit = 9
	cfg.SimilarThreshold = 0.7
	cfg.CustomDangerousExtensions = []string{"xyz", ".ABC"}

	if err := store.UpsertGuildConfig(ctx, "g1", cfg); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	cfg.FreqLimit = 3
	if err := store.UpsertGuildConfig(ctx, "g1", cfg); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetGuildConfig(ctx, "g1", config.DefaultGuildConfig())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FreqLimit != 3 {
		t.Fatalf("expected freq limit 3, got %d", got.FreqLimit)
	}
	if got.SimilarThreshold != 0.7 {
		t.Fatalf("expected threshold 0.7, got %f", got.SimilarThreshold)
	}
	if len(got.CustomDangerousExtensions) != 2 || got.CustomDangerousExtensions[1] != "abc" {
		t.Fatalf("unexpected custom extensions: %v", got.CustomDangerousExtensions)
	}
}

func TestGetGuildConfigDefaults(t *testing.T) {
	store := newTestStore(t)

	defaults := config.DefaultGuildConfig()
	defaults.FreqLimit = 42
	got, err := store.GetGuildConfig(context.Background(), "missing", defaults)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FreqLimit != 42 {
		t.Fatalf("expected defaults for missing guild, got %d", got.FreqLimit)
	}
}

func TestPatternLists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddWhitelistPattern(ctx, "g1", "Example.COM"); err != nil {
		t.Fatalf("add whitelist: %v", err)
	}
	if err := store.AddBlacklistPattern(ctx, "g1", "malware.com"); err != nil {
		t.Fatalf("add blacklist: %v", err)
	}

	white, err := store.ListWhitelistPatterns(ctx, "g1")
	if err != nil {
		t.Fatalf("list whitelist: %v", err)
	}
	if len(white) != 1 || white[0] != "example.com" {
		t.Fatalf("expected lower-cased whitelist entry, got %v", white)
	}

	if err := store.RemoveBlacklistPattern(ctx, "g1", "MALWARE.com"); err != nil {
		t.Fatalf("remove blacklist: %v", err)
	}
	black, err := store.ListBlacklistPatterns(ctx, "g1")
	if err != nil {
		t.Fatalf("list blacklist: %v", err)
	}
	if len(black) != 0 {
		t.Fatalf("expected empty blacklist, got %v", black)
	}
}

func TestAuditAndCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := AuditEntry{
		GuildID:   "g1",
		UserID:    "u1",
		MessageID: "m1",
		Kind:      "attachment",
		Evidence:  "invoice.pdf.exe",
		Actions:   "delete=ok timeout=ok",
		CreatedAt: time.Now(),
	}
	if err := store.AddAuditEntry(ctx, entry); err != nil {
		t.Fatalf("add audit: %v", err)
	}

	entries, err := store.ListAuditEntries(ctx, "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != "attachment" {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}

	for i := 0; i < 3; i++ {
		if err := store.IncrementCounter(ctx, "g1", "attachments_blocked"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	counters, err := store.GetCounters(ctx, "g1")
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if counters["attachments_blocked"] != 3 {
		t.Fatalf("expected 3, got %d", counters["attachments_blocked"])
	}
}
