package activity

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"modguard/internal/config"
	"modguard/internal/moderation"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func testConfig() config.GuildConfig {
	cfg := config.DefaultGuildConfig()
	cfg.FreqLimit = 5
	cfg.FreqWindowSeconds = 10
	cfg.IdenticalLimit = 3
	cfg.IdenticalWindowSeconds = 30
	cfg.SimilarLimit = 3
	cfg.SimilarWindowSeconds = 30
	cfg.SimilarThreshold = 0.8
	cfg.StickerLimit = 3
	cfg.StickerWindowSeconds = 20
	return cfg
}

func newTestStore() (*Store, *fakeClock) {
	store := NewStore(time.Minute, zap.NewNop())
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store.WithClock(clock)
	return store, clock
}

func message(id, content string) moderation.Message {
	return moderation.Message{ID: id, GuildID: "g1", AuthorID: "u1", Content: content}
}

func TestFrequencyWindow(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()

	// 5 messages at t=0,1,2,3,4: the 5th flags.
	for i := 0; i < 4; i++ {
		if v := store.CheckMessage(message(fmt.Sprintf("m%d", i), fmt.Sprintf("hello %d", i)), cfg); v != nil {
			t.Fatalf("message %d should not flag, got %v", i, v.Kind)
		}
		clock.advance(time.Second)
	}
	v := store.CheckMessage(message("m4", "hello 4"), cfg)
	if v == nil || v.Kind != moderation.KindFrequency {
		t.Fatalf("expected frequency violation, got %+v", v)
	}

	// A 6th message after the window rolled does not flag.
	clock.advance(8 * time.Second)
	if v := store.CheckMessage(message("m5", "hello 5"), cfg); v != nil {
		t.Fatalf("rolled window should not flag, got %v", v.Kind)
	}
}

func TestFrequencySustainedFloodKeepsTriggering(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()

	for i := 0; i < 4; i++ {
		store.CheckMessage(message(fmt.Sprintf("m%d", i), fmt.Sprintf("msg %d", i)), cfg)
		clock.advance(100 * time.Millisecond)
	}
	for i := 4; i < 8; i++ {
		v := store.CheckMessage(message(fmt.Sprintf("m%d", i), fmt.Sprintf("msg %d", i)), cfg)
		if v == nil || v.Kind != moderation.KindFrequency {
			t.Fatalf("message %d of a sustained flood should flag", i)
		}
		clock.advance(100 * time.Millisecond)
	}
}

func TestWindowEviction(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()
	cfg.FreqLimit = 2
	cfg.FreqWindowSeconds = 10

	violated, _ := store.RecordAndCheck("g1", "u1", KindFrequency, "", cfg)
	if violated {
		t.Fatalf("first message should not violate")
	}
	clock.advance(11 * time.Second)
	violated, count := store.RecordAndCheck("g1", "u1", KindFrequency, "", cfg)
	if violated || count != 1 {
		t.Fatalf("entry outside window should be evicted, got count %d", count)
	}
}

func TestDuplicateDetection(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()
	cfg.FreqLimit = 0 // isolate the duplicate check

	for i := 0; i < 2; i++ {
		if v := store.CheckMessage(message(fmt.Sprintf("m%d", i), "buy cheap nitro"), cfg); v != nil {
			t.Fatalf("message %d should not flag yet, got %v", i, v.Kind)
		}
		clock.advance(time.Second)
	}
	v := store.CheckMessage(message("m2", "buy cheap nitro"), cfg)
	if v == nil || v.Kind != moderation.KindDuplicate {
		t.Fatalf("expected duplicate violation, got %+v", v)
	}

	// Different content does not extend the duplicate count.
	if v := store.CheckMessage(message("m3", "something else entirely"), cfg); v != nil {
		t.Fatalf("distinct content should not flag, got %v", v.Kind)
	}
}

func TestSimilarRun(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()
	cfg.FreqLimit = 0
	cfg.IdenticalLimit = 0 // isolate similarity

	msgs := []string{
		"join my server right now for totally free nitro gifts today",
		"join my server right now for totally free nitro gifts friends",
		"join my server right now for totally free nitro gifts everyone",
	}
	var v *moderation.Violation
	for i, content := range msgs {
		v = store.CheckMessage(message(fmt.Sprintf("m%d", i), content), cfg)
		clock.advance(time.Second)
	}
	if v == nil || v.Kind != moderation.KindSimilar {
		t.Fatalf("expected similar violation on run of near-duplicates, got %+v", v)
	}

	// A dissimilar message resets the run.
	if v := store.CheckMessage(message("m9", "completely unrelated words here now"), cfg); v != nil {
		t.Fatalf("dissimilar message should reset run, got %v", v.Kind)
	}
}

func TestEmptyContentSkipsDuplicateAndSimilar(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()
	cfg.FreqLimit = 0
	cfg.IdenticalLimit = 3
	cfg.SimilarLimit = 3
	cfg.StickerLimit = 5

	// Sticker-only messages have empty content; they must not accumulate
	// duplicate hits, only sticker hits.
	for i := 0; i < 4; i++ {
		msg := message(fmt.Sprintf("m%d", i), "")
		msg.StickerIDs = []string{fmt.Sprintf("s%d", i)}
		if v := store.CheckMessage(msg, cfg); v != nil {
			t.Fatalf("sticker-only message %d should not flag, got %v", i, v.Kind)
		}
		clock.advance(time.Second)
	}
	msg := message("m4", "")
	msg.StickerIDs = []string{"s4"}
	v := store.CheckMessage(msg, cfg)
	if v == nil || v.Kind != moderation.KindSticker {
		t.Fatalf("expected sticker violation at the sticker limit, got %+v", v)
	}

	// Attachment-only messages carry no spam signal at all.
	for i := 5; i < 10; i++ {
		if v := store.CheckMessage(message(fmt.Sprintf("m%d", i), "  "), cfg); v != nil {
			t.Fatalf("empty-content message %d should not flag, got %v", i, v.Kind)
		}
		clock.advance(time.Second)
	}
}

func TestWindowBoundaryEntryKept(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()
	cfg.FreqLimit = 2
	cfg.FreqWindowSeconds = 10

	store.RecordAndCheck("g1", "u1", KindFrequency, "", cfg)

	// An entry at exactly window age still counts; eviction is strict.
	clock.advance(10 * time.Second)
	violated, count := store.RecordAndCheck("g1", "u1", KindFrequency, "", cfg)
	if !violated || count != 2 {
		t.Fatalf("entry at exactly window age should count, got violated=%t count=%d", violated, count)
	}
}

func TestStickerLimit(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()
	cfg.FreqLimit = 0
	cfg.IdenticalLimit = 0
	cfg.SimilarLimit = 0

	for i := 0; i < 2; i++ {
		msg := message(fmt.Sprintf("m%d", i), "")
		msg.StickerIDs = []string{"s1"}
		if v := store.CheckMessage(msg, cfg); v != nil {
			t.Fatalf("sticker %d should not flag, got %v", i, v.Kind)
		}
		clock.advance(time.Second)
	}
	msg := message("m2", "")
	msg.StickerIDs = []string{"s2"}
	v := store.CheckMessage(msg, cfg)
	if v == nil || v.Kind != moderation.KindSticker {
		t.Fatalf("expected sticker violation, got %+v", v)
	}
}

func TestDisabledChecksSkipped(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()
	cfg.FreqLimit = 0
	cfg.IdenticalLimit = 0
	cfg.SimilarLimit = 0
	cfg.StickerLimit = 0

	for i := 0; i < 50; i++ {
		msg := message(fmt.Sprintf("m%d", i), "same content")
		msg.StickerIDs = []string{"s1"}
		if v := store.CheckMessage(msg, cfg); v != nil {
			t.Fatalf("disabled checks should never flag, got %v", v.Kind)
		}
		clock.advance(10 * time.Millisecond)
	}
}

func TestSweepRemovesIdleEntries(t *testing.T) {
	store, clock := newTestStore()
	cfg := testConfig()

	store.CheckMessage(message("m1", "hello"), cfg)
	if store.Len() != 1 {
		t.Fatalf("expected one tracked entry")
	}

	clock.advance(longestWindow(cfg) + 2*time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected sweep to remove 1 entry, removed %d", removed)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store after sweep")
	}
}
