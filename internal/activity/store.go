package activity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"modguard/internal/config"
	"modguard/internal/moderation"
)

type Kind int

const (
	KindFrequency Kind = iota
	KindDuplicate
	KindSimilar
	KindSticker
	kindCount
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type event struct {
	at     time.Time
	signal string
}

// userWindows holds the sliding-window state for one (guild,user) pair.
// Its mutex serializes every evaluation for that pair; evaluations for
// different pairs never contend.
type userWindows struct {
	mu          sync.Mutex
	buckets     [kindCount][]event
	similarRun  int
	retainUntil time.Time
}

// Store tracks per-(guild,user) activity windows. Entries are created on
// first message and evicted lazily; an optional sweep drops entries idle
// beyond their longest window plus a grace period.
type Store struct {
	mu      sync.Mutex
	entries map[string]*userWindows
	clock   Clock
	grace   time.Duration
	logger  *zap.Logger
}

func NewStore(idleGrace time.Duration, logger *zap.Logger) *Store {
	if idleGrace <= 0 {
		idleGrace = 5 * time.Minute
	}
	return &Store{
		entries: make(map[string]*userWindows),
		clock:   realClock{},
		grace:   idleGrace,
		logger:  logger,
	}
}

func (s *Store) WithClock(clock Clock) {
	s.clock = clock
}

// ContentHash is the exact-duplicate signal for a message body.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(normalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// CheckMessage runs the spam checks for one message in fixed order
// (frequency, duplicate, similarity, sticker) under a single per-key lock,
// stopping at the first violation. The buffers are never cleared on a hit,
// so a sustained flood keeps triggering; the dispatcher de-duplicates
// repeated actions.
func (s *Store) CheckMessage(msg moderation.Message, cfg config.GuildConfig) *moderation.Violation {
	entry := s.entry(msg.GuildID + ":" + msg.AuthorID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := s.clock.Now()
	entry.retainUntil = now.Add(longestWindow(cfg) + s.grace)

	if violated, count := entry.checkFrequency(now, cfg); violated {
		return s.violation(msg, moderation.KindFrequency,
			fmt.Sprintf("%d messages in %ds", count, cfg.FreqWindowSeconds), now)
	}
	// Sticker-only and attachment-only messages have no body to compare;
	// they carry no duplicate or similarity signal.
	if normalizeContent(msg.Content) != "" {
		if violated, count := entry.checkDuplicate(now, ContentHash(msg.Content), cfg); violated {
			return s.violation(msg, moderation.KindDuplicate,
				fmt.Sprintf("%d identical messages in %ds", count, cfg.IdenticalWindowSeconds), now)
		}
		if violated, run := entry.checkSimilar(now, msg.Content, cfg); violated {
			return s.violation(msg, moderation.KindSimilar,
				fmt.Sprintf("%d consecutive messages above %.2f similarity", run, cfg.SimilarThreshold), now)
		}
	}
	for _, stickerID := range msg.StickerIDs {
		if violated, count := entry.checkSticker(now, stickerID, cfg); violated {
			return s.violation(msg, moderation.KindSticker,
				fmt.Sprintf("%d stickers in %ds", count, cfg.StickerWindowSeconds), now)
		}
	}
	return nil
}

// RecordAndCheck is the single-check primitive: it appends (now, signal) to
// the deque for kind, evicts expired entries, and reports whether the
// configured limit was reached along with the relevant count.
func (s *Store) RecordAndCheck(guildID, userID string, kind Kind, signal string, cfg config.GuildConfig) (bool, int) {
	entry := s.entry(guildID + ":" + userID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := s.clock.Now()
	entry.retainUntil = now.Add(longestWindow(cfg) + s.grace)

	switch kind {
	case KindFrequency:
		return entry.checkFrequency(now, cfg)
	case KindDuplicate:
		return entry.checkDuplicate(now, signal, cfg)
	case KindSimilar:
		return entry.checkSimilar(now, signal, cfg)
	case KindSticker:
		return entry.checkSticker(now, signal, cfg)
	default:
		return false, 0
	}
}

func (s *Store) violation(msg moderation.Message, kind moderation.ViolationKind, evidence string, now time.Time) *moderation.Violation {
	return &moderation.Violation{
		Kind:       kind,
		Evidence:   evidence,
		MessageID:  msg.ID,
		GuildID:    msg.GuildID,
		UserID:     msg.AuthorID,
		DetectedAt: now,
	}
}

func (s *Store) entry(key string) *userWindows {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[key]
	if entry == nil {
		entry = &userWindows{}
		s.entries[key] = entry
	}
	return entry
}

// Len reports the number of tracked (guild,user) pairs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes entries idle beyond their retention horizon.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if !entry.mu.TryLock() {
			continue
		}
		expired := now.After(entry.retainUntil)
		entry.mu.Unlock()
		if expired {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweep runs Sweep on a fixed interval until ctx is cancelled.
func (s *Store) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					s.logger.Debug("activity sweep", zap.Int("removed", removed))
				}
			}
		}
	}()
}

func (w *userWindows) checkFrequency(now time.Time, cfg config.GuildConfig) (bool, int) {
	if cfg.FreqLimit <= 0 || cfg.FreqWindowSeconds <= 0 {
		return false, 0
	}
	window := time.Duration(cfg.FreqWindowSeconds) * time.Second
	w.buckets[KindFrequency] = appendAndEvict(w.buckets[KindFrequency], now, "", window)
	count := len(w.buckets[KindFrequency])
	return count >= cfg.FreqLimit, count
}

func (w *userWindows) checkDuplicate(now time.Time, hash string, cfg config.GuildConfig) (bool, int) {
	if cfg.IdenticalLimit <= 0 || cfg.IdenticalWindowSeconds <= 0 {
		return false, 0
	}
	window := time.Duration(cfg.IdenticalWindowSeconds) * time.Second
	w.buckets[KindDuplicate] = appendAndEvict(w.buckets[KindDuplicate], now, hash, window)

	count := 0
	for _, ev := range w.buckets[KindDuplicate] {
		if ev.signal == hash {
			count++
		}
	}
	return count >= cfg.IdenticalLimit, count
}

// checkSimilar compares each message against the immediately preceding one
// and counts the run of consecutive messages whose similarity stays at or
// above the threshold. The run resets when a message differs or the
// predecessor rolled out of the window.
func (w *userWindows) checkSimilar(now time.Time, content string, cfg config.GuildConfig) (bool, int) {
	if cfg.SimilarLimit <= 0 || cfg.SimilarWindowSeconds <= 0 || cfg.SimilarThreshold <= 0 {
		return false, 0
	}
	window := time.Duration(cfg.SimilarWindowSeconds) * time.Second

	bucket := evict(w.buckets[KindSimilar], now, window)
	normalized := normalizeContent(content)

	if len(bucket) == 0 {
		w.similarRun = 1
	} else {
		previous := bucket[len(bucket)-1].signal
		if Similarity(previous, normalized) >= cfg.SimilarThreshold {
			w.similarRun++
		} else {
			w.similarRun = 1
		}
	}

	bucket = append(bucket, event{at: now, signal: normalized})
	w.buckets[KindSimilar] = bucket
	return w.similarRun >= cfg.SimilarLimit, w.similarRun
}

func (w *userWindows) checkSticker(now time.Time, stickerID string, cfg config.GuildConfig) (bool, int) {
	if cfg.StickerLimit <= 0 || cfg.StickerWindowSeconds <= 0 {
		return false, 0
	}
	window := time.Duration(cfg.StickerWindowSeconds) * time.Second
	w.buckets[KindSticker] = appendAndEvict(w.buckets[KindSticker], now, stickerID, window)
	count := len(w.buckets[KindSticker])
	return count >= cfg.StickerLimit, count
}

func appendAndEvict(bucket []event, now time.Time, signal string, window time.Duration) []event {
	bucket = evict(bucket, now, window)
	return append(bucket, event{at: now, signal: signal})
}

// evict drops events strictly older than the window; an event at exactly
// window age still counts.
func evict(bucket []event, now time.Time, window time.Duration) []event {
	cutoff := now.Add(-window)
	idx := 0
	for _, ev := range bucket {
		if !ev.at.Before(cutoff) {
			break
		}
		idx++
	}
	return bucket[idx:]
}
