package activity

import (
	"strings"
	"time"

	"modguard/internal/config"
)

// Similarity is a shingle-set Jaccard measure over word 3-grams of the two
// (already normalized) contents. It returns a value in [0,1]; identical
// inputs score 1, disjoint inputs 0. Short messages fall back to comparing
// word sets directly.
func Similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}

	shinglesA := shingles(a)
	shinglesB := shingles(b)
	if len(shinglesA) == 0 || len(shinglesB) == 0 {
		return 0
	}

	intersection := 0
	for shingle := range shinglesA {
		if _, ok := shinglesB[shingle]; ok {
			intersection++
		}
	}
	union := len(shinglesA) + len(shinglesB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

const shingleSize = 3

func shingles(content string) map[string]struct{} {
	words := strings.Fields(content)
	set := make(map[string]struct{})
	if len(words) < shingleSize {
		for _, word := range words {
			set[word] = struct{}{}
		}
		return set
	}
	for i := 0; i+shingleSize <= len(words); i++ {
		set[strings.Join(words[i:i+shingleSize], " ")] = struct{}{}
	}
	return set
}

func normalizeContent(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

func longestWindow(cfg config.GuildConfig) time.Duration {
	longest := cfg.FreqWindowSeconds
	if cfg.IdenticalWindowSeconds > longest {
		longest = cfg.IdenticalWindowSeconds
	}
	if cfg.SimilarWindowSeconds > longest {
		longest = cfg.SimilarWindowSeconds
	}
	if cfg.StickerWindowSeconds > longest {
		longest = cfg.StickerWindowSeconds
	}
	return time.Duration(longest) * time.Second
}
