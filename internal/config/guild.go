package config

import "strings"

// GuildConfig is the per-guild moderation configuration. It is owned by the
// storage layer and read-only to the engine during an evaluation; the
// pipeline refreshes it through its cache on miss or explicit invalidation.
type GuildConfig struct {
	Enabled    bool `yaml:"enabled"`
	CheckLinks bool `yaml:"check_links"`
	StrictMode bool `yaml:"strict_mode"`

	FreqLimit         int `yaml:"freq_limit"`
	FreqWindowSeconds int `yaml:"freq_window_seconds"`

	IdenticalLimit         int `yaml:"identical_limit"`
	IdenticalWindowSeconds int `yaml:"identical_window_seconds"`

	SimilarLimit         int     `yaml:"similar_limit"`
	SimilarWindowSeconds int     `yaml:"similar_window_seconds"`
	SimilarThreshold     float64 `yaml:"similar_threshold"`

	StickerLimit         int `yaml:"sticker_limit"`
	StickerWindowSeconds int `yaml:"sticker_window_seconds"`

	TimeoutMinutes  int    `yaml:"timeout_minutes"`
	DeleteMessage   bool   `yaml:"delete_message"`
	NotifyAdmin     bool   `yaml:"notify_admin"`
	WarnUser        bool   `yaml:"warn_user"`
	NotifyChannelID string `yaml:"notify_channel_id"`
	ResponseMessage string `yaml:"response_message"`

	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	// Additive to the global dangerous extension set, stored lower-cased
	// without leading dots.
	CustomDangerousExtensions []string `yaml:"custom_dangerous_extensions"`
}

func DefaultGuildConfig() GuildConfig {
	return GuildConfig{
		Enabled:                true,
		CheckLinks:             true,
		StrictMode:             false,
		FreqLimit:              6,
		FreqWindowSeconds:      8,
		IdenticalLimit:         4,
		IdenticalWindowSeconds: 30,
		SimilarLimit:           5,
		SimilarWindowSeconds:   45,
		SimilarThreshold:       0.85,
		StickerLimit:           5,
		StickerWindowSeconds:   20,
		TimeoutMinutes:         10,
		DeleteMessage:          true,
		NotifyAdmin:            false,
		WarnUser:               true,
		MaxFileSizeMB:          25,
	}
}

// Normalized clamps every field to its documented range. Rows loaded from
// storage go through this so a bad value degrades a single check instead of
// failing the evaluation.
func (g GuildConfig) Normalized() GuildConfig {
	g.FreqLimit = clampNonNegative(g.FreqLimit)
	g.FreqWindowSeconds = clampNonNegative(g.FreqWindowSeconds)
	g.IdenticalLimit = clampNonNegative(g.IdenticalLimit)
	g.IdenticalWindowSeconds = clampNonNegative(g.IdenticalWindowSeconds)
	g.SimilarLimit = clampNonNegative(g.SimilarLimit)
	g.SimilarWindowSeconds = clampNonNegative(g.SimilarWindowSeconds)
	g.StickerLimit = clampNonNegative(g.StickerLimit)
	g.StickerWindowSeconds = clampNonNegative(g.StickerWindowSeconds)
	g.TimeoutMinutes = clampNonNegative(g.TimeoutMinutes)
	g.MaxFileSizeMB = clampNonNegative(g.MaxFileSizeMB)

	if g.SimilarThreshold < 0 {
		g.SimilarThreshold = 0
	}
	if g.SimilarThreshold > 1 {
		g.SimilarThreshold = 1
	}

	if len(g.CustomDangerousExtensions) > 0 {
		cleaned := make([]string, 0, len(g.CustomDangerousExtensions))
		for _, ext := range g.CustomDangerousExtensions {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext != "" {
				cleaned = append(cleaned, ext)
			}
		}
		g.CustomDangerousExtensions = cleaned
	}
	return g
}

// CustomExtensionSet returns the guild's additive extensions as a set.
func (g GuildConfig) CustomExtensionSet() map[string]struct{} {
	if len(g.CustomDangerousExtensions) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(g.CustomDangerousExtensions))
	for _, ext := range g.CustomDangerousExtensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}

func clampNonNegative(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
