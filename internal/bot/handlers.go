package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works in a guild.")
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "allowlist":
		b.handleListCommand(ctx, session, interaction, data, true)
	case "blocklist":
		b.handleListCommand(ctx, session, interaction, data, false)
	case "automod":
		b.handleAutomodCommand(ctx, session, interaction, data)
	}
}

func (b *Bot) handleListCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, allow bool) {
	if len(data.Options) == 0 {
		b.respond(session, interaction, "Missing subcommand.")
		return
	}
	sub := data.Options[0]
	guildID := interaction.GuildID

	name := "blocklist"
	if allow {
		name = "allowlist"
	}

	switch sub.Name {
	case "add", "remove":
		if len(sub.Options) == 0 {
			b.respond(session, interaction, "Missing pattern.")
			return
		}
		pattern := strings.TrimSpace(sub.Options[0].StringValue())
		if pattern == "" {
			b.respond(session, interaction, "Pattern must not be empty.")
			return
		}

		var err error
		switch {
		case allow && sub.Name == "add":
			err = b.store.AddWhitelistPattern(ctx, guildID, pattern)
		case allow && sub.Name == "remove":
			err = b.store.RemoveWhitelistPattern(ctx, guildID, pattern)
		case !allow && sub.Name == "add":
			err = b.store.AddBlacklistPattern(ctx, guildID, pattern)
		default:
			err = b.store.RemoveBlacklistPattern(ctx, guildID, pattern)
		}
		if err != nil {
			b.logger.Warn("list update failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respond(session, interaction, "Update failed.")
			return
		}
		// Edits must be visible to in-flight evaluations immediately.
		b.lists.Invalidate(guildID)
		b.respond(session, interaction, fmt.Sprintf("%s %sed `%s`.", name, sub.Name, strings.ToLower(pattern)))
	case "list":
		var patterns []string
		var err error
		if allow {
			patterns, err = b.store.ListWhitelistPatterns(ctx, guildID)
		} else {
			patterns, err = b.store.ListBlacklistPatterns(ctx, guildID)
		}
		if err != nil {
			b.respond(session, interaction, "Lookup failed.")
			return
		}
		if len(patterns) == 0 {
			b.respond(session, interaction, name+" is empty.")
			return
		}
		b.respond(session, interaction, name+": "+strings.Join(patterns, ", "))
	}
}

func (b *Bot) handleAutomodCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		b.respond(session, interaction, "Missing subcommand.")
		return
	}
	guildID := interaction.GuildID

	cfg, err := b.store.GetGuildConfig(ctx, guildID, b.cfg.GuildDefaults)
	if err != nil {
		b.respond(session, interaction, "Config lookup failed.")
		return
	}

	switch data.Options[0].Name {
	case "enable", "disable":
		cfg.Enabled = data.Options[0].Name == "enable"
		if err := b.store.UpsertGuildConfig(ctx, guildID, cfg); err != nil {
			b.logger.Warn("config update failed", zap.String("guild_id", guildID), zap.Error(err))
			b.respond(session, interaction, "Update failed.")
			return
		}
		b.configs.Invalidate(guildID)
		b.respond(session, interaction, fmt.Sprintf("Moderation %sd.", data.Options[0].Name))
	case "status":
		counters, err := b.store.GetCounters(ctx, guildID)
		if err != nil {
			b.respond(session, interaction, "Counter lookup failed.")
			return
		}
		var lines []string
		lines = append(lines, fmt.Sprintf("enabled=%t strict=%t links=%t", cfg.Enabled, cfg.StrictMode, cfg.CheckLinks))
		names := make([]string, 0, len(counters))
		for name := range counters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("%s: %d", name, counters[name]))
		}
		b.respond(session, interaction, strings.Join(lines, "\n"))
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}
