package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"modguard/internal/config"
	"modguard/internal/listcache"
	"modguard/internal/moderation"
	"modguard/internal/pipeline"
	"modguard/internal/storage"
)

// Bot translates chat-platform events into pipeline evaluations and exposes
// the platform actions the dispatcher needs. Each inbound message is
// evaluated on its own goroutine so a slow signature fetch for one message
// never stalls the others.
type Bot struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *storage.Store
	lists    *listcache.Cache
	configs  *pipeline.ConfigCache
	pipeline *pipeline.Pipeline
	session  *discordgo.Session
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, lists *listcache.Cache, configs *pipeline.ConfigCache) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		lists:   lists,
		configs: configs,
		session: session,
	}, nil
}

// SetPipeline wires the evaluation pipeline. Called once before Start; the
// pipeline itself needs the bot's platform adapter, hence the two phases.
func (b *Bot) SetPipeline(p *pipeline.Pipeline) {
	b.pipeline = p
}

// Platform returns the dispatcher-facing action surface.
func (b *Bot) Platform() *PlatformAdapter {
	return &PlatformAdapter{session: b.session}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	return b.registerCommands()
}

func (b *Bot) Close() {
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	evaluation := toMessage(msg)
	go func() {
		b.pipeline.Evaluate(context.Background(), evaluation)
	}()
}

func toMessage(msg *discordgo.MessageCreate) moderation.Message {
	out := moderation.Message{
		ID:          msg.ID,
		GuildID:     msg.GuildID,
		ChannelID:   msg.ChannelID,
		AuthorID:    msg.Author.ID,
		AuthorIsBot: msg.Author.Bot,
		Content:     msg.Content,
		CreatedAt:   time.Now(),
	}
	if ts, err := discordgo.SnowflakeTimestamp(msg.ID); err == nil {
		out.CreatedAt = ts
	}
	for _, att := range msg.Attachments {
		out.Attachments = append(out.Attachments, moderation.Attachment{
			Filename:  att.Filename,
			SizeBytes: int64(att.Size),
			URL:       att.URL,
		})
	}
	for _, sticker := range msg.StickerItems {
		out.StickerIDs = append(out.StickerIDs, sticker.ID)
	}
	return out
}
