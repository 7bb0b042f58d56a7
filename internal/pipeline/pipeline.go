package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"modguard/internal/activity"
	"modguard/internal/config"
	"modguard/internal/dispatch"
	"modguard/internal/inspect"
	"modguard/internal/metrics"
	"modguard/internal/moderation"
)

// Pipeline evaluates one inbound message: spam checks first (frequency,
// duplicate, similarity, sticker), then content checks (attachments, then
// links), stopping at the first violation. At most one dispatch happens per
// message, and no error anywhere aborts the evaluation of other messages.
type Pipeline struct {
	configs    *ConfigCache
	activity   *activity.Store
	inspector  *inspect.Inspector
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

func New(configs *ConfigCache, activityStore *activity.Store, inspector *inspect.Inspector, dispatcher *dispatch.Dispatcher, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		configs:    configs,
		activity:   activityStore,
		inspector:  inspector,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Evaluate runs the full state machine for one message and returns the
// dispatch outcome, or nil when no violation was found (or the guild is
// disabled, or config could not be loaded — fail-open).
func (p *Pipeline) Evaluate(ctx context.Context, msg moderation.Message) *dispatch.Outcome {
	if msg.AuthorIsBot || msg.GuildID == "" {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.EvalDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.MessagesEvaluated.Inc()

	cfg, err := p.configs.Get(ctx, msg.GuildID)
	if err != nil {
		metrics.ConfigLoadErrors.Inc()
		p.logger.Warn("guild config load failed, skipping checks",
			zap.String("guild_id", msg.GuildID), zap.Error(err))
		return nil
	}
	if !cfg.Enabled {
		return nil
	}

	violation := p.activity.CheckMessage(msg, cfg)

	if violation == nil {
		violation = p.checkAttachments(ctx, msg, cfg)
	}
	if violation == nil && cfg.CheckLinks && msg.Content != "" {
		violation = p.checkLinks(ctx, msg, cfg)
	}
	if violation == nil {
		return nil
	}

	// The guild may have been disabled while this evaluation was in
	// flight; re-check before acting.
	current, err := p.configs.Get(ctx, msg.GuildID)
	if err != nil {
		current = cfg
	}
	if !current.Enabled {
		return nil
	}

	outcome := p.dispatcher.Apply(ctx, *violation, msg, current)
	return &outcome
}

func (p *Pipeline) checkAttachments(ctx context.Context, msg moderation.Message, cfg config.GuildConfig) *moderation.Violation {
	for _, att := range msg.Attachments {
		if p.inspector.IsDangerousAttachment(ctx, msg.GuildID, att, cfg) {
			return &moderation.Violation{
				Kind:       moderation.KindAttachment,
				Evidence:   att.Filename,
				MessageID:  msg.ID,
				GuildID:    msg.GuildID,
				UserID:     msg.AuthorID,
				DetectedAt: time.Now(),
			}
		}
	}
	return nil
}

func (p *Pipeline) checkLinks(ctx context.Context, msg moderation.Message, cfg config.GuildConfig) *moderation.Violation {
	links := p.inspector.FindDangerousLinks(ctx, msg.GuildID, msg.Content, cfg)
	if len(links) == 0 {
		return nil
	}
	return &moderation.Violation{
		Kind:       moderation.KindLink,
		Evidence:   links[0],
		MessageID:  msg.ID,
		GuildID:    msg.GuildID,
		UserID:     msg.AuthorID,
		DetectedAt: time.Now(),
	}
}
