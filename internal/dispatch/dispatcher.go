package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"modguard/internal/audit"
	"modguard/internal/config"
	"modguard/internal/metrics"
	"modguard/internal/moderation"
	"modguard/internal/storage"
)

// Platform is the chat-platform surface the dispatcher acts through.
type Platform interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	TimeoutUser(ctx context.Context, guildID, userID string, duration time.Duration) error
	SendMessage(ctx context.Context, channelID, content string) error
	SendDirectMessage(ctx context.Context, userID, content string) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type ActionResult struct {
	Action string
	Err    error
}

// Outcome reports what the dispatcher did for one violation. Degraded is
// set when at least one side effect failed; the violation is still
// considered handled.
type Outcome struct {
	Applied    bool
	Suppressed bool
	Degraded   bool
	Results    []ActionResult
}

// Dispatcher applies the configured remedial action for a violation. It
// guarantees at most one externally visible action per message, applies a
// per-(guild,user,kind) cooldown so sustained floods do not hammer the
// platform API, and throttles all outbound calls.
type Dispatcher struct {
	platform Platform
	store    *storage.Store
	audit    *audit.Logger
	logger   *zap.Logger
	limiter  *rate.Limiter
	clock    Clock

	acted *expirable.LRU[string, struct{}]

	mu        sync.Mutex
	cooldowns map[string]time.Time
	cooldown  time.Duration
	backoff   time.Duration
}

type Options struct {
	RatePerSecond float64
	Burst         int
	Cooldown      time.Duration
	RetryBackoff  time.Duration
}

func New(platform Platform, store *storage.Store, auditLogger *audit.Logger, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	return &Dispatcher{
		platform:  platform,
		store:     store,
		audit:     auditLogger,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		clock:     realClock{},
		acted:     expirable.NewLRU[string, struct{}](65536, nil, 10*time.Minute),
		cooldowns: make(map[string]time.Time),
		cooldown:  opts.Cooldown,
		backoff:   opts.RetryBackoff,
	}
}

func (d *Dispatcher) WithClock(clock Clock) {
	d.clock = clock
}

// Apply performs the configured side effects for a violation, in order:
// delete, timeout, warn, notify. Each action is attempted independently; a
// failure in one never prevents the others. Every call records statistics
// and an audit entry even when the visible action is suppressed.
func (d *Dispatcher) Apply(ctx context.Context, v moderation.Violation, msg moderation.Message, cfg config.GuildConfig) Outcome {
	metrics.ViolationsDetected.WithLabelValues(string(v.Kind)).Inc()
	d.countBlocked(ctx, v)

	if _, seen := d.acted.Get(msg.ID); seen {
		metrics.ActionsSuppressed.Inc()
		return Outcome{Suppressed: true}
	}
	d.acted.Add(msg.ID, struct{}{})

	if d.onCooldown(v) {
		metrics.ActionsSuppressed.Inc()
		d.audit.Record(ctx, v.GuildID, v.UserID, v.MessageID, string(v.Kind), v.Evidence, "suppressed=cooldown")
		return Outcome{Suppressed: true}
	}

	var results []ActionResult
	if cfg.DeleteMessage {
		results = append(results, d.attempt(ctx, "delete", func(ctx context.Context) error {
			return d.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID)
		}))
	}
	if cfg.TimeoutMinutes > 0 {
		duration := time.Duration(cfg.TimeoutMinutes) * time.Minute
		results = append(results, d.attempt(ctx, "timeout", func(ctx context.Context) error {
			return d.platform.TimeoutUser(ctx, v.GuildID, v.UserID, duration)
		}))
	}
	if cfg.WarnUser {
		warning := cfg.ResponseMessage
		if warning == "" {
			warning = fmt.Sprintf("Your message was removed by moderation (%s).", v.Kind)
		}
		results = append(results, d.attempt(ctx, "warn", func(ctx context.Context) error {
			return d.platform.SendDirectMessage(ctx, v.UserID, warning)
		}))
	}
	if cfg.NotifyAdmin && cfg.NotifyChannelID != "" {
		notice := fmt.Sprintf("Violation by <@%s>: %s (%s)", v.UserID, v.Kind, v.Evidence)
		results = append(results, d.attempt(ctx, "notify", func(ctx context.Context) error {
			return d.platform.SendMessage(ctx, cfg.NotifyChannelID, notice)
		}))
	}

	outcome := Outcome{Applied: true, Results: results}
	for _, result := range results {
		if result.Err != nil {
			outcome.Degraded = true
		}
	}
	d.audit.Record(ctx, v.GuildID, v.UserID, v.MessageID, string(v.Kind), v.Evidence, summarize(results))
	return outcome
}

// attempt runs one side effect under the outbound rate limit, retrying
// once after a short backoff on failure.
func (d *Dispatcher) attempt(ctx context.Context, name string, action func(context.Context) error) ActionResult {
	if err := d.limiter.Wait(ctx); err != nil {
		metrics.ActionsAttempted.WithLabelValues(name, "error").Inc()
		return ActionResult{Action: name, Err: err}
	}
	err := action(ctx)
	if err != nil {
		select {
		case <-ctx.Done():
			metrics.ActionsAttempted.WithLabelValues(name, "error").Inc()
			return ActionResult{Action: name, Err: err}
		case <-time.After(d.backoff):
		}
		err = action(ctx)
	}
	if err != nil {
		metrics.ActionsAttempted.WithLabelValues(name, "error").Inc()
		d.logger.Warn("dispatch action failed", zap.String("action", name), zap.Error(err))
		return ActionResult{Action: name, Err: err}
	}
	metrics.ActionsAttempted.WithLabelValues(name, "ok").Inc()
	return ActionResult{Action: name}
}

// cooldownPruneSize bounds the cooldown map; expired keys are swept out
// once it grows past this.
const cooldownPruneSize = 4096

func (d *Dispatcher) onCooldown(v moderation.Violation) bool {
	key := v.GuildID + ":" + v.UserID + ":" + string(v.Kind)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if until, ok := d.cooldowns[key]; ok {
		if now.Before(until) {
			return true
		}
		delete(d.cooldowns, key)
	}
	if len(d.cooldowns) >= cooldownPruneSize {
		for k, until := range d.cooldowns {
			if !now.Before(until) {
				delete(d.cooldowns, k)
			}
		}
	}
	d.cooldowns[key] = now.Add(d.cooldown)
	return false
}

func (d *Dispatcher) countBlocked(ctx context.Context, v moderation.Violation) {
	if d.store == nil {
		return
	}
	if err := d.store.IncrementCounter(ctx, v.GuildID, counterName(v.Kind)); err != nil {
		d.logger.Warn("counter update failed", zap.Error(err))
	}
}

func counterName(kind moderation.ViolationKind) string {
	switch kind {
	case moderation.KindAttachment:
		return "attachments_blocked"
	case moderation.KindLink:
		return "links_blocked"
	default:
		return string(kind) + "_blocked"
	}
}

func summarize(results []ActionResult) string {
	if len(results) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(results))
	for _, result := range results {
		status := "ok"
		if result.Err != nil {
			status = "failed"
		}
		parts = append(parts, result.Action+"="+status)
	}
	return strings.Join(parts, " ")
}
