package audit

import (
	"context"
	"time"

	"modguard/internal/storage"

	"go.uber.org/zap"
)

// Logger appends violation outcomes to the persistent audit log and mirrors
// them to the structured log.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) Record(ctx context.Context, guildID, userID, messageID, kind, evidence, actions string) {
	entry := storage.AuditEntry{
		GuildID:   guildID,
		UserID:    userID,
		MessageID: messageID,
		Kind:      kind,
		Evidence:  evidence,
		Actions:   actions,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditEntry(ctx, entry); err != nil {
			l.logger.Warn("audit persist failed", zap.Error(err))
		}
	}
	l.logger.Info("audit",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("message_id", messageID),
		zap.String("kind", kind),
		zap.String("evidence", evidence),
		zap.String("actions", actions),
	)
}
