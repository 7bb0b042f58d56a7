package moderation

import "time"

type ViolationKind string

const (
	KindFrequency  ViolationKind = "frequency"
	KindDuplicate  ViolationKind = "duplicate"
	KindSimilar    ViolationKind = "similar"
	KindSticker    ViolationKind = "sticker"
	KindAttachment ViolationKind = "attachment"
	KindLink       ViolationKind = "link"
)

type Attachment struct {
	Filename  string
	SizeBytes int64
	URL       string
}

// Message is the engine-side view of an inbound chat message. The bot
// adapter translates platform events into this shape so the pipeline and
// checks never depend on the chat library directly.
type Message struct {
	ID          string
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorIsBot bool
	Content     string
	StickerIDs  []string
	Attachments []Attachment
	CreatedAt   time.Time
}

type Violation struct {
	Kind       ViolationKind
	Evidence   string
	MessageID  string
	GuildID    string
	UserID     string
	DetectedAt time.Time
}
