package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// PlatformAdapter implements the dispatcher's platform surface on top of a
// discord session. The context is honored by the dispatcher's own timeout
// and rate limiting; discordgo manages its own HTTP lifecycle.
type PlatformAdapter struct {
	session *discordgo.Session
}

func (p *PlatformAdapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return p.session.ChannelMessageDelete(channelID, messageID)
}

func (p *PlatformAdapter) TimeoutUser(ctx context.Context, guildID, userID string, duration time.Duration) error {
	until := time.Now().Add(duration)
	return p.session.GuildMemberTimeout(guildID, userID, &until)
}

func (p *PlatformAdapter) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := p.session.ChannelMessageSend(channelID, content)
	return err
}

func (p *PlatformAdapter) SendDirectMessage(ctx context.Context, userID, content string) error {
	channel, err := p.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = p.session.ChannelMessageSend(channel.ID, content)
	return err
}
