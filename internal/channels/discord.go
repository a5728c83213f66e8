package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/basket/tzwatch/internal/model"
)

// DiscordChannel adapts Discord's gateway connection. Unlike the other
// platforms, Discord bots don't receive messages over a webhook; a
// persistent websocket session is the only delivery path, the reason the
// original implementation's Discord connector stayed an unimplemented stub.
// Run drives that connection for the lifetime of ctx, pushing normalized
// events onto sink as they arrive.
type DiscordChannel struct {
	session *discordgo.Session
}

// NewDiscordChannel opens a discordgo session for the given bot token
// without connecting yet; Run performs the actual gateway handshake.
func NewDiscordChannel(botToken string) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord init failed: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	return &DiscordChannel{session: session}, nil
}

func (d *DiscordChannel) Platform() model.Platform { return model.PlatformDiscord }

// Run opens the gateway connection, forwards every normalized text message
// to sink, and blocks until ctx is cancelled.
func (d *DiscordChannel) Run(ctx context.Context, sink chan<- model.NormalizedEvent) error {
	remove := d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if event := normalizeDiscordMessage(m); event != nil {
			select {
			case sink <- *event:
			case <-ctx.Done():
			}
		}
	})
	defer remove()

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord gateway open failed: %w", err)
	}
	defer d.session.Close()

	<-ctx.Done()
	return nil
}

func normalizeDiscordMessage(m *discordgo.MessageCreate) *model.NormalizedEvent {
	if m.Author == nil || m.Author.Bot || strings.TrimSpace(m.Content) == "" {
		return nil
	}
	event := &model.NormalizedEvent{
		Platform:    model.PlatformDiscord,
		EventID:     m.ChannelID + "_" + m.ID,
		MessageID:   m.ID,
		ChatID:      m.ChannelID,
		UserID:      m.Author.ID,
		Username:    m.Author.Username,
		DisplayName: m.Author.Username,
		Text:        m.Content,
		Timestamp:   m.Timestamp.UTC(),
	}
	if m.MessageReference != nil {
		event.ReplyToMessageID = m.MessageReference.MessageID
	}
	return event
}

// Send delivers an outbound reply via the REST API, threading it as a reply
// when ReplyToMessageID is set.
func (d *DiscordChannel) Send(_ context.Context, msg model.OutboundMessage) error {
	if msg.ReplyToMessageID != "" {
		ref := &discordgo.MessageReference{MessageID: msg.ReplyToMessageID, ChannelID: msg.ChatID}
		if _, err := d.session.ChannelMessageSendReply(msg.ChatID, msg.Text, ref); err != nil {
			return fmt.Errorf("discord send failed (channel=%s): %w", msg.ChatID, err)
		}
		return nil
	}
	if _, err := d.session.ChannelMessageSend(msg.ChatID, msg.Text); err != nil {
		return fmt.Errorf("discord send failed (channel=%s): %w", msg.ChatID, err)
	}
	return nil
}
