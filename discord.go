package main

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

type DiscordChannel struct {
	session   *discordgo.Session
	channelID string
	inbound   chan InboundMessage
	botUserID string
	cfg       *Config
}

func NewDiscordChannel(token, channelID string, cfg *Config) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discordgo session: %w", err)
	}

	dc := &DiscordChannel{
		session:   session,
		channelID: channelID,
		inbound:   make(chan InboundMessage, 100),
		cfg:       cfg,
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(dc.onMessage)

	return dc, nil
}

func (dc *DiscordChannel) Name() string { return "Discord" }

func (dc *DiscordChannel) Start(ctx context.Context) error {
	if err := dc.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	dc.botUserID = dc.session.State.User.ID
	log.Printf("discord bot connected as %s", dc.session.State.User.Username)

	<-ctx.Done()
	dc.session.Close()
	return nil
}

func (dc *DiscordChannel) Send(ctx context.Context, event BotEvent) error {
	// status is a reply to an admin command and is never filtered
	if event.Type != "status" && !dc.cfg.discordEventAllowed(event.Type) {
		return nil
	}

	msg := formatBotEvent(event)
	if msg == "" {
		return nil
	}

	_, err := dc.session.ChannelMessageSend(dc.channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send to Discord: %w", err)
	}
	return nil
}

func (dc *DiscordChannel) Messages() <-chan InboundMessage { return dc.inbound }

func (dc *DiscordChannel) Close() error {
	return dc.session.Close()
}

func (dc *DiscordChannel) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot || m.Author.ID == dc.botUserID {
		return
	}
	if m.ChannelID != dc.channelID {
		return
	}
	if m.Content == "" {
		return
	}

	author := m.Author.GlobalName
	if author == "" {
		author = m.Author.Username
	}

	select {
	case dc.inbound <- InboundMessage{Source: "Discord", Author: author, Content: m.Content}:
	default:
		log.Printf("discord inbound full, dropping message from %s", author)
	}
}

func formatBotEvent(e BotEvent) string {
	switch e.Type {
	case "queued":
		return fmt.Sprintf("⏳ User **%d** is waiting for a partner", e.UserID)
	case "already_queued":
		return fmt.Sprintf("🔁 User **%d** asked again while waiting", e.UserID)
	case "cancelled":
		return fmt.Sprintf("✖️ User **%d** cancelled matching", e.UserID)
	case "matched":
		return fmt.Sprintf("💞 Matched **%s**: %s", e.Message, e.Extra["chat_url"])
	case "left":
		return fmt.Sprintf("👋 **%s** left chat %s", e.Message, plurkURL(e.PlurkID))
	case "closed":
		return fmt.Sprintf("🚪 Chat %s closed", plurkURL(e.PlurkID))
	case "error":
		return fmt.Sprintf("⚠️ %s error: %s", e.Extra["kind"], e.Message)
	case "status":
		return fmt.Sprintf("📊 %s in queue", e.Message)
	default:
		return ""
	}
}
