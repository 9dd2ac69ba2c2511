package main

import "time"

// BotEvent records something the bot did or observed.
type BotEvent struct {
	Type    string            // "queued", "already_queued", "cancelled", "matched", "left", "closed", "error", "status"
	UserID  int64             // user the event concerns (0 if none)
	PlurkID int64             // plurk the event concerns (0 if none)
	Message string            // human-readable detail
	Extra   map[string]string // event-specific data (partner, chat_url, kind, etc.)
	Time    time.Time
}

// InboundMessage is a message from an external notifier channel addressed to the bot.
type InboundMessage struct {
	Source  string // Channel name (e.g., "Discord")
	Author  string
	Content string
}

// BotSubscriber receives BotEvents published by the Bot.
type BotSubscriber interface {
	OnBotEvent(event BotEvent)
}
