package main

import "context"

// Channel abstracts an external chat platform the bot reports to (Discord, Slack, etc.).
type Channel interface {
	Name() string
	Send(ctx context.Context, event BotEvent) error
	Messages() <-chan InboundMessage
	Start(ctx context.Context) error
	Close() error
}
