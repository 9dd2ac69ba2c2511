package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// BridgeSubscriber forwards BotEvents to the Bridge's event channel.
type BridgeSubscriber struct {
	events chan<- BotEvent
}

func (s *BridgeSubscriber) OnBotEvent(event BotEvent) {
	select {
	case s.events <- event:
	default:
		// Drop event if channel is full (avoid blocking the bot loop)
	}
}

// StatusSource reports how many match requests are waiting.
type StatusSource interface {
	Waiting() int
}

// Bridge fans out BotEvents to all channels and answers admin commands from them.
type Bridge struct {
	status   StatusSource
	channels []Channel
	events   chan BotEvent
}

func NewBridge(status StatusSource, channels []Channel) *Bridge {
	return &Bridge{
		status:   status,
		channels: channels,
		events:   make(chan BotEvent, 100),
	}
}

// Events returns the event channel for subscribers to write to.
func (b *Bridge) Events() chan<- BotEvent {
	return b.events
}

// FanOutEvents reads events and sends them to all channels.
func (b *Bridge) FanOutEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.events:
			for _, ch := range b.channels {
				if err := ch.Send(ctx, event); err != nil {
					log.Printf("send to %s: %v", ch.Name(), err)
				}
			}
		}
	}
}

// HandleInbound reads messages from a channel and answers the commands it knows.
func (b *Bridge) HandleInbound(ctx context.Context, ch Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch.Messages():
			if err := b.handleCommand(ctx, ch, msg); err != nil {
				log.Printf("command from %s/%s: %v", msg.Source, msg.Author, err)
			}
		}
	}
}

func (b *Bridge) handleCommand(ctx context.Context, ch Channel, msg InboundMessage) error {
	switch strings.TrimSpace(msg.Content) {
	case "!status":
		n := b.status.Waiting()
		return ch.Send(ctx, BotEvent{
			Type:    "status",
			Message: fmt.Sprintf("%d waiting", n),
			Extra:   map[string]string{"waiting": strconv.Itoa(n), "requested_by": msg.Author},
		})
	default:
		return nil
	}
}
