package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu      sync.Mutex
	sent    []BotEvent
	inbound chan InboundMessage
	sentCh  chan BotEvent
	err     error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{inbound: make(chan InboundMessage, 10), sentCh: make(chan BotEvent, 10)}
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Send(_ context.Context, event BotEvent) error {
	c.mu.Lock()
	c.sent = append(c.sent, event)
	c.mu.Unlock()
	c.sentCh <- event
	return c.err
}

func (c *fakeChannel) Messages() <-chan InboundMessage { return c.inbound }
func (c *fakeChannel) Start(ctx context.Context) error { <-ctx.Done(); return nil }
func (c *fakeChannel) Close() error                    { return nil }

type fixedStatus int

func (s fixedStatus) Waiting() int { return int(s) }

func waitSent(t *testing.T, c *fakeChannel) BotEvent {
	t.Helper()
	select {
	case e := <-c.sentCh:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for send")
		return BotEvent{}
	}
}

func TestBridge_FanOutToAllChannels(t *testing.T) {
	a, b := newFakeChannel(), newFakeChannel()
	b.err = errors.New("discord down")
	bridge := NewBridge(fixedStatus(0), []Channel{a, b})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.FanOutEvents(ctx)

	sub := &BridgeSubscriber{events: bridge.Events()}
	sub.OnBotEvent(BotEvent{Type: "matched", Message: "x & y"})

	assert.Equal(t, "matched", waitSent(t, a).Type)
	assert.Equal(t, "matched", waitSent(t, b).Type)
}

func TestBridgeSubscriber_DropsWhenFull(t *testing.T) {
	events := make(chan BotEvent, 1)
	sub := &BridgeSubscriber{events: events}

	sub.OnBotEvent(BotEvent{Type: "queued"})
	sub.OnBotEvent(BotEvent{Type: "cancelled"})

	require.Len(t, events, 1)
	assert.Equal(t, "queued", (<-events).Type)
}

func TestBridge_StatusCommand(t *testing.T) {
	ch := newFakeChannel()
	bridge := NewBridge(fixedStatus(3), []Channel{ch})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.HandleInbound(ctx, ch)

	ch.inbound <- InboundMessage{Source: "fake", Author: "ops", Content: "hello"}
	ch.inbound <- InboundMessage{Source: "fake", Author: "ops", Content: " !status "}

	e := waitSent(t, ch)
	assert.Equal(t, "status", e.Type)
	assert.Equal(t, "3 waiting", e.Message)
	assert.Equal(t, "3", e.Extra["waiting"])
	assert.Equal(t, "ops", e.Extra["requested_by"])

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Len(t, ch.sent, 1, "unknown commands are ignored")
}

func TestFormatBotEvent(t *testing.T) {
	assert.Equal(t, "⏳ User **7** is waiting for a partner", formatBotEvent(BotEvent{Type: "queued", UserID: 7}))
	assert.Equal(t, "💞 Matched **a & b**: https://www.plurk.com/p/10",
		formatBotEvent(BotEvent{Type: "matched", Message: "a & b", Extra: map[string]string{"chat_url": "https://www.plurk.com/p/10"}}))
	assert.Equal(t, "🚪 Chat https://www.plurk.com/p/10 closed", formatBotEvent(BotEvent{Type: "closed", PlurkID: 36}))
	assert.Equal(t, "⚠️ transport error: boom",
		formatBotEvent(BotEvent{Type: "error", Message: "boom", Extra: map[string]string{"kind": "transport"}}))
	assert.Empty(t, formatBotEvent(BotEvent{Type: "unknown"}))
}
