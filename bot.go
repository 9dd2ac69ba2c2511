package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxContentLength = 120
	inboxSize               = 100
)

// differentUsers pairs any two match requests posted by different users.
var differentUsers = MatcherFunc[Plurk](func(existing, incoming Plurk) (bool, error) {
	return existing.UserID != incoming.UserID, nil
})

type inboundEvent struct {
	plurk    *PlurkEvent
	response *ResponseEvent
}

// Bot turns comet events into queue operations and API calls. Comet events are handed
// over through an inbox and handled one at a time by Run, so all queue mutations happen
// on the Run goroutine.
type Bot struct {
	api              *PlurkAPI
	queue            *PairingQueue[Plurk]
	me               User
	maxContentLength int

	inbox chan inboundEvent
	done  chan struct{}
	once  sync.Once

	// ctx is the Run context. Match notifications carry no context of their own, so
	// OnMatch reads this one; it is only valid while Push is called from Run.
	ctx context.Context

	subscribers []BotSubscriber
}

func NewBot(api *PlurkAPI, queue *PairingQueue[Plurk], me User, maxContentLength int) *Bot {
	if maxContentLength <= 0 {
		maxContentLength = defaultMaxContentLength
	}
	b := &Bot{
		api:              api,
		queue:            queue,
		me:               me,
		maxContentLength: maxContentLength,
		inbox:            make(chan inboundEvent, inboxSize),
		done:             make(chan struct{}),
		ctx:              context.Background(),
	}
	queue.Subscribe(b)
	return b
}

func (b *Bot) Subscribe(sub BotSubscriber) {
	b.subscribers = append(b.subscribers, sub)
}

// Waiting returns the number of match requests in the queue.
func (b *Bot) Waiting() int {
	return b.queue.Len()
}

// OnPlurk implements ChannelSubscriber.
func (b *Bot) OnPlurk(event PlurkEvent) {
	b.enqueue(inboundEvent{plurk: &event})
}

// OnResponse implements ChannelSubscriber.
func (b *Bot) OnResponse(event ResponseEvent) {
	b.enqueue(inboundEvent{response: &event})
}

// OnError implements ChannelSubscriber and MatchSubscriber.
func (b *Bot) OnError(err error) {
	log.Printf("%s error: %v", errorKind(err), err)
	b.publish(BotEvent{
		Type:    "error",
		Message: err.Error(),
		Extra:   map[string]string{"kind": errorKind(err)},
	})
}

func (b *Bot) enqueue(ev inboundEvent) {
	select {
	case b.inbox <- ev:
	case <-b.done:
	}
}

// Run handles inbound comet events until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	b.ctx = ctx
	defer b.once.Do(func() { close(b.done) })

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.inbox:
			var err error
			switch {
			case ev.plurk != nil:
				err = b.handlePlurk(ctx, ev.plurk.Plurk)
			case ev.response != nil:
				err = b.handleResponse(ctx, *ev.response)
			}
			if err != nil && ctx.Err() == nil {
				b.OnError(err)
			}
		}
	}
}

// RunFriendSync accepts all pending friend requests every interval, so users can send
// the bot private plurks.
func (b *Bot) RunFriendSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.api.AddAllAsFriends(ctx); err != nil && ctx.Err() == nil {
				b.OnError(fmt.Errorf("add all as friends: %w", err))
			}
		}
	}
}

func (b *Bot) handlePlurk(ctx context.Context, p Plurk) error {
	if !b.isMatchRequest(p) {
		return nil
	}

	if b.queue.Some(func(item Plurk) bool { return item.UserID == p.UserID }) {
		b.publish(BotEvent{Type: "already_queued", UserID: p.UserID, PlurkID: p.PlurkID})
		return b.api.AddResponse(ctx, p.PlurkID, msgAlreadyMatching)
	}

	if err := b.queue.Push(p); err != nil {
		return fmt.Errorf("push plurk %d: %w", p.PlurkID, err)
	}
	// Push may have matched p right away; only tell the user to wait if it is still queued.
	if !b.queue.Some(func(item Plurk) bool { return item.PlurkID == p.PlurkID }) {
		return nil
	}
	b.publish(BotEvent{Type: "queued", UserID: p.UserID, PlurkID: p.PlurkID})
	return b.api.AddResponse(ctx, p.PlurkID, msgMatching)
}

func (b *Bot) handleResponse(ctx context.Context, e ResponseEvent) error {
	if b.isMatchRequest(e.Plurk) && e.Response.UserID == e.Plurk.UserID {
		return b.handleMatchResponse(ctx, e)
	}
	if b.isChat(e.Plurk) && e.Response.UserID != b.me.ID {
		return b.handleChatResponse(ctx, e)
	}
	return nil
}

// isMatchRequest reports whether p is a private plurk from a user to the bot only.
func (b *Bot) isMatchRequest(p Plurk) bool {
	return p.UserID != b.me.ID &&
		p.LimitedTo != nil &&
		*p.LimitedTo == matchRequestLimitedTo(b.me.ID, p.UserID)
}

// isChat reports whether p is a private chat plurk created by the bot.
func (b *Bot) isChat(p Plurk) bool {
	return p.UserID == b.me.ID && p.LimitedTo != nil
}

func (b *Bot) handleMatchResponse(ctx context.Context, e ResponseEvent) error {
	if strings.TrimSpace(e.Response.ContentRaw) != cmdCancel {
		return nil
	}
	b.queue.RemoveWhere(func(item Plurk) bool { return item.PlurkID == e.Plurk.PlurkID })
	b.publish(BotEvent{Type: "cancelled", UserID: e.Plurk.UserID, PlurkID: e.Plurk.PlurkID})
	return b.api.AddResponse(ctx, e.Plurk.PlurkID, msgCancelled)
}

func (b *Bot) handleChatResponse(ctx context.Context, e ResponseEvent) error {
	if strings.TrimSpace(e.Response.ContentRaw) != cmdLeave {
		return nil
	}

	nick := strconv.FormatInt(e.Response.UserID, 10)
	if u, ok := e.User(e.Response.UserID); ok && u.NickName != "" {
		nick = u.NickName
	}

	var remaining []int64
	for _, id := range parseLimitedTo(*e.Plurk.LimitedTo) {
		if id != e.Response.UserID {
			remaining = append(remaining, id)
		}
	}

	if err := b.api.EditLimitedTo(ctx, e.Plurk.PlurkID, remaining); err != nil {
		return fmt.Errorf("remove %d from chat %d: %w", e.Response.UserID, e.Plurk.PlurkID, err)
	}
	if err := b.api.AddResponse(ctx, e.Plurk.PlurkID, msgLeft(nick)); err != nil {
		return fmt.Errorf("announce leave: %w", err)
	}
	b.publish(BotEvent{Type: "left", UserID: e.Response.UserID, PlurkID: e.Plurk.PlurkID, Message: nick})

	if len(remaining) == 1 {
		if err := b.api.DeletePlurk(ctx, e.Plurk.PlurkID); err != nil {
			return fmt.Errorf("delete chat %d: %w", e.Plurk.PlurkID, err)
		}
		b.publish(BotEvent{Type: "closed", PlurkID: e.Plurk.PlurkID})
	}
	return nil
}

// OnMatch implements MatchSubscriber. It opens a private chat plurk for the pair and
// links it from both match requests. It must only be reached through a Push made on the
// Run goroutine; calls from anywhere else would use the wrong context.
func (b *Bot) OnMatch(existing, incoming Plurk) error {
	ctx := b.ctx

	profile1, err := b.api.PublicProfile(ctx, existing.UserID)
	if err != nil {
		return fmt.Errorf("profile %d: %w", existing.UserID, err)
	}
	profile2, err := b.api.PublicProfile(ctx, incoming.UserID)
	if err != nil {
		return fmt.Errorf("profile %d: %w", incoming.UserID, err)
	}

	content := msgChatIntro(
		profile1.NickName, truncate(existing.ContentRaw, b.maxContentLength),
		profile2.NickName, truncate(incoming.ContentRaw, b.maxContentLength),
	)
	chat, err := b.api.AddPlurk(ctx, content, []int64{existing.UserID, incoming.UserID})
	if err != nil {
		return fmt.Errorf("create chat plurk: %w", err)
	}
	link := plurkURL(chat.PlurkID)

	if err := b.api.AddResponse(ctx, existing.PlurkID, msgMatchedLink(link)); err != nil {
		return fmt.Errorf("notify %d: %w", existing.UserID, err)
	}
	if err := b.api.AddResponse(ctx, incoming.PlurkID, msgMatchedLink(link)); err != nil {
		return fmt.Errorf("notify %d: %w", incoming.UserID, err)
	}

	b.publish(BotEvent{
		Type:    "matched",
		UserID:  incoming.UserID,
		PlurkID: chat.PlurkID,
		Message: fmt.Sprintf("%s & %s", profile1.NickName, profile2.NickName),
		Extra: map[string]string{
			"partner":  strconv.FormatInt(existing.UserID, 10),
			"chat_url": link,
		},
	})
	return nil
}

func (b *Bot) publish(event BotEvent) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	for _, sub := range b.subscribers {
		sub.OnBotEvent(event)
	}
}
