package main

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultRetryDelay = 3 * time.Second

	// offsetResync is the new_offset value the comet server sends when the cursor expired.
	offsetResync = -3
)

var callbackPattern = regexp.MustCompile(`(?s)^CometChannel\.scriptCallback\((.*)\);$`)

// ChannelSubscriber receives events from a CometChannel. Calls happen on the polling
// goroutine, in the order the server returned the events.
type ChannelSubscriber interface {
	OnPlurk(event PlurkEvent)
	OnResponse(event ResponseEvent)
	OnError(err error)
}

type pollState int

const (
	stateFetching pollState = iota
	stateWaiting
	stateStopped
)

// CometChannel long-polls a Plurk comet endpoint and tracks the server-issued offset.
type CometChannel struct {
	endpoint  string
	channelID string
	wakeURL   string
	fetcher   Fetcher

	offset  atomic.Int64
	polling atomic.Bool

	mu          sync.RWMutex
	subscribers []ChannelSubscriber
}

type ChannelOption func(*CometChannel)

// WithWakeURL makes every poll iteration first GET url with the channel id, keeping the
// server-side comet session alive.
func WithWakeURL(url string) ChannelOption {
	return func(c *CometChannel) { c.wakeURL = url }
}

// NewCometChannel creates a channel with offset 0. No I/O is performed.
func NewCometChannel(endpoint, channelID string, fetcher Fetcher, opts ...ChannelOption) *CometChannel {
	c := &CometChannel{
		endpoint:  endpoint,
		channelID: channelID,
		fetcher:   fetcher,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CometChannel) Subscribe(sub ChannelSubscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, sub)
}

// Offset returns the current cursor.
func (c *CometChannel) Offset() int64 {
	return c.offset.Load()
}

func (c *CometChannel) ChannelID() string { return c.channelID }

type pollOptions struct {
	retry      bool
	retryDelay time.Duration
}

type PollOption func(*pollOptions)

// WithRetry controls whether Poll keeps going after a failed iteration. Default true.
func WithRetry(retry bool) PollOption {
	return func(o *pollOptions) { o.retry = retry }
}

// WithRetryDelay sets the wait between a failed iteration and the next fetch. Default 3s.
func WithRetryDelay(d time.Duration) PollOption {
	return func(o *pollOptions) { o.retryDelay = d }
}

// Poll fetches events until ctx is cancelled. Failures are reported to subscribers via
// OnError and retried after the retry delay. With retry disabled, Poll returns the first
// failure. Only one Poll may run at a time.
func (c *CometChannel) Poll(ctx context.Context, opts ...PollOption) error {
	o := pollOptions{retry: true, retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		opt(&o)
	}

	if !c.polling.CompareAndSwap(false, true) {
		return ErrAlreadyPolling
	}
	defer c.polling.Store(false)

	state := stateFetching
	var lastErr error
	for {
		switch state {
		case stateFetching:
			if err := ctx.Err(); err != nil {
				return err
			}
			err := c.pollOnce(ctx)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			c.emitError(err)
			if o.retry {
				state = stateWaiting
			} else {
				state = stateStopped
			}
		case stateWaiting:
			if err := sleepCtx(ctx, o.retryDelay); err != nil {
				return err
			}
			state = stateFetching
		case stateStopped:
			return lastErr
		}
	}
}

func (c *CometChannel) pollOnce(ctx context.Context) error {
	if c.wakeURL != "" {
		wake, err := setParams(c.wakeURL, map[string]string{"channel": c.channelID})
		if err != nil {
			return &TransportError{URL: c.wakeURL, Err: err}
		}
		if _, err := c.get(ctx, wake); err != nil {
			return err
		}
	}

	u, err := setParams(c.endpoint, map[string]string{
		"channel": c.channelID,
		"offset":  strconv.FormatInt(c.Offset(), 10),
	})
	if err != nil {
		return &TransportError{URL: c.endpoint, Err: err}
	}
	body, err := c.get(ctx, u)
	if err != nil {
		return err
	}

	resp, err := parseCometResponse(body)
	if err != nil {
		return err
	}

	if resp.newOffset != nil {
		switch off := *resp.newOffset; {
		case off >= 0:
			c.offset.Store(off)
		case off == offsetResync:
			c.offset.Store(0)
		}
	}

	for _, ev := range resp.events {
		switch {
		case ev.plurk != nil:
			c.emitPlurk(*ev.plurk)
		case ev.response != nil:
			c.emitResponse(*ev.response)
		case ev.err != nil:
			c.emitError(ev.err)
		}
	}
	return nil
}

func (c *CometChannel) get(ctx context.Context, u string) ([]byte, error) {
	res, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, &TransportError{URL: u, Err: err}
	}
	if !isSuccess(res.Status) {
		return nil, &TransportError{URL: u, Status: res.Status}
	}
	return res.Body, nil
}

func (c *CometChannel) snapshot() []ChannelSubscriber {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribers
}

func (c *CometChannel) emitPlurk(e PlurkEvent) {
	for _, sub := range c.snapshot() {
		sub.OnPlurk(e)
	}
}

func (c *CometChannel) emitResponse(e ResponseEvent) {
	for _, sub := range c.snapshot() {
		sub.OnResponse(e)
	}
}

func (c *CometChannel) emitError(err error) {
	for _, sub := range c.snapshot() {
		sub.OnError(err)
	}
}

type cometEvent struct {
	plurk    *PlurkEvent
	response *ResponseEvent
	err      error // element could not be decoded; reported and skipped
}

type cometResponse struct {
	newOffset *int64
	events    []cometEvent
}

// parseCometResponse unwraps CometChannel.scriptCallback(<json>); and decodes the envelope.
// Elements with unknown types are skipped. An element that fails to decode becomes an
// error entry in its position so the rest of the batch and new_offset still apply.
func parseCometResponse(body []byte) (cometResponse, error) {
	text := bytes.TrimSpace(body)
	m := callbackPattern.FindSubmatch(text)
	if m == nil {
		return cometResponse{}, &ProtocolError{Reason: "missing scriptCallback wrapper", Body: string(text)}
	}

	var envelope struct {
		NewOffset *int64            `json:"new_offset"`
		Data      []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(m[1], &envelope); err != nil {
		return cometResponse{}, &ProtocolError{Reason: "decode envelope", Body: string(m[1]), Err: err}
	}

	resp := cometResponse{newOffset: envelope.NewOffset}
	for i, raw := range envelope.Data {
		resp.events = append(resp.events, decodeCometElement(i, raw))
	}
	return resp, nil
}

func decodeCometElement(i int, raw json.RawMessage) cometEvent {
	elementErr := func(reason string, err error) cometEvent {
		return cometEvent{err: &ProtocolError{
			Reason: "decode data[" + strconv.Itoa(i) + "] " + reason,
			Body:   string(raw),
			Err:    err,
		}}
	}

	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return elementErr("type", err)
	}
	switch tag.Type {
	case "new_plurk":
		var p Plurk
		if err := json.Unmarshal(raw, &p); err != nil {
			return elementErr(tag.Type, err)
		}
		return cometEvent{plurk: &PlurkEvent{Plurk: p, Raw: raw}}
	case "new_response":
		var r ResponseEvent
		if err := json.Unmarshal(raw, &r); err != nil {
			return elementErr(tag.Type, err)
		}
		r.Raw = raw
		return cometEvent{response: &r}
	default:
		return cometEvent{}
	}
}
