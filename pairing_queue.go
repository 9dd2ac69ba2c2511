package main

import "sync"

// Matcher decides whether an incoming candidate may pair with one already waiting.
// It is always called as CanMatch(existing, incoming).
type Matcher[T any] interface {
	CanMatch(existing, incoming T) (bool, error)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc[T any] func(existing, incoming T) (bool, error)

func (f MatcherFunc[T]) CanMatch(existing, incoming T) (bool, error) { return f(existing, incoming) }

// MatchSubscriber is notified when Push pairs two candidates. An error returned from
// OnMatch is handed back to the same subscriber's OnError.
type MatchSubscriber[T any] interface {
	OnMatch(existing, incoming T) error
	OnError(err error)
}

// PairingQueue holds unmatched candidates and pairs each new one with the earliest
// compatible waiting candidate.
type PairingQueue[T any] struct {
	matcher Matcher[T]

	mu          sync.Mutex
	items       []T
	subscribers []MatchSubscriber[T]
}

func NewPairingQueue[T any](matcher Matcher[T]) *PairingQueue[T] {
	return &PairingQueue[T]{matcher: matcher}
}

func (q *PairingQueue[T]) Subscribe(sub MatchSubscriber[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers = append(q.subscribers, sub)
}

// Push pairs candidate with the first compatible waiting candidate, in insertion order,
// or enqueues it. The match notification runs after both candidates are out of the queue.
// A matcher failure leaves the queue unchanged and is returned as *PredicateError.
func (q *PairingQueue[T]) Push(candidate T) error {
	matched, subs, ok, err := q.take(candidate)
	if err != nil || !ok {
		return err
	}
	for _, sub := range subs {
		if err := sub.OnMatch(matched, candidate); err != nil {
			sub.OnError(err)
		}
	}
	return nil
}

// take removes and returns the first waiting candidate compatible with candidate, or
// enqueues candidate when there is none.
func (q *PairingQueue[T]) take(candidate T) (matched T, subs []MatchSubscriber[T], ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, existing := range q.items {
		compatible, err := q.matcher.CanMatch(existing, candidate)
		if err != nil {
			return matched, nil, false, &PredicateError{Err: err}
		}
		if compatible {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return existing, q.subscribers, true, nil
		}
	}
	q.items = append(q.items, candidate)
	return matched, nil, false, nil
}

// Some reports whether any waiting candidate satisfies pred.
func (q *PairingQueue[T]) Some(pred func(T) bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if pred(item) {
			return true
		}
	}
	return false
}

// RemoveWhere drops every waiting candidate satisfying pred without notifying anyone,
// and returns how many were removed.
func (q *PairingQueue[T]) RemoveWhere(pred func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0:0]
	for _, item := range q.items {
		if !pred(item) {
			kept = append(kept, item)
		}
	}
	removed := len(q.items) - len(kept)
	q.items = kept
	return removed
}

// Len returns the number of waiting candidates.
func (q *PairingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
