package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type candidate struct {
	id   string
	user int
}

type matchRecorder struct {
	pairs [][2]string
	errs  []error
	err   error // returned from OnMatch
	queue *PairingQueue[candidate]
	lens  []int
}

func (r *matchRecorder) OnMatch(existing, incoming candidate) error {
	r.pairs = append(r.pairs, [2]string{existing.id, incoming.id})
	if r.queue != nil {
		r.lens = append(r.lens, r.queue.Len())
	}
	return r.err
}

func (r *matchRecorder) OnError(err error) {
	r.errs = append(r.errs, err)
}

var differentCandidateUsers = MatcherFunc[candidate](func(existing, incoming candidate) (bool, error) {
	return existing.user != incoming.user, nil
})

func newTestQueue(m Matcher[candidate]) (*PairingQueue[candidate], *matchRecorder) {
	q := NewPairingQueue[candidate](m)
	rec := &matchRecorder{queue: q}
	q.Subscribe(rec)
	return q, rec
}

func byID(id string) func(candidate) bool {
	return func(c candidate) bool { return c.id == id }
}

func TestPush_EnqueuesWithoutPartner(t *testing.T) {
	q, rec := newTestQueue(differentCandidateUsers)

	require.NoError(t, q.Push(candidate{id: "a", user: 1}))
	require.NoError(t, q.Push(candidate{id: "b", user: 1}))

	assert.Empty(t, rec.pairs)
	assert.Equal(t, 2, q.Len())
	assert.True(t, q.Some(byID("a")))
	assert.True(t, q.Some(byID("b")))
}

func TestPush_MatchesAndRemovesBoth(t *testing.T) {
	q, rec := newTestQueue(differentCandidateUsers)

	require.NoError(t, q.Push(candidate{id: "a", user: 1}))
	require.NoError(t, q.Push(candidate{id: "b", user: 2}))

	assert.Equal(t, [][2]string{{"a", "b"}}, rec.pairs)
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Some(byID("a")))
	assert.False(t, q.Some(byID("b")))
	assert.Equal(t, 0, q.RemoveWhere(func(candidate) bool { return true }))
}

func TestPush_StateUpdatedBeforeNotification(t *testing.T) {
	q, rec := newTestQueue(differentCandidateUsers)

	require.NoError(t, q.Push(candidate{id: "a", user: 1}))
	require.NoError(t, q.Push(candidate{id: "x", user: 1}))
	require.NoError(t, q.Push(candidate{id: "b", user: 2}))

	// only "x" is left when the handler runs
	assert.Equal(t, []int{1}, rec.lens)
}

func TestPush_FirstCompatibleWins(t *testing.T) {
	q, rec := newTestQueue(differentCandidateUsers)

	require.NoError(t, q.Push(candidate{id: "A", user: 1}))
	require.NoError(t, q.Push(candidate{id: "B", user: 1}))
	require.NoError(t, q.Push(candidate{id: "C", user: 2}))

	assert.Equal(t, [][2]string{{"A", "C"}}, rec.pairs)
	assert.True(t, q.Some(byID("B")))
	assert.Equal(t, 1, q.Len())
}

func TestPush_SkipsIncompatibleForLaterCandidate(t *testing.T) {
	q, rec := newTestQueue(differentCandidateUsers)

	require.NoError(t, q.Push(candidate{id: "A", user: 2}))
	require.NoError(t, q.Push(candidate{id: "B", user: 2}))
	require.NoError(t, q.Push(candidate{id: "C", user: 3}))

	assert.Equal(t, [][2]string{{"A", "C"}}, rec.pairs)
}

func TestPush_CallsMatcherAsExistingIncoming(t *testing.T) {
	var calls [][2]string
	q, _ := newTestQueue(MatcherFunc[candidate](func(existing, incoming candidate) (bool, error) {
		calls = append(calls, [2]string{existing.id, incoming.id})
		return false, nil
	}))

	require.NoError(t, q.Push(candidate{id: "a"}))
	require.NoError(t, q.Push(candidate{id: "b"}))
	require.NoError(t, q.Push(candidate{id: "c"}))

	assert.Equal(t, [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}}, calls)
}

func TestPush_TrustsPredicateForIdentity(t *testing.T) {
	q, rec := newTestQueue(MatcherFunc[candidate](func(candidate, candidate) (bool, error) {
		return true, nil
	}))

	require.NoError(t, q.Push(candidate{id: "a", user: 1}))
	require.NoError(t, q.Push(candidate{id: "b", user: 1}))

	assert.Equal(t, [][2]string{{"a", "b"}}, rec.pairs)
}

func TestPush_AtMostOneMatchPerCall(t *testing.T) {
	q, rec := newTestQueue(differentCandidateUsers)

	for i, user := range []int{1, 1, 1, 2, 2, 2, 3} {
		before := len(rec.pairs)
		require.NoError(t, q.Push(candidate{id: string(rune('a' + i)), user: user}))
		assert.LessOrEqual(t, len(rec.pairs)-before, 1)
	}

	assert.Equal(t, [][2]string{{"a", "d"}, {"b", "e"}, {"c", "f"}}, rec.pairs)
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Some(byID("g")))
}

func TestRemoveWhere_CancelsSilently(t *testing.T) {
	q, rec := newTestQueue(differentCandidateUsers)

	require.NoError(t, q.Push(candidate{id: "a", user: 1}))
	assert.Equal(t, 1, q.RemoveWhere(byID("a")))
	assert.Empty(t, rec.pairs)

	require.NoError(t, q.Push(candidate{id: "b", user: 2}))
	assert.Empty(t, rec.pairs)
	assert.True(t, q.Some(byID("b")))
}

func TestRemoveWhere_RemovesEveryMatch(t *testing.T) {
	q, _ := newTestQueue(MatcherFunc[candidate](func(candidate, candidate) (bool, error) { return false, nil }))
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Push(candidate{id: id, user: len(id)}))
	}

	n := q.RemoveWhere(func(c candidate) bool { return c.id == "a" || c.id == "c" })

	assert.Equal(t, 2, n)
	assert.False(t, q.Some(byID("a")))
	assert.True(t, q.Some(byID("b")))
	assert.False(t, q.Some(byID("c")))
	assert.True(t, q.Some(byID("d")))
}

func TestSome_EmptyQueue(t *testing.T) {
	q, _ := newTestQueue(differentCandidateUsers)
	assert.False(t, q.Some(func(candidate) bool { return true }))
}

func TestPush_PredicateErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	q, rec := newTestQueue(MatcherFunc[candidate](func(candidate, candidate) (bool, error) {
		return false, boom
	}))

	require.NoError(t, q.Push(candidate{id: "a"}))
	err := q.Push(candidate{id: "b"})

	var pe *PredicateError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.pairs)
	// queue is unchanged: "b" was not enqueued
	assert.Equal(t, 1, q.Len())
	assert.False(t, q.Some(byID("b")))
}

func TestPush_PredicatePanicPropagatesAndUnlocks(t *testing.T) {
	q, _ := newTestQueue(MatcherFunc[candidate](func(existing, incoming candidate) (bool, error) {
		if incoming.id == "bad" {
			panic("bad predicate")
		}
		return false, nil
	}))
	require.NoError(t, q.Push(candidate{id: "a"}))

	assert.Panics(t, func() { _ = q.Push(candidate{id: "bad"}) })
	assert.Equal(t, 1, q.Len())
}

func TestPush_MatchHandlerErrorGoesToOnError(t *testing.T) {
	q, rec := newTestQueue(differentCandidateUsers)
	rec.err = errors.New("api down")

	require.NoError(t, q.Push(candidate{id: "a", user: 1}))
	require.NoError(t, q.Push(candidate{id: "b", user: 2}))

	require.Len(t, rec.errs, 1)
	assert.EqualError(t, rec.errs[0], "api down")
	assert.Equal(t, 0, q.Len())
}
