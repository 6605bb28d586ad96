package transcript

import (
	"errors"
	"fmt"
	"math"
)

// DefaultSwitchCutoff is the pause, in seconds, the speaker holding the floor
// must leave before a word from the other channel may open a new turn.
const DefaultSwitchCutoff = 0.2

// ErrInputOrdering is returned when a channel violates the timestamp contract.
var ErrInputOrdering = errors.New("channel timestamps are not monotonic")

// OrderingError reports the first word of a channel that breaks ordering.
type OrderingError struct {
	Speaker Speaker
	Index   int
	Reason  string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("%s channel word %d: %s", e.Speaker, e.Index, e.Reason)
}

func (e *OrderingError) Unwrap() error { return ErrInputOrdering }

// MergeOption configures [Merge].
type MergeOption func(*merger)

// WithSwitchCutoff overrides [DefaultSwitchCutoff]. Non-positive values are ignored.
func WithSwitchCutoff(seconds float64) MergeOption {
	return func(m *merger) {
		if seconds > 0 {
			m.cutoff = seconds
		}
	}
}

type merger struct {
	cutoff float64
}

// cursor walks one channel.
type cursor struct {
	speaker Speaker
	words   []TimedWord
	pos     int
}

func (c *cursor) done() bool { return c.pos >= len(c.words) }

func (c *cursor) next() TimedWord { return c.words[c.pos] }

func (c *cursor) last() TimedWord { return c.words[c.pos-1] }

func (c *cursor) advance() TimedWord {
	w := c.words[c.pos]
	c.pos++
	return w
}

// Merge interleaves the caller and receiver channels into one conversation.
//
// Words are consumed in start-time order. When the next word belongs to the
// channel that does not hold the floor, the switch is only taken if the floor
// holder has paused: the gap between its last consumed word and its own next
// word must exceed the cutoff. Otherwise the floor holder keeps speaking and
// the other word waits. Ties in start time go to the floor holder. Once a
// channel is exhausted the rest of the other channel follows.
//
// Every input word appears exactly once in the result. Input that breaks the
// per-channel ordering contract yields an error wrapping [ErrInputOrdering]
// and no conversation.
func Merge(caller, receiver ChannelTranscript, opts ...MergeOption) (Conversation, error) {
	m := &merger{cutoff: DefaultSwitchCutoff}
	for _, o := range opts {
		o(m)
	}

	if err := checkOrder(Caller, caller.Words); err != nil {
		return Conversation{}, err
	}
	if err := checkOrder(Receiver, receiver.Words); err != nil {
		return Conversation{}, err
	}

	chans := [2]*cursor{
		{speaker: Caller, words: caller.Words},
		{speaker: Receiver, words: receiver.Words},
	}

	var conv Conversation
	floor := -1
	for !chans[0].done() || !chans[1].done() {
		pick := m.pick(chans, floor)
		w := chans[pick].advance()
		if pick != floor {
			conv.Turns = append(conv.Turns, Turn{Speaker: chans[pick].speaker, Start: w.Start})
			floor = pick
		}
		t := &conv.Turns[len(conv.Turns)-1]
		t.Words = append(t.Words, w.Text)
		t.Confidences = append(t.Confidences, w.Confidence)
		if w.End > t.End {
			t.End = w.End
		}
	}
	return conv, nil
}

// pick returns the index of the channel whose next word is consumed.
func (m *merger) pick(chans [2]*cursor, floor int) int {
	if chans[0].done() {
		return 1
	}
	if chans[1].done() {
		return 0
	}
	if floor < 0 {
		if chans[1].next().Start < chans[0].next().Start {
			return 1
		}
		return 0
	}

	hold, other := chans[floor], chans[1-floor]
	if hold.next().Start <= other.next().Start {
		return floor
	}
	// Gap measured on the channel about to lose the floor.
	gap := hold.next().Start - hold.last().End
	if gap > m.cutoff {
		return 1 - floor
	}
	return floor
}

func checkOrder(s Speaker, words []TimedWord) error {
	for i, w := range words {
		if math.IsNaN(w.Start) || math.IsNaN(w.End) {
			return &OrderingError{Speaker: s, Index: i, Reason: "timestamp is NaN"}
		}
		if w.Start > w.End {
			return &OrderingError{Speaker: s, Index: i,
				Reason: fmt.Sprintf("start %.3fs after end %.3fs", w.Start, w.End)}
		}
		if i > 0 && w.Start < words[i-1].Start {
			return &OrderingError{Speaker: s, Index: i,
				Reason: fmt.Sprintf("start %.3fs before previous start %.3fs", w.Start, words[i-1].Start)}
		}
	}
	return nil
}
