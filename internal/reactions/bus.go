// Package reactions carries ephemeral, client-local notifications between
// the chat surface and the player: emoji reactions and discussion-starter
// questions. Nothing here is replicated to other participants.
package reactions

import (
	"errors"
	"sync"
)

type Kind int

const (
	KindEmoji Kind = iota
	KindDiscussion
)

func (k Kind) String() string {
	switch k {
	case KindEmoji:
		return "emoji-reaction"
	case KindDiscussion:
		return "discussion-starters"
	default:
		return "unknown"
	}
}

// Event is one side-channel message. Emoji is set for KindEmoji, Questions
// for KindDiscussion.
type Event struct {
	Kind      Kind
	Emoji     string
	Questions []string
}

var ErrEmptyReaction = errors.New("reaction is empty")

// Bus is an in-process publish/subscribe hub scoped to one viewing session.
// Listeners run synchronously on the emitting goroutine and must not block.
type Bus struct {
	mu        sync.Mutex
	listeners map[Kind]map[uint64]func(Event)
	nextID    uint64
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[Kind]map[uint64]func(Event))}
}

// Listen registers fn for events of kind and returns a function that removes
// it.
func (b *Bus) Listen(kind Kind, fn func(Event)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.listeners[kind] == nil {
		b.listeners[kind] = make(map[uint64]func(Event))
	}
	b.listeners[kind][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners[kind], id)
	}
}

// Emit delivers ev to every listener of its kind. Events with no listeners
// are dropped.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.listeners[ev.Kind]))
	for _, fn := range b.listeners[ev.Kind] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (b *Bus) EmitReaction(emoji string) error {
	if emoji == "" {
		return ErrEmptyReaction
	}
	b.Emit(Event{Kind: KindEmoji, Emoji: emoji})
	return nil
}

// ShowDiscussion emits discussion-starter questions. It lets the bus serve
// as the player's discussion sink.
func (b *Bus) ShowDiscussion(questions []string) {
	b.Emit(Event{Kind: KindDiscussion, Questions: append([]string(nil), questions...)})
}
