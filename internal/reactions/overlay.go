package reactions

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReactionTTL is how long a floating reaction stays on screen.
const ReactionTTL = 3 * time.Second

type Reaction struct {
	ID        string
	Emoji     string
	ExpiresAt time.Time
}

// Overlay is the player's view of the side channel: floating reactions that
// expire on their own and the latest discussion-starter questions.
type Overlay struct {
	ttl      time.Duration
	onChange func()

	mu        sync.Mutex
	active    map[string]Reaction
	timers    map[string]*time.Timer
	questions []string
	closed    bool

	cancels []func()
}

// NewOverlay starts listening on bus. onChange, when non-nil, is called after
// every change to the visible reactions or questions.
func NewOverlay(bus *Bus, onChange func()) *Overlay {
	return newOverlay(bus, ReactionTTL, onChange)
}

func newOverlay(bus *Bus, ttl time.Duration, onChange func()) *Overlay {
	o := &Overlay{
		ttl:      ttl,
		onChange: onChange,
		active:   make(map[string]Reaction),
		timers:   make(map[string]*time.Timer),
	}
	o.cancels = []func(){
		bus.Listen(KindEmoji, func(ev Event) { o.add(ev.Emoji) }),
		bus.Listen(KindDiscussion, func(ev Event) { o.setQuestions(ev.Questions) }),
	}
	return o
}

// Active returns the reactions currently on screen, oldest first.
func (o *Overlay) Active() []Reaction {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Reaction, 0, len(o.active))
	for _, r := range o.active {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

func (o *Overlay) Questions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.questions...)
}

// Close stops listening and drops every pending reaction.
func (o *Overlay) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
	o.active = make(map[string]Reaction)
	o.mu.Unlock()

	for _, cancel := range o.cancels {
		cancel()
	}
}

func (o *Overlay) add(emoji string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	id := uuid.NewString()
	o.active[id] = Reaction{ID: id, Emoji: emoji, ExpiresAt: time.Now().Add(o.ttl)}
	o.timers[id] = time.AfterFunc(o.ttl, func() { o.expire(id) })
	o.mu.Unlock()

	o.changed()
}

func (o *Overlay) expire(id string) {
	o.mu.Lock()
	_, ok := o.active[id]
	delete(o.active, id)
	delete(o.timers, id)
	o.mu.Unlock()

	if ok {
		o.changed()
	}
}

func (o *Overlay) setQuestions(questions []string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.questions = append([]string(nil), questions...)
	o.mu.Unlock()

	o.changed()
}

func (o *Overlay) changed() {
	if o.onChange != nil {
		o.onChange()
	}
}
