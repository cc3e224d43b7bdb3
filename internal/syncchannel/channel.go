// Package syncchannel replicates a party's player document through a
// realtime Store. A Channel is bound to one party at a time, publishes whole
// documents and fans every stored write back out to local subscribers.
package syncchannel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cinesync/cinesync/internal/playerstate"
)

const (
	defaultQueueSize    = 64
	defaultWriteTimeout = 5 * time.Second
)

var ErrClosed = errors.New("sync channel closed")

// Store is the backing realtime document store. Watch must deliver the
// current document (when one exists) followed by every later write in the
// order it was stored, including writes made by the watcher itself.
type Store interface {
	Put(ctx context.Context, partyID string, doc []byte) error
	Watch(ctx context.Context, partyID string, fn func(doc []byte)) (stop func(), err error)
}

// Deleter is implemented by stores that keep documents outside Postgres and
// must drop them explicitly when a party is removed.
type Deleter interface {
	Delete(partyID string)
}

type Unsubscribe func()

type write struct {
	partyID string
	doc     []byte
}

type Channel struct {
	store        Store
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan write
	done   chan struct{}

	mu        sync.Mutex
	partyID   string
	gen       uint64
	stopWatch func()
	subs      map[uint64]func(playerstate.PlayerState)
	nextSub   uint64
	closed    bool
}

// New returns a Channel over store. A nil store puts the channel in
// degraded mode: every operation is a no-op and playback stays local.
func New(store Store) *Channel {
	c := &Channel{
		store:        store,
		writeTimeout: defaultWriteTimeout,
		subs:         make(map[uint64]func(playerstate.PlayerState)),
	}
	if store == nil {
		return c
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.queue = make(chan write, defaultQueueSize)
	c.done = make(chan struct{})
	go c.writeLoop()
	return c
}

// Enabled reports whether the channel has a backing store.
func (c *Channel) Enabled() bool {
	return c.store != nil
}

// PartyID returns the party the channel is bound to, or "".
func (c *Channel) PartyID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partyID
}

// Initialize binds the channel to parties/{partyID}. Binding to the same
// party again is a no-op; binding to a different one stops the previous
// watch before starting the new one.
func (c *Channel) Initialize(partyID string) error {
	if c.store == nil {
		return nil
	}
	if partyID == "" {
		return errors.New("party id is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.partyID == partyID {
		c.mu.Unlock()
		return nil
	}
	oldStop := c.stopWatch
	c.stopWatch = nil
	c.partyID = partyID
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if oldStop != nil {
		oldStop()
	}

	stop, err := c.store.Watch(c.ctx, partyID, func(doc []byte) {
		c.deliver(gen, doc)
	})
	if err != nil {
		return fmt.Errorf("watch party %s: %w", partyID, err)
	}

	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		stop()
		return nil
	}
	c.stopWatch = stop
	c.mu.Unlock()

	slog.Debug("sync channel bound", "party_id", partyID)
	return nil
}

// Publish queues a whole-document overwrite of the bound party. It never
// blocks on the store and never reports failures to the caller.
func (c *Channel) Publish(state playerstate.PlayerState) {
	if c.store == nil {
		return
	}

	doc, err := playerstate.Serialize(state).Encode()
	if err != nil {
		slog.Error("sync channel: encode failed", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.partyID == "" {
		return
	}

	w := write{partyID: c.partyID, doc: doc}
	select {
	case c.queue <- w:
		return
	default:
	}

	// Queue full: drop the oldest pending write. Later documents supersede
	// earlier ones, so only intermediate states are lost.
	select {
	case <-c.queue:
		slog.Warn("sync channel: publish queue full, dropped oldest write", "party_id", c.partyID)
	default:
	}
	select {
	case c.queue <- w:
	default:
	}
}

// Subscribe registers fn for every document written to the bound party.
func (c *Channel) Subscribe(fn func(playerstate.PlayerState)) Unsubscribe {
	if c.store == nil || fn == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Close stops the watch and the writer. Writes still queued are dropped.
func (c *Channel) Close() {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop := c.stopWatch
	c.stopWatch = nil
	c.subs = make(map[uint64]func(playerstate.PlayerState))
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	c.cancel()
	<-c.done
}

func (c *Channel) deliver(gen uint64, doc []byte) {
	record, err := playerstate.Decode(doc)
	if err != nil {
		if !errors.Is(err, playerstate.ErrEmptyDocument) {
			slog.Warn("sync channel: ignoring malformed document", "error", err)
		}
		return
	}

	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		return
	}
	subs := make([]func(playerstate.PlayerState), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(record.State())
	}
}

func (c *Channel) writeLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case w := <-c.queue:
			ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
			if err := c.store.Put(ctx, w.partyID, w.doc); err != nil {
				slog.Warn("sync channel: publish failed", "party_id", w.partyID, "error", err)
			}
			cancel()
		}
	}
}
