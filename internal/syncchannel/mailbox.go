package syncchannel

import (
	"context"
	"sync"
)

// mailbox delivers documents to a single watcher in arrival order without
// ever blocking the writer.
type mailbox struct {
	mu       sync.Mutex
	pending  [][]byte
	received bool
	signal   chan struct{}
	done     chan struct{}
	once     sync.Once
	fn       func([]byte)
}

func newMailbox(fn func([]byte)) *mailbox {
	m := &mailbox{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		fn:     fn,
	}
	go m.run()
	return m
}

func (m *mailbox) push(doc []byte) {
	cp := make([]byte, len(doc))
	copy(cp, doc)

	m.mu.Lock()
	m.pending = append(m.pending, cp)
	m.received = true
	m.mu.Unlock()
	m.wake()
}

// offer queues doc only if nothing has been pushed yet. A document read
// before any broadcast arrived is never newer than that broadcast.
func (m *mailbox) offer(doc []byte) {
	cp := make([]byte, len(doc))
	copy(cp, doc)

	m.mu.Lock()
	if m.received {
		m.mu.Unlock()
		return
	}
	m.pending = append(m.pending, cp)
	m.received = true
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.signal:
		}

		for {
			m.mu.Lock()
			if len(m.pending) == 0 {
				m.mu.Unlock()
				break
			}
			doc := m.pending[0]
			m.pending = m.pending[1:]
			m.mu.Unlock()

			select {
			case <-m.done:
				return
			default:
			}
			m.fn(doc)
		}
	}
}

func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}

// fanout tracks watchers per party and broadcasts documents to them.
type fanout struct {
	mu       sync.Mutex
	next     uint64
	watchers map[string]map[uint64]*mailbox
}

func newFanout() *fanout {
	return &fanout{watchers: make(map[string]map[uint64]*mailbox)}
}

// add registers fn for partyID. A non-nil initial document is queued ahead
// of any later broadcast.
func (f *fanout) add(partyID string, fn func([]byte), initial []byte) func() {
	_, stop := f.register(partyID, fn, initial)
	return stop
}

// addPending registers fn before its current document is known. prime hands
// over the document once loaded; it is dropped if a broadcast got there first.
func (f *fanout) addPending(partyID string, fn func([]byte)) (prime func([]byte), stop func()) {
	box, stop := f.register(partyID, fn, nil)
	return box.offer, stop
}

func (f *fanout) register(partyID string, fn func([]byte), initial []byte) (*mailbox, func()) {
	box := newMailbox(fn)

	f.mu.Lock()
	f.next++
	id := f.next
	if f.watchers[partyID] == nil {
		f.watchers[partyID] = make(map[uint64]*mailbox)
	}
	f.watchers[partyID][id] = box
	if initial != nil {
		box.push(initial)
	}
	f.mu.Unlock()

	var once sync.Once
	return box, func() {
		once.Do(func() {
			f.mu.Lock()
			if set := f.watchers[partyID]; set != nil {
				delete(set, id)
				if len(set) == 0 {
					delete(f.watchers, partyID)
				}
			}
			f.mu.Unlock()
			box.close()
		})
	}
}

func (f *fanout) broadcast(partyID string, doc []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, box := range f.watchers[partyID] {
		box.push(doc)
	}
}

func (f *fanout) count(partyID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers[partyID])
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for partyID, set := range f.watchers {
		for _, box := range set {
			box.close()
		}
		delete(f.watchers, partyID)
	}
}

// stopOnDone ties a watch to ctx: the returned stop runs the original one
// exactly once, either when called or when ctx ends.
func stopOnDone(ctx context.Context, stop func()) func() {
	done := make(chan struct{})
	var once sync.Once
	wrapped := func() {
		once.Do(func() {
			close(done)
			stop()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			wrapped()
		case <-done:
		}
	}()
	return wrapped
}
