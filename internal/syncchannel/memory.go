package syncchannel

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Every party document lives in a map
// and watchers are notified in write order.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string][]byte
	peers *fanout
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string][]byte),
		peers: newFanout(),
	}
}

func (s *MemoryStore) Put(ctx context.Context, partyID string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[partyID] = cp
	s.peers.broadcast(partyID, cp)
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, partyID string, fn func([]byte)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	stop := s.peers.add(partyID, fn, s.docs[partyID])
	s.mu.Unlock()

	return stopOnDone(ctx, stop), nil
}

// Document returns the last document written for partyID.
func (s *MemoryStore) Document(partyID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[partyID]
	return doc, ok
}

// Watchers reports how many watchers are registered for partyID.
func (s *MemoryStore) Watchers(partyID string) int {
	return s.peers.count(partyID)
}

// Delete drops the document for a party that no longer exists.
func (s *MemoryStore) Delete(partyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, partyID)
}
