package actionqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Siddamnandas/Vibely-sub004/errors"
)

// Store is the durable tier of the queue. Append assigns the monotonic id;
// Snapshot returns pending actions in id order as of the call; Confirm
// removes a single confirmed action.
type Store interface {
	Append(ctx context.Context, actionType string, payload json.RawMessage) (*QueuedAction, error)
	Snapshot(ctx context.Context) ([]*QueuedAction, error)
	Confirm(ctx context.Context, id uint64) error
	Depth(ctx context.Context) (int, error)
}

// MemoryStore is an in-process Store for tests and NATS-less deployments.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  uint64
	pending []*QueuedAction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append adds an action with the next id.
func (s *MemoryStore) Append(_ context.Context, actionType string, payload json.RawMessage) (*QueuedAction, error) {
	if actionType == "" {
		return nil, errors.WrapInvalid(nil, "MemoryStore", "Append", "action type cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	action := &QueuedAction{
		ID:         s.nextID,
		Type:       actionType,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
	s.nextID++
	s.pending = append(s.pending, action)
	return action, nil
}

// Snapshot returns a copy of the pending actions in id order.
func (s *MemoryStore) Snapshot(_ context.Context) ([]*QueuedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*QueuedAction, len(s.pending))
	copy(out, s.pending)
	return out, nil
}

// Confirm removes the action with the given id. Confirming an absent id is
// a no-op.
func (s *MemoryStore) Confirm(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.pending {
		if a.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

// Depth returns the number of pending actions.
func (s *MemoryStore) Depth(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), nil
}
