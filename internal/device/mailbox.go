package device

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// State is what the unit remembers across restarts.
type State struct {
	Count int64 `json:"count"`
	Lamp  bool  `json:"lamp"`
}

// Line renders the count the way the firmware reports it.
func (s State) Line() []byte {
	return []byte(strconv.FormatInt(s.Count, 10))
}

// Mailbox holds the drop counter and lamp and writes every change through
// to its store.
type Mailbox struct {
	mu    sync.Mutex
	state State
	store StateStore
}

// NewMailbox restores state from store.
func NewMailbox(ctx context.Context, store StateStore) (*Mailbox, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	st, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mailbox state: %w", err)
	}
	return &Mailbox{state: st, store: store}, nil
}

func (m *Mailbox) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Drop records one letter and returns the new state.
func (m *Mailbox) Drop(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state
	next.Count++
	if err := m.store.Save(ctx, next); err != nil {
		return m.state, fmt.Errorf("save drop: %w", err)
	}
	m.state = next
	return next, nil
}

// SetLamp switches the lamp. Switching it to its current value is a no-op
// that still succeeds.
func (m *Mailbox) SetLamp(ctx context.Context, on bool) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Lamp == on {
		return m.state, nil
	}
	next := m.state
	next.Lamp = on
	if err := m.store.Save(ctx, next); err != nil {
		return m.state, fmt.Errorf("save lamp: %w", err)
	}
	m.state = next
	return next, nil
}
