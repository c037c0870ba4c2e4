package display

import (
	"sync"
	"time"
)

// Snapshot is the board's state at one point in time.
type Snapshot struct {
	Text      string    `json:"text"`
	Lamp      bool      `json:"lamp"`
	Alert     string    `json:"alert,omitempty"`
	AlertAt   time.Time `json:"alert_at,omitzero"`
	Updates   int       `json:"updates"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Board keeps the latest display state for readers on other goroutines.
type Board struct {
	mu    sync.RWMutex
	state Snapshot
	now   func() time.Time
}

func NewBoard() *Board {
	return &Board{now: time.Now}
}

func (b *Board) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Text = text
	b.state.Updates++
	b.state.UpdatedAt = b.now()
}

func (b *Board) SetLamp(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Lamp = on
}

func (b *Board) Alert(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Alert = msg
	b.state.AlertAt = b.now()
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}
