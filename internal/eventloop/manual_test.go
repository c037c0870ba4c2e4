package eventloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_AdvanceRunsDueCallbacksInOrder(t *testing.T) {
	m := NewManual()
	var got []string

	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })

	assert.Equal(t, 2, m.Advance(20*time.Millisecond))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, m.Pending())

	m.Advance(10 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestManual_RescheduleDuringAdvance(t *testing.T) {
	m := NewManual()
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		m.AfterFunc(100*time.Millisecond, tick)
	}
	m.AfterFunc(100*time.Millisecond, tick)

	m.Advance(350 * time.Millisecond)

	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, m.Pending())
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual()
	ran := false
	timer := m.AfterFunc(time.Millisecond, func() { ran = true })

	assert.True(t, timer.Cancel())
	assert.False(t, timer.Cancel())
	assert.False(t, m.RunNext())
	assert.False(t, ran)
}

func TestManual_CancelAfterFire(t *testing.T) {
	m := NewManual()
	timer := m.AfterFunc(0, func() {})

	assert.True(t, m.RunNext())
	assert.False(t, timer.Cancel())
}
