package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// TestRealAfterFunc tests that Real fires callbacks after the wall delay.
func TestRealAfterFunc(t *testing.T) {
	src := NewReal()
	fired := make(chan time.Time, 1)

	start := src.Now()
	src.AfterFunc(20*time.Millisecond, func() {
		fired <- time.Now()
	})

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 20*time.Millisecond)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("callback did not fire within expected time")
	}
}

// TestRealStop tests that Stop prevents a Real callback from firing.
func TestRealStop(t *testing.T) {
	src := NewReal()
	var fired atomic.Bool

	h := src.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })
	assert.True(t, h.Stop(), "first Stop should cancel")
	assert.False(t, h.Stop(), "second Stop should report already stopped")

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load(), "callback should not fire after Stop()")
}

// TestMockDoesNotAutoAdvance tests that mock time stands still.
func TestMockDoesNotAutoAdvance(t *testing.T) {
	m := NewMock(epoch)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, epoch, m.Now())
}

// TestMockAdvanceFiresInDeadlineOrder tests firing order and timestamps.
func TestMockAdvanceFiresInDeadlineOrder(t *testing.T) {
	m := NewMock(epoch)
	var order []string
	var at []time.Duration

	record := func(name string) func() {
		return func() {
			order = append(order, name)
			at = append(at, m.Now().Sub(epoch))
		}
	}

	m.AfterFunc(30*time.Millisecond, record("c"))
	m.AfterFunc(10*time.Millisecond, record("a"))
	m.AfterFunc(20*time.Millisecond, record("b1"))
	m.AfterFunc(20*time.Millisecond, record("b2"))
	m.AfterFunc(50*time.Millisecond, record("late"))

	m.Advance(40 * time.Millisecond)

	assert.Equal(t, []string{"a", "b1", "b2", "c"}, order)
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
	}, at)
	assert.Equal(t, 40*time.Millisecond, m.Now().Sub(epoch))
	assert.Equal(t, 1, m.Pending())
}

// TestMockChainedCallbacks tests callbacks registered while firing.
func TestMockChainedCallbacks(t *testing.T) {
	m := NewMock(epoch)
	var firedAt []time.Duration

	m.AfterFunc(10*time.Millisecond, func() {
		firedAt = append(firedAt, m.Now().Sub(epoch))
		m.AfterFunc(15*time.Millisecond, func() {
			firedAt = append(firedAt, m.Now().Sub(epoch))
		})
	})

	m.Advance(30 * time.Millisecond)

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 25 * time.Millisecond}, firedAt)
	assert.Equal(t, 0, m.Pending())
}

// TestMockStop tests cancellation of pending mock callbacks.
func TestMockStop(t *testing.T) {
	m := NewMock(epoch)
	fired := false

	h := m.AfterFunc(10*time.Millisecond, func() { fired = true })
	require.Equal(t, 1, m.Pending())

	assert.True(t, h.Stop())
	assert.False(t, h.Stop())
	assert.Equal(t, 0, m.Pending())

	m.Advance(time.Second)
	assert.False(t, fired)
}

// TestMockStopAfterFire tests that Stop reports false once fired.
func TestMockStopAfterFire(t *testing.T) {
	m := NewMock(epoch)
	h := m.AfterFunc(0, func() {})
	m.Advance(0)
	assert.False(t, h.Stop())
}

// TestMockNeverMovesBackward tests AdvanceTo with a past target.
func TestMockNeverMovesBackward(t *testing.T) {
	m := NewMock(epoch)
	m.Advance(time.Second)

	m.AdvanceTo(epoch)
	assert.Equal(t, epoch.Add(time.Second), m.Now())

	m.Advance(-time.Second)
	assert.Equal(t, epoch.Add(time.Second), m.Now())
}

// TestMockConcurrency tests that Mock is safe for concurrent use.
func TestMockConcurrency(t *testing.T) {
	m := NewMock(epoch)
	const N = 100

	var wg sync.WaitGroup
	var fired atomic.Int64
	wg.Add(N)

	for i := range N {
		go func(idx int) {
			defer wg.Done()
			h := m.AfterFunc(time.Duration(idx)*time.Millisecond, func() { fired.Add(1) })
			if idx%2 == 0 {
				h.Stop()
			}
		}(i)
	}
	wg.Wait()

	m.Advance(time.Second)
	assert.Equal(t, int64(N/2), fired.Load())
	assert.Equal(t, 0, m.Pending())
}
