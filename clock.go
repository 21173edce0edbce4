// Package timekeeper provides a virtual clock with a timeout scheduler and a
// fixed-resolution signal recorder used as a delay line.
//
// The VirtualClock derives virtual time from a wall-clock source. Virtual
// time can be paused for independent reasons, run faster or slower than the
// wall clock, or be stepped manually frame by frame. Timeouts are scheduled
// in virtual time and stay correct across speed changes and pauses.
//
// The SignalRecorder keeps a rolling history of a scalar signal and answers
// "what was the value some seconds ago", which turns a point-source signal
// into a propagating wave when each position looks up distance/velocity
// seconds into the past.
//
// The two are independent: the recorder is fed plain deltas, usually taken
// from VirtualClock.Step.
package timekeeper

import (
	"math"
	"sync"
	"time"

	"github.com/airladon/timekeeper/timer"
	"go.uber.org/zap"
)

// VirtualClock is a pausable, speed-scaled virtual time source with a
// timeout scheduler.
//
// Virtual time is computed from an anchor pair that is re-taken on every
// pause, unpause, speed change and mode change:
//
//	now = anchorVirtual + (wallNow - anchorWall) * speed
//
// so no state change ever makes virtual time jump or run backward.
//
// In live mode, timeouts are driven by a single wall timer from the
// configured timer.Source, armed for the earliest pending deadline and
// re-armed whenever the rate of virtual time changes. With timer.Real,
// timeout callbacks run on the wall timer's goroutine. In manual mode,
// timeouts fire synchronously inside Frame.
//
// VirtualClock is safe for concurrent use. Callbacks are invoked without
// internal locks held and may call back into the clock.
type VirtualClock struct {
	mu     sync.Mutex
	source timer.Source
	logger *zap.Logger

	anchorVirtual time.Duration
	anchorWall    time.Time
	speed         float64
	paused        PauseReason
	mode          Mode
	lastStep      time.Duration

	lastID TimerID
	timers map[TimerID]*timeout

	// Underlying wall timer and its generation. A wall callback whose
	// generation is stale is ignored.
	wall timer.Handle
	gen  uint64
}

// timeout is a pending SetTimeout callback.
type timeout struct {
	id     TimerID
	fn     func()
	fireAt time.Duration
}

// NewVirtualClock creates a live, unpaused clock whose virtual time starts at zero.
func NewVirtualClock(opts ...Option) (*VirtualClock, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &VirtualClock{
		source:     cfg.Source,
		logger:     cfg.Logger,
		anchorWall: cfg.Source.Now(),
		speed:      cfg.Speed,
		mode:       ModeLive,
		timers:     make(map[TimerID]*timeout),
	}, nil
}

// Now returns the current virtual time elapsed since the clock origin.
// It freezes while paused and, in manual mode, only moves on Frame.
func (c *VirtualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

// Step returns the virtual time elapsed since the previous Step (or since
// the origin for the first call after construction or Reset).
// A render loop calls it once per frame to obtain the delta to record.
func (c *VirtualClock) Step() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowLocked()
	delta := now - c.lastStep
	c.lastStep = now
	if delta < 0 {
		return 0
	}
	return delta
}

// Reset moves the origin to the current wall time, cancels every pending
// timeout, restores speed 1 and leaves manual mode. Pause reasons are kept,
// since each belongs to its own caller.
func (c *VirtualClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopWallLocked()
	c.timers = make(map[TimerID]*timeout)
	c.anchorVirtual = 0
	c.anchorWall = c.source.Now()
	c.speed = 1
	c.mode = ModeLive
	c.lastStep = 0

	c.logger.Debug("clock reset", zap.Stringer("paused", c.paused))
}

// Pause holds the clock for the given reason. Pausing for a reason that is
// already set is a no-op.
func (c *VirtualClock) Pause(reason PauseReason) {
	if reason == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused&reason == reason {
		return
	}

	c.reanchorLocked()
	wasPaused := c.paused != 0
	c.paused |= reason

	c.logger.Debug("clock paused",
		zap.Stringer("reason", reason),
		zap.Stringer("flags", c.paused),
		zap.Duration("at", c.anchorVirtual))

	if !wasPaused {
		c.armLocked()
	}
}

// Unpause clears the given reason. The clock resumes only once every reason
// has been cleared.
func (c *VirtualClock) Unpause(reason PauseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused&reason == 0 {
		return
	}

	c.reanchorLocked()
	c.paused &^= reason

	c.logger.Debug("clock unpaused",
		zap.Stringer("reason", reason),
		zap.Stringer("flags", c.paused),
		zap.Duration("at", c.anchorVirtual))

	if c.paused == 0 {
		c.armLocked()
	}
}

// IsPaused returns true if any pause reason is set.
func (c *VirtualClock) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused != 0
}

// PausedBy returns true if the given reason is currently set.
func (c *VirtualClock) PausedBy(reason PauseReason) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return reason != 0 && c.paused&reason == reason
}

// PauseReasons returns the set of reasons currently holding the clock.
func (c *VirtualClock) PauseReasons() PauseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetSpeed changes the rate of virtual time relative to wall time from now
// on. Virtual time does not jump, and pending timeouts are rescheduled
// against the new rate.
func (c *VirtualClock) SetSpeed(speed float64) error {
	if !validSpeed(speed) {
		return wrapUsagef("speed must be positive, got %v", speed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reanchorLocked()
	c.speed = speed

	c.logger.Debug("clock speed changed",
		zap.Float64("speed", speed),
		zap.Duration("at", c.anchorVirtual))

	c.armLocked()
	return nil
}

// Speed returns the current speed multiplier.
func (c *VirtualClock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Mode returns the current mode.
func (c *VirtualClock) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetManualFrames freezes virtual time at its current value. From then on
// it only advances through Frame.
func (c *VirtualClock) SetManualFrames() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeManual {
		return
	}

	c.reanchorLocked()
	c.mode = ModeManual
	c.armLocked()

	c.logger.Debug("manual frames started", zap.Duration("at", c.anchorVirtual))
}

// EndManualFrames returns to live mode, continuing from the current virtual
// time at the current wall time.
func (c *VirtualClock) EndManualFrames() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeLive {
		return
	}

	c.reanchorLocked()
	c.mode = ModeLive
	c.armLocked()

	c.logger.Debug("manual frames ended", zap.Duration("at", c.anchorVirtual))
}

// Frame advances virtual time by exactly delta in manual mode, firing every
// due timeout in ascending deadline order (ties by scheduling order).
//
// While a timeout fires, Now reports that timeout's deadline, so a timeout
// scheduled from inside a callback is measured from the firing timeout and
// fires within the same Frame if its deadline falls inside it. When Frame
// returns, Now reports the previous time plus delta.
//
// Returns an ErrUsage error outside manual mode or for a negative delta.
func (c *VirtualClock) Frame(delta time.Duration) error {
	c.mu.Lock()
	if c.mode != ModeManual {
		c.mu.Unlock()
		return wrapUsage("frame requires manual frames")
	}
	if delta < 0 {
		c.mu.Unlock()
		return wrapUsagef("frame delta must not be negative, got %v", delta)
	}
	target := addVirtual(c.anchorVirtual, delta)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		// A callback may have left manual mode or reset the clock.
		if c.mode != ModeManual {
			c.mu.Unlock()
			return nil
		}

		t := c.popDueLocked(target)
		if t == nil {
			if target > c.anchorVirtual {
				c.anchorVirtual = target
			}
			c.mu.Unlock()
			return nil
		}
		if t.fireAt > c.anchorVirtual {
			c.anchorVirtual = t.fireAt
		}
		c.logger.Debug("timeout fired",
			zap.Uint64("id", uint64(t.id)),
			zap.Duration("at", c.anchorVirtual))
		c.mu.Unlock()

		t.fn()
	}
}

// SetTimeout schedules fn to run once virtual time reaches Now()+delay.
// Non-positive delays fire at the next opportunity: the next wall tick in
// live mode or the next Frame in manual mode. A nil fn is allowed and
// does nothing when it fires.
func (c *VirtualClock) SetTimeout(fn func(), delay time.Duration) TimerID {
	if fn == nil {
		fn = func() {}
	}
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastID++
	id := c.lastID
	c.timers[id] = &timeout{
		id:     id,
		fn:     fn,
		fireAt: addVirtual(c.nowLocked(), delay),
	}
	c.armLocked()

	return id
}

// ClearTimeout cancels a pending timeout. Cancelling a timeout that already
// fired or was already cancelled is a no-op.
func (c *VirtualClock) ClearTimeout(id TimerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.timers[id]; !ok {
		return
	}
	delete(c.timers, id)
	c.armLocked()
}

// ClearTimeouts cancels every pending timeout.
func (c *VirtualClock) ClearTimeouts() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timers = make(map[TimerID]*timeout)
	c.stopWallLocked()
}

// PendingTimers returns the number of timeouts waiting to fire.
func (c *VirtualClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// running reports whether virtual time follows the wall clock.
// Must be called with c.mu held.
func (c *VirtualClock) running() bool {
	return c.mode == ModeLive && c.paused == 0
}

// nowLocked computes the current virtual time. Must be called with c.mu held.
func (c *VirtualClock) nowLocked() time.Duration {
	if !c.running() {
		return c.anchorVirtual
	}
	return addVirtual(c.anchorVirtual, scale(c.source.Now().Sub(c.anchorWall), c.speed))
}

// reanchorLocked folds the virtual time elapsed since the last anchor into
// anchorVirtual and moves anchorWall to the current wall time.
// Must be called with c.mu held.
func (c *VirtualClock) reanchorLocked() {
	wall := c.source.Now()
	if c.running() {
		c.anchorVirtual = addVirtual(c.anchorVirtual, scale(wall.Sub(c.anchorWall), c.speed))
	}
	c.anchorWall = wall
}

// popDueLocked removes and returns the earliest timeout due at or before
// limit, or nil. Must be called with c.mu held.
func (c *VirtualClock) popDueLocked(limit time.Duration) *timeout {
	next := c.earliestLocked()
	if next == nil || next.fireAt > limit {
		return nil
	}
	delete(c.timers, next.id)
	return next
}

// earliestLocked returns the pending timeout with the smallest deadline,
// ties broken by lowest id. Must be called with c.mu held.
func (c *VirtualClock) earliestLocked() *timeout {
	var next *timeout
	for _, t := range c.timers {
		if next == nil || t.fireAt < next.fireAt || (t.fireAt == next.fireAt && t.id < next.id) {
			next = t
		}
	}
	return next
}

// armLocked cancels the current wall timer and, when virtual time follows
// the wall clock and timeouts are pending, arms a new one for the earliest
// deadline at the current speed. Must be called with c.mu held.
func (c *VirtualClock) armLocked() {
	c.stopWallLocked()

	if !c.running() {
		return
	}
	next := c.earliestLocked()
	if next == nil {
		return
	}

	remaining := next.fireAt - c.nowLocked()
	if remaining < 0 {
		remaining = 0
	}
	wait := time.Duration(math.MaxInt64)
	if w := math.Ceil(float64(remaining) / c.speed); w < math.MaxInt64 {
		wait = time.Duration(w)
	}

	gen := c.gen
	c.wall = c.source.AfterFunc(wait, func() {
		c.onWall(gen)
	})
}

// stopWallLocked cancels the current wall timer and invalidates any of its
// callbacks already in flight. Must be called with c.mu held.
func (c *VirtualClock) stopWallLocked() {
	c.gen++
	if c.wall != nil {
		c.wall.Stop()
		c.wall = nil
	}
}

// onWall fires every live-mode timeout that is due, then re-arms.
func (c *VirtualClock) onWall(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.wall = nil
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if c.mode != ModeLive {
			c.mu.Unlock()
			return
		}

		now := c.nowLocked()
		t := c.popDueLocked(now)
		if t == nil {
			if c.wall == nil {
				c.armLocked()
			}
			c.mu.Unlock()
			return
		}
		c.logger.Debug("timeout fired",
			zap.Uint64("id", uint64(t.id)),
			zap.Duration("deadline", t.fireAt),
			zap.Duration("at", now))
		c.mu.Unlock()

		t.fn()
	}
}

// scale converts a wall duration into virtual time at the given speed,
// saturating at the largest Duration.
func scale(d time.Duration, speed float64) time.Duration {
	if d <= 0 {
		return 0
	}
	if speed == 1 {
		return d
	}
	v := math.Round(float64(d) * speed)
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(v)
}

// addVirtual adds a non-negative d to virtual time t, saturating at the
// largest Duration.
func addVirtual(t, d time.Duration) time.Duration {
	if d > math.MaxInt64-t {
		return math.MaxInt64
	}
	return t + d
}
