package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/airladon/timekeeper"
	"github.com/airladon/timekeeper/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const frame = 10 * time.Millisecond

// newManualSim returns a simulation on a clock in manual frames.
func newManualSim(t *testing.T, opts ...Option) *Simulation {
	t.Helper()

	clock, err := timekeeper.NewVirtualClock(
		timekeeper.WithTimerSource(timer.NewMock(time.Unix(0, 0))))
	require.NoError(t, err)
	clock.SetManualFrames()

	opts = append([]Option{
		WithClock(clock),
		WithSampleInterval(0.01),
		WithLogger(zap.NewNop()),
	}, opts...)
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

// run advances n frames, stepping the simulation after each.
func run(t *testing.T, s *Simulation, n int) {
	t.Helper()
	for range n {
		require.NoError(t, s.Clock().Frame(frame))
		s.Step()
	}
}

// TestNewSimulationInvalid tests configuration errors.
func TestNewSimulationInvalid(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "no media"},
		{name: "zero velocity", opts: []Option{WithMedium("a", 0, 1)}},
		{name: "negative length", opts: []Option{WithMedium("a", 1, -1)}},
		{name: "duplicate names", opts: []Option{WithMedium("a", 1, 1), WithMedium("a", 2, 1)}},
		{name: "bad interval", opts: []Option{WithMedium("a", 1, 1), WithSampleInterval(0)}},
		{name: "nil clock", opts: []Option{WithMedium("a", 1, 1), WithClock(nil)}},
		{name: "nil logger", opts: []Option{WithMedium("a", 1, 1), WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.opts...)
			assert.ErrorIs(t, err, timekeeper.ErrConfig)
			assert.Nil(t, s)
		})
	}
}

// TestNewSimulationDefaults tests that a default clock is created.
func TestNewSimulationDefaults(t *testing.T) {
	s, err := New(WithMedium("string", 2, 4))
	require.NoError(t, err)

	require.NotNil(t, s.Clock())
	m, ok := s.Medium("string")
	require.True(t, ok)
	assert.Equal(t, 2.0, m.Velocity())
	assert.Equal(t, 4.0, m.Length())
	assert.InDelta(t, 2+DefaultSampleInterval, m.Recorder().Duration(), 1e-12)

	_, ok = s.Medium("missing")
	assert.False(t, ok)
}

// TestSimulation_PulsePropagates tests that a pulse arrives at distance x
// after x/velocity seconds.
func TestSimulation_PulsePropagates(t *testing.T) {
	s := newManualSim(t, WithMedium("string", 1, 2))
	m, _ := s.Medium("string")

	s.Pulse(1, 0.2)
	run(t, s, 100)

	// Peak left the source at 0.1s; 0.9s later it is 0.9 units out.
	assert.InDelta(t, 1, m.Displacement(0.9), 1e-9)
	assert.InDelta(t, 0, m.Displacement(0.5), 1e-9)
	assert.InDelta(t, 0, m.Displacement(1.5), 1e-9)
	assert.InDelta(t, 0, s.Source(), 1e-9)
}

// TestSimulation_PulseEndsSource tests that the pulse end timeout returns
// the source to rest.
func TestSimulation_PulseEndsSource(t *testing.T) {
	s := newManualSim(t, WithMedium("string", 1, 1))

	s.Pulse(2, 0.1)
	assert.Equal(t, 1, s.Clock().PendingTimers())

	run(t, s, 5)
	assert.InDelta(t, 2, s.Source(), 1e-9)

	run(t, s, 5)
	assert.Equal(t, 0, s.Clock().PendingTimers())
	assert.Equal(t, 0.0, s.Source())
}

// TestSimulation_InvalidPulse tests that a bad width is ignored.
func TestSimulation_InvalidPulse(t *testing.T) {
	s := newManualSim(t, WithMedium("string", 1, 1))

	s.Pulse(1, 0)
	assert.Equal(t, 0, s.Clock().PendingTimers())
	assert.Equal(t, 0.0, s.Source())
}

// TestSimulation_StopCancelsPulse tests Stop.
func TestSimulation_StopCancelsPulse(t *testing.T) {
	s := newManualSim(t, WithMedium("string", 1, 1))

	s.Pulse(1, 0.5)
	run(t, s, 10)
	s.Stop()

	assert.Equal(t, 0, s.Clock().PendingTimers())
	assert.Equal(t, 0.0, s.Source())
}

// TestSimulation_SharedClockMedia tests two media on one clock.
func TestSimulation_SharedClockMedia(t *testing.T) {
	s := newManualSim(t,
		WithMedium("slow", 1, 1),
		WithMedium("fast", 2, 2))
	slow, _ := s.Medium("slow")
	fast, _ := s.Medium("fast")

	s.SineWave(1, 2)
	run(t, s, 60)

	for _, x := range []float64{0, 0.1, 0.25, 0.4} {
		assert.InDelta(t, slow.Displacement(x), fast.Displacement(2*x), 1e-9, "x=%v", x)
	}
	assert.Len(t, s.Media(), 2)
}

// TestSimulation_Profile tests sampling along a medium.
func TestSimulation_Profile(t *testing.T) {
	s := newManualSim(t, WithMedium("string", 1, 1))
	m, _ := s.Medium("string")

	s.Pulse(1, 0.2)
	run(t, s, 30)

	profile := m.Profile(11)
	require.Len(t, profile, 11)
	for i, v := range profile {
		assert.InDelta(t, m.Displacement(float64(i)*0.1), v, 1e-12)
	}
	// Peak left at 0.1s and has travelled 0.2 units.
	assert.InDelta(t, 1, profile[2], 1e-9)

	assert.Len(t, m.Profile(1), 1)
}

// TestSimulation_SineWaveInProgress tests the pre-seeded history.
func TestSimulation_SineWaveInProgress(t *testing.T) {
	s := newManualSim(t, WithMedium("string", 1, 1))
	m, _ := s.Medium("string")

	s.SineWaveInProgress(1, 1)

	// A quarter period ago the source was at its trough.
	assert.InDelta(t, -1, m.Displacement(0.25), 1e-9)
	assert.InDelta(t, 0, m.Displacement(0), 1e-9)

	run(t, s, 25)
	assert.InDelta(t, 1, m.Displacement(0), 1e-9)
	assert.InDelta(t, 0, m.Displacement(0.25), 1e-9)
	assert.InDelta(t, -1, m.Displacement(0.5), 1e-9)
}

// TestSimulation_PauseGatesRecording tests that nothing is recorded while
// the clock is paused.
func TestSimulation_PauseGatesRecording(t *testing.T) {
	mock := timer.NewMock(time.Unix(0, 0))
	clock, err := timekeeper.NewVirtualClock(timekeeper.WithTimerSource(mock))
	require.NoError(t, err)

	s, err := New(WithClock(clock), WithSampleInterval(0.01), WithMedium("string", 1, 1))
	require.NoError(t, err)
	m, _ := s.Medium("string")

	s.SineWave(1, 1)
	s.Pause()
	mock.Advance(200 * time.Millisecond)
	assert.Equal(t, time.Duration(0), s.Step())
	assert.Equal(t, 0.0, m.Recorder().Newest())

	s.Focus(false)
	s.Unpause()
	assert.True(t, clock.IsPaused(), "focus pause still holds")

	s.Focus(true)
	mock.Advance(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, s.Step())
	assert.InDelta(t, 1, m.Recorder().Newest(), 1e-9)
}

// TestSimulation_SetSpeed tests speed changes through the simulation.
func TestSimulation_SetSpeed(t *testing.T) {
	mock := timer.NewMock(time.Unix(0, 0))
	clock, err := timekeeper.NewVirtualClock(timekeeper.WithTimerSource(mock))
	require.NoError(t, err)

	s, err := New(WithClock(clock), WithMedium("string", 1, 1))
	require.NoError(t, err)

	require.NoError(t, s.SetSpeed(2))
	mock.Advance(50 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, s.Step())

	assert.ErrorIs(t, s.SetSpeed(-1), timekeeper.ErrUsage)
}

// TestSimulation_Reset tests that reset clears media, source and clock.
func TestSimulation_Reset(t *testing.T) {
	s := newManualSim(t, WithMedium("string", 1, 1))
	m, _ := s.Medium("string")

	s.Pulse(1, 0.3)
	run(t, s, 20)
	require.NotEqual(t, 0.0, m.Displacement(0.1))

	s.Reset()
	assert.Equal(t, time.Duration(0), s.Clock().Now())
	assert.Equal(t, timekeeper.ModeLive, s.Clock().Mode())
	assert.Equal(t, 0, s.Clock().PendingTimers())
	assert.Equal(t, 0.0, s.Source())
	for _, v := range m.Recorder().Recording().Data {
		assert.Equal(t, 0.0, v)
	}
}

// TestWaveforms tests the waveform shapes.
func TestWaveforms(t *testing.T) {
	assert.Equal(t, 0.0, Rest()(3))

	p := Pulse(2, 0.4)
	assert.Equal(t, 0.0, p(-0.1))
	assert.InDelta(t, 2, p(0.2), 1e-12)
	assert.Equal(t, 0.0, p(0.5))

	w := Sine(3, 0.5)
	assert.Equal(t, 0.0, w(-1))
	assert.InDelta(t, 3, w(0.5), 1e-12)
	assert.InDelta(t, 0, w(1), 1e-12)
	assert.InDelta(t, -3, w(1.5), 1e-12)
	assert.InDelta(t, 0, w(2), 1e-12)
	assert.False(t, math.IsNaN(w(1e9)))
}

// TestSimulation_State tests the UI snapshot.
func TestSimulation_State(t *testing.T) {
	s := newManualSim(t, WithMedium("string", 1, 1), WithMedium("rope", 2, 1))

	s.Pulse(1, 0.2)
	s.Focus(false)
	run(t, s, 10)

	state := s.State(5)
	assert.InDelta(t, 0.1, state.Time, 1e-9)
	assert.Equal(t, 1.0, state.Speed)
	assert.True(t, state.Paused)
	assert.Equal(t, "focus", state.PausedBy)
	assert.Equal(t, "manual", state.Mode)
	assert.InDelta(t, 1, state.Source, 1e-9)
	assert.Equal(t, 1, state.PendingTimers)
	require.Len(t, state.Media, 2)
	assert.Equal(t, "rope", state.Media[1].Name)
	assert.Len(t, state.Media[0].Profile, 5)
}

// TestSimulation_Run tests the wall-clock frame loop.
func TestSimulation_Run(t *testing.T) {
	s, err := New(WithMedium("string", 1, 1), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	s.SineWave(1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx, time.Millisecond))

	assert.Greater(t, s.Clock().Now(), time.Duration(0))
	m, _ := s.Medium("string")
	assert.NotEqual(t, 0.0, m.Recorder().Newest())

	assert.Error(t, s.Run(context.Background(), 0))
}
