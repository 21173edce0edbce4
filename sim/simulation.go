// Package sim propagates a point-source disturbance through one or more
// media using signal recorders as delay lines.
//
// Every medium records the same source signal. The displacement at distance
// x is the source value x/velocity seconds ago, read from that medium's
// recorder. All media share one virtual clock so they stay in step.
package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/airladon/timekeeper"
	"go.uber.org/zap"
)

// Commands is the control surface offered to UI code. Controls call these
// methods and never touch simulation state directly.
type Commands interface {
	Pulse(amplitude, width float64)
	SineWave(amplitude, frequency float64)
	SineWaveInProgress(amplitude, frequency float64)
	Stop()
	Reset()
	SetSpeed(speed float64) error
	Pause()
	Unpause()
	Focus(focused bool)
}

// Medium is one propagation medium and its delay line.
type Medium struct {
	name     string
	velocity float64
	length   float64
	recorder *timekeeper.SignalRecorder
}

// Name returns the medium name.
func (m *Medium) Name() string {
	return m.name
}

// Velocity returns the propagation speed.
func (m *Medium) Velocity() float64 {
	return m.velocity
}

// Length returns the extent of the medium.
func (m *Medium) Length() float64 {
	return m.length
}

// Recorder returns the medium's delay line.
func (m *Medium) Recorder() *timekeeper.SignalRecorder {
	return m.recorder
}

// Displacement returns the displacement at distance x from the source.
func (m *Medium) Displacement(x float64) float64 {
	if x < 0 {
		x = -x
	}
	return m.recorder.ValueAtTimeAgo(x / m.velocity)
}

// Profile samples the displacement at points evenly spaced positions from
// the source to the far end of the medium.
func (m *Medium) Profile(points int) []float64 {
	if points < 2 {
		return []float64{m.Displacement(0)}
	}
	out := make([]float64, points)
	step := m.length / float64(points-1)
	for i := range points {
		out[i] = m.Displacement(float64(i) * step)
	}
	return out
}

// Simulation drives a disturbance through its media, one Step per frame.
// Safe for concurrent use.
type Simulation struct {
	mu     sync.Mutex
	clock  *timekeeper.VirtualClock
	logger *zap.Logger

	media  []*Medium
	byName map[string]*Medium

	waveform  Waveform
	waveStart time.Duration
	endTimer  timekeeper.TimerID
}

// New creates a simulation with every medium at rest.
func New(opts ...Option) (*Simulation, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock, err = timekeeper.NewVirtualClock(timekeeper.WithLogger(cfg.Logger))
		if err != nil {
			return nil, err
		}
	}

	s := &Simulation{
		clock:    clock,
		logger:   cfg.Logger,
		byName:   make(map[string]*Medium, len(cfg.Media)),
		waveform: Rest(),
	}

	for _, mc := range cfg.Media {
		// One extra interval so the far end never reads past the horizon.
		horizon := mc.Length/mc.Velocity + cfg.SampleInterval
		rec, err := timekeeper.NewSignalRecorder(cfg.SampleInterval, horizon,
			timekeeper.WithRecorderLogger(cfg.Logger.With(zap.String("medium", mc.Name))))
		if err != nil {
			return nil, fmt.Errorf("medium %q: %w", mc.Name, err)
		}
		m := &Medium{
			name:     mc.Name,
			velocity: mc.Velocity,
			length:   mc.Length,
			recorder: rec,
		}
		s.media = append(s.media, m)
		s.byName[mc.Name] = m
	}

	return s, nil
}

// Clock returns the clock pacing the simulation.
func (s *Simulation) Clock() *timekeeper.VirtualClock {
	return s.clock
}

// Media returns the media in configuration order.
func (s *Simulation) Media() []*Medium {
	return append([]*Medium(nil), s.media...)
}

// Medium looks up a medium by name.
func (s *Simulation) Medium(name string) (*Medium, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Step advances the simulation by the virtual time elapsed since the last
// Step and records the current source value into every medium. Nothing is
// recorded while the clock is paused. Returns the recorded delta.
func (s *Simulation) Step() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := s.clock.Step()
	if delta <= 0 || s.clock.IsPaused() {
		return 0
	}

	value := s.sourceLocked(s.clock.Now())
	dt := delta.Seconds()
	for _, m := range s.media {
		m.recorder.Record(value, dt)
	}
	return delta
}

// Source returns the current source displacement.
func (s *Simulation) Source() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceLocked(s.clock.Now())
}

// Pulse starts a single pulse at the source. The source returns to rest
// width seconds of virtual time later.
func (s *Simulation) Pulse(amplitude, width float64) {
	if !positive(width) {
		s.logger.Warn("ignoring pulse with invalid width", zap.Float64("width", width))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.startLocked(Pulse(amplitude, width))

	var id timekeeper.TimerID
	id = s.clock.SetTimeout(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.endTimer == id {
			s.waveform = Rest()
			s.endTimer = 0
			s.logger.Debug("pulse ended")
		}
	}, seconds(width))
	s.endTimer = id

	s.logger.Info("pulse started",
		zap.Float64("amplitude", amplitude),
		zap.Float64("width", width),
		zap.Duration("at", s.waveStart))
}

// SineWave starts a continuous sine disturbance at the source.
func (s *Simulation) SineWave(amplitude, frequency float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startLocked(Sine(amplitude, frequency))

	s.logger.Info("sine wave started",
		zap.Float64("amplitude", amplitude),
		zap.Float64("frequency", frequency),
		zap.Duration("at", s.waveStart))
}

// SineWaveInProgress starts a sine disturbance and back-fills every medium
// as if the wave had already been running long enough to fill it.
func (s *Simulation) SineWaveInProgress(amplitude, frequency float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startLocked(Sine(amplitude, frequency))
	for _, m := range s.media {
		interval := m.recorder.SampleInterval()
		m.recorder.ResetWith(func(index, count int) float64 {
			age := float64(index) * interval
			return amplitude * math.Sin(-2*math.Pi*frequency*age)
		})
	}

	s.logger.Info("sine wave seeded",
		zap.Float64("amplitude", amplitude),
		zap.Float64("frequency", frequency),
		zap.Duration("at", s.waveStart))
}

// Stop returns the source to rest. Disturbances already travelling
// continue to propagate.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startLocked(Rest())
	s.logger.Info("source stopped")
}

// Reset resets the clock and puts every medium back at rest.
func (s *Simulation) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.Reset()
	s.waveform = Rest()
	s.waveStart = 0
	s.endTimer = 0
	for _, m := range s.media {
		m.recorder.Reset(0)
	}

	s.logger.Info("simulation reset")
}

// SetSpeed changes the playback speed.
func (s *Simulation) SetSpeed(speed float64) error {
	if err := s.clock.SetSpeed(speed); err != nil {
		return err
	}
	s.logger.Info("speed changed", zap.Float64("speed", speed))
	return nil
}

// Pause holds the simulation at the user's request.
func (s *Simulation) Pause() {
	s.clock.Pause(timekeeper.PauseUser)
}

// Unpause releases a user pause. A focus pause still holds the simulation.
func (s *Simulation) Unpause() {
	s.clock.Unpause(timekeeper.PauseUser)
}

// Focus reports host window focus; losing focus pauses the simulation
// independently of the user pause.
func (s *Simulation) Focus(focused bool) {
	if focused {
		s.clock.Unpause(timekeeper.PauseFocus)
	} else {
		s.clock.Pause(timekeeper.PauseFocus)
	}
}

// startLocked replaces the waveform from the current virtual time and
// cancels any pending pulse end. Must be called with s.mu held.
func (s *Simulation) startLocked(w Waveform) {
	if s.endTimer != 0 {
		s.clock.ClearTimeout(s.endTimer)
		s.endTimer = 0
	}
	s.waveform = w
	s.waveStart = s.clock.Now()
}

// Must be called with s.mu held.
func (s *Simulation) sourceLocked(now time.Duration) float64 {
	return s.waveform((now - s.waveStart).Seconds())
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

var _ Commands = (*Simulation)(nil)
