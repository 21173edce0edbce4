package timekeeper

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// indexEpsilon absorbs floating-point error when converting times to sample
// positions, so that 3 * 0.01s counts as three whole intervals.
const indexEpsilon = 1e-9

// SampleGenerator produces the value of sample index out of count when a
// recorder is filled. Index 0 is the newest sample, index count-1 the oldest;
// sample i is i sample intervals old.
type SampleGenerator func(index, count int) float64

// Recording is a snapshot of a recorder's history for plotting.
// Time[i] is the age in seconds of Data[i]. Entries run oldest to newest,
// so Time decreases to 0.
type Recording struct {
	Time []float64
	Data []float64
}

// RecorderConfig holds the initial state of a SignalRecorder.
type RecorderConfig struct {
	// Fill is the constant every sample starts at when Generator is nil.
	// Default: 0
	Fill float64

	// Generator pre-seeds the history. Takes precedence over Fill.
	Generator SampleGenerator

	// Logger for structured logging.
	Logger *zap.Logger
}

// RecorderOption is a functional option for configuring a SignalRecorder.
type RecorderOption func(*RecorderConfig) error

// WithFill sets the constant initial value of every sample.
func WithFill(value float64) RecorderOption {
	return func(c *RecorderConfig) error {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return wrapConfigf("fill value must be finite, got %v", value)
		}
		c.Fill = value
		return nil
	}
}

// WithGenerator sets a generator that pre-seeds the history.
func WithGenerator(gen SampleGenerator) RecorderOption {
	return func(c *RecorderConfig) error {
		if gen == nil {
			return wrapConfig("generator cannot be nil")
		}
		c.Generator = gen
		return nil
	}
}

// WithRecorderLogger sets the logger.
func WithRecorderLogger(logger *zap.Logger) RecorderOption {
	return func(c *RecorderConfig) error {
		if logger == nil {
			return wrapConfig("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// SignalRecorder is a fixed-resolution rolling history of a scalar signal.
//
// The buffer holds one sample per interval for ages 0 through the recorder
// duration inclusive. Record shifts new samples in at the front and drops
// the oldest; ValueAtTimeAgo reads the history by age.
//
// A recorder has no notion of pause. Callers gate calls to Record.
type SignalRecorder struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	interval float64
	duration float64

	// samples is a ring; samples[head] is the newest value.
	samples []float64
	head    int

	// Time recorded but not yet long enough to produce a sample.
	pending float64
}

// NewSignalRecorder creates a recorder sampling every sampleInterval seconds
// and retaining duration seconds of history.
// Returns an ErrConfig error when either value is not positive and finite,
// or when duration is shorter than one interval.
func NewSignalRecorder(sampleInterval, duration float64, opts ...RecorderOption) (*SignalRecorder, error) {
	if !positiveFinite(sampleInterval) {
		return nil, wrapConfigf("sample interval must be positive, got %v", sampleInterval)
	}
	if !positiveFinite(duration) {
		return nil, wrapConfigf("duration must be positive, got %v", duration)
	}
	if duration < sampleInterval {
		return nil, wrapConfigf("duration %v is shorter than sample interval %v", duration, sampleInterval)
	}

	cfg := &RecorderConfig{Logger: zap.NewNop()}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid recorder config: %w", err)
		}
	}

	count := int(math.Round(duration/sampleInterval)) + 1
	r := &SignalRecorder{
		logger:   cfg.Logger,
		interval: sampleInterval,
		duration: duration,
		samples:  make([]float64, count),
	}

	if cfg.Generator != nil {
		r.fillWith(cfg.Generator)
	} else {
		r.fill(cfg.Fill)
	}

	r.logger.Debug("recorder created",
		zap.Float64("interval", sampleInterval),
		zap.Float64("duration", duration),
		zap.Int("samples", count))

	return r, nil
}

// Record feeds value after deltaTime seconds have passed since the previous
// call. Each whole sample interval accumulated shifts one sample in. When
// several intervals pass in one call, the new samples ramp linearly from the
// previous newest sample to value. Fractions of an interval carry over to
// the next call. Calls with a negative or non-finite delta, or a non-finite
// value, are ignored without consuming time.
func (r *SignalRecorder) Record(value, deltaTime float64) {
	if deltaTime < 0 || math.IsNaN(deltaTime) || math.IsInf(deltaTime, 0) {
		r.logger.Warn("ignoring invalid record delta", zap.Float64("delta", deltaTime))
		return
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		r.logger.Warn("ignoring non-finite record value", zap.Float64("value", value))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending += deltaTime
	count := math.Floor(r.pending/r.interval + indexEpsilon)
	if count < 1 {
		return
	}

	// Only the last len(samples) steps of the ramp survive.
	n := float64(len(r.samples))
	steps := count
	if count > n {
		steps = n
		r.pending = math.Mod(r.pending, r.interval)
		// A remainder within epsilon of an interval was already counted.
		if r.pending > r.interval-indexEpsilon*r.interval {
			r.pending = 0
		}
	} else {
		r.pending -= count * r.interval
	}
	if r.pending < 0 {
		r.pending = 0
	}

	prev := r.samples[r.head]
	first := count - steps
	for k := 1.0; k <= steps; k++ {
		r.push(prev + (value-prev)*(first+k)/count)
	}
}

// ValueAtTimeAgo returns the recorded value secondsAgo seconds before the
// newest sample, linearly interpolated between neighbouring samples.
// secondsAgo is clamped to [0, Duration()], so times before the history
// began read the oldest value.
func (r *SignalRecorder) ValueAtTimeAgo(secondsAgo float64) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if math.IsNaN(secondsAgo) || secondsAgo < 0 {
		secondsAgo = 0
	}
	if secondsAgo > r.duration {
		secondsAgo = r.duration
	}

	pos := secondsAgo / r.interval
	if rounded := math.Round(pos); math.Abs(pos-rounded) < indexEpsilon {
		pos = rounded
	}

	last := len(r.samples) - 1
	i := int(math.Floor(pos))
	if i >= last {
		return r.at(last)
	}
	frac := pos - float64(i)
	if frac == 0 {
		return r.at(i)
	}
	v0, v1 := r.at(i), r.at(i+1)
	return v0 + (v1-v0)*frac
}

// Reset fills every sample with value and discards any partial interval.
func (r *SignalRecorder) Reset(value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fill(value)
}

// ResetWith fills the history from gen and discards any partial interval.
func (r *SignalRecorder) ResetWith(gen SampleGenerator) {
	if gen == nil {
		r.Reset(0)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fillWith(gen)
}

// Recording returns a copy of the history, oldest first.
func (r *SignalRecorder) Recording() Recording {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.samples)
	rec := Recording{
		Time: make([]float64, n),
		Data: make([]float64, n),
	}
	for j := range n {
		age := n - 1 - j
		rec.Time[j] = float64(age) * r.interval
		rec.Data[j] = r.at(age)
	}
	return rec
}

// Newest returns the most recent sample.
func (r *SignalRecorder) Newest() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.samples[r.head]
}

// Len returns the number of samples held.
func (r *SignalRecorder) Len() int {
	return len(r.samples)
}

// SampleInterval returns the sampling resolution in seconds.
func (r *SignalRecorder) SampleInterval() float64 {
	return r.interval
}

// Duration returns the retained history in seconds.
func (r *SignalRecorder) Duration() float64 {
	return r.duration
}

// at returns the sample age intervals old. Must be called with r.mu held.
func (r *SignalRecorder) at(age int) float64 {
	return r.samples[(r.head+age)%len(r.samples)]
}

// push shifts v in as the newest sample. Must be called with r.mu held.
func (r *SignalRecorder) push(v float64) {
	r.head--
	if r.head < 0 {
		r.head = len(r.samples) - 1
	}
	r.samples[r.head] = v
}

// Must be called with r.mu held.
func (r *SignalRecorder) fill(value float64) {
	for i := range r.samples {
		r.samples[i] = value
	}
	r.head = 0
	r.pending = 0
}

// Must be called with r.mu held.
func (r *SignalRecorder) fillWith(gen SampleGenerator) {
	n := len(r.samples)
	for i := range n {
		r.samples[i] = gen(i, n)
	}
	r.head = 0
	r.pending = 0
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
