package sim

import "math"

// Waveform gives the source displacement t seconds after a disturbance
// started. Values for t < 0 are the source at rest.
type Waveform func(t float64) float64

// Rest holds the source at zero.
func Rest() Waveform {
	return func(float64) float64 { return 0 }
}

// Pulse is a single half-sine bump of the given amplitude lasting width
// seconds, then rest.
func Pulse(amplitude, width float64) Waveform {
	return func(t float64) float64 {
		if t < 0 || t > width {
			return 0
		}
		return amplitude * math.Sin(math.Pi*t/width)
	}
}

// Sine oscillates indefinitely at frequency hertz, starting at zero and
// moving positive.
func Sine(amplitude, frequency float64) Waveform {
	return func(t float64) float64 {
		if t < 0 {
			return 0
		}
		return amplitude * math.Sin(2*math.Pi*frequency*t)
	}
}
