// Package export writes recorder histories to files for inspection outside
// a render loop: WAV audio of the signal and HTML line charts.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/airladon/timekeeper"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth      = 16
	maxSample     = 1<<(bitDepth-1) - 1
	pcmFormat     = 1
	monoChannels  = 1
	minSampleRate = 1
)

// ErrEmptyRecording is returned when a recording has fewer than two samples,
// so no sample rate can be derived from it.
var ErrEmptyRecording = errors.New("recording has too few samples")

// WAVOptions controls WAV encoding.
type WAVOptions struct {
	// Peak is the signal magnitude mapped to full scale. Values beyond it
	// clip. If zero, the largest magnitude in the recording is used.
	Peak float64

	// SampleRate overrides the rate derived from the recording's sample
	// interval. Useful to make low-rate recordings audible.
	SampleRate int
}

// SampleRate derives the sample rate in hertz from a recording's time axis.
func SampleRate(rec timekeeper.Recording) (int, error) {
	if len(rec.Time) < 2 || len(rec.Data) != len(rec.Time) {
		return 0, ErrEmptyRecording
	}
	interval := math.Abs(rec.Time[0] - rec.Time[1])
	if interval == 0 {
		return 0, fmt.Errorf("recording has zero sample interval")
	}
	rate := int(math.Round(1 / interval))
	if rate < minSampleRate {
		rate = minSampleRate
	}
	return rate, nil
}

// WriteWAV encodes rec, oldest sample first, as 16-bit mono PCM.
func WriteWAV(w io.WriteSeeker, rec timekeeper.Recording, o WAVOptions) error {
	rate := o.SampleRate
	if rate <= 0 {
		var err error
		if rate, err = SampleRate(rec); err != nil {
			return fmt.Errorf("wav: %w", err)
		}
	} else if len(rec.Data) == 0 {
		return fmt.Errorf("wav: %w", ErrEmptyRecording)
	}

	peak := o.Peak
	if peak <= 0 {
		peak = peakOf(rec.Data)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: monoChannels,
			SampleRate:  rate,
		},
		Data:           quantize(rec.Data, peak),
		SourceBitDepth: bitDepth,
	}

	enc := wav.NewEncoder(w, rate, bitDepth, monoChannels, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	return nil
}

// peakOf returns the largest magnitude in data, or 1 for a silent signal.
func peakOf(data []float64) float64 {
	peak := 0.0
	for _, v := range data {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return 1
	}
	return peak
}

// quantize scales data so that peak maps to full scale, clipping beyond it.
func quantize(data []float64, peak float64) []int {
	out := make([]int, len(data))
	for i, v := range data {
		s := math.Round(v / peak * maxSample)
		if s > maxSample {
			s = maxSample
		} else if s < -maxSample {
			s = -maxSample
		}
		out[i] = int(s)
	}
	return out
}
