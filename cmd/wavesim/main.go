// Command wavesim runs a wave propagation simulation frame by frame and
// writes the source history as WAV audio and an HTML chart.
//
// Run with:
//
//	go run ./cmd/wavesim -wave sine -duration 2 -html wave.html -wav wave.wav
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/airladon/timekeeper"
	"github.com/airladon/timekeeper/export"
	"github.com/airladon/timekeeper/sim"
	"go.uber.org/zap"
)

type options struct {
	duration  float64
	fps       float64
	interval  float64
	velocity  float64
	velocity2 float64
	length    float64
	wave      string
	amplitude float64
	frequency float64
	width     float64
	wavPath   string
	wavRate   int
	htmlPath  string
	debug     bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("wavesim", flag.ContinueOnError)
	fs.Float64Var(&o.duration, "duration", 2, "simulated seconds")
	fs.Float64Var(&o.fps, "fps", 60, "frames per simulated second")
	fs.Float64Var(&o.interval, "interval", sim.DefaultSampleInterval, "recorder sample interval in seconds")
	fs.Float64Var(&o.velocity, "velocity", 1, "propagation velocity of the first medium")
	fs.Float64Var(&o.velocity2, "velocity2", 0, "velocity of a second medium for comparison (0 disables)")
	fs.Float64Var(&o.length, "length", 1, "length of each medium")
	fs.StringVar(&o.wave, "wave", "pulse", "disturbance: pulse or sine")
	fs.Float64Var(&o.amplitude, "amplitude", 1, "disturbance amplitude")
	fs.Float64Var(&o.frequency, "frequency", 2, "sine frequency in hertz")
	fs.Float64Var(&o.width, "width", 0.2, "pulse width in seconds")
	fs.StringVar(&o.wavPath, "wav", "", "write the first medium's history to this WAV file")
	fs.IntVar(&o.wavRate, "wavrate", 0, "override the WAV sample rate (0 uses the recorder rate)")
	fs.StringVar(&o.htmlPath, "html", "", "write a chart of every medium's history to this HTML file")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.fps <= 0 {
		return o, fmt.Errorf("fps must be positive, got %v", o.fps)
	}
	if o.duration < 0 {
		return o, fmt.Errorf("duration must not be negative, got %v", o.duration)
	}
	if o.wave != "pulse" && o.wave != "sine" {
		return o, fmt.Errorf("unknown wave %q", o.wave)
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(o.debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	s, err := simulate(o, logger)
	if err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}
	if err := write(o, s, logger); err != nil {
		logger.Fatal("export failed", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// simulate builds the simulation and steps it in manual frames.
func simulate(o options, logger *zap.Logger) (*sim.Simulation, error) {
	clock, err := timekeeper.NewVirtualClock(timekeeper.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	clock.SetManualFrames()

	simOpts := []sim.Option{
		sim.WithClock(clock),
		sim.WithLogger(logger),
		sim.WithSampleInterval(o.interval),
		sim.WithMedium("medium1", o.velocity, o.length),
	}
	if o.velocity2 > 0 {
		simOpts = append(simOpts, sim.WithMedium("medium2", o.velocity2, o.length))
	}
	s, err := sim.New(simOpts...)
	if err != nil {
		return nil, err
	}

	switch o.wave {
	case "sine":
		s.SineWave(o.amplitude, o.frequency)
	default:
		s.Pulse(o.amplitude, o.width)
	}

	delta := time.Duration(float64(time.Second) / o.fps)
	frames := int(o.duration * o.fps)
	for range frames {
		if err := clock.Frame(delta); err != nil {
			return nil, err
		}
		s.Step()
	}

	logger.Info("simulation finished",
		zap.Int("frames", frames),
		zap.Duration("virtual", clock.Now()),
		zap.Float64("source", s.Source()))
	return s, nil
}

// write exports the recorded histories.
func write(o options, s *sim.Simulation, logger *zap.Logger) error {
	media := s.Media()

	if o.wavPath != "" {
		f, err := os.Create(o.wavPath)
		if err != nil {
			return err
		}
		err = export.WriteWAV(f, media[0].Recorder().Recording(), export.WAVOptions{SampleRate: o.wavRate})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		logger.Info("wrote wav", zap.String("path", o.wavPath))
	}

	if o.htmlPath != "" {
		series := make([]export.Series, len(media))
		for i, m := range media {
			series[i] = export.Series{Name: m.Name(), Recording: m.Recorder().Recording()}
		}
		f, err := os.Create(o.htmlPath)
		if err != nil {
			return err
		}
		err = export.WriteChart(f, "wavesim "+o.wave, series...)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		logger.Info("wrote chart", zap.String("path", o.htmlPath))
	}

	return nil
}
