// Demo runs a wave simulation on the wall clock and serves its state and
// controls over HTTP.
//
// Run with:
//
//	go run ./demo -velocity 1 -velocity2 2
//
// Then poll http://localhost:8080/api/state, or POST to /api/pulse.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airladon/timekeeper"
	"github.com/airladon/timekeeper/demo/server"
	"github.com/airladon/timekeeper/sim"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP server address")
	staticDir := flag.String("static", "", "static files directory")
	fps := flag.Float64("fps", 60, "frames per wall-clock second")
	speed := flag.Float64("speed", 1, "initial playback speed")
	velocity := flag.Float64("velocity", 1, "propagation velocity of the first medium")
	velocity2 := flag.Float64("velocity2", 0, "velocity of a second medium (0 disables)")
	length := flag.Float64("length", 1, "length of each medium")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	newLogger := zap.NewProduction
	if *debug {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if *fps <= 0 {
		logger.Fatal("fps must be positive", zap.Float64("fps", *fps))
	}

	clock, err := timekeeper.NewVirtualClock(
		timekeeper.WithSpeed(*speed),
		timekeeper.WithLogger(logger))
	if err != nil {
		logger.Fatal("creating clock", zap.Error(err))
	}

	opts := []sim.Option{
		sim.WithClock(clock),
		sim.WithLogger(logger),
		sim.WithMedium("medium1", *velocity, *length),
	}
	if *velocity2 > 0 {
		opts = append(opts, sim.WithMedium("medium2", *velocity2, *length))
	}
	s, err := sim.New(opts...)
	if err != nil {
		logger.Fatal("creating simulation", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(s, *staticDir, logger)
	frame := time.Duration(float64(time.Second) / *fps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(ctx, frame) })
	g.Go(func() error { return srv.ListenAndServe(ctx, *addr) })
	if err := g.Wait(); err != nil {
		logger.Fatal("demo failed", zap.Error(err))
	}
}
