package sim

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Run steps the simulation once per frame interval of wall time until ctx
// is cancelled. It stands in for a render loop when no display is attached.
func (s *Simulation) Run(ctx context.Context, frame time.Duration) error {
	if frame <= 0 {
		return fmt.Errorf("frame interval must be positive, got %v", frame)
	}

	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	s.logger.Info("render loop started", zap.Duration("frame", frame))
	frames := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("render loop stopped",
				zap.Int("frames", frames),
				zap.Duration("virtual", s.clock.Now()))
			return nil
		case <-ticker.C:
			s.Step()
			frames++
		}
	}
}
