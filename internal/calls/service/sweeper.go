package service

import (
	"context"
	"time"

	"qrcall/internal/calls/models"
	"qrcall/internal/events"
	dErrors "qrcall/pkg/domain-errors"
)

const sourceSweeper = "sweeper"

// Run sweeps on every tick of the configured interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "call sweep failed", "error", err)
			}
		}
	}
}

// Sweep misses calls nobody answered within the ring timeout and ends
// answered calls that outlived the max duration. It returns how many calls
// it moved.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	missed, err := s.sweep(ctx, models.StatusInitiated, now.Add(-s.cfg.RingTimeout), func(c *models.Call) error {
		return c.Miss(now)
	})
	if err != nil {
		return missed, err
	}
	ended, err := s.sweep(ctx, models.StatusAnswered, now.Add(-(s.cfg.MaxDuration + s.cfg.RingTimeout)), func(c *models.Call) error {
		return c.End(now, models.EndedBySystem)
	})
	return missed + ended, err
}

func (s *Service) sweep(ctx context.Context, status models.Status, cutoff time.Time, apply func(*models.Call) error) (int, error) {
	stale, err := s.store.ListStale(ctx, status, cutoff, sweepBatchSize)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stale calls")
	}

	moved := 0
	for _, call := range stale {
		next := call.Clone()
		if err := apply(next); err != nil {
			continue
		}
		if err := s.commit(ctx, next, status, sourceSweeper); err != nil {
			// a participant or the relay got there first
			if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue
			}
			return moved, err
		}
		moved++
		if s.metrics != nil {
			s.metrics.IncSwept(string(next.Status))
		}
		s.logger.InfoContext(ctx, "call swept", "call_id", next.ID, "from", status, "to", next.Status)
		s.notifyEnded(ctx, next, "timeout")
		s.endMaskedSession(ctx, next)
		s.emit(ctx, events.TypeFor(next.Status), next, sourceSweeper, nil)
	}
	return moved, nil
}
