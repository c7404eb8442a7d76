package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FailedRetrier возвращает failed-работы на повторную оценку.
type FailedRetrier interface {
	RetryFailed(ctx context.Context, limit int) (int, error)
}

// FailedSweeper периодически перезапускает оценку работ в статусе failed.
type FailedSweeper struct {
	retrier  FailedRetrier
	interval time.Duration
	batch    int
	logger   zerolog.Logger
}

func NewFailedSweeper(retrier FailedRetrier, interval time.Duration, batch int, logger zerolog.Logger) *FailedSweeper {
	return &FailedSweeper{
		retrier:  retrier,
		interval: interval,
		batch:    batch,
		logger:   logger,
	}
}

// Start блокируется до отмены ctx. interval <= 0 отключает sweeper.
func (s *FailedSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info().Msg("Failed submissions sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Failed submissions sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *FailedSweeper) sweep(ctx context.Context) {
	requeued, err := s.retrier.RetryFailed(ctx, s.batch)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to retry failed submissions")
		return
	}

	if requeued > 0 {
		s.logger.Info().Int("requeued", requeued).Msg("Failed submissions re-dispatched")
	}
}
