package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// dispatchTimeout bounds one publish after the claim commits. The publish is
// detached from the tick context so shutdown does not abandon committed claims.
const dispatchTimeout = 10 * time.Second

type IDispatcher interface {
	Dispatch(context.Context, uuid.UUID) error
}

type Scheduler struct {
	store        IStore
	dispatcher   IDispatcher
	logger       *zap.SugaredLogger
	batch        int
	reclaimAfter time.Duration
	now          func() time.Time
}

func NewScheduler(store IStore, dispatcher IDispatcher, batch int, reclaimAfter time.Duration, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		store:        store,
		dispatcher:   dispatcher,
		logger:       logger,
		batch:        batch,
		reclaimAfter: reclaimAfter,
		now:          time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run ticks every interval until ctx is done. A tick still running when the
// next one is due is skipped rather than overlapped.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Errorw("scheduler tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("error scheduling withdrawal scan: %w", err)
	}

	c.Start()
	s.logger.Infow("scheduler started", "interval", interval, "batch", s.batch)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Tick claims due withdrawals and dispatches them. It returns how many were
// handed to the queue. A claimed row whose dispatch fails stays claimed.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now().UTC()

	var ids []uuid.UUID
	err := s.store.WithinTx(ctx, func(r IRepositories) error {
		claimed, err := r.Withdrawals().ClaimDueBatch(ctx, now, s.batch)
		if err != nil {
			return err
		}

		if s.reclaimAfter > 0 {
			stale, err := r.Withdrawals().ReclaimStale(ctx, now, now.Add(-s.reclaimAfter), s.batch)
			if err != nil {
				return err
			}
			if len(stale) > 0 {
				s.logger.Warnw("reclaimed stale withdrawals", "count", len(stale))
			}
			claimed = append(claimed, stale...)
		}

		ids = claimed
		return nil
	})
	if err != nil {
		return 0, transient("claim due withdrawals", err)
	}

	queued := 0
	for _, id := range ids {
		if err = s.dispatch(id); err != nil {
			s.logger.Errorw("claimed withdrawal was not dispatched", "withdraw", id, "error", err)
			continue
		}
		queued++
	}

	s.logger.Infow("scheduled withdrawals enqueued", "enqueued", queued, "claimed", len(ids), "now", now.Format(time.RFC3339))
	return queued, nil
}

func (s *Scheduler) dispatch(id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	return s.dispatcher.Dispatch(ctx, id)
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
