package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

const (
	reconcileBatchSize = 100
	reconcileTimeout   = 5 * time.Minute
)

// ReconcilePending сверяет зависшие pending-пожертвования со шлюзом.
// Возвращает количество записей, для которых удалось получить статус.
func (s *Service) ReconcilePending(ctx context.Context) (int, error) {
	before := s.now().Add(-s.pendingGrace)

	donations, err := s.repo.ListPendingDonations(ctx, before, reconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending donations: %w", err)
	}

	resolved := 0
	for _, d := range donations {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		res, err := s.ResolvePaymentStatus(ctx, d.PaymentReference)
		if err != nil {
			s.logger.Warn("reconcile donation", zap.Error(err), zap.String("reference", d.PaymentReference))
			continue
		}
		if res.Status != model.PaymentStatusProcessing {
			resolved++
		}
	}

	return resolved, nil
}

// StartReconciliation запускает периодическую сверку по расписанию cron и блокируется до отмены ctx.
func (s *Service) StartReconciliation(ctx context.Context, schedule string) error {
	logger := cronLogger{s.logger.Sugar()}

	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, reconcileTimeout)
		defer cancel()

		n, err := s.ReconcilePending(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("reconcile pending donations", zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("pending donations reconciled", zap.Int("resolved", n))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconciliation %q: %w", schedule, err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	return nil
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
