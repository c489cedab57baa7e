package rewards

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const noticeTTL = 48 * time.Hour

// Обход стриков: уведомления о риске потери. Стрики и журнал не меняются
type SweepService struct {
	logger   *zap.Logger
	db       interf.RewardsStorage
	streaks  *StreakService
	notifier interf.Notifier
	guard    interf.NotifyGuard
	workers  int
}

func NewSweepService(logger *zap.Logger, db interf.RewardsStorage, cfg StreakConfig, notifier interf.Notifier, guard interf.NotifyGuard, workers int) *SweepService {
	if workers < 1 {
		workers = 1
	}
	return &SweepService{
		logger:   logger,
		db:       db,
		streaks:  NewStreakService(logger, db, nil, cfg),
		notifier: notifier,
		guard:    guard,
		workers:  workers,
	}
}

// Возвращает количество отправленных уведомлений
func (s *SweepService) Sweep(ctx context.Context, now time.Time) (int, error) {
	// под угрозой только стрики со вчерашней активностью
	since := s.streaks.day(now).AddDate(0, 0, -1)
	records, err := s.db.GetStreaksActiveSince(ctx, since)
	if err != nil {
		return 0, err
	}

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, rec := range records {
		g.Go(func() error {
			risk := s.streaks.Risk(rec, now)
			if !risk.AtRisk {
				return nil
			}
			key := fmt.Sprintf("at_risk:%s:%s", rec.AccountID, s.streaks.day(now).Format(time.DateOnly))
			if s.guard != nil {
				first, err := s.guard.Once(gctx, key, noticeTTL)
				if err != nil {
					s.logger.Error("sweep guard", zap.String("account", rec.AccountID), zap.Error(err))
					return nil
				}
				if !first {
					return nil
				}
			}
			n := models.Notification{
				ID:             uuid.New(),
				AccountID:      rec.AccountID,
				Type:           models.NotifyStreakAtRisk,
				Title:          "Your streak is at risk",
				Body:           fmt.Sprintf("%d-day streak ends in %.0f hours", rec.CurrentStreak, risk.HoursRemaining),
				IdempotencyKey: key,
				CreatedAt:      now,
			}
			if err := s.notifier.Notify(gctx, n); err != nil {
				s.logger.Error("sweep notify", zap.String("account", rec.AccountID), zap.Error(err))
				// следующий обход повторит отправку
				if s.guard != nil {
					if ferr := s.guard.Forget(context.WithoutCancel(gctx), key); ferr != nil {
						s.logger.Error("sweep guard release", zap.String("account", rec.AccountID), zap.Error(ferr))
					}
				}
				return nil
			}
			streakNotices.Inc()
			sent.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(sent.Load()), err
	}
	s.logger.Info("sweep done",
		zap.Int("checked", len(records)),
		zap.Int64("notified", sent.Load()),
	)
	return int(sent.Load()), nil
}
