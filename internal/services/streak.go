package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"go.uber.org/zap"
)

type StreakConfig struct {
	Location        *time.Location
	MaxFreezeTokens int
	MilestoneEvery  int
	MilestoneXP     int64
	RiskAfter       time.Duration // сколько должно пройти с последней активности, чтобы стрик был под угрозой
}

func DefaultStreakConfig() StreakConfig {
	return StreakConfig{
		Location:        time.UTC,
		MaxFreezeTokens: 3,
		MilestoneEvery:  7,
		MilestoneXP:     100,
		RiskAfter:       16 * time.Hour,
	}
}

// Результат записи активности
type StreakUpdate struct {
	Record       models.StreakRecord
	Counted      bool // засчитан новый день
	Milestone    bool
	TokenGranted bool
	Bonus        *models.XPTransaction
}

type StreakService struct {
	logger *zap.Logger
	db     interf.RewardsStorage
	ledger *LedgerService
	cfg    StreakConfig
}

func NewStreakService(logger *zap.Logger, db interf.RewardsStorage, ledger *LedgerService, cfg StreakConfig) *StreakService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MilestoneEvery <= 0 {
		cfg.MilestoneEvery = 7
	}
	return &StreakService{logger, db, ledger, cfg}
}

// Активность пользователя. Несколько активностей за день засчитываются один раз
func (s *StreakService) RecordActivity(ctx context.Context, accountID string, at time.Time) (upd StreakUpdate, err error) {
	if accountID == "" {
		return upd, models.ErrInvalidAccount
	}
	err = s.db.Atomic(ctx, accountID, func(ctx context.Context) error {
		upd, err = s.recordActivity(ctx, accountID, at)
		return err
	})
	if err != nil {
		return upd, err
	}
	if upd.Bonus != nil {
		s.ledger.invalidate(ctx, accountID)
	}
	return upd, nil
}

// запись активности внутри Atomic
func (s *StreakService) recordActivity(ctx context.Context, accountID string, at time.Time) (StreakUpdate, error) {
	rec, err := s.load(ctx, accountID)
	if err != nil {
		return StreakUpdate{}, err
	}
	upd := StreakUpdate{}
	day := s.day(at)

	if rec.LastActivityAt.IsZero() || rec.CurrentStreak == 0 {
		rec.CurrentStreak = 1
		upd.Counted = true
	} else {
		diff := daysBetween(s.day(rec.LastActivityAt), day)
		switch {
		case diff < 0:
			// событие старше последней активности
			upd.Record = rec
			return upd, nil
		case diff == 0:
		case diff == 1 || diff-1 <= rec.FrozenDays:
			rec.CurrentStreak++
			upd.Counted = true
		default:
			rec.CurrentStreak = 1
			upd.Counted = true
		}
	}

	if !sameWeek(s.day(rec.LastActivityAt), day) {
		rec.WeeklyActivity = [7]bool{}
	}
	rec.WeeklyActivity[weekdayIndex(day)] = true
	if at.After(rec.LastActivityAt) {
		rec.LastActivityAt = at
	}

	if upd.Counted {
		rec.FrozenDays = 0
		if rec.CurrentStreak > rec.LongestStreak {
			rec.LongestStreak = rec.CurrentStreak
		}
		if rec.CurrentStreak%s.cfg.MilestoneEvery == 0 {
			upd.Milestone = true
			if rec.FreezeTokens < s.cfg.MaxFreezeTokens {
				rec.FreezeTokens++
				upd.TokenGranted = true
			}
			if s.cfg.MilestoneXP > 0 && s.ledger != nil {
				key := fmt.Sprintf("streak:%s:%s:%d", accountID, day.Format(time.DateOnly), rec.CurrentStreak)
				bonus, err := s.ledger.grant(ctx, accountID, s.cfg.MilestoneXP, "streak",
					fmt.Sprintf("%d-day streak bonus", rec.CurrentStreak), key)
				if err != nil {
					return StreakUpdate{}, err
				}
				upd.Bonus = &bonus
			}
		}
	}

	if err := s.db.SaveStreak(ctx, rec); err != nil {
		return StreakUpdate{}, err
	}
	upd.Record = rec
	return upd, nil
}

// Заморозка: закрывает один пропущенный день
func (s *StreakService) UseFreezeToken(ctx context.Context, accountID string) (rec models.StreakRecord, err error) {
	if accountID == "" {
		return rec, models.ErrInvalidAccount
	}
	err = s.db.Atomic(ctx, accountID, func(ctx context.Context) error {
		rec, err = s.load(ctx, accountID)
		if err != nil {
			return err
		}
		if rec.FreezeTokens <= 0 {
			return fmt.Errorf("account %s: %w", accountID, models.ErrNoFreezeTokensAvailable)
		}
		if rec.CurrentStreak == 0 {
			return fmt.Errorf("account %s: %w", accountID, models.ErrNoActiveStreak)
		}
		rec.FreezeTokens--
		rec.FrozenDays++
		return s.db.SaveStreak(ctx, rec)
	})
	return rec, err
}

// Только чтение, без побочных эффектов
func (s *StreakService) CheckAtRisk(ctx context.Context, accountID string, now time.Time) (models.StreakRisk, error) {
	rec, err := s.load(ctx, accountID)
	if err != nil {
		return models.StreakRisk{}, err
	}
	return s.Risk(rec, now), nil
}

// Текущий стрик
func (s *StreakService) Get(ctx context.Context, accountID string) (models.StreakRecord, error) {
	return s.load(ctx, accountID)
}

// Состояние стрика на момент now
func (s *StreakService) Risk(rec models.StreakRecord, now time.Time) models.StreakRisk {
	if rec.LastActivityAt.IsZero() || rec.CurrentStreak == 0 {
		return models.StreakRisk{State: models.StreakDormant}
	}
	last := s.day(rec.LastActivityAt)
	deadline := last.AddDate(0, 0, 2+rec.FrozenDays)
	local := now.In(s.cfg.Location)
	if !local.Before(deadline) {
		return models.StreakRisk{State: models.StreakBroken}
	}
	risk := models.StreakRisk{
		State:          models.StreakActive,
		HoursRemaining: deadline.Sub(local).Hours(),
	}
	diff := daysBetween(last, s.day(now))
	switch {
	case diff >= 2:
		risk.State = models.StreakFrozen
	case diff == 1 && rec.FrozenDays == 0 && now.Sub(rec.LastActivityAt) >= s.cfg.RiskAfter:
		risk.State = models.StreakAtRisk
		risk.AtRisk = true
	}
	return risk
}

func (s *StreakService) load(ctx context.Context, accountID string) (models.StreakRecord, error) {
	rec, err := s.db.GetStreak(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.StreakRecord{AccountID: accountID}, nil
		}
		return rec, err
	}
	return rec, nil
}

// начало календарного дня в поясе стриков
func (s *StreakService) day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	l := t.In(s.cfg.Location)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, s.cfg.Location)
}

// разница в календарных днях, не зависит от перехода на летнее время
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func sameWeek(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

// пн = 0 ... вс = 6
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
