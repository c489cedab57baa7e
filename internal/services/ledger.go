package rewards

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Журнал XP: единственный источник балансов
type LedgerService struct {
	logger *zap.Logger
	db     interf.RewardsStorage
	cache  interf.CacheStorage
	now    func() time.Time
}

func NewLedgerService(logger *zap.Logger, db interf.RewardsStorage, cache interf.CacheStorage) *LedgerService {
	return &LedgerService{logger, db, cache, time.Now}
}

// начисление
func (l *LedgerService) Grant(ctx context.Context, accountID string, amount int64, source string, description string, externalID string) (tnx models.XPTransaction, err error) {
	if err = validate(accountID, amount); err != nil {
		return tnx, err
	}
	err = l.db.Atomic(ctx, accountID, func(ctx context.Context) error {
		tnx, err = l.grant(ctx, accountID, amount, source, description, externalID)
		return err
	})
	if err != nil {
		return tnx, err
	}
	l.invalidate(ctx, accountID)
	return tnx, nil
}

// начисление внутри Atomic
func (l *LedgerService) grant(ctx context.Context, accountID string, amount int64, source string, description string, externalID string) (models.XPTransaction, error) {
	if prev, ok, err := l.findExternal(ctx, accountID, externalID); err != nil || ok {
		return prev, err
	}
	tnx := l.newTnx(accountID, models.KindGrant, amount, source, description, externalID)
	if err := l.db.TnxCreate(ctx, tnx); err != nil {
		return models.XPTransaction{}, err
	}
	xpGranted.WithLabelValues(source).Add(float64(amount))
	return tnx, nil
}

// списание. Уменьшает доступный XP, накопленный XP не меняется
func (l *LedgerService) Redeem(ctx context.Context, accountID string, amount int64, externalID string) (tnx models.XPTransaction, err error) {
	if err = validate(accountID, amount); err != nil {
		return tnx, err
	}
	err = l.db.Atomic(ctx, accountID, func(ctx context.Context) error {
		tnx, err = l.redeem(ctx, accountID, amount, externalID)
		return err
	})
	if err != nil {
		return tnx, err
	}
	l.invalidate(ctx, accountID)
	return tnx, nil
}

func (l *LedgerService) redeem(ctx context.Context, accountID string, amount int64, externalID string) (models.XPTransaction, error) {
	if prev, ok, err := l.findExternal(ctx, accountID, externalID); err != nil || ok {
		return prev, err
	}
	account, err := l.fold(ctx, accountID)
	if err != nil {
		return models.XPTransaction{}, err
	}
	if amount > account.AvailableXP {
		return models.XPTransaction{}, fmt.Errorf("redeem %d of %d available: %w", amount, account.AvailableXP, models.ErrInsufficientXP)
	}
	tnx := l.newTnx(accountID, models.KindRedeem, -amount, "redeem", fmt.Sprintf("Redeemed %d XP", amount), externalID)
	if err := l.db.TnxCreate(ctx, tnx); err != nil {
		return models.XPTransaction{}, err
	}
	xpRedeemed.Add(float64(amount))
	return tnx, nil
}

// возврат списания - компенсирующая транзакция, исходная не меняется
func (l *LedgerService) Refund(ctx context.Context, accountID string, redeemID uuid.UUID, externalID string) (tnx models.XPTransaction, err error) {
	if accountID == "" {
		return tnx, models.ErrInvalidAccount
	}
	err = l.db.Atomic(ctx, accountID, func(ctx context.Context) error {
		tnx, err = l.refund(ctx, accountID, redeemID, externalID)
		return err
	})
	if err != nil {
		return tnx, err
	}
	l.invalidate(ctx, accountID)
	return tnx, nil
}

func (l *LedgerService) refund(ctx context.Context, accountID string, redeemID uuid.UUID, externalID string) (models.XPTransaction, error) {
	if prev, ok, err := l.findExternal(ctx, accountID, externalID); err != nil || ok {
		return prev, err
	}
	tnxs, err := l.db.GetTnx(ctx, accountID)
	if err != nil {
		return models.XPTransaction{}, err
	}
	var original *models.XPTransaction
	for i := range tnxs {
		if tnxs[i].ID == redeemID {
			original = &tnxs[i]
		}
		if tnxs[i].Kind == models.KindRefund && tnxs[i].RelatedID == redeemID {
			return models.XPTransaction{}, fmt.Errorf("transaction %s: %w", redeemID, models.ErrAlreadyRefunded)
		}
	}
	if original == nil {
		return models.XPTransaction{}, fmt.Errorf("transaction %s %w", redeemID, models.ErrNotFound)
	}
	if original.Kind != models.KindRedeem {
		return models.XPTransaction{}, fmt.Errorf("transaction %s: %w", redeemID, models.ErrNotRedemption)
	}
	tnx := l.newTnx(accountID, models.KindRefund, -original.Amount, "refund", fmt.Sprintf("Refunded %d XP", -original.Amount), externalID)
	tnx.RelatedID = redeemID
	if err := l.db.TnxCreate(ctx, tnx); err != nil {
		return models.XPTransaction{}, err
	}
	return tnx, nil
}

// сумма покупки для расчета статуса
func (l *LedgerService) RecordSpend(ctx context.Context, accountID string, cents int64, externalID string) (tnx models.XPTransaction, err error) {
	if err = validate(accountID, cents); err != nil {
		return tnx, err
	}
	err = l.db.Atomic(ctx, accountID, func(ctx context.Context) error {
		tnx, err = l.recordSpend(ctx, accountID, cents, externalID)
		return err
	})
	if err != nil {
		return tnx, err
	}
	l.invalidate(ctx, accountID)
	return tnx, nil
}

func (l *LedgerService) recordSpend(ctx context.Context, accountID string, cents int64, externalID string) (models.XPTransaction, error) {
	if prev, ok, err := l.findExternal(ctx, accountID, externalID); err != nil || ok {
		return prev, err
	}
	tnx := l.newTnx(accountID, models.KindSpend, 0, "purchase", "Purchase", externalID)
	tnx.Spend = cents
	if err := l.db.TnxCreate(ctx, tnx); err != nil {
		return models.XPTransaction{}, err
	}
	return tnx, nil
}

// баланс
func (l *LedgerService) Account(ctx context.Context, accountID string) (account models.XPAccount, err error) {
	var version int64
	cacheable := l.cache != nil
	if cacheable {
		account, err = l.cache.GetAccount(ctx, accountID)
		if err == nil {
			return account, nil
		}
		// версия читается до свертки: инвалидация после нее отменит запись
		if version, err = l.cache.AccountVersion(ctx, accountID); err != nil {
			l.logger.Error("cache version", zap.String("account", accountID), zap.Error(err))
			cacheable = false
		}
	}
	account, err = l.fold(ctx, accountID)
	if err != nil {
		return account, err
	}
	if cacheable {
		if err := l.cache.SetAccount(ctx, account, version); err != nil {
			l.logger.Error("cache account", zap.String("account", accountID), zap.Error(err))
		}
	}
	return account, nil
}

// последние транзакции, новые первыми
func (l *LedgerService) Recent(ctx context.Context, accountID string, limit int) ([]models.XPTransaction, error) {
	tnxs, err := l.db.GetTnx(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tnxs, func(i, j int) bool {
		return tnxs[i].CreatedAt.After(tnxs[j].CreatedAt)
	})
	if limit > 0 && len(tnxs) > limit {
		tnxs = tnxs[:limit]
	}
	return tnxs, nil
}

// транзакции за период
func (l *LedgerService) GetTnx(ctx context.Context, accountID string, from time.Time, to time.Time) ([]models.XPTransaction, error) {
	tnxs, err := l.db.GetTnx(ctx, accountID)
	if err != nil {
		return nil, err
	}
	result := make([]models.XPTransaction, 0, len(tnxs))
	for _, t := range tnxs {
		if !t.CreatedAt.Before(from) && !t.CreatedAt.After(to) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (l *LedgerService) fold(ctx context.Context, accountID string) (models.XPAccount, error) {
	tnxs, err := l.db.GetTnx(ctx, accountID)
	if err != nil {
		return models.XPAccount{}, err
	}
	return Fold(accountID, tnxs)
}

// Свертка журнала. Нарушение инвариантов не исправляется, а возвращается ошибкой
func Fold(accountID string, tnxs []models.XPTransaction) (models.XPAccount, error) {
	account := models.XPAccount{AccountID: accountID}
	for _, t := range tnxs {
		switch t.Kind {
		case models.KindGrant:
			if t.Amount <= 0 {
				return account, fmt.Errorf("grant %s amount %d: %w", t.ID, t.Amount, models.ErrLedgerIntegrity)
			}
			account.LifetimeXP += t.Amount
		case models.KindRedeem:
			if t.Amount >= 0 {
				return account, fmt.Errorf("redeem %s amount %d: %w", t.ID, t.Amount, models.ErrLedgerIntegrity)
			}
			account.RedeemedXP -= t.Amount
		case models.KindRefund:
			account.RedeemedXP -= t.Amount
		case models.KindSpend:
			account.LifetimeSpend += t.Spend
		default:
			return account, fmt.Errorf("transaction %s kind %q: %w", t.ID, t.Kind, models.ErrLedgerIntegrity)
		}
	}
	if account.RedeemedXP < 0 || account.RedeemedXP > account.LifetimeXP {
		return account, fmt.Errorf("account %s redeemed %d of %d: %w", accountID, account.RedeemedXP, account.LifetimeXP, models.ErrLedgerIntegrity)
	}
	account.AvailableXP = account.LifetimeXP - account.RedeemedXP
	return account, nil
}

func (l *LedgerService) findExternal(ctx context.Context, accountID string, externalID string) (models.XPTransaction, bool, error) {
	if externalID == "" {
		return models.XPTransaction{}, false, nil
	}
	tnx, err := l.db.GetTnxByExternalID(ctx, accountID, externalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.XPTransaction{}, false, nil
		}
		return models.XPTransaction{}, false, err
	}
	return tnx, true, nil
}

func (l *LedgerService) newTnx(accountID string, kind models.TnxKind, amount int64, source string, description string, externalID string) models.XPTransaction {
	return models.XPTransaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        kind,
		Source:      source,
		Description: description,
		ExternalID:  externalID,
		CreatedAt:   l.now(),
	}
}

// инвалидировать кэш баланса
func (l *LedgerService) invalidate(ctx context.Context, accountID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.InvalidateAccount(ctx, accountID); err != nil {
		l.logger.Error("invalidate cache", zap.String("account", accountID), zap.Error(err))
	}
}

func validate(accountID string, amount int64) error {
	if accountID == "" {
		return models.ErrInvalidAccount
	}
	if amount <= 0 {
		return fmt.Errorf("amount %d: %w", amount, models.ErrInvalidAmount)
	}
	return nil
}
