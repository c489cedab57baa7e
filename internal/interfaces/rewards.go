package rewards

import (
	"context"
	"time"

	models "github.com/glkeru/loyalty/rewards/internal/models"
)

//go:generate mockgen -destination=./../services/mock_rewards_test.go -package=rewards . CatalogStorage,Notifier,PromoUsage

// Хранилище журнала XP и стриков.
// Atomic - единая точка сериализации записей по аккаунту: все вызовы внутри fn
// выполняются эксклюзивно для accountID
type RewardsStorage interface {
	Atomic(ctx context.Context, accountID string, fn func(ctx context.Context) error) error
	TnxCreate(ctx context.Context, tnx models.XPTransaction) error
	GetTnx(ctx context.Context, accountID string) ([]models.XPTransaction, error)
	GetTnxByExternalID(ctx context.Context, accountID string, externalID string) (models.XPTransaction, error)
	GetStreak(ctx context.Context, accountID string) (models.StreakRecord, error)
	SaveStreak(ctx context.Context, rec models.StreakRecord) error
	GetStreaksActiveSince(ctx context.Context, since time.Time) ([]models.StreakRecord, error)
	AccountExists(ctx context.Context, accountID string) (bool, error)
}

// Каталог: товары, наборы, промокоды, правила начисления
type CatalogStorage interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetBundles(ctx context.Context) ([]models.Bundle, error)
	GetPromoCodes(ctx context.Context) ([]models.PromoCode, error)
	GetActionRules(ctx context.Context) ([]models.ActionRule, error)
}

// Кэш балансов. Версия аккаунта растет при каждой инвалидации,
// SetAccount пишет только если версия не изменилась с момента чтения
type CacheStorage interface {
	GetAccount(ctx context.Context, accountID string) (models.XPAccount, error)
	AccountVersion(ctx context.Context, accountID string) (int64, error)
	SetAccount(ctx context.Context, account models.XPAccount, version int64) error
	InvalidateAccount(ctx context.Context, accountID string) error
}

// Счетчик использований промокодов
type PromoUsage interface {
	Used(ctx context.Context, code string) (int64, error)
	Acquire(ctx context.Context, code string, limit int64) (bool, error)
	Release(ctx context.Context, code string) error
}

// Отправка уведомлений (доставка at-least-once)
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Защита от повторной отправки одного и того же уведомления
type NotifyGuard interface {
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// снять ключ, если уведомление не доставлено
	Forget(ctx context.Context, key string) error
}

// Источник случайных чисел в [0,1)
type RandomSource interface {
	Float64() float64
}
