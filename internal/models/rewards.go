package rewards

import (
	"time"

	"github.com/google/uuid"
)

// Счет XP. Все поля производные - считаются сверткой транзакций
type XPAccount struct {
	AccountID     string `json:"accountId"`
	LifetimeXP    int64  `json:"lifetimeXP"`    // всего начислено, не убывает
	RedeemedXP    int64  `json:"redeemedXP"`    // списано (за вычетом возвратов)
	AvailableXP   int64  `json:"availableXP"`   // LifetimeXP - RedeemedXP
	LifetimeSpend int64  `json:"lifetimeSpend"` // сумма покупок, в центах
}

// Тип транзакции
type TnxKind string

const (
	KindGrant  TnxKind = "grant"
	KindRedeem TnxKind = "redeem"
	KindRefund TnxKind = "refund"
	KindSpend  TnxKind = "spend"
)

// Транзакция XP. Не изменяется и не удаляется
type XPTransaction struct {
	ID          uuid.UUID `json:"id"`
	AccountID   string    `json:"accountId"`
	Amount      int64     `json:"amount"` // со знаком: списание < 0
	Spend       int64     `json:"spend"`  // сумма покупки для KindSpend
	Kind        TnxKind   `json:"kind"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	ExternalID  string    `json:"externalId,omitempty"` // ключ идемпотентности (eventId, redeemId, orderId)
	RelatedID   uuid.UUID `json:"relatedId,omitempty"`  // для возврата - транзакция списания
	CreatedAt   time.Time `json:"createdAt"`
}

// Стрик по аккаунту
type StreakRecord struct {
	AccountID      string    `json:"accountId"`
	CurrentStreak  int       `json:"currentStreak"`
	LongestStreak  int       `json:"longestStreak"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	FreezeTokens   int       `json:"freezeTokens"`
	FrozenDays     int       `json:"frozenDays"`     // пропущенные дни, закрытые заморозкой
	WeeklyActivity [7]bool   `json:"weeklyActivity"` // пн..вс недели последней активности
}

type StreakState string

const (
	StreakDormant StreakState = "dormant"
	StreakActive  StreakState = "active"
	StreakAtRisk  StreakState = "at_risk"
	StreakFrozen  StreakState = "frozen"
	StreakBroken  StreakState = "broken"
)

// Результат проверки стрика
type StreakRisk struct {
	State          StreakState `json:"state"`
	AtRisk         bool        `json:"atRisk"`
	HoursRemaining float64     `json:"hoursRemaining"`
}

// Уровень
type LevelInfo struct {
	Level         int     `json:"level"`
	Title         string  `json:"title"`
	Threshold     int64   `json:"threshold"`
	NextThreshold int64   `json:"nextThreshold,omitempty"`
	Progress      float64 `json:"progress"`
}

// Статус участника
type TierInfo struct {
	Name            string `json:"name"`
	DiscountPercent int    `json:"discountPercent"`
}

// Порог конвертации XP в скидку
type DiscountTier struct {
	XPThreshold int64  `json:"xpThreshold" yaml:"xp"`
	Label       string `json:"label" yaml:"label"`
	Amount      int64  `json:"amount" yaml:"amount"`
}

// Профиль для UI
type Profile struct {
	Account      XPAccount       `json:"account"`
	Level        LevelInfo       `json:"level"`
	Tier         TierInfo        `json:"tier"`
	Streak       StreakRecord    `json:"streak"`
	StreakRisk   StreakRisk      `json:"streakRisk"`
	XPDiscount   int64           `json:"xpDiscount"`
	NextDiscount *DiscountTier   `json:"nextDiscount,omitempty"`
	NextGap      int64           `json:"nextDiscountGap,omitempty"`
	Recent       []XPTransaction `json:"recent"`
}

// Результат начисления за действие
type ActionResult struct {
	Granted []XPTransaction `json:"granted"`
	Account XPAccount       `json:"account"`
	Level   LevelInfo       `json:"level"`
	Tier    TierInfo        `json:"tier"`
	Streak  StreakRecord    `json:"streak"`
	Band    string          `json:"band,omitempty"`
	// событие уже обработано, повторно ничего не начислено
	Duplicate bool `json:"duplicate,omitempty"`
}

// Результат оформления заказа
type CheckoutResult struct {
	OrderID    string            `json:"orderId"`
	Pricing    CartPricingResult `json:"pricing"`
	Account    XPAccount         `json:"account"`
	Redemption *XPTransaction    `json:"redemption,omitempty"`
	Duplicate  bool              `json:"duplicate,omitempty"`
}
