package rewards

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyXPGranted       NotificationType = "xp_granted"
	NotifyLevelUp         NotificationType = "level_up"
	NotifyTierUp          NotificationType = "tier_up"
	NotifyStreakMilestone NotificationType = "streak_milestone"
	NotifyStreakAtRisk    NotificationType = "streak_at_risk"
	NotifyFreezeUsed      NotificationType = "freeze_used"
)

// Уведомление для UI. Получатель обязан быть идемпотентным по IdempotencyKey
type Notification struct {
	ID             uuid.UUID        `json:"id"`
	AccountID      string           `json:"accountId"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Body           string           `json:"body"`
	IdempotencyKey string           `json:"idempotencyKey"`
	CreatedAt      time.Time        `json:"createdAt"`
}
