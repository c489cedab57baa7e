package rewards

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// метрики

var (
	xpGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_xp_granted_total",
			Help: "Начислено XP",
		},
		[]string{"source"},
	)

	xpRedeemed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_xp_redeemed_total",
			Help: "Списано XP",
		},
	)

	rollBands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_roll_bands_total",
			Help: "Результаты розыгрышей по полосам",
		},
		[]string{"band"},
	)

	promoRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_promo_rejected_total",
			Help: "Отклоненные промокоды",
		},
		[]string{"code"},
	)

	streakNotices = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_streak_at_risk_notices_total",
			Help: "Отправленные уведомления о риске потери стрика",
		},
	)
)
