package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// собирает отправленные уведомления
type recorder struct {
	mu  sync.Mutex
	got []models.Notification
}

func newRecorder(t *testing.T) (*MockNotifier, *recorder) {
	t.Helper()
	notifier := NewMockNotifier(gomock.NewController(t))
	r := &recorder{}
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, n models.Notification) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.got = append(r.got, n)
		return nil
	}).AnyTimes()
	return notifier, r
}

func (r *recorder) types() []models.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]models.NotificationType, len(r.got))
	for i, n := range r.got {
		types[i] = n.Type
	}
	return types
}

func (r *recorder) last() models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = nil
}

func TestProfileNotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	_, err := env.service.Profile(context.Background(), "ghost")
	require.ErrorIs(t, err, models.ErrAccountNotFound)
	_, err = env.service.Profile(context.Background(), "")
	require.ErrorIs(t, err, models.ErrInvalidAccount)
}

func TestRecordActionLevelUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	notifier, rec := newRecorder(t)
	env := newTestEnv(t, notifier)

	result, err := env.service.RecordAction(ctx, "u1", "referral", nil, "evt-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, result.Granted, 1)
	require.Equal(t, int64(200), result.Granted[0].Amount)
	require.Equal(t, int64(200), result.Account.LifetimeXP)
	require.Equal(t, 2, result.Level.Level)
	require.Equal(t, "Associate", result.Level.Title)
	require.Equal(t, "Bronze", result.Tier.Name)
	require.Equal(t, 1, result.Streak.CurrentStreak)

	require.Equal(t, []models.NotificationType{models.NotifyXPGranted, models.NotifyLevelUp}, rec.types())
	require.Equal(t, "level:u1:2", rec.last().IdempotencyKey)

	profile, err := env.service.Profile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(200), profile.Account.AvailableXP)
	require.Equal(t, int64(0), profile.XPDiscount)
	require.NotNil(t, profile.NextDiscount)
	require.Equal(t, int64(500), profile.NextDiscount.XPThreshold)
	require.Equal(t, int64(300), profile.NextGap)
	require.Len(t, profile.Recent, 1)
	require.Equal(t, models.StreakActive, profile.StreakRisk.State)
}

func TestRecordActionDuplicateEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	notifier, rec := newRecorder(t)
	env := newTestEnv(t, notifier)

	first, err := env.service.RecordAction(ctx, "u1", "review", map[string]any{"words": 40}, "evt-1", time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(50), first.Account.LifetimeXP)
	sent := len(rec.types())

	second, err := env.service.RecordAction(ctx, "u1", "review", map[string]any{"words": 40}, "evt-1", time.Time{})
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.Granted[0].ID, second.Granted[0].ID)
	require.Equal(t, int64(50), second.Account.LifetimeXP)
	require.Len(t, rec.types(), sent)
}

func TestRecordActionRoll(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, WithRandom(fixedSource(0.005)))

	result, err := env.service.RecordAction(context.Background(), "u1", "review", map[string]any{"words": 40}, "", time.Time{})
	require.NoError(t, err)
	require.Equal(t, "jackpot", result.Band)
	require.Equal(t, int64(250), result.Granted[0].Amount)
	require.Equal(t, "review (jackpot)", result.Granted[0].Description)

	// без розыгрыша полоса не выставляется
	result, err = env.service.RecordAction(context.Background(), "u1", "referral", nil, "", time.Time{})
	require.NoError(t, err)
	require.Empty(t, result.Band)
	require.Equal(t, int64(200), result.Granted[0].Amount)
}

func TestRecordActionUnknown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)

	result, err := env.service.RecordAction(ctx, "u1", "share", nil, "evt-1", time.Time{})
	require.NoError(t, err)
	require.Empty(t, result.Granted)
	require.Equal(t, int64(0), result.Account.LifetimeXP)
	require.Equal(t, 0, result.Streak.CurrentStreak)

	profile, err := env.service.Profile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.StreakDormant, profile.StreakRisk.State)

	_, err = env.service.RecordAction(ctx, "", "review", nil, "", time.Time{})
	require.ErrorIs(t, err, models.ErrInvalidAccount)
	_, err = env.service.RecordAction(ctx, "u1", "", nil, "", time.Time{})
	require.Error(t, err)
}

func TestRecordActionStreakMilestone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	notifier, rec := newRecorder(t)
	env := newTestEnv(t, notifier)

	var result models.ActionResult
	var err error
	for i := range 7 {
		rec.reset()
		result, err = env.service.RecordAction(ctx, "u1", "daily_visit", nil, "", time.Time{})
		require.NoError(t, err)
		require.Equal(t, i+1, result.Streak.CurrentStreak)
		env.clock.add(24 * hour)
	}

	require.Len(t, result.Granted, 2)
	require.Equal(t, int64(100), result.Granted[1].Amount)
	require.Equal(t, int64(135), result.Account.LifetimeXP)
	require.Equal(t, 1, result.Streak.FreezeTokens)
	require.Equal(t, []models.NotificationType{
		models.NotifyXPGranted, models.NotifyXPGranted, models.NotifyStreakMilestone, models.NotifyLevelUp,
	}, rec.types())

	// пропуск дня закрывается заморозкой
	env.clock.add(24 * hour)
	rec.reset()
	streak, err := env.service.UseFreezeToken(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, streak.FreezeTokens)
	require.Equal(t, []models.NotificationType{models.NotifyFreezeUsed}, rec.types())

	result, err = env.service.RecordAction(ctx, "u1", "daily_visit", nil, "", time.Time{})
	require.NoError(t, err)
	require.Equal(t, 8, result.Streak.CurrentStreak)

	_, err = env.service.UseFreezeToken(ctx, "u1")
	require.ErrorIs(t, err, models.ErrNoFreezeTokensAvailable)
}

func TestProfileBrokenStreak(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)

	_, err := env.service.RecordAction(ctx, "u1", "daily_visit", nil, "", time.Time{})
	require.NoError(t, err)

	env.clock.add(18 * hour)
	risk, err := env.service.CheckAtRisk(ctx, "u1")
	require.NoError(t, err)
	require.True(t, risk.AtRisk)
	require.InDelta(t, 18, risk.HoursRemaining, 0.001)

	env.clock.add(48 * hour)
	profile, err := env.service.Profile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.StreakBroken, profile.StreakRisk.State)
	require.Equal(t, 0, profile.Streak.CurrentStreak)
	require.Equal(t, 1, profile.Streak.LongestStreak)
}

func TestRecordActionNotifierFailure(t *testing.T) {
	t.Parallel()
	notifier := NewMockNotifier(gomock.NewController(t))
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).AnyTimes()
	env := newTestEnv(t, notifier)

	result, err := env.service.RecordAction(context.Background(), "u1", "referral", nil, "", time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(200), result.Account.LifetimeXP)
}

func TestCheckout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	_, err := env.service.ledger.Grant(ctx, "u1", 1000, "referral", "Referral", "")
	require.NoError(t, err)

	req := models.PriceRequest{Items: starterCart(), PromoCode: "SAVE10", RedeemXP: 1000}
	result, err := env.service.Checkout(ctx, "u1", "o1", req)
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.Equal(t, int64(35800), result.Pricing.DiscountedSubtotal)
	require.NotNil(t, result.Redemption)
	require.Equal(t, int64(-1000), result.Redemption.Amount)
	require.Equal(t, int64(0), result.Account.AvailableXP)
	require.Equal(t, int64(35800), result.Account.LifetimeSpend)

	again, err := env.service.Checkout(ctx, "u1", "o1", req)
	require.NoError(t, err)
	require.True(t, again.Duplicate)
	require.Equal(t, result.Account, again.Account)

	refund, err := env.service.RefundOrder(ctx, "u1", "o1")
	require.NoError(t, err)
	require.NotNil(t, refund)
	require.Equal(t, int64(1000), refund.Amount)
	repeat, err := env.service.RefundOrder(ctx, "u1", "o1")
	require.NoError(t, err)
	require.Equal(t, refund.ID, repeat.ID)

	account, err := env.service.ledger.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1000), account.AvailableXP)
	require.Equal(t, int64(35800), account.LifetimeSpend)

	none, err := env.service.RefundOrder(ctx, "u1", "unknown")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestCheckoutTierUp(t *testing.T) {
	t.Parallel()
	notifier, rec := newRecorder(t)
	env := newTestEnv(t, notifier)

	_, err := env.service.Checkout(context.Background(), "u1", "o1", models.PriceRequest{
		Items: []models.CartItem{item("agent", 60000, 1, models.CategoryCompliance)},
	})
	require.NoError(t, err)
	require.Equal(t, []models.NotificationType{models.NotifyTierUp}, rec.types())
	require.Equal(t, "tier:u1:Silver", rec.last().IdempotencyKey)
}

func TestCheckoutPromoUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	cart := []models.CartItem{item("a", 20000, 1, models.CategoryStarter)}

	// списание не прошло - использование промокода возвращается
	_, err := env.service.Checkout(ctx, "u1", "o1", models.PriceRequest{Items: cart, PromoCode: "ONCE", RedeemXP: 500})
	require.ErrorIs(t, err, models.ErrInsufficientXP)
	used, err := env.usage.Used(ctx, "ONCE")
	require.NoError(t, err)
	require.Equal(t, int64(0), used)

	result, err := env.service.Checkout(ctx, "u1", "o2", models.PriceRequest{Items: cart, PromoCode: "once"})
	require.NoError(t, err)
	require.Equal(t, int64(500), result.Pricing.PromoDiscount)
	used, err = env.usage.Used(ctx, "ONCE")
	require.NoError(t, err)
	require.Equal(t, int64(1), used)

	_, err = env.service.Checkout(ctx, "u2", "o3", models.PriceRequest{Items: cart, PromoCode: "ONCE"})
	require.ErrorIs(t, err, models.ErrUsageLimitReached)
}

func TestPurchaseSpendNotDoubled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)

	result, err := env.service.RecordAction(ctx, "u1", "purchase", map[string]any{"amount": 12050, "orderId": "o9"}, "evt-p", time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(121), result.Account.LifetimeXP)
	require.Equal(t, int64(12050), result.Account.LifetimeSpend)

	checkout, err := env.service.Checkout(ctx, "u1", "o9", models.PriceRequest{
		Items: []models.CartItem{item("x", 12050, 1, models.CategoryStarter)},
	})
	require.NoError(t, err)
	require.True(t, checkout.Duplicate)
	require.Equal(t, int64(12050), checkout.Account.LifetimeSpend)
}

func TestCheckoutErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)

	_, err := env.service.Checkout(ctx, "", "o1", models.PriceRequest{})
	require.ErrorIs(t, err, models.ErrInvalidAccount)
	_, err = env.service.Checkout(ctx, "u1", "", models.PriceRequest{})
	require.ErrorIs(t, err, models.ErrInvalidCart)
	_, err = env.service.Checkout(ctx, "u1", "o1", models.PriceRequest{Items: starterCart(), RedeemXP: 600})
	require.ErrorIs(t, err, models.ErrNotDiscountTier)
}

func TestCheckoutXPDiscountAboveCart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	_, err := env.service.ledger.Grant(ctx, "u1", 1000, "referral", "Referral", "")
	require.NoError(t, err)

	// скидка за 1000 XP больше корзины в 400 центов
	cheap := models.PriceRequest{Items: []models.CartItem{item("boi", 400, 1, models.CategoryCompliance)}, RedeemXP: 1000}
	quote, err := env.service.PriceCart(ctx, cheap)
	require.NoError(t, err)
	require.Equal(t, int64(400), quote.XPDiscount)

	_, err = env.service.Checkout(ctx, "u1", "o-cheap", cheap)
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	// XP не списан, заказ не записан
	account, err := env.service.ledger.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1000), account.AvailableXP)
	require.Equal(t, int64(0), account.LifetimeSpend)

	result, err := env.service.Checkout(ctx, "u1", "o-cheap", models.PriceRequest{Items: starterCart(), RedeemXP: 1000})
	require.NoError(t, err)
	require.Equal(t, int64(1200), result.Pricing.XPDiscount)
	require.Equal(t, int64(0), result.Account.AvailableXP)
}
