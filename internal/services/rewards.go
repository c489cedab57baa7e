package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	recentLimit    = 10
	purchaseAction = "purchase"
)

// Единая точка входа движка наград: профиль, действия, списания, стрики, корзина
type RewardsService struct {
	logger    *zap.Logger
	db        interf.RewardsStorage
	ledger    *LedgerService
	levels    *LevelCalculator
	discounts *DiscountTable
	streaks   *StreakService
	roller    *RewardRoller
	random    interf.RandomSource
	rules     *ActionRuleService
	bundles   *BundleService
	promos    *PromoService
	pricing   *PricingService
	usage     interf.PromoUsage
	notifier  interf.Notifier
	now       func() time.Time
}

type options struct {
	levels    []LevelThreshold
	tiers     []TierThreshold
	discounts []models.DiscountTier
	bands     []RollBand
	streak    StreakConfig
	random    interf.RandomSource
	now       func() time.Time
}

type Option func(*options)

func WithLevels(levels []LevelThreshold, tiers []TierThreshold) Option {
	return func(o *options) { o.levels, o.tiers = levels, tiers }
}

func WithDiscountTable(tiers []models.DiscountTier) Option {
	return func(o *options) { o.discounts = tiers }
}

func WithRollBands(bands []RollBand) Option {
	return func(o *options) { o.bands = bands }
}

func WithStreakConfig(cfg StreakConfig) Option {
	return func(o *options) { o.streak = cfg }
}

func WithRandom(src interf.RandomSource) Option {
	return func(o *options) { o.random = src }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func NewRewardsService(logger *zap.Logger, db interf.RewardsStorage, cache interf.CacheStorage, catalog models.Catalog,
	usage interf.PromoUsage, notifier interf.Notifier, opts ...Option) (*RewardsService, error) {
	o := options{
		levels:    DefaultLevels(),
		tiers:     DefaultTiers(),
		discounts: DefaultDiscountTable(),
		bands:     DefaultRollBands(),
		streak:    DefaultStreakConfig(),
		random:    NewCryptoSource(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := ValidateCatalog(catalog); err != nil {
		return nil, err
	}
	levels, err := NewLevelCalculator(o.levels, o.tiers)
	if err != nil {
		return nil, err
	}
	discounts, err := NewDiscountTable(o.discounts)
	if err != nil {
		return nil, err
	}
	roller, err := NewRewardRoller(o.bands)
	if err != nil {
		return nil, err
	}
	promos, err := NewPromoService(catalog.Promos, usage, logger)
	if err != nil {
		return nil, err
	}

	rules := catalog.Rules
	if len(rules) == 0 {
		rules = DefaultActionRules()
	}

	ledger := NewLedgerService(logger, db, cache)
	ledger.now = o.now
	bundles := NewBundleService(catalog.Bundles)
	pricing := NewPricingService(bundles, promos, discounts)
	pricing.now = o.now

	return &RewardsService{
		logger:    logger,
		db:        db,
		ledger:    ledger,
		levels:    levels,
		discounts: discounts,
		streaks:   NewStreakService(logger, db, ledger, o.streak),
		roller:    roller,
		random:    o.random,
		rules:     NewActionRuleService(rules, logger),
		bundles:   bundles,
		promos:    promos,
		pricing:   pricing,
		usage:     usage,
		notifier:  notifier,
		now:       o.now,
	}, nil
}

// Профиль пользователя
func (s *RewardsService) Profile(ctx context.Context, accountID string) (models.Profile, error) {
	if accountID == "" {
		return models.Profile{}, models.ErrInvalidAccount
	}
	exists, err := s.db.AccountExists(ctx, accountID)
	if err != nil {
		return models.Profile{}, err
	}
	if !exists {
		return models.Profile{}, fmt.Errorf("account %s: %w", accountID, models.ErrAccountNotFound)
	}
	account, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return models.Profile{}, err
	}
	streak, err := s.streaks.Get(ctx, accountID)
	if err != nil {
		return models.Profile{}, err
	}
	recent, err := s.ledger.Recent(ctx, accountID, recentLimit)
	if err != nil {
		return models.Profile{}, err
	}

	profile := models.Profile{
		Account:    account,
		Level:      s.levels.Level(account.LifetimeXP),
		Tier:       s.levels.Tier(account.LifetimeSpend, account.LifetimeXP),
		Streak:     streak,
		StreakRisk: s.streaks.Risk(streak, s.now()),
		XPDiscount: s.discounts.XPToDiscount(account.AvailableXP),
		Recent:     recent,
	}
	// прерванный стрик показываем нулем, запись обнулится при следующей активности
	if profile.StreakRisk.State == models.StreakBroken {
		profile.Streak.CurrentStreak = 0
	}
	if next, gap, ok := s.discounts.NextTier(account.AvailableXP); ok {
		profile.NextDiscount = &next
		profile.NextGap = gap
	}
	return profile, nil
}

// Действие пользователя: начисление по правилам, розыгрыш, стрик.
// eventID - ключ идемпотентности, повторное событие ничего не меняет
func (s *RewardsService) RecordAction(ctx context.Context, accountID string, actionType string, metadata map[string]any, eventID string, at time.Time) (result models.ActionResult, err error) {
	ctx, span := tracer.Start(ctx, "rewards.RecordAction")
	defer span.End()
	span.SetAttributes(attribute.String("action", actionType))

	if accountID == "" {
		return result, models.ErrInvalidAccount
	}
	if actionType == "" {
		return result, fmt.Errorf("empty action type: %w", models.ErrInvalidAmount)
	}
	if at.IsZero() {
		at = s.now()
	}

	var before models.XPAccount
	var streakUpd StreakUpdate
	err = s.db.Atomic(ctx, accountID, func(ctx context.Context) error {
		if eventID != "" {
			prev, ok, err := s.ledger.findExternal(ctx, accountID, eventID)
			if err != nil {
				return err
			}
			if ok {
				result.Duplicate = true
				result.Granted = []models.XPTransaction{prev}
				return nil
			}
		}

		var err error
		before, err = s.ledger.fold(ctx, accountID)
		if err != nil {
			return err
		}

		if actionType == purchaseAction {
			if err := s.purchaseSpend(ctx, accountID, metadata, eventID); err != nil {
				return err
			}
		}

		base, roll := s.rules.Calculate(ctx, actionType, metadata)
		if base <= 0 {
			// действие без правил не считается активностью
			return nil
		}
		amount, description := base, actionType
		if roll {
			r := s.roller.Roll(base, s.random)
			rollBands.WithLabelValues(r.Band).Inc()
			result.Band = r.Band
			amount = r.Amount
			if r.Band != BaseBand {
				description = fmt.Sprintf("%s (%s)", actionType, r.Band)
			}
		}
		tnx, err := s.ledger.grant(ctx, accountID, amount, actionType, description, eventID)
		if err != nil {
			return err
		}
		result.Granted = append(result.Granted, tnx)

		streakUpd, err = s.streaks.recordActivity(ctx, accountID, at)
		if err != nil {
			return err
		}
		if streakUpd.Bonus != nil {
			result.Granted = append(result.Granted, *streakUpd.Bonus)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.ActionResult{}, err
	}
	s.ledger.invalidate(ctx, accountID)

	if result.Account, err = s.ledger.Account(ctx, accountID); err != nil {
		return models.ActionResult{}, err
	}
	if result.Streak, err = s.streaks.Get(ctx, accountID); err != nil {
		return models.ActionResult{}, err
	}
	result.Level = s.levels.Level(result.Account.LifetimeXP)
	result.Tier = s.levels.Tier(result.Account.LifetimeSpend, result.Account.LifetimeXP)
	if result.Duplicate {
		return result, nil
	}

	for _, tnx := range result.Granted {
		s.notify(ctx, accountID, models.NotifyXPGranted, "XP earned",
			fmt.Sprintf("+%d XP: %s", tnx.Amount, tnx.Description), "xp:"+tnx.ID.String())
	}
	if streakUpd.Milestone {
		s.notify(ctx, accountID, models.NotifyStreakMilestone, "Streak milestone",
			fmt.Sprintf("%d days in a row", streakUpd.Record.CurrentStreak),
			fmt.Sprintf("milestone:%s:%s:%d", accountID, s.streaks.day(at).Format(time.DateOnly), streakUpd.Record.CurrentStreak))
	}
	s.progressNotices(ctx, before, result.Account)
	return result, nil
}

// сумма покупки из metadata.amount. Ключ по заказу, чтобы не задвоить с Checkout
func (s *RewardsService) purchaseSpend(ctx context.Context, accountID string, metadata map[string]any, eventID string) error {
	cents, ok := toInt64(metadata["amount"])
	if !ok || cents <= 0 {
		return nil
	}
	key := ""
	if orderID, ok := metadata["orderId"].(string); ok && orderID != "" {
		key = orderKey(orderID, "spend")
	} else if eventID != "" {
		key = eventID + ":spend"
	}
	_, err := s.ledger.recordSpend(ctx, accountID, cents, key)
	return err
}

// Списание XP
func (s *RewardsService) RedeemXP(ctx context.Context, accountID string, amount int64, externalID string) (models.XPTransaction, models.XPAccount, error) {
	tnx, err := s.ledger.Redeem(ctx, accountID, amount, externalID)
	if err != nil {
		return tnx, models.XPAccount{}, err
	}
	account, err := s.ledger.Account(ctx, accountID)
	return tnx, account, err
}

// Возврат списания по id транзакции
func (s *RewardsService) Refund(ctx context.Context, accountID string, redeemID uuid.UUID, externalID string) (models.XPTransaction, models.XPAccount, error) {
	tnx, err := s.ledger.Refund(ctx, accountID, redeemID, externalID)
	if err != nil {
		return tnx, models.XPAccount{}, err
	}
	account, err := s.ledger.Account(ctx, accountID)
	return tnx, account, err
}

// Возврат XP, списанного при оформлении заказа. Заказ без списания - не ошибка
func (s *RewardsService) RefundOrder(ctx context.Context, accountID string, orderID string) (*models.XPTransaction, error) {
	if accountID == "" || orderID == "" {
		return nil, models.ErrInvalidAccount
	}
	redeem, err := s.db.GetTnxByExternalID(ctx, accountID, orderKey(orderID, "redeem"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	tnx, err := s.ledger.Refund(ctx, accountID, redeem.ID, orderKey(orderID, "refund"))
	if err != nil {
		return nil, err
	}
	return &tnx, nil
}

// Транзакции за период
func (s *RewardsService) Transactions(ctx context.Context, accountID string, from, to time.Time) ([]models.XPTransaction, error) {
	if accountID == "" {
		return nil, models.ErrInvalidAccount
	}
	return s.ledger.GetTnx(ctx, accountID, from, to)
}

// Заморозка стрика
func (s *RewardsService) UseFreezeToken(ctx context.Context, accountID string) (models.StreakRecord, error) {
	rec, err := s.streaks.UseFreezeToken(ctx, accountID)
	if err != nil {
		return rec, err
	}
	s.notify(ctx, accountID, models.NotifyFreezeUsed, "Streak frozen",
		fmt.Sprintf("%d freeze tokens left", rec.FreezeTokens),
		fmt.Sprintf("freeze:%s:%s:%d", accountID, s.streaks.day(rec.LastActivityAt).Format(time.DateOnly), rec.FrozenDays))
	return rec, nil
}

func (s *RewardsService) CheckAtRisk(ctx context.Context, accountID string) (models.StreakRisk, error) {
	if accountID == "" {
		return models.StreakRisk{}, models.ErrInvalidAccount
	}
	return s.streaks.CheckAtRisk(ctx, accountID, s.now())
}

func (s *RewardsService) PriceCart(ctx context.Context, req models.PriceRequest) (models.CartPricingResult, error) {
	return s.pricing.Price(ctx, req)
}

func (s *RewardsService) BundleSuggestions(productIDs []string, limit int) []models.BundleSuggestion {
	return s.bundles.DynamicBundleSuggestions(productIDs, limit)
}

func (s *RewardsService) BundleProgress(productIDs []string) []models.BundleProgress {
	return s.bundles.BundleProgress(productIDs)
}

func (s *RewardsService) DiscountTiers() []models.DiscountTier {
	return s.discounts.Tiers()
}

// Оформление заказа: пересчет, использование промокода, списание XP, сумма покупки.
// Повторный вызов с тем же orderID ничего не списывает
func (s *RewardsService) Checkout(ctx context.Context, accountID string, orderID string, req models.PriceRequest) (result models.CheckoutResult, err error) {
	ctx, span := tracer.Start(ctx, "rewards.Checkout")
	defer span.End()

	if accountID == "" {
		return result, models.ErrInvalidAccount
	}
	if orderID == "" {
		return result, fmt.Errorf("empty order id: %w", models.ErrInvalidCart)
	}
	result.OrderID = orderID

	if _, err := s.db.GetTnxByExternalID(ctx, accountID, orderKey(orderID, "spend")); err == nil {
		return s.checkoutDuplicate(ctx, accountID, result)
	} else if !errors.Is(err, models.ErrNotFound) {
		return result, err
	}

	result.Pricing, err = s.pricing.Price(ctx, req)
	if err != nil {
		return result, err
	}
	// XP списывается полным порогом, поэтому скидка не может быть урезана корзиной
	if req.RedeemXP > 0 {
		if tier, ok := s.discounts.TierFor(req.RedeemXP); ok && result.Pricing.XPDiscount < tier.Amount {
			return result, fmt.Errorf("redeem %d XP for %d of %d cents discount: %w",
				req.RedeemXP, result.Pricing.XPDiscount, tier.Amount, models.ErrInvalidAmount)
		}
	}

	// промокод с лимитом занимаем до записи, при ошибке отдаем обратно
	acquired := ""
	if result.Pricing.PromoCode != "" && s.usage != nil {
		if promo, ok := s.promos.Lookup(result.Pricing.PromoCode); ok && promo.UsageLimit > 0 {
			ok, err := s.usage.Acquire(ctx, promo.Code, promo.UsageLimit)
			if err != nil {
				return result, err
			}
			if !ok {
				promoRejected.WithLabelValues(string(models.PromoUsageLimitReached)).Inc()
				return result, models.NewPromoError(models.PromoUsageLimitReached, promo.Code)
			}
			acquired = promo.Code
		}
	}
	defer func() {
		if err != nil && acquired != "" {
			if rerr := s.usage.Release(context.WithoutCancel(ctx), acquired); rerr != nil {
				s.logger.Error("promo release", zap.String("code", acquired), zap.Error(rerr))
			}
		}
	}()

	var before, after models.XPAccount
	duplicate := false
	err = s.db.Atomic(ctx, accountID, func(ctx context.Context) error {
		if _, ok, err := s.ledger.findExternal(ctx, accountID, orderKey(orderID, "spend")); err != nil || ok {
			duplicate = ok
			return err
		}
		var err error
		if before, err = s.ledger.fold(ctx, accountID); err != nil {
			return err
		}
		if req.RedeemXP > 0 {
			tnx, err := s.ledger.redeem(ctx, accountID, req.RedeemXP, orderKey(orderID, "redeem"))
			if err != nil {
				return err
			}
			result.Redemption = &tnx
		}
		if _, err := s.ledger.recordSpend(ctx, accountID, result.Pricing.DiscountedSubtotal, orderKey(orderID, "spend")); err != nil {
			return err
		}
		after, err = s.ledger.fold(ctx, accountID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	if duplicate {
		if acquired != "" {
			if rerr := s.usage.Release(ctx, acquired); rerr != nil {
				s.logger.Error("promo release", zap.String("code", acquired), zap.Error(rerr))
			}
		}
		return s.checkoutDuplicate(ctx, accountID, models.CheckoutResult{OrderID: orderID})
	}
	s.ledger.invalidate(ctx, accountID)
	result.Account = after
	s.progressNotices(ctx, before, after)
	return result, nil
}

func (s *RewardsService) checkoutDuplicate(ctx context.Context, accountID string, result models.CheckoutResult) (models.CheckoutResult, error) {
	account, err := s.ledger.Account(ctx, accountID)
	if err != nil {
		return result, err
	}
	result.Account = account
	result.Duplicate = true
	return result, nil
}

// уведомления о новом уровне и статусе
func (s *RewardsService) progressNotices(ctx context.Context, before, after models.XPAccount) {
	oldLevel, newLevel := s.levels.Level(before.LifetimeXP), s.levels.Level(after.LifetimeXP)
	if newLevel.Level > oldLevel.Level {
		s.notify(ctx, after.AccountID, models.NotifyLevelUp, "Level up",
			fmt.Sprintf("You reached level %d: %s", newLevel.Level, newLevel.Title),
			fmt.Sprintf("level:%s:%d", after.AccountID, newLevel.Level))
	}
	oldTier := s.levels.Tier(before.LifetimeSpend, before.LifetimeXP)
	newTier := s.levels.Tier(after.LifetimeSpend, after.LifetimeXP)
	if newTier.Name != oldTier.Name && newTier.DiscountPercent >= oldTier.DiscountPercent {
		s.notify(ctx, after.AccountID, models.NotifyTierUp, "New tier",
			fmt.Sprintf("Welcome to %s: %d%% member discount", newTier.Name, newTier.DiscountPercent),
			fmt.Sprintf("tier:%s:%s", after.AccountID, newTier.Name))
	}
}

// Уведомления после фиксации изменений. Ошибка доставки не отменяет операцию
func (s *RewardsService) notify(ctx context.Context, accountID string, kind models.NotificationType, title, body, key string) {
	if s.notifier == nil {
		return
	}
	n := models.Notification{
		ID:             uuid.New(),
		AccountID:      accountID,
		Type:           kind,
		Title:          title,
		Body:           body,
		IdempotencyKey: key,
		CreatedAt:      s.now(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("notify",
			zap.String("account", accountID),
			zap.String("type", string(kind)),
			zap.Error(err),
		)
	}
}

func orderKey(orderID, kind string) string {
	return fmt.Sprintf("order:%s:%s", orderID, kind)
}
