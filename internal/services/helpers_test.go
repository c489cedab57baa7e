package rewards

import (
	"testing"
	"time"

	db "github.com/glkeru/loyalty/rewards/internal/db"
	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const hour = time.Hour

var testStart = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) // вторник

// фиксированное значение броска
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func ptr[T any](v T) *T { return &v }

func testCatalog() models.Catalog {
	return models.Catalog{
		Products: []models.Product{
			{ID: "a", Name: "Alpha", Price: 20000, Category: models.CategoryStarter},
			{ID: "b", Name: "Beta", Price: 15000, Category: models.CategoryStarter},
			{ID: "c", Name: "Gamma", Price: 15000, Category: models.CategoryStarter},
			{ID: "agent", Name: "Registered Agent", Price: 12000, Category: models.CategoryCompliance},
			{ID: "report", Name: "Annual Report", Price: 9000, Category: models.CategoryCompliance},
			{ID: "boi", Name: "BOI Report", Price: 7000, Category: models.CategoryCompliance},
		},
		Bundles: []models.Bundle{
			{
				ID: "abc", Name: "Starter Bundle", BundlePrice: 42000,
				Badge: models.BadgeMostPopular, Category: models.CategoryStarter,
				Products: []models.BundleProduct{
					{ProductID: "a", Name: "Alpha", OriginalPrice: 20000},
					{ProductID: "b", Name: "Beta", OriginalPrice: 15000},
					{ProductID: "c", Name: "Gamma", OriginalPrice: 15000},
				},
			},
			{
				ID: "ab", Name: "Mini Bundle", BundlePrice: 32000,
				Badge: models.BadgeNone, Category: models.CategoryStarter,
				Products: []models.BundleProduct{
					{ProductID: "a", Name: "Alpha", OriginalPrice: 20000},
					{ProductID: "b", Name: "Beta", OriginalPrice: 15000},
				},
			},
			{
				ID: "compliance", Name: "Compliance Bundle", BundlePrice: 22000,
				Badge: models.BadgeBestValue, Category: models.CategoryCompliance,
				Products: []models.BundleProduct{
					{ProductID: "agent", Name: "Registered Agent", OriginalPrice: 12000},
					{ProductID: "report", Name: "Annual Report", OriginalPrice: 9000},
					{ProductID: "boi", Name: "BOI Report", OriginalPrice: 7000},
				},
			},
		},
		Promos: []models.PromoCode{
			{Code: "SAVE10", Type: models.PromoPercentage, Percent: 10},
			{Code: "BIG200", Type: models.PromoFixed, Amount: 3000, MinSubtotal: 20000},
			{Code: "COMPLY15", Type: models.PromoPercentage, Percent: 15, MaxDiscount: 2000,
				Categories: []models.Category{models.CategoryCompliance}},
			{Code: "ONCE", Type: models.PromoFixed, Amount: 500, UsageLimit: 1},
			{Code: "THREE", Type: models.PromoPercentage, Percent: 5, Condition: "item_count >= 3"},
			{Code: "OLD", Type: models.PromoPercentage, Percent: 50,
				ExpiresAt: ptr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))},
		},
		Rules: DefaultActionRules(),
	}
}

func item(id string, price int64, qty int64, cat models.Category) models.CartItem {
	return models.CartItem{ProductID: id, UnitPrice: price, Quantity: qty, Category: cat}
}

type testEnv struct {
	store   *db.MemoryStorage
	usage   *db.MemoryCounters
	clock   *clock
	service *RewardsService
}

func newTestEnv(t *testing.T, notifier interf.Notifier, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store: db.NewMemoryStorage(),
		usage: db.NewMemoryCounters(),
		clock: &clock{testStart},
	}
	opts = append([]Option{WithClock(env.clock.now), WithRandom(fixedSource(0.99))}, opts...)
	var err error
	env.service, err = NewRewardsService(zap.NewNop(), env.store, nil, testCatalog(), env.usage, notifier, opts...)
	require.NoError(t, err)
	return env
}
