package rewards

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	db "github.com/glkeru/loyalty/rewards/internal/db"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLedger() *LedgerService {
	return NewLedgerService(zap.NewNop(), db.NewMemoryStorage(), nil)
}

func TestLedgerRedeemInsufficient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger()

	_, err := l.Grant(ctx, "u1", 3500, "review", "Review", "")
	require.NoError(t, err)
	_, err = l.Redeem(ctx, "u1", 750, "")
	require.NoError(t, err)

	account, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(3500), account.LifetimeXP)
	require.Equal(t, int64(750), account.RedeemedXP)
	require.Equal(t, int64(2750), account.AvailableXP)

	_, err = l.Redeem(ctx, "u1", 3000, "")
	require.ErrorIs(t, err, models.ErrInsufficientXP)

	_, err = l.Redeem(ctx, "u1", 1000, "")
	require.NoError(t, err)
	account, err = l.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1750), account.AvailableXP)
	require.Equal(t, int64(3500), account.LifetimeXP)
}

func TestLedgerValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger()

	_, err := l.Grant(ctx, "", 10, "x", "x", "")
	require.ErrorIs(t, err, models.ErrInvalidAccount)
	_, err = l.Grant(ctx, "u1", 0, "x", "x", "")
	require.ErrorIs(t, err, models.ErrInvalidAmount)
	_, err = l.Redeem(ctx, "u1", -5, "")
	require.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestLedgerIdempotentGrant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger()

	first, err := l.Grant(ctx, "u1", 50, "review", "Review", "evt-1")
	require.NoError(t, err)
	second, err := l.Grant(ctx, "u1", 50, "review", "Review", "evt-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	account, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(50), account.LifetimeXP)
}

func TestLedgerRefund(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger()

	grant, err := l.Grant(ctx, "u1", 1000, "referral", "Referral", "")
	require.NoError(t, err)
	redeem, err := l.Redeem(ctx, "u1", 500, "")
	require.NoError(t, err)

	refund, err := l.Refund(ctx, "u1", redeem.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.KindRefund, refund.Kind)
	require.Equal(t, redeem.ID, refund.RelatedID)
	require.Equal(t, int64(500), refund.Amount)

	account, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(1000), account.AvailableXP)
	require.Equal(t, int64(0), account.RedeemedXP)

	_, err = l.Refund(ctx, "u1", redeem.ID, "")
	require.ErrorIs(t, err, models.ErrAlreadyRefunded)
	_, err = l.Refund(ctx, "u1", grant.ID, "")
	require.ErrorIs(t, err, models.ErrNotRedemption)
	_, err = l.Refund(ctx, "u1", uuid.New(), "")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestLedgerSpend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger()

	_, err := l.RecordSpend(ctx, "u1", 12000, "order:1:spend")
	require.NoError(t, err)
	_, err = l.RecordSpend(ctx, "u1", 12000, "order:1:spend")
	require.NoError(t, err)

	account, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(12000), account.LifetimeSpend)
	require.Equal(t, int64(0), account.LifetimeXP)
}

func TestLedgerAvailableNeverNegative(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger()
	rnd := rand.New(rand.NewPCG(2024, 1))

	var redeems []uuid.UUID
	for range 500 {
		amount := rnd.Int64N(300) + 1
		switch rnd.IntN(3) {
		case 0:
			_, err := l.Grant(ctx, "u1", amount, "quiz_complete", "Quiz", "")
			require.NoError(t, err)
		case 1:
			before, err := l.Account(ctx, "u1")
			require.NoError(t, err)
			tnx, err := l.Redeem(ctx, "u1", amount, "")
			if amount > before.AvailableXP {
				require.ErrorIs(t, err, models.ErrInsufficientXP)
			} else {
				require.NoError(t, err)
				redeems = append(redeems, tnx.ID)
			}
		case 2:
			if len(redeems) > 0 {
				_, err := l.Refund(ctx, "u1", redeems[0], "")
				require.NoError(t, err)
				redeems = redeems[1:]
			}
		}
		account, err := l.Account(ctx, "u1")
		require.NoError(t, err)
		require.GreaterOrEqual(t, account.AvailableXP, int64(0))
		require.LessOrEqual(t, account.RedeemedXP, account.LifetimeXP)
	}
}

func TestLedgerConcurrentRedeem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger()

	_, err := l.Grant(ctx, "u1", 1000, "referral", "Referral", "")
	require.NoError(t, err)

	var ok atomic.Int64
	wg := &sync.WaitGroup{}
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Redeem(ctx, "u1", 100, ""); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(10), ok.Load())
	account, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(0), account.AvailableXP)
}

func TestFoldIntegrity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		tnxs []models.XPTransaction
	}{
		{"negative grant", []models.XPTransaction{{Kind: models.KindGrant, Amount: -10}}},
		{"positive redeem", []models.XPTransaction{{Kind: models.KindGrant, Amount: 10}, {Kind: models.KindRedeem, Amount: 5}}},
		{"overdrawn", []models.XPTransaction{{Kind: models.KindGrant, Amount: 10}, {Kind: models.KindRedeem, Amount: -20}}},
		{"unknown kind", []models.XPTransaction{{Kind: "bonus", Amount: 10}}},
	}
	for _, ts := range tests {
		t.Run(ts.name, func(t *testing.T) {
			_, err := Fold("u1", ts.tnxs)
			require.ErrorIs(t, err, models.ErrLedgerIntegrity)
		})
	}
}

func TestLedgerRecentAndPeriod(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger()
	c := &clock{t: testStart}
	l.now = c.now

	for i := range 15 {
		_, err := l.Grant(ctx, "u1", int64(i+1), "daily_visit", "Visit", "")
		require.NoError(t, err)
		c.add(hour)
	}

	recent, err := l.Recent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	require.Equal(t, int64(15), recent[0].Amount)

	period, err := l.GetTnx(ctx, "u1", testStart, testStart.Add(4*hour))
	require.NoError(t, err)
	require.Len(t, period, 5)
}

// кэш в памяти с версиями; beforeSet вызывается между сверткой и записью
type versionedCache struct {
	mu        sync.Mutex
	accounts  map[string]models.XPAccount
	versions  map[string]int64
	beforeSet func()
}

func newVersionedCache() *versionedCache {
	return &versionedCache{accounts: map[string]models.XPAccount{}, versions: map[string]int64{}}
}

func (c *versionedCache) GetAccount(ctx context.Context, accountID string) (models.XPAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	account, ok := c.accounts[accountID]
	if !ok {
		return account, models.ErrNotFound
	}
	return account, nil
}

func (c *versionedCache) AccountVersion(ctx context.Context, accountID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[accountID], nil
}

func (c *versionedCache) SetAccount(ctx context.Context, account models.XPAccount, version int64) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[account.AccountID] == version {
		c.accounts[account.AccountID] = account
	}
	return nil
}

func (c *versionedCache) InvalidateAccount(ctx context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[accountID]++
	delete(c.accounts, accountID)
	return nil
}

func TestLedgerCacheStaleWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := newVersionedCache()
	l := NewLedgerService(zap.NewNop(), db.NewMemoryStorage(), cache)

	_, err := l.Grant(ctx, "u1", 100, "review", "Review", "")
	require.NoError(t, err)

	// начисление приходит после свертки, но до записи в кэш
	cache.beforeSet = func() {
		_, err := l.Grant(ctx, "u1", 50, "review", "Review", "")
		require.NoError(t, err)
	}
	account, err := l.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(100), account.AvailableXP)

	_, cached := cache.accounts["u1"]
	require.False(t, cached)

	account, err = l.Account(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(150), account.AvailableXP)

	// без конкурирующей записи баланс кэшируется
	cached2, err := cache.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(150), cached2.AvailableXP)
}
