package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	config "github.com/glkeru/loyalty/rewards/internal/config"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	redis "github.com/redis/go-redis/v9"
)

const (
	accountTTL = 5 * time.Minute
	versionTTL = time.Hour
)

// запись баланса, только если версия не сменилась
var setIfVersion = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[2]) or '0')
if cur ~= tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// Redis: кэш балансов, счетчики промокодов, защита от повторных уведомлений
type CacheService struct {
	client *redis.Client
}

func NewCacheService(ctx context.Context) (serv *CacheService, err error) {
	// config
	addr, err := config.Required("REWARDS_CACHE_URL")
	if err != nil {
		return nil, err
	}
	user := config.String("REWARDS_CACHE_USER", "")
	pwd := config.String("REWARDS_CACHE_PWD", "")

	// redis
	db := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    pwd,
		Username:    user,
		DB:          0,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	if err = db.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return NewCacheServiceWithClient(db), nil
}

func NewCacheServiceWithClient(client *redis.Client) *CacheService {
	return &CacheService{client}
}

func (c *CacheService) Close() error {
	return c.client.Close()
}

func accountKey(accountID string) string {
	return "rewards:account:" + accountID
}

func versionKey(accountID string) string {
	return "rewards:account_version:" + accountID
}

func promoKey(code string) string {
	return "rewards:promo:" + strings.ToUpper(code)
}

func notifyKey(key string) string {
	return "rewards:notify:" + key
}

func (c *CacheService) GetAccount(ctx context.Context, accountID string) (account models.XPAccount, err error) {
	val, err := c.client.Get(ctx, accountKey(accountID)).Bytes()
	if err == redis.Nil {
		return account, fmt.Errorf("account %s %w", accountID, models.ErrNotFound)
	} else if err != nil {
		return account, err
	}
	if err = json.Unmarshal(val, &account); err != nil {
		return account, err
	}
	return account, nil
}

func (c *CacheService) AccountVersion(ctx context.Context, accountID string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(accountID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (c *CacheService) SetAccount(ctx context.Context, account models.XPAccount, version int64) error {
	val, err := json.Marshal(account)
	if err != nil {
		return err
	}
	keys := []string{accountKey(account.AccountID), versionKey(account.AccountID)}
	return setIfVersion.Run(ctx, c.client, keys, val, version, accountTTL.Milliseconds()).Err()
}

// новая версия и удаление баланса одной транзакцией
func (c *CacheService) InvalidateAccount(ctx context.Context, accountID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(accountID))
		pipe.Expire(ctx, versionKey(accountID), versionTTL)
		pipe.Del(ctx, accountKey(accountID))
		return nil
	})
	return err
}

// Сколько раз использован промокод
func (c *CacheService) Used(ctx context.Context, code string) (int64, error) {
	n, err := c.client.Get(ctx, promoKey(code)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Занять использование промокода. false - лимит исчерпан
func (c *CacheService) Acquire(ctx context.Context, code string, limit int64) (bool, error) {
	n, err := c.client.Incr(ctx, promoKey(code)).Result()
	if err != nil {
		return false, err
	}
	if n > limit {
		if err := c.client.Decr(ctx, promoKey(code)).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (c *CacheService) Release(ctx context.Context, code string) error {
	return c.client.Decr(ctx, promoKey(code)).Err()
}

// true - ключ встретился впервые за ttl
func (c *CacheService) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, notifyKey(key), 1, ttl).Result()
}

func (c *CacheService) Forget(ctx context.Context, key string) error {
	return c.client.Del(ctx, notifyKey(key)).Err()
}
