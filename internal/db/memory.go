package rewards

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	models "github.com/glkeru/loyalty/rewards/internal/models"
)

// Хранилище в памяти: тесты и локальный запуск без Postgres.
// Atomic сериализует записи по аккаунту отдельным мьютексом
type MemoryStorage struct {
	mu       sync.RWMutex
	accounts map[string]struct{}
	tnx      map[string][]models.XPTransaction
	streaks  map[string]models.StreakRecord

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts: make(map[string]struct{}),
		tnx:      make(map[string][]models.XPTransaction),
		streaks:  make(map[string]models.StreakRecord),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *MemoryStorage) lock(accountID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[accountID] = l
	}
	return l
}

// Записи внутри fn не откатываются при ошибке: сервисы пишут только после всех проверок
func (m *MemoryStorage) Atomic(ctx context.Context, accountID string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := m.lock(accountID)
	l.Lock()
	defer l.Unlock()

	if err := fn(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.accounts[accountID] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) TnxCreate(ctx context.Context, tnx models.XPTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tnx[tnx.AccountID] {
		if t.ID == tnx.ID {
			return fmt.Errorf("transaction %s already exists", tnx.ID)
		}
		if tnx.ExternalID != "" && t.ExternalID == tnx.ExternalID {
			return fmt.Errorf("transaction with external id %s already exists", tnx.ExternalID)
		}
	}
	m.tnx[tnx.AccountID] = append(m.tnx[tnx.AccountID], tnx)
	return nil
}

func (m *MemoryStorage) GetTnx(ctx context.Context, accountID string) ([]models.XPTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tnxs := make([]models.XPTransaction, len(m.tnx[accountID]))
	copy(tnxs, m.tnx[accountID])
	return tnxs, nil
}

func (m *MemoryStorage) GetTnxByExternalID(ctx context.Context, accountID string, externalID string) (models.XPTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tnx[accountID] {
		if t.ExternalID == externalID {
			return t, nil
		}
	}
	return models.XPTransaction{}, fmt.Errorf("transaction %s %w", externalID, models.ErrNotFound)
}

func (m *MemoryStorage) GetStreak(ctx context.Context, accountID string) (models.StreakRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.streaks[accountID]
	if !ok {
		return models.StreakRecord{}, fmt.Errorf("streak %s %w", accountID, models.ErrNotFound)
	}
	return rec, nil
}

func (m *MemoryStorage) SaveStreak(ctx context.Context, rec models.StreakRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaks[rec.AccountID] = rec
	return nil
}

func (m *MemoryStorage) GetStreaksActiveSince(ctx context.Context, since time.Time) ([]models.StreakRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := make([]models.StreakRecord, 0)
	for _, rec := range m.streaks {
		if rec.CurrentStreak > 0 && !rec.LastActivityAt.Before(since) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].AccountID < recs[j].AccountID })
	return recs, nil
}

func (m *MemoryStorage) AccountExists(ctx context.Context, accountID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[accountID]
	return ok, nil
}

// Счетчики промокодов и ключи уведомлений в памяти, пара к CacheService
type MemoryCounters struct {
	mu   sync.Mutex
	used map[string]int64
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{
		used: make(map[string]int64),
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (m *MemoryCounters) Used(ctx context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[strings.ToUpper(code)], nil
}

func (m *MemoryCounters) Acquire(ctx context.Context, code string, limit int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToUpper(code)
	if m.used[key] >= limit {
		return false, nil
	}
	m.used[key]++
	return true, nil
}

func (m *MemoryCounters) Release(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToUpper(code)
	if m.used[key] > 0 {
		m.used[key]--
	}
	return nil
}

func (m *MemoryCounters) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, ok := m.seen[key]; ok && now.Before(until) {
		return false, nil
	}
	m.seen[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryCounters) Forget(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}
