package rewards

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
)

const BaseBand = "base"

// Полоса розыгрыша. Проверяются строго по порядку
type RollBand struct {
	Name        string  `yaml:"name"`
	Probability float64 `yaml:"probability"`
	Multiplier  int64   `yaml:"multiplier"`
	BonusXP     int64   `yaml:"bonusXP"`
}

func DefaultRollBands() []RollBand {
	return []RollBand{
		{Name: "jackpot", Probability: 0.01, Multiplier: 5},
		{Name: "rare", Probability: 0.05, Multiplier: 3},
		{Name: "bonus", Probability: 0.15, Multiplier: 2},
	}
}

type RollResult struct {
	Band   string  `json:"band"`
	Base   int64   `json:"base"`
	Amount int64   `json:"amount"`
	Value  float64 `json:"-"`
}

type RewardRoller struct {
	bands []RollBand
}

func NewRewardRoller(bands []RollBand) (*RewardRoller, error) {
	var total float64
	for _, b := range bands {
		if b.Name == "" || b.Name == BaseBand {
			return nil, fmt.Errorf("roll band name %q is reserved or empty: %w", b.Name, models.ErrInvalidTable)
		}
		if b.Probability <= 0 || b.Probability > 1 {
			return nil, fmt.Errorf("roll band %s probability %v: %w", b.Name, b.Probability, models.ErrInvalidTable)
		}
		if b.Multiplier < 1 || b.BonusXP < 0 {
			return nil, fmt.Errorf("roll band %s reward: %w", b.Name, models.ErrInvalidTable)
		}
		total += b.Probability
	}
	if total > 1 {
		return nil, fmt.Errorf("roll bands sum to %v: %w", total, models.ErrInvalidTable)
	}
	return &RewardRoller{bands}, nil
}

// Один бросок на действие. Результат полностью определяется значением src
func (r *RewardRoller) Roll(base int64, src interf.RandomSource) RollResult {
	v := src.Float64()
	var cumulative float64
	for _, b := range r.bands {
		cumulative += b.Probability
		if v < cumulative {
			return RollResult{Band: b.Name, Base: base, Amount: base*b.Multiplier + b.BonusXP, Value: v}
		}
	}
	return RollResult{Band: BaseBand, Base: base, Amount: base, Value: v}
}

type cryptoSource struct{}

// Источник на crypto/rand для продакшена
func NewCryptoSource() interf.RandomSource {
	return cryptoSource{}
}

func (cryptoSource) Float64() float64 {
	var b [8]byte
	// с Go 1.24 crypto/rand.Read не возвращает ошибку, иначе процесс аварийно завершается
	if _, err := crand.Read(b[:]); err != nil {
		panic(err)
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}
