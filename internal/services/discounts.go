package rewards

import (
	"fmt"

	models "github.com/glkeru/loyalty/rewards/internal/models"
)

func DefaultDiscountTable() []models.DiscountTier {
	return []models.DiscountTier{
		{XPThreshold: 500, Label: "$5 off", Amount: 500},
		{XPThreshold: 1000, Label: "$12 off", Amount: 1200},
		{XPThreshold: 2500, Label: "$35 off", Amount: 3500},
		{XPThreshold: 5000, Label: "$80 off", Amount: 8000},
		{XPThreshold: 10000, Label: "$175 off", Amount: 17500},
	}
}

// Таблица конвертации XP в скидку
type DiscountTable struct {
	tiers []models.DiscountTier
}

// Некорректная таблица - ошибка конфигурации, проверяется при загрузке
func NewDiscountTable(tiers []models.DiscountTier) (*DiscountTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("discount table is empty: %w", models.ErrInvalidTable)
	}
	for i, t := range tiers {
		if t.XPThreshold <= 0 || t.Amount <= 0 {
			return nil, fmt.Errorf("discount tier %d must be positive: %w", i, models.ErrInvalidTable)
		}
		if i > 0 && (t.XPThreshold <= tiers[i-1].XPThreshold || t.Amount <= tiers[i-1].Amount) {
			return nil, fmt.Errorf("discount tier %d is not ascending: %w", i, models.ErrInvalidTable)
		}
	}
	cp := make([]models.DiscountTier, len(tiers))
	copy(cp, tiers)
	return &DiscountTable{cp}, nil
}

// Скидка самого высокого порога, не превышающего availableXP
func (d *DiscountTable) XPToDiscount(availableXP int64) int64 {
	var amount int64
	for _, t := range d.tiers {
		if t.XPThreshold > availableXP {
			break
		}
		amount = t.Amount
	}
	return amount
}

// Следующий недостигнутый порог и сколько XP до него
func (d *DiscountTable) NextTier(availableXP int64) (tier models.DiscountTier, gap int64, ok bool) {
	for _, t := range d.tiers {
		if t.XPThreshold > availableXP {
			return t, t.XPThreshold - availableXP, true
		}
	}
	return models.DiscountTier{}, 0, false
}

// Порог, точно равный xp
func (d *DiscountTable) TierFor(xp int64) (models.DiscountTier, bool) {
	for _, t := range d.tiers {
		if t.XPThreshold == xp {
			return t, true
		}
	}
	return models.DiscountTier{}, false
}

func (d *DiscountTable) Tiers() []models.DiscountTier {
	cp := make([]models.DiscountTier, len(d.tiers))
	copy(cp, d.tiers)
	return cp
}
