package rewards

import (
	"fmt"

	models "github.com/glkeru/loyalty/rewards/internal/models"
)

type LevelThreshold struct {
	XP    int64  `yaml:"xp"`
	Title string `yaml:"title"`
}

// Статус достигается по сумме покупок ИЛИ по XP
type TierThreshold struct {
	Name            string `yaml:"name"`
	MinSpend        int64  `yaml:"minSpend"`
	MinXP           int64  `yaml:"minXP"`
	DiscountPercent int    `yaml:"discountPercent"`
}

func DefaultLevels() []LevelThreshold {
	return []LevelThreshold{
		{0, "Newcomer"},
		{100, "Associate"},
		{500, "Practitioner"},
		{1500, "Senior Practitioner"},
		{3500, "Legal Expert"},
		{7500, "Document Master"},
		{15000, "Legal Legend"},
	}
}

func DefaultTiers() []TierThreshold {
	return []TierThreshold{
		{"Bronze", 0, 0, 0},
		{"Silver", 50000, 1000, 5},
		{"Gold", 150000, 5000, 10},
		{"Platinum", 500000, 15000, 15},
	}
}

type LevelCalculator struct {
	levels []LevelThreshold
	tiers  []TierThreshold
}

func NewLevelCalculator(levels []LevelThreshold, tiers []TierThreshold) (*LevelCalculator, error) {
	if len(levels) == 0 || levels[0].XP != 0 {
		return nil, fmt.Errorf("levels must start at 0 XP: %w", models.ErrInvalidTable)
	}
	for i, l := range levels {
		if l.Title == "" {
			return nil, fmt.Errorf("level %d has no title: %w", i+1, models.ErrInvalidTable)
		}
		if i > 0 && l.XP <= levels[i-1].XP {
			return nil, fmt.Errorf("level %d threshold %d is not ascending: %w", i+1, l.XP, models.ErrInvalidTable)
		}
	}
	if len(tiers) == 0 || tiers[0].MinSpend != 0 || tiers[0].MinXP != 0 {
		return nil, fmt.Errorf("first tier must be reachable by default: %w", models.ErrInvalidTable)
	}
	for i := 1; i < len(tiers); i++ {
		prev, t := tiers[i-1], tiers[i]
		if t.MinSpend <= prev.MinSpend || t.MinXP <= prev.MinXP || t.DiscountPercent < prev.DiscountPercent {
			return nil, fmt.Errorf("tier %s is not ascending: %w", t.Name, models.ErrInvalidTable)
		}
	}
	return &LevelCalculator{levels, tiers}, nil
}

// Уровень по накопленному XP
func (c *LevelCalculator) Level(lifetimeXP int64) models.LevelInfo {
	idx := 0
	for i, l := range c.levels {
		if l.XP <= lifetimeXP {
			idx = i
		}
	}
	cur := c.levels[idx]
	info := models.LevelInfo{
		Level:     idx + 1,
		Title:     cur.Title,
		Threshold: cur.XP,
		Progress:  1,
	}
	if idx+1 < len(c.levels) {
		next := c.levels[idx+1].XP
		info.NextThreshold = next
		info.Progress = clamp01(float64(lifetimeXP-cur.XP) / float64(next-cur.XP))
	}
	return info
}

// Статус: самый высокий, достигнутый хотя бы по одному пути
func (c *LevelCalculator) Tier(lifetimeSpend, lifetimeXP int64) models.TierInfo {
	for i := len(c.tiers) - 1; i >= 0; i-- {
		t := c.tiers[i]
		if lifetimeSpend >= t.MinSpend || lifetimeXP >= t.MinXP {
			return models.TierInfo{Name: t.Name, DiscountPercent: t.DiscountPercent}
		}
	}
	return models.TierInfo{Name: c.tiers[0].Name, DiscountPercent: c.tiers[0].DiscountPercent}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
