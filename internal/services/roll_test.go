package rewards

import (
	"math/rand/v2"
	"testing"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/stretchr/testify/require"
)

func TestRollBands(t *testing.T) {
	t.Parallel()
	roller, err := NewRewardRoller(DefaultRollBands())
	require.NoError(t, err)

	tests := []struct {
		value    float64
		band     string
		expected int64
	}{
		{0, "jackpot", 250},
		{0.0099, "jackpot", 250},
		{0.01, "rare", 150},
		{0.0599, "rare", 150},
		{0.06, "bonus", 100},
		{0.2099, "bonus", 100},
		{0.21, BaseBand, 50},
		{0.999, BaseBand, 50},
	}
	for _, ts := range tests {
		r := roller.Roll(50, fixedSource(ts.value))
		require.Equal(t, ts.band, r.Band, "value=%v", ts.value)
		require.Equal(t, ts.expected, r.Amount, "value=%v", ts.value)
		require.Equal(t, int64(50), r.Base)
	}
}

func TestRollSameSeedSameBand(t *testing.T) {
	t.Parallel()
	roller, err := NewRewardRoller(DefaultRollBands())
	require.NoError(t, err)

	first := rand.New(rand.NewPCG(42, 7))
	second := rand.New(rand.NewPCG(42, 7))
	for range 1000 {
		a := roller.Roll(25, first)
		b := roller.Roll(25, second)
		require.Equal(t, a, b)
	}
}

func TestRollDistribution(t *testing.T) {
	t.Parallel()
	roller, err := NewRewardRoller(DefaultRollBands())
	require.NoError(t, err)

	src := rand.New(rand.NewPCG(1, 2))
	counts := map[string]int{}
	const n = 100000
	for range n {
		counts[roller.Roll(10, src).Band]++
	}
	require.InDelta(t, 0.01, float64(counts["jackpot"])/n, 0.005)
	require.InDelta(t, 0.05, float64(counts["rare"])/n, 0.01)
	require.InDelta(t, 0.15, float64(counts["bonus"])/n, 0.01)
	require.InDelta(t, 0.79, float64(counts[BaseBand])/n, 0.01)
}

func TestRollBonusXP(t *testing.T) {
	t.Parallel()
	roller, err := NewRewardRoller([]RollBand{{Name: "lucky", Probability: 0.5, Multiplier: 1, BonusXP: 20}})
	require.NoError(t, err)
	require.Equal(t, int64(30), roller.Roll(10, fixedSource(0.1)).Amount)
	require.Equal(t, int64(10), roller.Roll(10, fixedSource(0.7)).Amount)
}

func TestRollInvalidBands(t *testing.T) {
	t.Parallel()
	tests := [][]RollBand{
		{{Name: "", Probability: 0.1, Multiplier: 2}},
		{{Name: BaseBand, Probability: 0.1, Multiplier: 2}},
		{{Name: "x", Probability: 0, Multiplier: 2}},
		{{Name: "x", Probability: 0.1, Multiplier: 0}},
		{{Name: "x", Probability: 0.6, Multiplier: 2}, {Name: "y", Probability: 0.6, Multiplier: 2}},
	}
	for _, bands := range tests {
		_, err := NewRewardRoller(bands)
		require.ErrorIs(t, err, models.ErrInvalidTable, "bands=%v", bands)
	}
}

func TestCryptoSourceRange(t *testing.T) {
	t.Parallel()
	src := NewCryptoSource()
	for range 1000 {
		v := src.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}
