package rewards

import (
	"testing"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	t.Parallel()
	require.Equal(t, "$120.00", FormatMoney(12000))
	require.Equal(t, "$0.05", FormatMoney(5))
	require.Equal(t, "$80.50", FormatMoney(8050))
}

func TestTax(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cents    int64
		rate     string
		expected int64
	}{
		{37000, "0.1", 3700},
		{1005, "0.1", 101},  // 100.5 -> 101
		{1004, "0.1", 100},  // 100.4 -> 100
		{999, "0.0825", 82}, // 82.4175
		{0, "0.2", 0},
		{5000, "", 0},
	}
	for _, ts := range tests {
		rate, err := ParseTaxRate(ts.rate)
		require.NoError(t, err)
		require.Equal(t, ts.expected, Tax(ts.cents, rate), "cents=%d rate=%s", ts.cents, ts.rate)
	}
}

func TestParseTaxRateInvalid(t *testing.T) {
	t.Parallel()
	for _, rate := range []string{"abc", "-0.1", "10%", "1.01", "1e30"} {
		_, err := ParseTaxRate(rate)
		require.ErrorIs(t, err, models.ErrInvalidCart, "rate=%s", rate)
	}
}
