package rewards

import (
	"fmt"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/shopspring/decimal"
)

// Центы в строку для UI: 12050 -> "$120.50"
func FormatMoney(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

// Ставка налога из десятичной строки. Пустая строка - без налога
func ParseTaxRate(rate string) (decimal.Decimal, error) {
	if rate == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tax rate %q: %w", rate, models.ErrInvalidCart)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("tax rate %q is out of [0, 1]: %w", rate, models.ErrInvalidCart)
	}
	return d, nil
}

// Налог в центах, округление половины от нуля
func Tax(cents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(rate).Round(0).IntPart()
}
