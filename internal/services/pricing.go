package rewards

import (
	"context"
	"fmt"
	"math"
	"time"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("rewards")

// Предел суммы корзины в центах: процент промокода и налог считаются без переполнения
const MaxCartTotal = math.MaxInt64 / 100

// Расчет корзины. Состояния нет, все скидки считаются от одного subtotal
type PricingService struct {
	bundles   *BundleService
	promos    *PromoService
	discounts *DiscountTable
	now       func() time.Time
}

func NewPricingService(bundles *BundleService, promos *PromoService, discounts *DiscountTable) *PricingService {
	return &PricingService{bundles, promos, discounts, time.Now}
}

func (p *PricingService) Price(ctx context.Context, req models.PriceRequest) (result models.CartPricingResult, err error) {
	ctx, span := tracer.Start(ctx, "pricing.Price")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err = ValidateCart(req.Items); err != nil {
		return result, err
	}
	rate, err := ParseTaxRate(req.TaxRate)
	if err != nil {
		return result, err
	}
	if req.RedeemXP < 0 {
		return result, fmt.Errorf("redeem %d XP: %w", req.RedeemXP, models.ErrInvalidAmount)
	}

	result.Subtotal = Subtotal(req.Items)
	remaining := result.Subtotal

	// 1. набор
	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		ids[i] = it.ProductID
	}
	if match, ok := p.bundles.FindBestBundle(ids); ok {
		result.BundleID = match.Bundle.ID
		result.BundleDiscount = min(match.Savings, remaining)
		remaining -= result.BundleDiscount
	}

	// 2. промокод от исходного subtotal
	if req.PromoCode != "" {
		app, err := p.promos.Validate(ctx, req.PromoCode, req.Items, p.now())
		if err != nil {
			return models.CartPricingResult{}, err
		}
		result.PromoCode = app.Code
		result.PromoDiscount = min(app.Discount, remaining)
		remaining -= result.PromoDiscount
	}

	// 3. скидка за XP: только точный порог таблицы
	if req.RedeemXP > 0 {
		tier, ok := p.discounts.TierFor(req.RedeemXP)
		if !ok {
			return models.CartPricingResult{}, fmt.Errorf("redeem %d XP: %w", req.RedeemXP, models.ErrNotDiscountTier)
		}
		result.RedeemXP = req.RedeemXP
		result.XPDiscount = min(tier.Amount, remaining)
		remaining -= result.XPDiscount
	}

	result.TotalDiscount = result.BundleDiscount + result.PromoDiscount + result.XPDiscount
	result.DiscountedSubtotal = remaining
	result.Tax = Tax(remaining, rate)
	result.Total = remaining + result.Tax

	span.SetAttributes(
		attribute.Int64("cart.subtotal", result.Subtotal),
		attribute.Int64("cart.discount", result.TotalDiscount),
		attribute.Int64("cart.total", result.Total),
	)
	return result, nil
}

// Сумма строк корзины
func Subtotal(items []models.CartItem) int64 {
	var total int64
	for _, it := range items {
		total += it.LinePrice()
	}
	return total
}

func ValidateCart(items []models.CartItem) error {
	var total int64
	for i, it := range items {
		switch {
		case it.ProductID == "":
			return fmt.Errorf("item %d without product id: %w", i, models.ErrInvalidCart)
		case it.Quantity < 1:
			return fmt.Errorf("item %s quantity %d: %w", it.ProductID, it.Quantity, models.ErrInvalidCart)
		case it.UnitPrice < 0 || (it.StagePrice != nil && *it.StagePrice < 0):
			return fmt.Errorf("item %s has negative price: %w", it.ProductID, models.ErrInvalidCart)
		}
		price := it.UnitPrice
		if it.StagePrice != nil {
			price = *it.StagePrice
		}
		if price > 0 && it.Quantity > MaxCartTotal/price {
			return fmt.Errorf("item %s line price is too large: %w", it.ProductID, models.ErrInvalidCart)
		}
		line := price * it.Quantity
		if total > MaxCartTotal-line {
			return fmt.Errorf("cart total is too large: %w", models.ErrInvalidCart)
		}
		total += line
	}
	return nil
}
