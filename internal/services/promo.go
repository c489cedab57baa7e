package rewards

import (
	"context"
	"fmt"
	"strings"
	"time"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/google/cel-go/cel"
	"go.uber.org/zap"
)

type compiledPromo struct {
	promo     models.PromoCode
	condition cel.Program
}

// Проверка промокодов. Состояние - только счетчик использований
type PromoService struct {
	codes  map[string]compiledPromo
	usage  interf.PromoUsage
	logger *zap.Logger
}

func NewPromoService(codes []models.PromoCode, usage interf.PromoUsage, logger *zap.Logger) (*PromoService, error) {
	env, err := promoEnv()
	if err != nil {
		return nil, err
	}
	compiled := make(map[string]compiledPromo, len(codes))
	for _, p := range codes {
		if err := ValidatePromo(p); err != nil {
			return nil, err
		}
		key := normalizeCode(p.Code)
		if _, dup := compiled[key]; dup {
			return nil, fmt.Errorf("duplicate promo code %s: %w", p.Code, models.ErrInvalidCatalog)
		}
		c := compiledPromo{promo: p}
		if p.Condition != "" {
			c.condition, err = compileCondition(env, p.Condition)
			if err != nil {
				return nil, fmt.Errorf("promo %s condition: %v: %w", p.Code, err, models.ErrInvalidCatalog)
			}
		}
		compiled[key] = c
	}
	return &PromoService{compiled, usage, logger}, nil
}

// Проверки по порядку: код, срок, минимум, категории, лимит, условие
func (s *PromoService) Validate(ctx context.Context, code string, items []models.CartItem, now time.Time) (models.PromoApplication, error) {
	app, err := s.validate(ctx, code, items, now)
	if err != nil {
		if perr, ok := err.(*models.PromoError); ok {
			promoRejected.WithLabelValues(string(perr.Code)).Inc()
		}
		return models.PromoApplication{}, err
	}
	return app, nil
}

func (s *PromoService) validate(ctx context.Context, code string, items []models.CartItem, now time.Time) (models.PromoApplication, error) {
	c, ok := s.codes[normalizeCode(code)]
	if !ok {
		return models.PromoApplication{}, models.NewPromoError(models.PromoCodeNotFound, code)
	}
	p := c.promo
	if (p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)) || (p.StartsAt != nil && now.Before(*p.StartsAt)) {
		return models.PromoApplication{}, models.NewPromoError(models.PromoCodeExpired, p.Code)
	}

	if err := ValidateCart(items); err != nil {
		return models.PromoApplication{}, err
	}
	subtotal := Subtotal(items)
	if subtotal < p.MinSubtotal {
		return models.PromoApplication{}, models.NewPromoError(models.PromoMinimumNotMet, p.Code)
	}

	eligible := subtotal
	if len(p.Categories) > 0 {
		allowed := make(map[models.Category]struct{}, len(p.Categories))
		for _, cat := range p.Categories {
			allowed[cat] = struct{}{}
		}
		eligible = 0
		var matched int
		for _, it := range items {
			if _, ok := allowed[it.Category]; ok {
				matched++
				eligible += it.LinePrice()
			}
		}
		if matched == 0 {
			return models.PromoApplication{}, models.NewPromoError(models.PromoCategoryMismatch, p.Code)
		}
	}

	if p.UsageLimit > 0 && s.usage != nil {
		used, err := s.usage.Used(ctx, p.Code)
		if err != nil {
			return models.PromoApplication{}, fmt.Errorf("promo %s usage: %w", p.Code, err)
		}
		if used >= p.UsageLimit {
			return models.PromoApplication{}, models.NewPromoError(models.PromoUsageLimitReached, p.Code)
		}
	}

	if c.condition != nil {
		ok, err := evalCondition(c.condition, items, subtotal)
		if err != nil {
			s.logger.Error("promo condition", zap.String("code", p.Code), zap.Error(err))
			return models.PromoApplication{}, models.NewPromoError(models.PromoConditionNotMet, p.Code)
		}
		if !ok {
			return models.PromoApplication{}, models.NewPromoError(models.PromoConditionNotMet, p.Code)
		}
	}

	var discount int64
	switch p.Type {
	case models.PromoPercentage:
		discount = (eligible*p.Percent + 50) / 100
	case models.PromoFixed:
		discount = p.Amount
	}
	if p.MaxDiscount > 0 && discount > p.MaxDiscount {
		discount = p.MaxDiscount
	}
	if discount > subtotal {
		discount = subtotal
	}
	return models.PromoApplication{Code: p.Code, Discount: discount, Eligible: eligible}, nil
}

// Промокод по коду
func (s *PromoService) Lookup(code string) (models.PromoCode, bool) {
	c, ok := s.codes[normalizeCode(code)]
	return c.promo, ok
}

// Проверка промокода при загрузке каталога
func ValidatePromo(p models.PromoCode) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("promo without code: %w", models.ErrInvalidCatalog)
	}
	switch p.Type {
	case models.PromoPercentage:
		if p.Percent <= 0 || p.Percent > 100 {
			return fmt.Errorf("promo %s percent %d: %w", p.Code, p.Percent, models.ErrInvalidCatalog)
		}
	case models.PromoFixed:
		if p.Amount <= 0 {
			return fmt.Errorf("promo %s amount %d: %w", p.Code, p.Amount, models.ErrInvalidCatalog)
		}
	default:
		return fmt.Errorf("promo %s type %q: %w", p.Code, p.Type, models.ErrInvalidCatalog)
	}
	if p.MinSubtotal < 0 || p.MaxDiscount < 0 || p.UsageLimit < 0 {
		return fmt.Errorf("promo %s has negative limits: %w", p.Code, models.ErrInvalidCatalog)
	}
	for _, c := range p.Categories {
		if !c.Valid() {
			return fmt.Errorf("promo %s category %q: %w", p.Code, c, models.ErrInvalidCatalog)
		}
	}
	if p.StartsAt != nil && p.ExpiresAt != nil && !p.StartsAt.Before(*p.ExpiresAt) {
		return fmt.Errorf("promo %s starts after it expires: %w", p.Code, models.ErrInvalidCatalog)
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func promoEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("subtotal", cel.IntType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("categories", cel.ListType(cel.StringType)),
		cel.Variable("product_ids", cel.ListType(cel.StringType)),
	)
}

func compileCondition(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression %q must return bool", expr)
	}
	return env.Program(ast)
}

func evalCondition(prg cel.Program, items []models.CartItem, subtotal int64) (bool, error) {
	var count int64
	categories := make([]string, 0, len(items))
	products := make([]string, 0, len(items))
	for _, it := range items {
		count += it.Quantity
		categories = append(categories, string(it.Category))
		products = append(products, it.ProductID)
	}
	out, _, err := prg.Eval(map[string]any{
		"subtotal":    subtotal,
		"item_count":  count,
		"categories":  categories,
		"product_ids": products,
	})
	if err != nil {
		return false, err
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("condition result %v is not bool", out.Value())
	}
	return ok, nil
}
