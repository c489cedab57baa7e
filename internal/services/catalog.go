package rewards

import (
	"context"
	"fmt"

	interf "github.com/glkeru/loyalty/rewards/internal/interfaces"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"golang.org/x/sync/errgroup"
)

// Загрузка каталога. Ошибка целостности - отказ старта, ничего не исправляется
func LoadCatalog(ctx context.Context, store interf.CatalogStorage) (models.Catalog, error) {
	var c models.Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		c.Products, err = store.GetProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		c.Bundles, err = store.GetBundles(gctx)
		return err
	})
	g.Go(func() (err error) {
		c.Promos, err = store.GetPromoCodes(gctx)
		return err
	})
	g.Go(func() (err error) {
		c.Rules, err = store.GetActionRules(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	if err := ValidateCatalog(c); err != nil {
		return models.Catalog{}, err
	}
	return c, nil
}

func ValidateCatalog(c models.Catalog) error {
	products := make(map[string]models.Product, len(c.Products))
	for _, p := range c.Products {
		if p.ID == "" {
			return fmt.Errorf("product without id: %w", models.ErrInvalidCatalog)
		}
		if _, dup := products[p.ID]; dup {
			return fmt.Errorf("duplicate product %s: %w", p.ID, models.ErrInvalidCatalog)
		}
		if p.Price < 0 {
			return fmt.Errorf("product %s price %d: %w", p.ID, p.Price, models.ErrInvalidCatalog)
		}
		if !p.Category.Valid() {
			return fmt.Errorf("product %s category %q: %w", p.ID, p.Category, models.ErrInvalidCatalog)
		}
		products[p.ID] = p
	}

	bundles := make(map[string]struct{}, len(c.Bundles))
	for _, b := range c.Bundles {
		if err := validateBundle(b, products); err != nil {
			return err
		}
		if _, dup := bundles[b.ID]; dup {
			return fmt.Errorf("duplicate bundle %s: %w", b.ID, models.ErrInvalidCatalog)
		}
		bundles[b.ID] = struct{}{}
	}

	// промокоды проверяются вместе с компиляцией условий
	if _, err := NewPromoService(c.Promos, nil, nil); err != nil {
		return err
	}

	rules := make(map[string]struct{}, len(c.Rules))
	for _, r := range c.Rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
		if _, dup := rules[r.ID]; dup {
			return fmt.Errorf("duplicate rule %s: %w", r.ID, models.ErrInvalidCatalog)
		}
		rules[r.ID] = struct{}{}
	}
	return nil
}

func validateBundle(b models.Bundle, products map[string]models.Product) error {
	if b.ID == "" || b.Name == "" {
		return fmt.Errorf("bundle %q without id or name: %w", b.ID, models.ErrInvalidCatalog)
	}
	if len(b.Products) < 2 {
		return fmt.Errorf("bundle %s has %d products: %w", b.ID, len(b.Products), models.ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(b.Products))
	for _, p := range b.Products {
		if _, ok := products[p.ProductID]; !ok {
			return fmt.Errorf("bundle %s references unknown product %s: %w", b.ID, p.ProductID, models.ErrInvalidCatalog)
		}
		if _, dup := seen[p.ProductID]; dup {
			return fmt.Errorf("bundle %s lists product %s twice: %w", b.ID, p.ProductID, models.ErrInvalidCatalog)
		}
		if p.OriginalPrice < 0 {
			return fmt.Errorf("bundle %s product %s price %d: %w", b.ID, p.ProductID, p.OriginalPrice, models.ErrInvalidCatalog)
		}
		seen[p.ProductID] = struct{}{}
	}
	if b.BundlePrice < 0 || b.BundlePrice > b.TotalValue() {
		return fmt.Errorf("bundle %s price %d of value %d: %w", b.ID, b.BundlePrice, b.TotalValue(), models.ErrInvalidCatalog)
	}
	if b.Badge != "" && !b.Badge.Valid() {
		return fmt.Errorf("bundle %s badge %q: %w", b.ID, b.Badge, models.ErrInvalidCatalog)
	}
	if !b.Category.Valid() {
		return fmt.Errorf("bundle %s category %q: %w", b.ID, b.Category, models.ErrInvalidCatalog)
	}
	return nil
}

var conditionOperators = map[string]struct{}{
	"=": {}, "!=": {}, ">": {}, "<": {}, ">=": {}, "<=": {},
}

// Проверка правила начисления
func ValidateRule(r models.ActionRule) error {
	if r.ID == "" || r.Action == "" {
		return fmt.Errorf("rule %q without id or action: %w", r.ID, models.ErrInvalidCatalog)
	}
	if r.Points < 0 || r.Percent < 0 {
		return fmt.Errorf("rule %s has negative reward: %w", r.ID, models.ErrInvalidCatalog)
	}
	for _, set := range [][]models.Criteria{r.Include, r.Exclude} {
		for _, c := range set {
			if c.Operator != "AND" && c.Operator != "OR" {
				return fmt.Errorf("rule %s criteria operator %q: %w", r.ID, c.Operator, models.ErrInvalidCatalog)
			}
			for _, cond := range c.Conditions {
				if _, ok := conditionOperators[cond.Operator]; !ok || cond.Field == "" {
					return fmt.Errorf("rule %s condition %s %q: %w", r.ID, cond.Field, cond.Operator, models.ErrInvalidCatalog)
				}
			}
		}
	}
	return nil
}
