package rewards

import (
	"fmt"
	"sort"
	"strings"

	models "github.com/glkeru/loyalty/rewards/internal/models"
)

// Подбор наборов по корзине. Каталог только читается - блокировки не нужны
type BundleService struct {
	bundles []models.Bundle
}

func NewBundleService(bundles []models.Bundle) *BundleService {
	cp := make([]models.Bundle, len(bundles))
	copy(cp, bundles)
	return &BundleService{cp}
}

// Лучший полностью собранный набор: наибольшая экономия, затем меньше товаров, затем порядок каталога
func (b *BundleService) FindBestBundle(productIDs []string) (models.BundleMatch, bool) {
	cart := toSet(productIDs)
	best := -1
	for i, bundle := range b.bundles {
		if len(bundle.Products) == 0 || len(missingProducts(bundle, cart)) > 0 {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		cur := b.bundles[best]
		switch {
		case bundle.Savings() > cur.Savings():
			best = i
		case bundle.Savings() == cur.Savings() && len(bundle.Products) < len(cur.Products):
			best = i
		}
	}
	if best == -1 {
		return models.BundleMatch{}, false
	}
	return models.BundleMatch{Bundle: b.bundles[best], Savings: b.bundles[best].Savings()}, true
}

// Подсказки для частично собранных наборов. limit <= 0 - без ограничения
func (b *BundleService) DynamicBundleSuggestions(productIDs []string, limit int) []models.BundleSuggestion {
	cart := toSet(productIDs)
	suggestions := make([]models.BundleSuggestion, 0)
	for _, bundle := range b.bundles {
		missing := missingProducts(bundle, cart)
		if len(missing) == 0 || len(missing) == len(bundle.Products) {
			continue
		}
		suggestions = append(suggestions, models.BundleSuggestion{
			BundleID:        bundle.ID,
			BundleName:      bundle.Name,
			MissingProducts: missing,
			Savings:         bundle.Savings(),
			Message: fmt.Sprintf("Add %s to complete the %s and save %s",
				joinNames(missing), bundle.Name, FormatMoney(bundle.Savings())),
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, c := suggestions[i], suggestions[j]
		if len(a.MissingProducts) != len(c.MissingProducts) {
			return len(a.MissingProducts) < len(c.MissingProducts)
		}
		return a.Savings > c.Savings
	})
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// Прогресс по частично собранным наборам
func (b *BundleService) BundleProgress(productIDs []string) []models.BundleProgress {
	cart := toSet(productIDs)
	progress := make([]models.BundleProgress, 0)
	for _, bundle := range b.bundles {
		missing := missingProducts(bundle, cart)
		total := len(bundle.Products)
		owned := total - len(missing)
		if owned == 0 || len(missing) == 0 {
			continue
		}
		var remaining int64
		for _, p := range missing {
			remaining += p.OriginalPrice
		}
		progress = append(progress, models.BundleProgress{
			BundleID:        bundle.ID,
			BundleName:      bundle.Name,
			OwnedProducts:   owned,
			TotalProducts:   total,
			ProgressPercent: owned * 100 / total,
			RemainingValue:  remaining,
		})
	}
	return progress
}

func (b *BundleService) Bundles() []models.Bundle {
	return b.bundles
}

func missingProducts(bundle models.Bundle, cart map[string]struct{}) []models.BundleProduct {
	var missing []models.BundleProduct
	for _, p := range bundle.Products {
		if _, ok := cart[p.ProductID]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func joinNames(products []models.BundleProduct) string {
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = p.Name
	}
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
