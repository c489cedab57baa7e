package rewards

import (
	"context"
	"fmt"
	"os"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"gopkg.in/yaml.v3"
)

// Каталог из YAML файла
type CatalogFile struct {
	catalog models.Catalog
}

func NewCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*CatalogFile, error) {
	var c models.Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog yaml: %v: %w", err, models.ErrInvalidCatalog)
	}
	return &CatalogFile{c}, nil
}

func (f *CatalogFile) GetProducts(ctx context.Context) ([]models.Product, error) {
	return f.catalog.Products, nil
}

func (f *CatalogFile) GetBundles(ctx context.Context) ([]models.Bundle, error) {
	return f.catalog.Bundles, nil
}

func (f *CatalogFile) GetPromoCodes(ctx context.Context) ([]models.PromoCode, error) {
	return f.catalog.Promos, nil
}

func (f *CatalogFile) GetActionRules(ctx context.Context) ([]models.ActionRule, error) {
	return f.catalog.Rules, nil
}
