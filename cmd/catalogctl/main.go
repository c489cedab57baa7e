// catalogctl - проверка каталога и расчет корзины без запуска движка
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	db "github.com/glkeru/loyalty/rewards/internal/db"
	engine "github.com/glkeru/loyalty/rewards/internal/external/engine"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Rewards catalog tool",
		Version:      Version,
		SilenceUsage: true,
	}
	root.AddCommand(validateCmd())
	root.AddCommand(priceCmd())
	root.AddCommand(publishCmd())
	return root
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog OK: %d products, %d bundles, %d promo codes, %d rules\n",
				len(catalog.Products), len(catalog.Bundles), len(catalog.Promos), len(catalog.Rules))
			return nil
		},
	}
}

func priceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price [cart]",
		Short: "Price a cart from a YAML or JSON file",
		Long: `Price a cart locally against a catalog file (--file)
or remotely against a running engine (--url).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			url, _ := cmd.Flags().GetString("url")
			if (file == "") == (url == "") {
				return fmt.Errorf("exactly one of --file or --url is required")
			}
			req, err := readCart(args[0])
			if err != nil {
				return err
			}

			var result models.CartPricingResult
			if url != "" {
				result, err = engine.NewEngineClientURL(url).PriceCart(cmd.Context(), req)
			} else {
				result, err = priceLocal(cmd.Context(), file, req)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringP("file", "f", "", "Catalog file")
	cmd.Flags().StringP("url", "u", "", "Engine base URL")
	return cmd
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish [file]",
		Short: "Validate a catalog file and publish it to MongoDB (ENGINE_MONGO)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			mgo, err := db.NewCatalogDB()
			if err != nil {
				return err
			}
			defer mgo.Close(context.Background())
			if err = mgo.SaveCatalog(cmd.Context(), catalog); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "catalog published")
			return nil
		},
	}
}

func loadCatalog(ctx context.Context, path string) (models.Catalog, error) {
	file, err := db.NewCatalogFile(path)
	if err != nil {
		return models.Catalog{}, err
	}
	return services.LoadCatalog(ctx, file)
}

func readCart(path string) (req models.PriceRequest, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	// JSON тоже валидный YAML
	if err = yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("cart %s: %w", path, err)
	}
	return req, nil
}

// Счетчики промокодов в памяти: лимиты использований не учитываются между запусками
func priceLocal(ctx context.Context, path string, req models.PriceRequest) (models.CartPricingResult, error) {
	catalog, err := loadCatalog(ctx, path)
	if err != nil {
		return models.CartPricingResult{}, err
	}
	promos, err := services.NewPromoService(catalog.Promos, db.NewMemoryCounters(), zap.NewNop())
	if err != nil {
		return models.CartPricingResult{}, err
	}
	discounts, err := services.NewDiscountTable(services.DefaultDiscountTable())
	if err != nil {
		return models.CartPricingResult{}, err
	}
	pricing := services.NewPricingService(services.NewBundleService(catalog.Bundles), promos, discounts)
	return pricing.Price(ctx, req)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
