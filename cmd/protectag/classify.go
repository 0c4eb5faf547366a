package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/protectag/internal/logger"
	"github.com/cognicore/protectag/pkg/protectag/product"
)

var (
	classifyShop string
	classifyProd product.Product
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one product without touching any tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(cmd.Context(), cfg, logger.Logger)
		if err != nil {
			return err
		}
		defer engine.Close()

		out, err := engine.ClassifyProduct(cmd.Context(), classifyShop, classifyProd)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"categoryId": out.CategoryID,
			"enabled":    out.Enabled,
			"stage":      out.Stage,
		})
	},
}

func init() {
	f := classifyCmd.Flags()
	f.StringVar(&classifyShop, "shop", "", "use this shop's prompt settings")
	f.StringVar(&classifyProd.Title, "title", "", "product title")
	f.StringVar(&classifyProd.Description, "description", "", "plain-text description")
	f.StringVar(&classifyProd.Vendor, "vendor", "", "vendor")
	f.StringVar(&classifyProd.ProductType, "type", "", "product type")
	f.StringSliceVar(&classifyProd.Tags, "tags", nil, "comma-separated tags")
	_ = classifyCmd.MarkFlagRequired("title")
}
