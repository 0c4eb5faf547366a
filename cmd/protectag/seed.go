package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/protectag/internal/logger"
	"github.com/cognicore/protectag/pkg/protectag/config"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load shops, categories and prompt settings from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comp, err := (&config.Loader{SeedPath: seedFile}).Load()
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg, logger.Logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := store.ApplySeed(ctx, st, comp.Seed); err != nil {
			return err
		}
		logger.Logger.Infow("seed applied", "file", seedFile,
			"categories", len(comp.Seed.Categories), "shops", len(comp.Seed.Shops))
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories and %d shops\n",
			len(comp.Seed.Categories), len(comp.Seed.Shops))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "seed YAML file")
	_ = seedCmd.MarkFlagRequired("file")
}
