package main

import (
	"fmt"

	"github.com/aellingwood/glaze/internal/cache"
	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the on-disk image cache",
	Long:  "Delete every cached image variant. Entries are regenerated on demand.",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store := cache.NewStore(cfg.Cache.Root)
		if err := store.Purge(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Purged image cache under %s\n", cfg.Cache.Root)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
