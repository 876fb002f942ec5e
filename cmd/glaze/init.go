package main

import (
	"fmt"
	"os"

	"github.com/aellingwood/glaze/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long:  "Write a glaze.yaml populated with the default configuration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Root().PersistentFlags().GetString("config")
		force, _ := cmd.Flags().GetBool("force")

		if !force {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}
		}

		data, err := yaml.Marshal(config.Default())
		if err != nil {
			return fmt.Errorf("encoding default config: %w", err)
		}

		header := []byte("# glaze configuration. Every key is optional; missing keys use these defaults.\n")
		if err := os.WriteFile(configPath, append(header, data...), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
