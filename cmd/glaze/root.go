package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "glaze",
	Short: "An on-demand image optimization server",
	Long:  "Glaze resizes and transcodes images on request, caching every variant on disk.",
}

func init() {
	rootCmd.PersistentFlags().String("config", "glaze.yaml", "path to config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
