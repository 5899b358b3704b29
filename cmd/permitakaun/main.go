package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/webdevsha/permitakaun/pkg/config"
)

// Version is set at build time
var Version = "dev"

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:     "permitakaun",
		Short:   "Permit Akaun - bazaar tenant, organizer and payment API",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "read configuration from this .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		return config.LoadWithPath(envFile)
	}
	return config.Load()
}
