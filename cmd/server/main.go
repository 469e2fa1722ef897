package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/degentalk/ledger/internal/config"
)

// @title DGT Ledger API
// @version 1.0
// @description Internal DGT token ledger, orders and payment webhooks
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "dgt-ledger",
		Short:        "DGT token ledger and settlement service",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			viper.SetConfigFile(configFile)
			config.BindEnv()
			if err := viper.ReadInConfig(); err != nil {
				log.Printf("Config file not found, using defaults: %v", err)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", ".env", "config file (env, yaml or json)")

	cmd.AddCommand(serveCmd(), migrateCmd(), auditCmd(), replayCmd())
	return cmd
}
