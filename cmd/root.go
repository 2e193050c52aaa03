package cmd

import (
	"splitledger/config"
	"splitledger/database"
	"splitledger/logging"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var flagMode string

// How long a computed ledger view may sit in Redis.
const viewCacheTTL = 10 * time.Minute

var rootCmd = &cobra.Command{
	Use:   "splitledger",
	Short: "Shared expense ledger for a small group",
	Long:  "An expense sharing backend: equal-split or per-share balances, greedy settlement plans and a JSON API.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if flagMode != "" {
			cfg.LedgerMode = config.ParseMode(flagMode)
		}
		logging.Setup(cfg.LogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "", "Ledger mode (equal or shares), overrides LEDGER_MODE")
}

func Execute() error {
	return rootCmd.Execute()
}

// openDatabase connects and migrates; every subcommand needs both.
func openDatabase() (*gorm.DB, error) {
	db, err := database.Connect(config.AppConfig)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
