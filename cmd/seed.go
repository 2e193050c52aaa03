package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"splitledger/config"
	"splitledger/database"
	"splitledger/ledger"
	"splitledger/models"
	"splitledger/services"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedUsers []string

var seedCmd = &cobra.Command{
	Use:     "seed",
	Short:   "Create the group's user accounts",
	Long:    "Creates one account per --user email:password:name. Existing emails are skipped.",
	Example: `  splitledger seed --user alice@example.com:secret:Alice --user bob@example.com:secret:Bob`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(seedUsers) == 0 {
			return errors.New("at least one --user is required")
		}

		accounts := make([]models.User, 0, len(seedUsers))
		for _, spec := range seedUsers {
			user, err := parseSeedUser(spec)
			if err != nil {
				return err
			}
			accounts = append(accounts, user)
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		store := database.NewStore(db)
		ctx := cmd.Context()

		// A running server may hold cached views computed without these users.
		opts := services.Options{Mode: config.AppConfig.LedgerMode, Currency: config.AppConfig.Currency}
		if rdb := database.ConnectRedis(ctx, config.AppConfig.RedisURL); rdb != nil {
			defer rdb.Close()
			opts.Cache = database.NewRedisCache(rdb, viewCacheTTL)
		}
		ledgerSvc := services.NewLedgerService(store, opts)

		for i := range accounts {
			user := &accounts[i]
			if _, err := store.GetUserByEmail(ctx, user.Email); err == nil {
				slog.Info("User exists, skipping", "email", user.Email)
				continue
			} else if !errors.Is(err, ledger.ErrNotFound) {
				return err
			}
			if err := ledgerSvc.RegisterUser(ctx, user); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringArrayVar(&seedUsers, "user", nil, "Account as email:password:name (repeatable)")
	rootCmd.AddCommand(seedCmd)
}

func parseSeedUser(spec string) (models.User, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return models.User{}, fmt.Errorf("invalid --user %q, want email:password:name", spec)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(parts[1]), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password for %s: %w", parts[0], err)
	}
	return models.User{
		Email:        strings.ToLower(strings.TrimSpace(parts[0])),
		Name:         strings.TrimSpace(parts[2]),
		PasswordHash: string(hash),
	}, nil
}
