package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"splitledger/config"
	"splitledger/database"
	"splitledger/handlers"
	"splitledger/metrics"
	"splitledger/services"
	"splitledger/utils"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.AppConfig
		if cfg.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		store := database.NewStore(db)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := services.Options{
			Mode:     cfg.LedgerMode,
			Currency: cfg.Currency,
			Notifier: services.NewNotificationService(ctx, cfg),
		}
		// Connect to Redis (optional, won't crash if unavailable)
		if rdb := database.ConnectRedis(ctx, cfg.RedisURL); rdb != nil {
			defer rdb.Close()
			opts.Cache = database.NewRedisCache(rdb, viewCacheTTL)
		}

		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}

		ledgerSvc := services.NewLedgerService(store, opts)
		tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

		srv := &http.Server{
			Addr:              "0.0.0.0:" + cfg.Port,
			Handler:           handlers.New(ledgerSvc, store, tokens, cfg.AppName).Router(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			slog.Info("Server starting", "app", cfg.AppName, "addr", srv.Addr, "mode", ledgerSvc.Mode())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			slog.Info("Shutdown signal received")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		slog.Info("Server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
