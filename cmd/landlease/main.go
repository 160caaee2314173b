package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"landlease/internal/config"
	"landlease/internal/infrastructure/database"
	"landlease/internal/interfaces/router"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config and sets up the global logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:           "landlease",
	Short:         "Land leasing marketplace backend",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}

		app, db, rdb, err := router.CreateApp(cfg)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}

		if err := database.Ping(db); err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		log.Info().Str("driver", cfg.DatabaseDriver).Msg("database connected")
		if err := rdb.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info().Msg("redis connected")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			log.Info().Msg("shutting down")
			_ = app.ShutdownWithTimeout(10 * time.Second)
		}()

		log.Info().
			Str("port", cfg.Port).
			Str("asset_store", cfg.AssetStore.Provider).
			Str("listing_store", cfg.ListingStore).
			Msgf("server running at http://localhost:%s (health: /health/json)", cfg.Port)
		return app.Listen(":" + cfg.Port)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the SQL schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		log.Info().Str("driver", cfg.DatabaseDriver).Msg("schema up to date")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
