package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/supplychain"
	"github.com/meikuraledutech/supplychain/config"
	"github.com/meikuraledutech/supplychain/memory"
	"github.com/meikuraledutech/supplychain/metrics"
	"github.com/meikuraledutech/supplychain/postgres"
	"github.com/meikuraledutech/supplychain/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	v       *viper.Viper = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "supplychaind",
	Short: "Edit product systems and remove supply chains over HTTP",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.BindFlags(v, cmd.Flags())
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), func(ctx context.Context, cfg config.Config, store supplychain.Store, log *zap.Logger) error {
			srv := server.New(store, log, metrics.NewCollector("supplychain"))
			return srv.Listen(ctx, cfg.ListenAddr)
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the database schema",
}

var schemaCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), func(ctx context.Context, cfg config.Config, store supplychain.Store, log *zap.Logger) error {
			if err := store.CreateSchema(ctx); err != nil {
				return err
			}
			log.Info("schema created")
			return nil
		})
	},
}

var schemaDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the tables and every stored product system",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), func(ctx context.Context, cfg config.Config, store supplychain.Store, log *zap.Logger) error {
			if err := store.DropSchema(ctx); err != nil {
				return err
			}
			log.Info("schema dropped")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("storage", config.StorageMemory, "storage backend: memory or postgres")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")
	serveCmd.Flags().String("listen-addr", ":3000", "HTTP listen address")

	schemaCmd.AddCommand(schemaCreateCmd, schemaDropCmd)
	rootCmd.AddCommand(serveCmd, schemaCmd)
}

type action func(ctx context.Context, cfg config.Config, store supplychain.Store, log *zap.Logger) error

// run loads the configuration, opens the store and calls fn with a context
// that is cancelled on SIGINT or SIGTERM.
func run(ctx context.Context, fn action) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log = log.With(zap.String("storage", cfg.Storage))
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, cfg, store, log)
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (supplychain.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		return memory.New(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return postgres.New(pool, postgres.WithLogger(log)), pool.Close, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
