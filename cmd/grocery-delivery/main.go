package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"grocery-delivery/internal/app"
	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/config"
	"grocery-delivery/internal/connections/database"
	"grocery-delivery/internal/connections/rabbitmq"
	notirepo "grocery-delivery/internal/microservices/notificator/repository"
	notisvc "grocery-delivery/internal/microservices/notificator/service"
	orderrepo "grocery-delivery/internal/microservices/order/repository"
)

var (
	// Version is set via ldflags during build
	Version = "dev"

	cfgPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "grocery-delivery",
	Short:         "Order API with live status tracking and web push notifications",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(subscriberCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(vapidKeysCmd)
}

func loadConfig(overrides ...func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(cfgPath, overrides...)
	if err != nil {
		return config.Config{}, err
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the tracking socket and the notification worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(c *config.Config) {
			if port, _ := cmd.Flags().GetInt("port"); port != 0 {
				c.Server.Port = port
			}
			if store, _ := cmd.Flags().GetString("store"); store != "" {
				c.Server.Store = store
			}
		})
		if err != nil {
			return err
		}
		lg := logger.New("bootstrap")
		ctx, cancel := signalContext()
		defer cancel()

		deps := app.Deps{
			Verifier: auth.NewJWTService(cfg.Auth.JWTSecret),
			Checks:   map[string]app.HealthCheck{},
		}

		switch cfg.Server.Store {
		case "memory":
			deps.Orders = orderrepo.NewMemory(demoCatalog()...)
			deps.Subscriptions = notirepo.NewMemorySubscriptionStore()
			lg.Info("store_selected", map[string]any{"store": "memory"})
		default:
			pool, err := database.Connect(ctx, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()
			if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
				if err := database.Migrate(ctx, pool, func(name string) {
					lg.Info("migration_applied", map[string]any{"file": name})
				}); err != nil {
					return err
				}
			}
			deps.Orders = orderrepo.New(pool)
			deps.Subscriptions = notirepo.NewSubscriptionRepository(pool)
			deps.Checks["postgres"] = pool.Ping
			lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Database})
		}

		if cfg.Push.Enabled() {
			deps.Push = notisvc.NewWebPushSender(cfg.Push)
		} else {
			lg.Warn("push_disabled", map[string]any{"reason": "push.vapid_public_key/vapid_private_key not set"})
		}

		if cfg.RabbitMQ.Enabled() {
			rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
			if err != nil {
				return fmt.Errorf("rabbitmq connect: %w", err)
			}
			defer rmq.Close()
			if err := rmq.DeclareTopology(); err != nil {
				return err
			}
			deps.Publisher = rmq
			deps.Checks["rabbitmq"] = func(context.Context) error { return rmq.Ping() }
			lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host, "exchange": rabbitmq.ExchangeNotifications})
		}

		if err := app.New(cfg, deps).Run(ctx); err != nil {
			lg.Error("server_stopped", err, nil)
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP port (overrides server.port)")
	serveCmd.Flags().String("store", "", "postgres | memory (overrides server.store)")
	serveCmd.Flags().Bool("migrate", false, "apply embedded migrations before serving")
}
