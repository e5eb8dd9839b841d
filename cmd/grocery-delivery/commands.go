package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/config"
	"grocery-delivery/internal/connections/database"
	"grocery-delivery/internal/connections/rabbitmq"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/microservices/notificator"
	notisvc "grocery-delivery/internal/microservices/notificator/service"
	"grocery-delivery/internal/trackclient"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(c *config.Config) { c.Server.Store = "postgres" })
		if err != nil {
			return err
		}
		lg := logger.New("migrate")
		ctx, cancel := signalContext()
		defer cancel()

		pool, err := database.Connect(ctx, cfg.Database.DSN())
		if err != nil {
			return err
		}
		defer pool.Close()
		return database.Migrate(ctx, pool, func(name string) {
			lg.Info("migration_applied", map[string]any{"file": name})
		})
	},
}

var subscriberCmd = &cobra.Command{
	Use:   "notification-subscriber",
	Short: "Consume the status change integration feed and log each event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.RabbitMQ.Enabled() {
			return fmt.Errorf("rabbitmq.host is required for notification-subscriber")
		}
		ctx, cancel := signalContext()
		defer cancel()

		rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			return fmt.Errorf("rabbitmq connect: %w", err)
		}
		defer rmq.Close()
		if err := rmq.DeclareTopology(); err != nil {
			return err
		}
		return notificator.StartSubscriber(ctx, rmq)
	},
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Follow one order's status from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID, _ := cmd.Flags().GetInt64("order")
		token, _ := cmd.Flags().GetString("token")
		baseURL, _ := cmd.Flags().GetString("url")
		logger.Init(logger.Options{Level: "warn"})

		s, err := trackclient.New(trackclient.Options{BaseURL: baseURL, Token: token, OrderID: orderID, Logger: logger.New("track")})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		s.OnStatus(func(st domain.Status) {
			fmt.Fprintf(out, "%s  pedido #%d  %s\n", time.Now().Format("15:04:05"), orderID, st)
		})

		ctx, cancel := signalContext()
		defer cancel()
		if err := s.Start(ctx); err != nil {
			return err
		}
		defer s.Close()

		select {
		case <-ctx.Done():
			return nil
		case <-s.Done():
			return s.Err()
		}
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token with the configured secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("GROCERY_JWT_SECRET")
		if secret == "" {
			cfg, err := loadConfig(func(c *config.Config) { c.Server.Store = "memory" })
			if err != nil {
				return err
			}
			secret = cfg.Auth.JWTSecret
		}
		user, _ := cmd.Flags().GetString("user")
		admin, _ := cmd.Flags().GetBool("admin")
		role := "customer"
		if admin {
			role = auth.RoleAdmin
		}
		tok, err := auth.NewJWTService(secret).Issue(user, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var vapidKeysCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair for web push",
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := notisvc.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "vapid_public_key: %s\nvapid_private_key: %s\n", pub, priv)
		return nil
	},
}

func init() {
	trackCmd.Flags().Int64("order", 0, "order id to follow")
	trackCmd.Flags().String("token", "", "customer bearer token")
	trackCmd.Flags().String("url", "http://localhost:3000", "API base URL")
	_ = trackCmd.MarkFlagRequired("order")
	_ = trackCmd.MarkFlagRequired("token")

	tokenCmd.Flags().String("user", "", "user id (token subject)")
	tokenCmd.Flags().Bool("admin", false, "issue an admin token")
	_ = tokenCmd.MarkFlagRequired("user")
}

// demoCatalog seeds the memory store so `serve --store memory` is usable on its own.
func demoCatalog() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Arroz branco 5kg", Price: 2890},
		{ID: 2, Name: "Feijão carioca 1kg", Price: 899},
		{ID: 3, Name: "Leite integral 1L", Price: 549},
		{ID: 4, Name: "Café torrado 500g", Price: 1790},
		{ID: 5, Name: "Banana prata kg", Price: 699},
	}
}
