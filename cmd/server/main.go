package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v78"

	"github.com/marcelreig/marina-backend/internal/config"
	"github.com/marcelreig/marina-backend/internal/db"
	"github.com/marcelreig/marina-backend/internal/handler"
	"github.com/marcelreig/marina-backend/internal/order"
	"github.com/marcelreig/marina-backend/internal/payment"
	"github.com/marcelreig/marina-backend/internal/store"
	"github.com/marcelreig/marina-backend/internal/transport"
	"github.com/marcelreig/marina-backend/internal/webhook"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "marina-backend").Logger()

	log.Info().Msg("Marina backend starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	var stripeClient *payment.StripeClient
	if cfg.Stripe.SecretKey != "" {
		stripe.Key = cfg.Stripe.SecretKey
		stripeClient = payment.NewStripeClient(cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, cfg.Stripe.Currency)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, checkout session creation is disabled")
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Warn().Bool("allow_unverified", cfg.Stripe.AllowUnverifiedWebhooks).Msg("STRIPE_WEBHOOK_SECRET not set")
	}

	orderRepo := order.NewRepository(dbConn.Pool)
	orderSvc := order.NewService(orderRepo, stripeClient, cfg.Orders.NumberPrefix)
	storeRepo := store.NewRepository(dbConn.Pool)

	handlers := transport.Handlers{
		Checkout:   handler.NewCheckoutHandler(sessionCreator(stripeClient), storeRepo),
		Orders:     handler.NewOrderHandler(orderSvc),
		Store:      handler.NewStoreHandler(storeRepo),
		Webhook:    webhook.NewHandler(orderSvc, cfg.Stripe.WebhookSecret, cfg.Stripe.AllowUnverifiedWebhooks),
		AdminToken: cfg.Admin.Token,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      transport.NewRouter(handlers),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

// sessionCreator keeps the nil check honest: a nil *StripeClient stored in
// an interface would not compare equal to nil inside the handler.
func sessionCreator(c *payment.StripeClient) handler.SessionCreator {
	if c == nil {
		return nil
	}
	return c
}
