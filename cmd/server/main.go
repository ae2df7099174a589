// Entry point for the breakfast marketplace API server.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/morningtable/breakfast-market/internal/config"
	"github.com/morningtable/breakfast-market/internal/database"
	"github.com/morningtable/breakfast-market/internal/handler"
	"github.com/morningtable/breakfast-market/internal/middleware"
	"github.com/morningtable/breakfast-market/internal/payment"
	"github.com/morningtable/breakfast-market/internal/queue"
	"github.com/morningtable/breakfast-market/internal/repository"
	"github.com/morningtable/breakfast-market/internal/router"
	queue_publisher "github.com/morningtable/breakfast-market/internal/service"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the rate limiter and the public response cache.  A nil
	// client disables both and the API keeps serving.
	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	providers := repository.NewProviderRepo(db)
	menuItems := repository.NewMenuItemRepo(db)
	bookings := repository.NewBookingRepo(db)

	gateway := payment.NewClient(cfg.StripeSecretKey)

	// Broker publishes are fire-and-forget: a broker outage must never fail
	// a payment that the gateway already accepted.
	publish := func(c echo.Context, ev queue.BookingConfirmedEvent) {
		go func() {
			_ = queue_publisher.PublishBookingConfirmed(context.Background(), ev)
		}()
	}

	authH := handler.NewAuthHandler(cfg, users, tokens)
	providerH := handler.NewProviderHandler(providers, menuItems)
	menuH := handler.NewMenuHandler(providers, menuItems)
	bookingH := handler.NewBookingHandler(bookings, providers, menuItems)
	paymentH := handler.NewPaymentHandler(bookings, gateway, cfg.Currency, publish)
	webhookH := handler.NewWebhookHandler(cfg.StripeWebhookSecret, bookings, publish)

	var rate, cache echo.MiddlewareFunc
	if rdb != nil {
		if rlCfg := config.LoadRateLimitConfig(); rlCfg.Enabled {
			rate = middleware.NewTokenBucket(rlCfg, rdb)
		}
		if cCfg := config.LoadCacheConfig(); cCfg.Enabled {
			cache = middleware.NewRedisCache(cCfg, rdb)
		}
	}

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, providerH, menuH, cache)
	router.RegisterAPI(e, cfg.JWTSecret, rate, providerH, menuH, bookingH, paymentH)
	router.RegisterWebhook(e, webhookH)

	// Background consumer mirrors confirmed bookings into logs/booking.log.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking-consumer: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
