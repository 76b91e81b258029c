package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/eventhive/event-seat-booking/internal/config"
	"github.com/eventhive/event-seat-booking/internal/database"
	"github.com/eventhive/event-seat-booking/internal/handler"
	"github.com/eventhive/event-seat-booking/internal/middleware"
	"github.com/eventhive/event-seat-booking/internal/queue"
	"github.com/eventhive/event-seat-booking/internal/repository"
	"github.com/eventhive/event-seat-booking/internal/router"
	"github.com/eventhive/event-seat-booking/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().
		Str("service", "event-seat-booking").Logger()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connect failed")
	}
	defer db.Close()

	// Redis is optional; a nil client turns the limiter and the cache
	// into no-ops.
	rdb := config.NewRedisClient()

	seatTypes := repository.NewSeatTypeRepo(db)
	bookings := repository.NewBookingRepo(db, seatTypes)
	events := repository.NewEventRepo(db)
	users := repository.NewUserRepo(db)

	publisher := queue.NewPublisher()
	svc := service.NewBookingService(seatTypes, bookings, events, publisher, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users))
	router.RegisterBooking(e, handler.NewBookingHandler(svc), cfg.JWTSecret, cacheMW)

	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			logger.Error().Err(err).Msg("booking consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
