package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-slot-booking/internal/config"
	"github.com/iliyamo/marketplace-slot-booking/internal/database"
	"github.com/iliyamo/marketplace-slot-booking/internal/engine"
	"github.com/iliyamo/marketplace-slot-booking/internal/handler"
	"github.com/iliyamo/marketplace-slot-booking/internal/middleware"
	"github.com/iliyamo/marketplace-slot-booking/internal/queue"
	"github.com/iliyamo/marketplace-slot-booking/internal/repository"
	"github.com/iliyamo/marketplace-slot-booking/internal/router"
	"github.com/iliyamo/marketplace-slot-booking/internal/worker"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// nil when redis is unreachable; caching and rate limiting degrade
	// to pass-throughs in that case.
	rdb := config.NewRedisClient()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	services := repository.NewServiceRepo(db)
	slots := repository.NewSlotRepo(db)
	bookings := repository.NewBookingRepo(db)

	publisher := queue.NewPublisher(cfg.RabbitURL)
	eng := engine.NewReservationEngine(slots, bookings, services, publisher, publisher,
		time.Duration(cfg.HoldTTLMin)*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.NewExpirySweeper(eng, time.Duration(cfg.SweepIntervalSec)*time.Second)
	go sweeper.Run(ctx)

	go func() {
		if err := queue.StartRefundConsumer(cfg.RabbitURL); err != nil {
			log.Printf("refund consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewPublicHandler(services, slots), config.LoadCacheConfig(), rdb)
	router.RegisterCustomer(e, handler.NewBookingHandler(eng, bookings), cfg.JWTSecret, rl)
	router.RegisterVendor(e, handler.NewVendorHandler(services, slots), cfg.JWTSecret, rl)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
