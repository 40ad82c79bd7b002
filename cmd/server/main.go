package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/cinebook/seat-reservation/internal/booking"
	"github.com/cinebook/seat-reservation/internal/config"
	"github.com/cinebook/seat-reservation/internal/database"
	"github.com/cinebook/seat-reservation/internal/handler"
	"github.com/cinebook/seat-reservation/internal/hub"
	"github.com/cinebook/seat-reservation/internal/lock"
	"github.com/cinebook/seat-reservation/internal/payment"
	"github.com/cinebook/seat-reservation/internal/queue"
	"github.com/cinebook/seat-reservation/internal/repository"
	"github.com/cinebook/seat-reservation/internal/router"
	"github.com/cinebook/seat-reservation/internal/service"
	"github.com/cinebook/seat-reservation/internal/store"
	"github.com/cinebook/seat-reservation/internal/sweeper"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	bookingRepo := repository.NewBookingRepo(db)
	walletRepo := repository.NewWalletRepo(db)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: broadcast relay and rate limiting disabled")
	}

	seatStore := store.New(bookingRepo)
	broadcast := hub.New(seatStore, rdb)
	seatStore.SetNotifier(broadcast)

	locks := lock.NewManager(seatStore, cfg.SeatLockTTL)
	coordinator := booking.NewCoordinator(seatStore, bookingRepo,
		payment.OfflineAuthorizer{}, service.NewQueuePublisher(),
		cfg.SeatPriceCents, cfg.PendingBookingTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.New(seatStore, coordinator, cfg.SweepInterval).Run(ctx)
	go broadcast.RunRelay(ctx)
	go func() {
		if err := queue.StartRefundConsumer(service.BrokerURL(), walletRepo); err != nil {
			log.Printf("refund consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	reservations := handler.NewReservationHandler(seatStore, locks, coordinator, bookingRepo, walletRepo)
	router.RegisterPublic(e, reservations, handler.NewStreamHandler(broadcast))
	router.RegisterReservation(e, reservations, cfg.JWTSecret, rdb, cfg.RateLimit, cfg.RateWindow)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
