package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/dayeon/shop-reservation/internal/config"
	"github.com/dayeon/shop-reservation/internal/database"
	"github.com/dayeon/shop-reservation/internal/handler"
	"github.com/dayeon/shop-reservation/internal/payment"
	"github.com/dayeon/shop-reservation/internal/queue"
	"github.com/dayeon/shop-reservation/internal/repository"
	"github.com/dayeon/shop-reservation/internal/router"
	"github.com/dayeon/shop-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Env == "dev" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient() // nil disables caching and rate limiting

	reservationRepo := repository.NewReservationRepo(db)
	pointRepo := repository.NewPointRepo(db)
	couponRepo := repository.NewCouponRepo(db)
	creditRepo := repository.NewCreditRepo(db)
	blacklistRepo := repository.NewBlacklistRepo(db)
	shopRepo := repository.NewShopRepo(db)
	userRepo := repository.NewUserRepo(db)

	pointSvc := service.NewPointService(pointRepo, logger)
	couponSvc := service.NewCouponService(couponRepo)
	creditSvc := service.NewCreditService(creditRepo, blacklistRepo, userRepo, logger)
	compensator := service.NewCompensator(pointSvc, couponSvc, logger)
	gateway := payment.NewPortOneClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey)
	bookingSvc := service.NewBookingService(
		reservationRepo, shopRepo, userRepo,
		pointSvc, couponSvc, creditSvc, compensator,
		gateway, queue.NewPublisher(), logger,
	)
	slotSvc := service.NewSlotService(reservationRepo)

	// Partner notification consumer; reconnects on its own and never
	// takes the server down.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			logger.WithError(err).Error("reservation consumer stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, rdb,
		handler.NewReservationHandler(bookingSvc, slotSvc),
		handler.NewPointHandler(pointSvc),
		handler.NewCouponHandler(couponSvc),
		handler.NewCreditHandler(creditSvc),
	)

	addr := ":" + cfg.Port
	logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("server starting")
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
