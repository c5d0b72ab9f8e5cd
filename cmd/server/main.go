package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/review-channels/internal/config"
	"github.com/iliyamo/review-channels/internal/database"
	"github.com/iliyamo/review-channels/internal/gamelookup"
	"github.com/iliyamo/review-channels/internal/handler"
	"github.com/iliyamo/review-channels/internal/logging"
	"github.com/iliyamo/review-channels/internal/middleware"
	"github.com/iliyamo/review-channels/internal/queue"
	"github.com/iliyamo/review-channels/internal/repository"
	"github.com/iliyamo/review-channels/internal/router"
	"github.com/iliyamo/review-channels/internal/service"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	if cfg.DBMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("migrate database")
		}
	}

	// Redis is optional; without it each replica limits on its own.
	var rdb *redis.Client
	if rc, err := config.NewRedisClient(config.LoadRedisConfig()); err != nil {
		log.WithError(err).Warn("redis unavailable, using in-process rate limiter")
	} else {
		rdb = rc
		defer rdb.Close()
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pub queue.Publisher = queue.NopPublisher{}
	if cfg.Events.Enabled {
		pub = queue.NewAMQPPublisher(cfg.Events.URL, log)
		audit := queue.NewAuditConsumer(cfg.Events.URL, cfg.Events.AuditLogPath, log)
		go func() {
			if err := audit.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("audit consumer stopped")
			}
		}()
	}

	accountRepo := repository.NewAccountRepo(db)
	channelRepo := repository.NewChannelRepo(db)
	userRepo := repository.NewUserRepo(db)
	reviewRepo := repository.NewReviewRepo(db)
	games := gamelookup.NewClient(cfg.GameLookup, log)

	accountSvc := service.NewAccountService(accountRepo, pub, log, service.AccountOptions{
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
		Billing:    cfg.Billing,
	})
	channelSvc := service.NewChannelService(channelRepo, pub, log, service.ChannelOptions{
		BcryptCost:       cfg.BcryptCost,
		FreeChannelLimit: cfg.Billing.FreeChannelLimit,
	})
	userSvc := service.NewUserService(userRepo, pub, log, cfg.Allocation)
	reviewSvc := service.NewReviewService(reviewRepo, userRepo, channelRepo, games, pub, log, cfg.AssetBaseURL)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	rl := config.LoadRateLimitConfig()
	router.Register(e, router.Deps{
		Accounts:   handler.NewAccountHandler(accountSvc, reviewSvc),
		Channels:   handler.NewChannelHandler(channelSvc),
		Users:      handler.NewUserHandler(userSvc),
		Reviews:    handler.NewReviewHandler(reviewSvc),
		AccountSvc: accountSvc,
		ChannelSvc: channelSvc,
		UserSvc:    userSvc,
		IPLimit:    middleware.NewTokenBucket(rl.PerIP(), rdb, log),
		Limit:      middleware.NewTokenBucket(rl, rdb, log),
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
}
