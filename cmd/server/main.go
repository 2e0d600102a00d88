package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/notify"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("mysql connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
	}

	// Redis backs rate limiting, caching and the activity feed.  The API
	// keeps serving without it.
	rdb, err := config.NewRedisClient()
	if err != nil {
		logger.Warn("redis unavailable, rate limit, cache and feed disabled", "err", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	hub := notify.NewHub()
	sinks := []notify.Sink{hub}
	var feed *notify.Feed
	if rdb != nil {
		feed = notify.NewFeed(rdb, "", cfg.Notify.FeedSize, cfg.Notify.FeedTTL)
		sinks = append(sinks, feed)
	}
	publisher := queue.NewPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange, cfg.Notify.Queue, logger)
	defer publisher.Close()
	sinks = append(sinks, notify.NewBrokerSink(publisher))
	dispatcher := notify.NewDispatcher(cfg.Notify.SinkTimeout, logger, sinks...)

	if cfg.Notify.ConsumerMode {
		logWriter := notify.NewLogWriter(cfg.Notify.LogPath)
		go func() {
			qc := queue.ConsumerConfig{URL: cfg.Notify.AMQPURL, Exchange: cfg.Notify.Exchange, Queue: cfg.Notify.Queue}
			if err := queue.StartConsumer(ctx, qc, logWriter.Handle, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notification consumer stopped", "err", err)
			}
		}()
	}

	clk := clock.NewSystem()
	opt := service.Options{Clock: clk, Timeout: cfg.RequestTimeout, Logger: logger, Notifier: dispatcher}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	bookings := repository.NewBookingRepo(db)
	reviews := repository.NewReviewRepo(db)

	eventSvc := service.NewEventService(events, users, opt)
	bookingSvc := service.NewBookingService(bookings, events, users, cfg.SeatsPerRow, cfg.MaxTicketsPerBooking, opt)
	gateSvc := service.NewGateService(bookings, events, opt)
	reviewSvc := service.NewReviewService(reviews, events, bookings, opt)
	accountSvc := service.NewAccountService(users, tokens, opt)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				logger.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(metrics.Middleware())

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	eventH := handler.NewEventHandler(eventSvc)
	bookingH := handler.NewBookingHandler(bookingSvc, gateSvc)
	reviewH := handler.NewReviewHandler(reviewSvc)
	accountH := handler.NewAccountHandler(accountSvc)
	roomH := handler.NewRoomHandler(hub, feed)

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Redis: rdb})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, clk), cfg.JWTSecret, limiter)
	router.RegisterPublic(e, eventH, reviewH, cfg.JWTSecret, limiter, cache)
	router.RegisterUser(e, bookingH, reviewH, accountH, cfg.JWTSecret)
	router.RegisterOrganizer(e, eventH, bookingH, accountH, roomH, cfg.JWTSecret)
	router.RegisterAdmin(e, eventH, accountH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
	dispatcher.Wait()
	logger.Info("stopped")
}
