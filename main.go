package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	intconfig "loadmatch/internal/config"
	"loadmatch/internal/db"
	router "loadmatch/internal/http"
	"loadmatch/internal/http/handlers"
	"loadmatch/internal/ledger"
	"loadmatch/internal/notify"
	"loadmatch/internal/repositories"
	"loadmatch/internal/repositories/memory"
	"loadmatch/internal/services"
	"loadmatch/internal/utils"
)

func main() {
	env, err := intconfig.LoadEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := utils.NewLogger("loadmatch", env.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	utils.SetLogger(logger)

	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, env)
	if err != nil {
		logger.Fatal("open store", zap.String("store", env.Store), zap.Error(err))
	}
	defer intconfig.CloseDB()

	broker, err := notify.NewBroker(notify.BrokerConfig{
		Kind:         env.NotifyBroker,
		RedisAddr:    env.RedisAddr,
		KafkaBrokers: env.KafkaBrokers,
		InstanceID:   uuid.NewString(),
	}, notify.NewWatermillLogger(logger))
	if err != nil {
		logger.Fatal("notification broker", zap.Error(err))
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Warn("close broker", zap.Error(err))
		}
	}()

	hub := notify.NewHub(broker.Subscriber)
	if err := hub.Start(ctx); err != nil {
		logger.Fatal("start notification hub", zap.Error(err))
	}

	dispatcher := notify.NewDispatcher(store, broker.Publisher)
	l := ledger.New()
	auth := services.AuthService{Store: store, Notify: dispatcher, Secret: []byte(env.JWTSecret), TokenTTL: env.TokenTTL}
	trips := services.TripService{Store: store, Ledger: l, Notify: dispatcher}

	if err := auth.EnsureAdmin(ctx, env.AdminEmail, env.AdminPassword); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}

	go trips.RunSweeper(ctx, env.SweepEvery)

	api := handlers.API{
		Store:    store,
		Auth:     auth,
		Users:    services.UserService{Store: store, Notify: dispatcher},
		Vehicles: services.VehicleService{Store: store},
		Trips:    trips,
		Bookings: services.BookingService{Store: store, Ledger: l, Notify: dispatcher, CancelCutoff: env.CancelCutoff},
		Docs:     services.DocsService{Store: store},
		Notify:   dispatcher,
		Hub:      hub,
	}
	r := router.NewRouter(env, api)

	// Request contexts end on shutdown so open notification streams return.
	// WriteTimeout stays zero for the same streams.
	reqCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return reqCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	go func() {
		logger.Info("server listening", zap.String("addr", env.AppAddr), zap.String("store", env.Store),
			zap.String("broker", broker.Kind))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, env intconfig.Env) (repositories.Store, error) {
	if env.Store == intconfig.StoreMemory {
		return memory.New(), nil
	}
	conn, err := intconfig.ConnectDB(ctx, env.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx, conn); err != nil {
		return nil, err
	}
	return repositories.NewSQLStore(conn), nil
}
