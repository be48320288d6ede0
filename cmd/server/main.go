package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/authgate/internal/api"
	"github.com/wuwenbin0122/authgate/internal/auth"
	"github.com/wuwenbin0122/authgate/internal/db"
	"github.com/wuwenbin0122/authgate/internal/metrics"
	"github.com/wuwenbin0122/authgate/internal/utils"
)

func main() {
	if err := utils.LoadEnvFiles(); err != nil {
		log.Printf("config: failed to read .env: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Warn("configuration incomplete; auth requests will fail until it is provided", zap.Error(err))
	}

	gin.SetMode(cfg.GinMode)

	m := metrics.New()
	guard := auth.NewGuard(auth.GuardConfig{
		StoreURI: cfg.Mongo.URI,
		Secret:   cfg.JWTSecret,
	}, mongoConnector(cfg.Mongo), logger.Named("store"), m)
	authService := auth.NewService(guard, cfg.JWTSecret, logger.Named("auth"))

	router, err := api.NewRouter(api.RouterOptions{
		AuthService:    authService,
		Metrics:        m,
		Logger:         logger.Named("http"),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := guard.Close(shutdownCtx); err != nil {
		logger.Error("mongo: close error", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

// mongoConnector opens the Mongo deployment, ensures the unique user indexes
// and exposes the users collection as the guard's repository.
func mongoConnector(cfg utils.MongoConfig) auth.ConnectFunc {
	return func(ctx context.Context) (*auth.Connection, error) {
		store, err := db.NewMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}

		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}

		return &auth.Connection{
			Users: db.NewMongoUserRepository(store.Users),
			Close: store.Close,
		}, nil
	}
}
