package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ghost.drop/config"
	"ghost.drop/internal/access"
	"ghost.drop/internal/api"
	"ghost.drop/internal/drops"
	"ghost.drop/internal/store"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config error", "error", err)
		os.Exit(1)
	}

	// The redis client, when used, is built once here and injected
	// everywhere that needs it; its lifecycle ends with the process.
	var redisClient *redis.Client
	if cfg.Store.Type == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		defer redisClient.Close()
	}

	st, err := initStore(cfg, redisClient)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	dropSvc := drops.NewService(st, cfg.Drops, log)
	accessSvc := access.NewService(initAccessStore(redisClient), log)

	router := api.SetupRouter(dropSvc, accessSvc, initLimiter(redisClient), cfg, log)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			"addr", cfg.Addr(),
			"base_url", cfg.Server.BaseURL,
			"store", cfg.Store.Type,
			"access_codes", cfg.Access.Enabled,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func initStore(cfg *config.Config, redisClient *redis.Client) (store.Store, error) {
	switch cfg.Store.Type {
	case "redis":
		return store.NewRedisStore(redisClient, cfg.Drops.MaxFailedAttempts)
	default:
		return store.NewMemoryStore(30*time.Second, cfg.Drops.MaxFailedAttempts), nil
	}
}

func initLimiter(redisClient *redis.Client) api.Limiter {
	if redisClient != nil {
		return api.NewRedisLimiter(redisClient)
	}
	return api.NewMemoryLimiter()
}

func initAccessStore(redisClient *redis.Client) access.Store {
	if redisClient != nil {
		return access.NewRedisStore(redisClient)
	}
	return access.NewMemoryStore()
}
