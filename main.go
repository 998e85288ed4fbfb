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
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"filemart/internal/accounts"
	"filemart/internal/app"
	"filemart/internal/config"
	"filemart/internal/database"
	"filemart/internal/downloads"
	"filemart/internal/handlers"
	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/repository"
	"filemart/internal/repository/memory"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal(err)
	}
	cfg := config.AppEnv

	logger := logging.New(cfg.Production())
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, ping, cleanup, err := openStores(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	resolver := downloads.NewMultiResolver().Register(models.StorageLocal, downloads.NewLocalResolver(cfg.UploadDir))
	if cfg.S3Enabled() {
		s3Resolver, err := downloads.NewS3Resolver(ctx, downloads.S3Config{
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Fatal(err)
		}
		resolver.Register(models.StorageS3, s3Resolver)
	}

	services := app.NewServices(cfg, stores, resolver, accounts.NewLogMailer(logger), logger)
	router := app.NewRouter(services, app.RouterOptionsFrom(cfg, ping), logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(ctx, "http server listening", "addr", srv.Addr, "driver", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http server shutdown failed", "err", err)
	}
	logger.Info(shutdownCtx, "http server stopped")
}

func openStores(ctx context.Context, cfg config.Config, logger logging.Logger) (app.Stores, handlers.Pinger, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn(ctx, "using in-memory store, data is lost on restart")
		return app.Stores{
			Users:       memory.NewUsers(),
			Revocations: memory.NewRevocations(),
			Grants:      memory.NewGrants(),
			Orders:      memory.NewOrders(),
			Products:    memory.NewProducts(),
		}, nil, func() {}, nil
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		return app.Stores{}, nil, nil, err
	}
	db := client.Database(cfg.DBName)
	logger.Info(ctx, "mongodb connected", "db", db.Name())

	if err := database.EnsureIndexes(ctx, db, logger); err != nil {
		logger.Warn(ctx, "index setup incomplete", "err", err)
	}

	stores := app.Stores{
		Users:       repository.NewMongoUsers(db),
		Revocations: repository.NewMongoRevocations(db),
		Grants:      repository.NewMongoGrants(db),
		Orders:      repository.NewMongoOrders(db),
		Products:    repository.NewMongoProducts(db),
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unavailable, keeping mongo revocation ledger", "err", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			stores.Revocations = repository.NewRedisRevocations(rdb, cfg.RedisPrefix)
			logger.Info(ctx, "redis revocation ledger enabled", "addr", cfg.RedisAddr)
		}
	}

	ping := func(ctx context.Context) error { return database.Ping(ctx, db) }
	cleanup := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		disconnect(client)
	}
	return stores, ping, cleanup, nil
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Disconnect(ctx)
}
