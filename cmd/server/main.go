package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/order-placement-service/internal/adapter/cache"
	"github.com/example/order-placement-service/internal/adapter/httpapi"
	"github.com/example/order-placement-service/internal/adapter/natsstan"
	"github.com/example/order-placement-service/internal/adapter/repo"
	"github.com/example/order-placement-service/internal/config"
	"github.com/example/order-placement-service/internal/domain"
	"github.com/example/order-placement-service/internal/usecase"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	base, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	log := base.With(
		zap.String("service.name", config.ServiceName),
		zap.String("service.version", config.ServiceVersion),
	)
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := repo.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	store := repo.NewPostgresStore(pool)

	var orderCache domain.OrderCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		orderCache = cache.NewRedisOrderCache(rdb, cfg.CacheTTL, log)
		log.Info("using redis order cache", zap.String("addr", cfg.RedisAddr))
	} else {
		orderCache = cache.NewMemoryOrderCache()
	}

	n, err := usecase.LoadCache{Repo: store.Orders(), Cache: orderCache}.Execute(ctx)
	if err != nil {
		return err
	}
	log.Info("order cache warmed up", zap.Int("orders", n))

	create := usecase.CreateOrder{
		Tx:        store,
		Validator: validatorFor(cfg.DuplicateLinePolicy),
		Cache:     orderCache,
		Log:       log,
	}

	if cfg.NATSEnabled {
		sc, err := natsstan.Connect(cfg.STANClusterID, cfg.STANClientID, cfg.NATSURL)
		if err != nil {
			return err
		}
		defer sc.Close()
		create.Events = &natsstan.Publisher{Conn: sc, Subject: cfg.EventSubject}

		sub := &natsstan.Subscriber{Conn: sc, Subject: cfg.RequestSubject, Durable: cfg.Durable, Log: log}
		intake := usecase.ProcessOrderRequest{Create: create, Log: log}
		if err := sub.Subscribe(ctx, intake.Execute); err != nil {
			return err
		}
	}

	api := httpapi.NewServer(usecase.GetOrderByID{Cache: orderCache, Repo: store.Orders(), Log: log}, create, log)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func validatorFor(policy string) usecase.Validator {
	if policy == config.PolicyAggregate {
		return usecase.AggregateValidator{}
	}
	return usecase.PerLineValidator{}
}
