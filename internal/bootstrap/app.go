package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/getf1tickets/order-service/configs"
	"github.com/getf1tickets/order-service/internal/adapter/cache"
	apphttp "github.com/getf1tickets/order-service/internal/adapter/http"
	"github.com/getf1tickets/order-service/internal/adapter/http/middleware"
	"github.com/getf1tickets/order-service/internal/adapter/kafka"
	"github.com/getf1tickets/order-service/internal/adapter/queue"
	"github.com/getf1tickets/order-service/internal/adapter/repo"
	"github.com/getf1tickets/order-service/internal/logging"
	"github.com/getf1tickets/order-service/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

// Init wires the whole service: storage, caches, broker, consumers,
// usecases, HTTP. The returned cleanup closes everything and stops the
// background workers.
func Init(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	log := logging.Init(cfg.App.Name, cfg.App.LogFile)

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("ping mysql: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	producer, err := queue.NewRabbitProducer(ch, cfg.Rabbit.Exchange)
	if err != nil {
		return nil, nil, err
	}

	orderRepo := repo.NewMySQLOrderRepo(db)
	outboxRepo := repo.NewMySQLOutboxRepo(db)
	userRepo := repo.NewMySQLUserRepo(db)
	catalog := cache.NewRedisCatalogCache(repo.NewMySQLProductRepo(db), rdb, cfg.Cache.ProductTTL)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisStatusCache(rdb, cfg.Cache.StatusTTL)

	workerCtx, stopWorkers := context.WithCancel(context.Background())

	dispatcher := queue.NewOutboxDispatcher(outboxRepo, producer, logging.New("outbox"))
	dispatcher.Interval = cfg.Outbox.PollInterval
	dispatcher.BatchSize = cfg.Outbox.BatchSize
	dispatcher.MaxRetries = cfg.Outbox.MaxRetries
	dispatcher.Backoff = cfg.Outbox.Backoff
	go dispatcher.Start(workerCtx)

	group, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		stopWorkers()
		return nil, nil, fmt.Errorf("kafka group: %w", err)
	}
	statusHandler := kafka.NewOrderStatusChangedHandler(orderRepo, statusCache)
	consumer := kafka.NewConsumer(group, []string{cfg.Kafka.StatusTopic}, statusHandler.Handle, logging.New("kafka"))
	go func() {
		if err := consumer.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Error("kafka consumer stopped", "err", err)
		}
	}()

	createUC := usecase.NewCreateOrder(catalog, orderRepo, idem)
	getUC := usecase.NewGetOrder(orderRepo)
	statsUC := usecase.NewGetOrderStats(orderRepo)

	h := apphttp.NewOrderHandler(createUC, getUC, statsUC)
	auth := middleware.NewAuth(cfg, userRepo)
	router := apphttp.NewRouter(h, auth)

	cleanup := func() {
		stopWorkers()
		_ = group.Close()
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
		_ = db.Close()
	}
	return &App{Router: router}, cleanup, nil
}
