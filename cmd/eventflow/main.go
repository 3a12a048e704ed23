package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	config "github.com/davicafu/eventflow/internal/config"

	analyticsClickhouse "github.com/davicafu/eventflow/internal/analytics/clickhouse"
	"github.com/davicafu/eventflow/internal/delivery"
	adminHttp "github.com/davicafu/eventflow/internal/inbound/http"
	integrationEvents "github.com/davicafu/eventflow/internal/integration/events"
	sharedCache "github.com/davicafu/eventflow/internal/shared/cache"
	"github.com/davicafu/eventflow/internal/shared/eventlog"
	"github.com/davicafu/eventflow/internal/shared/ledger"
	"github.com/davicafu/eventflow/internal/shared/queue"
	"github.com/davicafu/eventflow/internal/shared/repository"

	messageApp "github.com/davicafu/eventflow/internal/message/application"
	messageDomain "github.com/davicafu/eventflow/internal/message/domain"
	messageHttp "github.com/davicafu/eventflow/internal/message/infra/inbound/http"
	messageMongo "github.com/davicafu/eventflow/internal/message/infra/outbound/readmodel/mongodb"
	messageTemplate "github.com/davicafu/eventflow/internal/message/infra/outbound/template"
	messageTransport "github.com/davicafu/eventflow/internal/message/infra/outbound/transport"
	txApp "github.com/davicafu/eventflow/internal/transaction/application"
	txDomain "github.com/davicafu/eventflow/internal/transaction/domain"
	txHttp "github.com/davicafu/eventflow/internal/transaction/infra/inbound/http"
	txSettlement "github.com/davicafu/eventflow/internal/transaction/infra/outbound/settlement"

	"github.com/davicafu/eventflow/pkg/logger"

	// _ "github.com/mattn/go-sqlite3" // requires gcc
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	logger.Init("eventflow") // inicializa zap
	log := logger.Logger()   // obtiene logger estructurado
	defer log.Sync()       // flush buffers al salir

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// ---------------- Redis ----------------
	var rdb *redis.Client
	if cfg.UseRedis {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("⚠️ Redis no disponible, se usan implementaciones en memoria", zap.Error(err))
			rdb = nil
		} else {
			log.Info("✅ Redis conectado")
		}
	}

	// ------------- Event log ---------------
	var logClient eventlog.Client
	if rdb != nil {
		logClient = eventlog.NewRedisLog(rdb)
		log.Info("🚀 Event log sobre Redis Streams")
	} else {
		logClient = eventlog.NewMemoryLog()
		log.Info("⚡️Event log en memoria")
	}

	// --------------- Ledger ----------------
	var processedLedger ledger.Ledger
	if cfg.UsePostgres {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := ledger.InitPostgres(ctx, pool); err != nil {
			log.Fatal("failed to initialize Postgres ledger", zap.Error(err))
		}
		processedLedger = ledger.NewPostgresLedger(pool, cfg.ServiceContext, cfg.LedgerLease)
	} else {
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()
		if err := ledger.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite ledger", zap.Error(err))
		}
		processedLedger = ledger.NewSQLiteLedger(db, cfg.ServiceContext, cfg.LedgerLease)
	}

	// ---------------- Cola -----------------
	var jobQueue queue.Queue
	if rdb != nil {
		jobQueue = queue.NewRedisQueue(rdb, cfg.QueueWorkers, log)
	} else {
		jobQueue = queue.NewMemoryQueue(cfg.QueueWorkers, log)
	}

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	if rdb != nil {
		cacheInstance = sharedCache.NewRedisCache(rdb, cfg.CacheTTL)
	} else {
		cacheInstance = sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
	}

	// ------------- Repositorios ------------
	messageRepo := repository.New(logClient,
		messageDomain.BoundedContext, messageDomain.AggregateType, messageDomain.AggregateVersion,
		func(id string) repository.EventSourced { return messageDomain.NewEmptyMessage(id) },
		cfg.SnapshotEvery, log)

	txRepo := repository.New(logClient,
		txDomain.BoundedContext, txDomain.AggregateType, txDomain.AggregateVersion,
		func(id string) repository.EventSourced { return txDomain.NewEmptyTransaction(id) },
		cfg.SnapshotEvery, log)

	// ------------- Adaptadores -------------
	renderer := messageTemplate.NewInMemoryRenderer()
	transport := messageTransport.NewSlackWebhook(cfg.SlackWebhookURL, 10*time.Second, log)
	settler := txSettlement.NewHTTPSettler(cfg.SettlementURL, 10*time.Second, log)

	// --------------- Servicios -------------
	messageService := messageApp.NewMessageService(messageRepo, transport, renderer, cacheInstance, log)
	txService := txApp.NewTransactionService(txRepo, settler, cacheInstance, log)

	// ------------- Orquestador -------------
	orch := delivery.NewOrchestrator(jobQueue, log)
	jobQueue.Consume(messageDomain.DeliveryQueue, orch.Handler(messageService, messageService.Deliver))
	jobQueue.Consume(txDomain.SettlementQueue, orch.Handler(txService, txService.Settle))
	jobQueue.Start(ctx)
	defer jobQueue.Stop()

	// --------------- Routers ---------------
	messageRouter := delivery.NewRouter(logClient, processedLedger, messageDomain.NewEventRegistry(), orch, log)
	txRouter := delivery.NewRouter(logClient, processedLedger, txDomain.NewEventRegistry(), orch, log)

	if cfg.UseMongo {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer mongoClient.Disconnect(ctx)

		readModel, err := messageMongo.NewMessageReadModelMongo(ctx, mongoClient, "eventflow")
		if err != nil {
			log.Fatal("failed to initialize Mongo read model", zap.Error(err))
		}
		messageRouter.AddProjection(readModel.Projection())
		log.Info("✅ Read model de mensajes sobre MongoDB")
	}

	if cfg.UseClickHouse {
		analytics, err := analyticsClickhouse.NewDeliveryAnalyticsRepo(cfg.ClickHouseAddr, "eventflow", 100, 5*time.Second, log)
		if err != nil {
			log.Fatal("failed to initialize ClickHouse analytics", zap.Error(err))
		}
		defer analytics.Close()
		messageRouter.AddProjection(analytics.Projection())
		txRouter.AddProjection(analytics.Projection())
		log.Info("✅ Analítica de entregas sobre ClickHouse")
	}

	if cfg.UseKafka {
		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		defer writer.Close()

		publisher := integrationEvents.NewKafkaPublisher(writer, log)
		messageRouter.AddProjection(publisher.Projection())
		txRouter.AddProjection(publisher.Projection())
		log.Info("🚀 Eventos de integración hacia Kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	messageSub, err := messageRouter.Run(ctx, messageRepo.Category(), 0)
	if err != nil {
		log.Fatal("failed to start message router", zap.Error(err))
	}
	defer messageSub.Cancel()

	txSub, err := txRouter.Run(ctx, txRepo.Category(), 0)
	if err != nil {
		log.Fatal("failed to start transaction router", zap.Error(err))
	}
	defer txSub.Cancel()

	// ---------------- HTTP ----------------
	messageHandler := messageHttp.NewMessageHandler(messageService)
	txHandler := txHttp.NewTransactionHandler(txService)
	adminHandler := adminHttp.NewAdminHandler(jobQueue)

	router := gin.Default()
	messageHttp.RegisterMessageRoutes(router, messageHandler)
	txHttp.RegisterTransactionRoutes(router, txHandler)
	adminHttp.RegisterAdminRoutes(router, adminHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
