package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/SandaminiI/serandib-microservices/common/broker"
	"github.com/SandaminiI/serandib-microservices/common/config"
	"github.com/SandaminiI/serandib-microservices/common/logger"
	"github.com/SandaminiI/serandib-microservices/common/metrics"
	"github.com/SandaminiI/serandib-microservices/common/tracing"
	"github.com/SandaminiI/serandib-microservices/discovery"
	"github.com/SandaminiI/serandib-microservices/discovery/consul"
)

var (
	serviceName = "cart"
	httpAddr    = config.GetEnv("HTTP_ADDR", "localhost:8082")
	consulAddr  = config.GetEnv("CONSUL_ADDR", "localhost:8500")
	amqpUser    = config.GetEnv("RABBITMQ_USER", "guest")
	amqpPass    = config.GetEnv("RABBITMQ_PASS", "guest")
	amqpHost    = config.GetEnv("RABBITMQ_HOST", "localhost")
	amqpPort    = config.GetEnv("RABBITMQ_PORT", "5672")
	// PostgreSQL holds the product catalog and stock ledger
	postgresHost = config.GetEnv("POSTGRES_HOST", "localhost")
	postgresPort = config.GetEnv("POSTGRES_PORT", "5432")
	postgresUser = config.GetEnv("POSTGRES_USER", "cart")
	postgresPass = config.GetEnv("POSTGRES_PASSWORD", "cart123")
	postgresDB   = config.GetEnv("POSTGRES_DB", "cart")
	// MongoDB holds the carts, Redis caches product display data
	mongoURI  = config.GetEnv("MONGO_URI", "mongodb://localhost:27017")
	redisAddr = config.GetEnv("REDIS_ADDR", "localhost:6379")
	redisTTL  = config.GetEnvDuration("REDIS_TTL", 5*time.Minute)

	checkInterval = config.GetEnvDuration("CONSISTENCY_CHECK_INTERVAL", 30*time.Second)
	checkGrace    = config.GetEnvDuration("CONSISTENCY_CHECK_GRACE", 10*time.Second)
)

func main() {
	zlog, _ := zap.NewProduction()
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	log := logger.NewLogger(serviceName)

	shutdownTracer, err := tracing.InitTracer(serviceName)
	if err != nil {
		zlog.Fatal("could not set global tracer", zap.Error(err))
	}
	defer shutdownTracer()

	registry, err := consul.NewRegistry(consulAddr)
	if err != nil {
		zlog.Fatal("failed to connect to consul", zap.Error(err))
	}

	ctx := context.Background()
	instanceID := discovery.GenerateInstanceID(serviceName)
	registration, err := RegisterService(ctx, registry, instanceID, serviceName, httpAddr)
	if err != nil {
		zlog.Fatal("failed to register service", zap.Error(err))
	}
	defer registration.Deregister(ctx)

	// Product catalog + stock ledger on PostgreSQL
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPass, postgresHost, postgresPort, postgresDB)

	store, err := NewPostgresStore(connStr)
	if err != nil {
		zlog.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer store.Close()

	zlog.Info("Connected to PostgreSQL", zap.String("database", postgresDB))

	cache, err := NewProductCache(redisAddr, redisTTL)
	if err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer cache.Close()

	zlog.Info("Connected to Redis", zap.String("addr", redisAddr), zap.Duration("ttl", redisTTL))

	catalog := NewCachedCatalog(store, cache)

	// Carts live in MongoDB, one document per customer
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		zlog.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)

	zlog.Info("Connected to MongoDB", zap.String("uri", mongoURI))

	cartStore := NewMongoCartStore(mongoClient)

	ch, closeBroker, err := broker.Connect(amqpUser, amqpPass, amqpHost, amqpPort)
	if err != nil {
		zlog.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer func() {
		closeBroker()
		ch.Close()
	}()

	publisher := NewAMQPPublisher(ch)
	journal := NewReservationJournal()

	cartMetrics := metrics.NewCartMetrics(serviceName)

	svc := NewService(store, cartStore, catalog, journal, publisher, log)
	svcWithTelemetry := NewTelemetryMiddleware(svc, cartMetrics)

	consumer := NewConsumer(svcWithTelemetry, log)
	go func() {
		if err := consumer.Listen(ch); err != nil {
			zlog.Fatal("failed to start consumer", zap.Error(err))
		}
	}()

	checker := NewConsistencyChecker(store, cartStore, catalog, journal, publisher, log, cartMetrics, checkGrace)
	go checker.Run(ctx, checkInterval)

	identity := NewHTTPIdentityResolver(registry)

	mux := http.NewServeMux()
	handler := NewHandler(svcWithTelemetry, identity, log)
	handler.registerRoutes(mux)

	httpMetrics := metrics.NewHTTPMetrics(serviceName)
	srv := &http.Server{
		Addr:    httpAddr,
		Handler: corsMiddleware(metricsMiddleware(mux, httpMetrics)),
	}

	zlog.Info("Starting HTTP server", zap.String("addr", httpAddr))
	if err := srv.ListenAndServe(); err != nil {
		zlog.Fatal("failed to start http server", zap.Error(err))
	}
}
