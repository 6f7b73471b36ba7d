package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/Aidin1998/botcontrol/api"
	"github.com/Aidin1998/botcontrol/internal/audit"
	"github.com/Aidin1998/botcontrol/internal/cache"
	"github.com/Aidin1998/botcontrol/internal/config"
	"github.com/Aidin1998/botcontrol/internal/database"
	"github.com/Aidin1998/botcontrol/internal/identities"
	"github.com/Aidin1998/botcontrol/internal/markets"
	"github.com/Aidin1998/botcontrol/internal/servicecontrol"
	"github.com/Aidin1998/botcontrol/internal/telemetry"
	"github.com/Aidin1998/botcontrol/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logFormat := "json"
	if !cfg.IsProduction() {
		logFormat = "console"
	}
	zapLogger, err := logger.NewLogger(cfg.LogLevel, logFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	// Tracing: request spans always carry ids; export is optional
	tracerProvider, err := telemetry.Setup(telemetry.Config{
		ServiceName: "botcontrol",
		Version:     cfg.Version,
		Exporter:    cfg.Tracing.Exporter,
	})
	if err != nil {
		zapLogger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	// Connect to MongoDB
	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		zapLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	db := mongoClient.Database(cfg.Mongo.Database)
	zapLogger.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	userStore := identities.NewMongoStore(db.Collection(cfg.Mongo.UsersCollection))
	if err := userStore.EnsureIndexes(ctx); err != nil {
		zapLogger.Warn("Failed to create user indexes", zap.Error(err))
	}

	// Optional stats cache
	var statsCache cache.Cache
	if cfg.Redis.Address != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zapLogger.Warn("Redis unavailable, stats cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			statsCache = cache.NewRedisCache(redisClient, "markets", cfg.Redis.StatsTTL)
		}
	}

	// Optional broker for worker control
	var broker servicecontrol.Broker
	if cfg.RabbitMQ.URL != "" {
		broker = servicecontrol.NewAMQPBroker(cfg.RabbitMQ.URL)
	} else {
		zapLogger.Warn("RABBITMQ_URL not set, worker control disabled")
	}

	// Audit trail: always logged, optionally mirrored to Kafka
	sinks := audit.Multi{audit.NewLogSink(zapLogger)}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.AuditTopic != "" {
		sinks = append(sinks, audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, zapLogger))
	}
	recorder := audit.NewRecorder(zapLogger, sinks)

	// Create services
	identitiesSvc := identities.NewService(
		zapLogger.Named("identities"),
		userStore,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.ExpirationHours)*time.Hour,
	)
	marketsSvc := markets.NewService(
		zapLogger.Named("markets"),
		markets.NewMongoStore(db.Collection(cfg.Mongo.MarketsCollection)),
		statsCache,
		cfg.Redis.StatsTTL,
	)
	monitor := servicecontrol.NewMonitor(zapLogger.Named("monitor"), broker, servicecontrol.MonitorConfig{
		Exchange:     cfg.RabbitMQ.Exchange,
		RoutingKey:   cfg.RabbitMQ.HeartbeatRoutingKey,
		HeartbeatTTL: cfg.RabbitMQ.HeartbeatTTL,
	}, time.Now)
	commands := servicecontrol.NewCommandPublisher(
		zapLogger.Named("commands"),
		broker,
		cfg.RabbitMQ.NotificationQueue,
		cfg.RabbitMQ.PublishTimeout,
	)

	apiServer := api.NewServer(zapLogger, identitiesSvc, marketsSvc, monitor, commands, api.Options{
		Environment:    cfg.Environment,
		Version:        cfg.Version,
		FrontendURL:    cfg.Server.FrontendURL,
		LoginPerMinute: cfg.Server.LoginPerMinute,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		DB:             database.MongoPinger{Client: mongoClient},
		Audit:          recorder,
		TracerProvider: tracerProvider,
	})

	// Start server in a goroutine
	go func() {
		if err := apiServer.Start(cfg.Addr()); err != nil {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	// Wait for interrupt to shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down API server", zap.Error(err))
	}
	if err := monitor.Close(); err != nil {
		zapLogger.Error("Failed to stop heartbeat monitor", zap.Error(err))
	}
	if err := recorder.Close(); err != nil {
		zapLogger.Error("Failed to flush audit sinks", zap.Error(err))
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		zapLogger.Error("Failed to disconnect from MongoDB", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to flush traces", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
