package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/pkg/tx"
	"github.com/athebyme/gomarket-platform/services/feed-service/config"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/messaging"
	postgres "github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/api"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/bootstrap"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/services"
	"golang.org/x/sync/errgroup"
)

// @title Feed Service API
// @version 1.0
// @description Сборка и выдача товарных фидов арендаторов
// @BasePath /
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Инициализация сервиса",
		interfaces.Field("app_name", cfg.AppName),
		interfaces.Field("version", cfg.Version),
		interfaces.Field("env", cfg.ENV),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.NewPostgresPool(ctx, cfg)
	if err != nil {
		log.Fatal("Ошибка подключения к PostgreSQL", interfaces.ErrField(err))
	}
	defer pool.Close()
	log.Info("Соединение с PostgreSQL установлено")

	tenants, err := postgres.NewTenantStorage(pool)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища", interfaces.ErrField(err))
	}
	txManager := tx.NewTxManager(pool, log)

	jobStore, err := bootstrap.NewJobStore(ctx, cfg)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища задач", interfaces.ErrField(err))
	}
	defer jobStore.Close()
	log.Info("Хранилище задач инициализировано", interfaces.Field("store", cfg.Queue.Store))

	blobs, err := bootstrap.NewBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища файлов", interfaces.ErrField(err))
	}

	messagingClient, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-api", log)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями", interfaces.ErrField(err))
	}
	defer messagingClient.Close()
	log.Info("Система обмена сообщениями инициализирована")

	// сборки выполняет воркер, api только записывает задачу и отправляет команду
	dispatcher := services.NewCommandDispatcher(jobStore, messagingClient, cfg.Kafka.CommandTopic, log)
	feedService := services.NewFeedService(tenants, dispatcher, jobStore, blobs, log)
	tenantConfigs := services.NewTenantConfigService(tenants, txManager, log)

	checks := map[string]interfaces.StoragePort{
		"postgres": tenants,
		"kafka":    messagingClient,
	}
	if pinger, ok := jobStore.(interfaces.StoragePort); ok {
		checks["jobs"] = pinger
	}
	if pinger, ok := blobs.(interfaces.StoragePort); ok {
		checks["storage"] = pinger
	}

	router := api.SetupRouter(feedService, tenantConfigs, log, api.RouterConfig{
		CORSAllowOrigins: cfg.Security.CORSAllowOrigins,
		RateLimit:        cfg.Server.RateLimit,
		RequestTimeout:   cfg.Server.WriteTimeout,
		ReadinessChecks:  checks,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Сервер запущен", interfaces.Field("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Сервер завершился с ошибкой", interfaces.ErrField(err))
		return
	}
	log.Info("Сервер корректно завершил работу")
}
