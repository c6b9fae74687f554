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
	"github.com/athebyme/gomarket-platform/services/feed-service/config"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/messaging"
	postgres "github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/transfer"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/bootstrap"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/encoder"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

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

	log.Info("Инициализация воркера",
		interfaces.Field("app_name", cfg.AppName+"-worker"),
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
		log.Fatal("Ошибка инициализации хранилища арендаторов", interfaces.ErrField(err))
	}
	catalog, err := postgres.NewCatalogStorage(pool, cfg.Catalog.TaxRateTTL)
	if err != nil {
		log.Fatal("Ошибка инициализации каталога", interfaces.ErrField(err))
	}

	jobStore, err := bootstrap.NewJobStore(ctx, cfg)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища задач", interfaces.ErrField(err))
	}
	defer jobStore.Close()

	blobs, err := bootstrap.NewBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища файлов", interfaces.ErrField(err))
	}

	messagingClient, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.GroupID, log)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями", interfaces.ErrField(err))
	}
	defer messagingClient.Close()

	topics := []string{cfg.Kafka.CatalogTopic, cfg.Kafka.FeedTopic, cfg.Kafka.CommandTopic}
	if err := messagingClient.EnsureTopics(ctx, topics, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
		// топики могли создать заранее без прав на администрирование
		log.Warn("Не удалось создать топики", interfaces.ErrField(err))
	}
	log.Info("Система обмена сообщениями инициализирована")

	enc, err := encoder.New(cfg.Feed.Format)
	if err != nil {
		log.Fatal("Неизвестный формат фида", interfaces.ErrField(err))
	}

	builder := services.NewFeedBuilder(tenants, catalog, enc, blobs, messagingClient, services.BuilderOptions{
		Folder:    cfg.Feed.Folder,
		FileName:  services.NewFileNamer(cfg.Feed.FileName),
		BatchSize: cfg.Feed.BatchSize,
		FeedTopic: cfg.Kafka.FeedTopic,
		Encoder: encoder.Options{
			AssetURLPrefix:     cfg.Feed.AssetURLPrefix,
			ProductURL:         encoder.NewProductURLTemplate(cfg.Feed.ProductURL),
			StrictAvailability: cfg.Feed.StrictAvailability,
		},
	}, log)
	buildQueue := jobs.NewQueue[models.BuildPayload](jobs.BuildQueue, jobStore, builder.Handle, log)

	// очередь выгрузки и сервис ссылаются друг на друга
	var uploads *services.UploadService
	uploadQueue := jobs.NewQueue[models.UploadPayload](jobs.UploadQueue, jobStore,
		func(ctx context.Context, p models.UploadPayload, progress jobs.ProgressFunc) (any, error) {
			return uploads.Handle(ctx, p, progress)
		}, log)
	sftpClient := transfer.NewSFTPClient(transfer.Options{
		ConnectTimeout: cfg.Upload.ConnectTimeout,
		KnownHostsFile: cfg.Upload.KnownHostsFile,
	}, log)
	uploads = services.NewUploadService(tenants, blobs, sftpClient, uploadQueue, log)

	feedService := services.NewFeedService(tenants, services.NewQueueScheduler(buildQueue), buildQueue, blobs, log)
	trigger := services.NewRebuildTrigger(tenants, log)
	commands := services.NewCommandHandler(buildQueue, feedService, log)

	for _, recoverable := range []interface {
		Name() string
		Recover(ctx context.Context) (int, error)
	}{buildQueue, uploadQueue} {
		n, err := recoverable.Recover(ctx)
		if err != nil {
			log.Fatal("Ошибка восстановления очереди",
				interfaces.Field("queue", recoverable.Name()), interfaces.ErrField(err))
		}
		log.Info("Очередь восстановлена",
			interfaces.Field("queue", recoverable.Name()), interfaces.Field("adopted", n))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return buildQueue.Run(gctx) })
	g.Go(func() error { return uploadQueue.Run(gctx) })

	subscriptions := map[string]interfaces.MessageHandler{
		cfg.Kafka.CatalogTopic: trigger.HandleCatalogEvent,
		cfg.Kafka.FeedTopic:    uploads.HandleFeedUpdated,
		cfg.Kafka.CommandTopic: commands.HandleCommand,
	}
	for topic, handler := range subscriptions {
		unsubscribe, err := messagingClient.Subscribe(gctx, topic, handler)
		if err != nil {
			log.Fatal("Ошибка подписки на топик", interfaces.Field("topic", topic), interfaces.ErrField(err))
		}
		log.Info("Подписка установлена", interfaces.Field("topic", topic))

		g.Go(func() error {
			<-gctx.Done()
			log.Info("Отмена подписки", interfaces.Field("topic", topic))
			return unsubscribe()
		})
	}

	sweeper := services.NewSweepScheduler(feedService, services.SweepConfig{
		Interval: cfg.Feed.SweepInterval,
	}, log)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Metrics.Enabled {
		metricsServer := newMetricsServer(cfg)
		g.Go(func() error {
			log.Info("Запуск HTTP сервера для метрик", interfaces.Field("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	log.Info("Воркер запущен и готов к обработке сообщений")
	if err := g.Wait(); err != nil {
		log.Error("Воркер завершился с ошибкой", interfaces.ErrField(err))
		return
	}
	log.Info("Воркер корректно завершил работу")
}

func newMetricsServer(cfg *config.Config) *http.Server {
	endpoint := cfg.Metrics.Endpoint
	if endpoint == "" {
		endpoint = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
