package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Допустимые значения перечислимых настроек
const (
	StorageFS = "fs"
	StorageS3 = "s3"

	QueueStoreMemory = "memory"
	QueueStoreRedis  = "redis"
	QueueStoreSQLite = "sqlite"

	FormatGoogleXML = "google_xml"
	FormatGoogleTSV = "google_tsv"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		RateLimit       int // запросов в минуту на один IP
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
	}

	Kafka struct {
		Brokers      []string
		GroupID      string
		CatalogTopic string // входящие события каталога
		FeedTopic    string // исходящие FeedUpdated
		CommandTopic string // команды api -> worker
		Partitions   int
		Replication  int
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int `mapstructure:"port"`
	}

	Security struct {
		CORSAllowOrigins []string
	}

	Feed struct {
		Format             string
		Folder             string
		FileName           string // шаблон имени файла: {code}, {id}
		BatchSize          int
		AssetURLPrefix     string
		ProductURL         string // шаблон ссылки на товар: {shop}, {slug}, {sku}, {id}, {product_id}
		StrictAvailability bool
		SweepInterval      time.Duration
	}

	Storage struct {
		Driver string
		Root   string
		S3     struct {
			Bucket    string
			Region    string
			Endpoint  string
			Prefix    string
			PathStyle bool
		}
	}

	Queue struct {
		Store      string
		SQLitePath string
		JobTTL     time.Duration
	}

	Upload struct {
		ConnectTimeout time.Duration
		KnownHostsFile string
	}

	Catalog struct {
		TaxRateTTL time.Duration
	}
}

// Load загружает конфигурацию из .env, файла и переменных окружения
func Load(configPath string) (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет перечислимые и обязательные поля
func (c *Config) Validate() error {
	var errs []error

	switch c.Feed.Format {
	case FormatGoogleXML, FormatGoogleTSV:
	default:
		errs = append(errs, fmt.Errorf("feed.format: unknown format %q", c.Feed.Format))
	}
	if c.Feed.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("feed.batchSize must be positive, got %d", c.Feed.BatchSize))
	}

	switch c.Storage.Driver {
	case StorageFS:
		if c.Storage.Root == "" {
			errs = append(errs, errors.New("storage.root is required for fs driver"))
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	switch c.Queue.Store {
	case QueueStoreMemory, QueueStoreRedis:
	case QueueStoreSQLite:
		if c.Queue.SQLitePath == "" {
			errs = append(errs, errors.New("queue.sqlitePath is required for sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.store: unknown store %q", c.Queue.Store))
	}

	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is empty"))
	}

	return errors.Join(errs...)
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Основные настройки
	v.SetDefault("appName", "feed-service")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	// Настройки сервера
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.rateLimit", 1000)

	// Настройки Postgres
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "postgres")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Настройки Kafka
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.groupID", "feed-service")
	v.SetDefault("kafka.catalogTopic", "catalog-events")
	v.SetDefault("kafka.feedTopic", "feed-events")
	v.SetDefault("kafka.commandTopic", "feed-commands")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication", 1)

	// Настройки метрик
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	v.SetDefault("security.corsAllowOrigins", []string{"*"})

	// Настройки фида
	v.SetDefault("feed.format", FormatGoogleXML)
	v.SetDefault("feed.folder", "product-feed")
	v.SetDefault("feed.fileName", "{code}")
	v.SetDefault("feed.batchSize", 1000)
	v.SetDefault("feed.assetURLPrefix", "")
	v.SetDefault("feed.productURL", "")
	v.SetDefault("feed.strictAvailability", false)
	v.SetDefault("feed.sweepInterval", "10m")

	// Хранилище файлов
	v.SetDefault("storage.driver", StorageFS)
	v.SetDefault("storage.root", "./data/assets")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.pathStyle", false)

	// Очереди
	v.SetDefault("queue.store", QueueStoreRedis)
	v.SetDefault("queue.sqlitePath", "./data/jobs.db")
	v.SetDefault("queue.jobTTL", "168h")

	// Выгрузка
	v.SetDefault("upload.connectTimeout", "30s")
	v.SetDefault("upload.knownHostsFile", "")

	// Каталог
	v.SetDefault("catalog.taxRateTTL", "5m")
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables(v *viper.Viper) {
	bindings := map[string]string{
		// Основные настройки
		"appName":  "APP_NAME",
		"version":  "APP_VERSION",
		"logLevel": "LOG_LEVEL",
		"env":      "APP_ENV",

		// Настройки сервера
		"server.host":            "SERVER_HOST",
		"server.port":            "SERVER_PORT",
		"server.readTimeout":     "SERVER_READ_TIMEOUT",
		"server.writeTimeout":    "SERVER_WRITE_TIMEOUT",
		"server.shutdownTimeout": "SERVER_SHUTDOWN_TIMEOUT",
		"server.rateLimit":       "SERVER_RATE_LIMIT",

		// Настройки Postgres
		"postgres.host":     "POSTGRES_HOST",
		"postgres.port":     "POSTGRES_PORT",
		"postgres.user":     "POSTGRES_USER",
		"postgres.password": "POSTGRES_PASSWORD",
		"postgres.dbname":   "POSTGRES_DBNAME",
		"postgres.sslmode":  "POSTGRES_SSLMODE",
		"postgres.timeout":  "POSTGRES_TIMEOUT",
		"postgres.poolSize": "POSTGRES_POOL_SIZE",

		// Настройки Redis
		"redis.host":     "REDIS_HOST",
		"redis.port":     "REDIS_PORT",
		"redis.password": "REDIS_PASSWORD",
		"redis.db":       "REDIS_DB",

		// Настройки Kafka
		"kafka.brokers":      "KAFKA_BROKERS",
		"kafka.groupID":      "KAFKA_GROUP_ID",
		"kafka.catalogTopic": "KAFKA_CATALOG_TOPIC",
		"kafka.feedTopic":    "KAFKA_FEED_TOPIC",
		"kafka.commandTopic": "KAFKA_COMMAND_TOPIC",
		"kafka.partitions":   "KAFKA_PARTITIONS",
		"kafka.replication":  "KAFKA_REPLICATION",

		// Настройки метрик
		"metrics.enabled":  "METRICS_ENABLED",
		"metrics.endpoint": "METRICS_ENDPOINT",
		"metrics.port":     "METRICS_PORT",

		"security.corsAllowOrigins": "CORS_ALLOW_ORIGINS",

		// Настройки фида
		"feed.format":             "FEED_FORMAT",
		"feed.folder":             "FEED_FOLDER",
		"feed.fileName":           "FEED_FILE_NAME",
		"feed.batchSize":          "FEED_BATCH_SIZE",
		"feed.assetURLPrefix":     "FEED_ASSET_URL_PREFIX",
		"feed.productURL":         "FEED_PRODUCT_URL",
		"feed.strictAvailability": "FEED_STRICT_AVAILABILITY",
		"feed.sweepInterval":      "FEED_SWEEP_INTERVAL",

		"storage.driver":       "STORAGE_DRIVER",
		"storage.root":         "ASSET_UPLOAD_DIR",
		"storage.s3.bucket":    "S3_BUCKET",
		"storage.s3.region":    "AWS_REGION",
		"storage.s3.endpoint":  "S3_ENDPOINT",
		"storage.s3.prefix":    "S3_PREFIX",
		"storage.s3.pathStyle": "S3_PATH_STYLE",

		"queue.store":      "QUEUE_STORE",
		"queue.sqlitePath": "QUEUE_SQLITE_PATH",
		"queue.jobTTL":     "QUEUE_JOB_TTL",

		"upload.connectTimeout": "UPLOAD_CONNECT_TIMEOUT",
		"upload.knownHostsFile": "UPLOAD_KNOWN_HOSTS_FILE",

		"catalog.taxRateTTL": "CATALOG_TAX_RATE_TTL",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}
