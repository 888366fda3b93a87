package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int            `toml:"server_port"`
	LogLevel   string         `toml:"log_level"`
	Database   DatabaseConfig `toml:"database"`
	Auth       AuthConfig     `toml:"auth"`
	Storage    StorageConfig  `toml:"storage"`
	MQ         MQConfig       `toml:"mq"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"name"`
	UseSSL   bool   `toml:"use_ssl"`
}

type AuthConfig struct {
	JWTSecret string        `toml:"jwt_secret"`
	TokenTTL  time.Duration `toml:"token_ttl"`
}

// StorageConfig selects and configures the media host. Backend is one of
// "minio", "gcs", "s3" or empty to disable uploads.
type StorageConfig struct {
	Backend       string      `toml:"backend"`
	PublicBaseURL string      `toml:"public_base_url"`
	Minio         MinioConfig `toml:"minio"`
	GCS           GCSConfig   `toml:"gcs"`
	S3            S3Config    `toml:"s3"`
}

type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `toml:"bucket"`
	ProjectID       string `toml:"project_id"`
	CredentialsFile string `toml:"credentials_file"`
}

type S3Config struct {
	Bucket   string `toml:"bucket"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// MQConfig selects and configures the notification bus. Backend is one of
// "rabbitmq", "pubsub", "nats" or empty for a no-op bus.
type MQConfig struct {
	Backend  string         `toml:"backend"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
	PubSub   PubSubConfig   `toml:"pubsub"`
	NATS     NATSConfig     `toml:"nats"`
}

type RabbitMQConfig struct {
	URL             string `toml:"url"`
	Exchange        string `toml:"exchange"`
	QueueDurable    bool   `toml:"queue_durable"`
	QueueAutoDelete bool   `toml:"queue_auto_delete"`
	PrefetchCount   int    `toml:"prefetch_count"`
}

type PubSubConfig struct {
	ProjectID          string `toml:"project_id"`
	CredentialsFile    string `toml:"credentials_file"`
	SubscriptionSuffix string `toml:"subscription_suffix"`
}

type NATSConfig struct {
	URL string `toml:"url"`
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			slog.Warn("failed to read config file, using environment only", "path", path, "error", err)
		}
	}

	db := &cfg.Database
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnvInt("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.DBName = getEnv("DB_NAME", db.DBName)
	db.UseSSL = getEnvBool("DB_USE_SSL", db.UseSSL)

	cfg.ServerPort = getEnvInt("SERVER_PORT", cfg.ServerPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Auth.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", cfg.Auth.JWTSecret))
	cfg.Auth.TokenTTL = getEnvDuration("JWT_TTL", cfg.Auth.TokenTTL)

	st := &cfg.Storage
	st.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", st.Backend))
	st.PublicBaseURL = getEnv("STORAGE_PUBLIC_BASE_URL", st.PublicBaseURL)
	st.Minio.Endpoint = getEnv("MINIO_ENDPOINT", st.Minio.Endpoint)
	st.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", st.Minio.AccessKey)
	st.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", st.Minio.SecretKey)
	st.Minio.Bucket = getEnv("MINIO_BUCKET", st.Minio.Bucket)
	st.Minio.UseSSL = getEnvBool("MINIO_USE_SSL", st.Minio.UseSSL)
	st.GCS.Bucket = getEnv("GCS_BUCKET", st.GCS.Bucket)
	st.GCS.ProjectID = getEnv("GCS_PROJECT_ID", st.GCS.ProjectID)
	st.GCS.CredentialsFile = getEnv("GCS_CREDENTIALS_FILE", st.GCS.CredentialsFile)
	st.S3.Bucket = getEnv("S3_BUCKET", st.S3.Bucket)
	st.S3.Region = getEnv("S3_REGION", st.S3.Region)
	st.S3.Endpoint = getEnv("S3_ENDPOINT", st.S3.Endpoint)

	mq := &cfg.MQ
	mq.Backend = strings.ToLower(getEnv("MQ_BACKEND", mq.Backend))
	mq.RabbitMQ.URL = getEnv("RABBITMQ_URL", mq.RabbitMQ.URL)
	mq.RabbitMQ.Exchange = getEnv("RABBITMQ_EXCHANGE", mq.RabbitMQ.Exchange)
	mq.RabbitMQ.QueueDurable = getEnvBool("RABBITMQ_QUEUE_DURABLE", mq.RabbitMQ.QueueDurable)
	mq.RabbitMQ.QueueAutoDelete = getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", mq.RabbitMQ.QueueAutoDelete)
	mq.RabbitMQ.PrefetchCount = getEnvInt("RABBITMQ_PREFETCH_COUNT", mq.RabbitMQ.PrefetchCount)
	mq.PubSub.ProjectID = getEnv("PUBSUB_PROJECT_ID", mq.PubSub.ProjectID)
	mq.PubSub.CredentialsFile = getEnv("PUBSUB_CREDENTIALS_FILE", mq.PubSub.CredentialsFile)
	mq.PubSub.SubscriptionSuffix = getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", mq.PubSub.SubscriptionSuffix)
	mq.NATS.URL = getEnv("NATS_URL", mq.NATS.URL)

	return cfg
}

func defaultConfig() Config {
	return Config{
		ServerPort: 4050,
		LogLevel:   "info",
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "boogle",
			Password: "password",
			DBName:   "boogle_db",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			Minio: MinioConfig{Endpoint: "localhost:9000", Bucket: "boogle"},
			S3:    S3Config{Region: "us-east-1"},
		},
		MQ: MQConfig{
			RabbitMQ: RabbitMQConfig{Exchange: "boogle.events", QueueDurable: true},
			PubSub:   PubSubConfig{SubscriptionSuffix: "-sub"},
		},
	}
}

// SlogLevel maps the configured level name to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil || value <= 0 {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
