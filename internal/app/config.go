package app

import (
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/blob"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverMySQL    = "mysql"
	StorageDriverSQLite   = "sqlite"
)

// Config описывает настройки запуска приложения.
// Значения только скалярные, чтобы конфигурации можно было сравнивать.
type Config struct {
	GRPCAddr string
	HTTPAddr string

	StorageDriver string
	PostgresDSN   string
	MySQLDSN      string
	SQLitePath    string
	AutoMigrate   bool

	// RedisAddr пустой: кэш каталога, сессии и блокировки живут в памяти процесса.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CatalogCacheTTL time.Duration
	SessionTTL      time.Duration
	SubmitLockTTL   time.Duration

	// KafkaBrokers — список через запятую; пустой отключает Kafka.
	KafkaBrokers string
	KafkaTopic   string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	SessionCleanupInterval  time.Duration
	SessionCleanupBatchSize int

	BlobDriver  string
	BlobRoot    string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	// AuthSecret пустой: проверка токенов отключена.
	AuthSecret string
	// CORSOrigins — список через запятую.
	CORSOrigins string
}

// DefaultConfig возвращает настройки для локального запуска в памяти.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                ":50051",
		HTTPAddr:                ":9090",
		StorageDriver:           StorageDriverMemory,
		AutoMigrate:             true,
		CatalogCacheTTL:         30 * time.Second,
		SessionTTL:              12 * time.Hour,
		SubmitLockTTL:           30 * time.Second,
		KafkaTopic:              kafka.TopicOrderEvents,
		OutboxPollInterval:      time.Second,
		OutboxBatchSize:         100,
		OutboxMaxAttempts:       3,
		OutboxRetryDelay:        100 * time.Millisecond,
		SessionCleanupInterval:  10 * time.Minute,
		SessionCleanupBatchSize: 500,
		BlobDriver:              string(blob.DriverMemory),
	}
}

// BlobConfig собирает настройки хранилища выгрузок.
func (c Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.BlobDriver),
		Root:   c.BlobRoot,
		S3: blob.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			PathStyle: c.S3PathStyle,
		},
	}
}

// KafkaBrokerList разбирает KafkaBrokers, пропуская пустые элементы.
func (c Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// CORSOriginList разбирает CORSOrigins.
func (c Config) CORSOriginList() []string {
	return splitList(c.CORSOrigins)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
