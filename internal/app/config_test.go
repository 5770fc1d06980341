package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/blob"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("expected HTTPAddr :9090, got %s", cfg.HTTPAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if !cfg.AutoMigrate {
		t.Error("expected AutoMigrate to be true")
	}
	if cfg.CatalogCacheTTL != 30*time.Second {
		t.Errorf("expected CatalogCacheTTL 30s, got %s", cfg.CatalogCacheTTL)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("expected SessionTTL 12h, got %s", cfg.SessionTTL)
	}
	if cfg.SubmitLockTTL != 30*time.Second {
		t.Errorf("expected SubmitLockTTL 30s, got %s", cfg.SubmitLockTTL)
	}
	if cfg.KafkaTopic != kafka.TopicOrderEvents {
		t.Errorf("expected KafkaTopic %s, got %s", kafka.TopicOrderEvents, cfg.KafkaTopic)
	}
	if cfg.OutboxPollInterval <= 0 {
		t.Error("expected OutboxPollInterval to be > 0")
	}
	if cfg.OutboxBatchSize <= 0 {
		t.Error("expected OutboxBatchSize to be > 0")
	}
	if cfg.OutboxMaxAttempts <= 0 {
		t.Error("expected OutboxMaxAttempts to be > 0")
	}
	if cfg.OutboxRetryDelay < 0 {
		t.Error("expected OutboxRetryDelay to be >= 0")
	}
	if cfg.SessionCleanupInterval <= 0 {
		t.Error("expected SessionCleanupInterval to be > 0")
	}
	if cfg.SessionCleanupBatchSize <= 0 {
		t.Error("expected SessionCleanupBatchSize to be > 0")
	}
	if cfg.BlobDriver != string(blob.DriverMemory) {
		t.Errorf("expected BlobDriver memory, got %s", cfg.BlobDriver)
	}
	if cfg.RedisAddr != "" || cfg.KafkaBrokers != "" || cfg.AuthSecret != "" {
		t.Error("optional integrations must be disabled by default")
	}
}

func TestConfig_ZeroValue(t *testing.T) {
	var cfg Config

	if cfg.GRPCAddr != "" {
		t.Errorf("zero value GRPCAddr should be empty, got %s", cfg.GRPCAddr)
	}
	if cfg.HTTPAddr != "" {
		t.Errorf("zero value HTTPAddr should be empty, got %s", cfg.HTTPAddr)
	}
	if cfg.StorageDriver != "" {
		t.Errorf("expected empty StorageDriver, got %s", cfg.StorageDriver)
	}
	if cfg.AutoMigrate {
		t.Error("expected AutoMigrate to be false for zero value")
	}
}

func TestConfig_Comparison(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg2 := DefaultConfig()

	if cfg1 != cfg2 {
		t.Error("two DefaultConfig instances should be equal")
	}

	cfg2.GRPCAddr = ":8080"
	if cfg1 == cfg2 {
		t.Error("modified config should not be equal to original")
	}
	if cfg1.GRPCAddr != ":50051" {
		t.Error("original config was modified")
	}
}

func TestConfig_BlobConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlobDriver = "s3"
	cfg.BlobRoot = "/var/lib/orderdesk"
	cfg.S3Bucket = "dispatch"
	cfg.S3Region = "eu-central-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.S3PathStyle = true

	got := cfg.BlobConfig()
	require.Equal(t, blob.DriverS3, got.Driver)
	require.Equal(t, "/var/lib/orderdesk", got.Root)
	require.Equal(t, "dispatch", got.S3.Bucket)
	require.Equal(t, "eu-central-1", got.S3.Region)
	require.Equal(t, "http://localhost:9000", got.S3.Endpoint)
	require.True(t, got.S3.PathStyle)
}

func TestConfig_Lists(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "localhost:9092", want: []string{"localhost:9092"}},
		{name: "with spaces", raw: "broker1:9092, broker2:9092 ,broker3:9092", want: []string{"broker1:9092", "broker2:9092", "broker3:9092"}},
		{name: "empty items", raw: ",,broker1:9092,", want: []string{"broker1:9092"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{KafkaBrokers: tc.raw, CORSOrigins: tc.raw}
			require.Equal(t, tc.want, cfg.KafkaBrokerList())
			require.Equal(t, tc.want, cfg.CORSOriginList())
		})
	}
}
