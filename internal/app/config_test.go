package app

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func noFile(string) ([]byte, error) { return nil, os.ErrNotExist }

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if !cfg.VATPercentage.Equal(decimal.NewFromInt(19)) {
		t.Errorf("expected VAT 19, got %s", cfg.VATPercentage)
	}
	if cfg.InvoiceStart != 1 || cfg.OrderPrefix != "WS" || cfg.ArticleWidth != 6 {
		t.Errorf("unexpected numbering defaults: %+v", cfg)
	}
	if cfg.NotificationTransport != TransportLog {
		t.Errorf("expected log transport, got %s", cfg.NotificationTransport)
	}
	if cfg.OutboxPollInterval <= 0 || cfg.OutboxBatchSize <= 0 || cfg.OutboxMaxAttempts <= 0 {
		t.Error("outbox defaults must be positive")
	}
	if cfg.ProcessedEventTTL <= 0 || cfg.ProcessedEventCleanup <= 0 || cfg.ProcessedEventCleanupBatch <= 0 {
		t.Error("processed event defaults must be positive")
	}
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	yamlFile := []byte(`
grpc_addr: ":6000"
storage_driver: postgres
postgres_dsn: postgres://shop@localhost/shop
vat_percentage: 7
order_prefix: SH
timezone: Europe/Berlin
manager_emails: [ops@example.com]
outbox_poll_interval: 3s
`)
	lookup := envLookup(map[string]string{
		ConfigFileEnv:        "/etc/shop.yaml",
		"SHOP_GRPC_ADDR":     ":7000",
		"SHOP_INVOICE_START": "1000",
		"SHOP_MANAGER_EMAILS": " a@example.com, ,b@example.com ",
	})
	readFile := func(path string) ([]byte, error) {
		if path != "/etc/shop.yaml" {
			return nil, os.ErrNotExist
		}
		return yamlFile, nil
	}

	cfg, err := loadConfig(lookup, readFile)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.GRPCAddr, "env wins over file")
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://shop@localhost/shop", cfg.PostgresDSN)
	assert.True(t, cfg.VATPercentage.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, "SH", cfg.OrderPrefix)
	assert.Equal(t, int64(1000), cfg.InvoiceStart)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.ManagerEmails)
	assert.Equal(t, 3*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, ":9090", cfg.MetricsAddr, "untouched defaults survive")

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		read func(string) ([]byte, error)
	}{
		{
			name: "missing file",
			env:  map[string]string{ConfigFileEnv: "/missing.yaml"},
			read: noFile,
		},
		{
			name: "broken yaml",
			env:  map[string]string{ConfigFileEnv: "/broken.yaml"},
			read: func(string) ([]byte, error) { return []byte("grpc_addr: [unclosed"), nil },
		},
		{
			name: "bad duration",
			env:  map[string]string{"SHOP_OUTBOX_POLL_INTERVAL": "soon"},
			read: noFile,
		},
		{
			name: "bad vat",
			env:  map[string]string{"SHOP_VAT_PERCENTAGE": "nineteen"},
			read: noFile,
		},
		{
			name: "postgres without dsn",
			env:  map[string]string{"SHOP_STORAGE_DRIVER": "postgres"},
			read: noFile,
		},
		{
			name: "kafka without brokers",
			env:  map[string]string{"SHOP_NOTIFICATION_TRANSPORT": "kafka"},
			read: noFile,
		},
		{
			name: "unknown timezone",
			env:  map[string]string{"SHOP_TIMEZONE": "Mars/Olympus"},
			read: noFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadConfig(envLookup(tt.env), tt.read); err == nil {
				t.Fatalf("expected error for %s", tt.name)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "sqlite"
	cfg.InvoiceStart = 0
	cfg.VATPercentage = decimal.NewFromInt(-1)

	err := cfg.Validate()
	require.Error(t, err)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 3)
}

func TestConfig_Level(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	assert.Equal(t, log.DebugLevel, cfg.Level())

	cfg.LogLevel = "loud"
	assert.Equal(t, log.InfoLevel, cfg.Level())
}
