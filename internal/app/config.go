package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// StorageDriver определяет backend хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// NotificationTransport определяет, куда уходят уведомления из outbox.
type NotificationTransport string

const (
	TransportLog      NotificationTransport = "log"
	TransportKafka    NotificationTransport = "kafka"
	TransportRabbitMQ NotificationTransport = "rabbitmq"
	TransportBoth     NotificationTransport = "both"
)

// ConfigFileEnv — путь к YAML-файлу конфигурации.
const ConfigFileEnv = "SHOP_CONFIG_FILE"

// Config описывает настройки процесса. Читается один раз при старте.
type Config struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	StorageDriver       StorageDriver `yaml:"storage_driver"`
	PostgresDSN         string        `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool          `yaml:"postgres_auto_migrate"`
	SeedFile            string        `yaml:"seed_file"`

	VATPercentage decimal.Decimal `yaml:"vat_percentage"`
	InvoiceStart  int64           `yaml:"invoice_start"`
	OrderPrefix   string          `yaml:"order_prefix"`
	ArticleWidth  int             `yaml:"article_width"`
	Timezone      string          `yaml:"timezone"`
	ManagerEmails []string        `yaml:"manager_emails"`

	NotificationTransport NotificationTransport `yaml:"notification_transport"`
	KafkaBrokers          []string              `yaml:"kafka_brokers"`
	KafkaGroupID          string                `yaml:"kafka_group_id"`
	KafkaPaymentTopic     string                `yaml:"kafka_payment_topic"`
	KafkaNotificationTopic string               `yaml:"kafka_notification_topic"`
	KafkaMaxRetries       int                   `yaml:"kafka_max_retries"`
	AMQPURL               string                `yaml:"amqp_url"`
	AMQPExchange          string                `yaml:"amqp_exchange"`
	StripeWebhookSecret   string                `yaml:"stripe_webhook_secret"`

	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `yaml:"outbox_retry_delay"`

	ProcessedEventTTL          time.Duration `yaml:"processed_event_ttl"`
	ProcessedEventCleanup      time.Duration `yaml:"processed_event_cleanup_interval"`
	ProcessedEventCleanupBatch int           `yaml:"processed_event_cleanup_batch"`
}

// DefaultConfig возвращает настройки по умолчанию: in-memory хранилище и уведомления в лог.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		LogLevel:    "info",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		VATPercentage: decimal.NewFromInt(19),
		InvoiceStart:  1,
		OrderPrefix:   "WS",
		ArticleWidth:  6,
		Timezone:      "UTC",

		NotificationTransport: TransportLog,
		KafkaGroupID:          "shop-engine",
		KafkaMaxRetries:       3,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		ProcessedEventTTL:          72 * time.Hour,
		ProcessedEventCleanup:      10 * time.Minute,
		ProcessedEventCleanupBatch: 500,
	}
}

// LoadConfig собирает конфигурацию: значения по умолчанию, затем YAML-файл
// из SHOP_CONFIG_FILE, затем переменные SHOP_*.
func LoadConfig() (Config, error) {
	return loadConfig(os.LookupEnv, os.ReadFile)
}

func loadConfig(lookup func(string) (string, bool), readFile func(string) ([]byte, error)) (Config, error) {
	cfg := DefaultConfig()

	if path, ok := lookup(ConfigFileEnv); ok && strings.TrimSpace(path) != "" {
		raw, err := readFile(strings.TrimSpace(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres_dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}

	switch c.NotificationTransport {
	case TransportLog:
	case TransportKafka, TransportBoth:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("kafka_brokers are required for kafka transport"))
		}
		if c.NotificationTransport == TransportBoth && c.AMQPURL == "" {
			errs = append(errs, errors.New("amqp_url is required for rabbitmq transport"))
		}
	case TransportRabbitMQ:
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("amqp_url is required for rabbitmq transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notification transport %q", c.NotificationTransport))
	}

	if c.VATPercentage.IsNegative() {
		errs = append(errs, errors.New("vat_percentage must not be negative"))
	}
	if c.InvoiceStart <= 0 {
		errs = append(errs, errors.New("invoice_start must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location возвращает часовой пояс для дневной нумерации заказов.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level возвращает уровень логирования; неизвестное значение даёт info.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// applyEnv переопределяет настройки переменными SHOP_*.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}

	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SHOP_GRPC_ADDR", &cfg.GRPCAddr)
	str("SHOP_METRICS_ADDR", &cfg.MetricsAddr)
	str("SHOP_LOG_LEVEL", &cfg.LogLevel)

	var driver string
	str("SHOP_STORAGE_DRIVER", &driver)
	if driver != "" {
		cfg.StorageDriver = StorageDriver(strings.ToLower(driver))
	}
	str("SHOP_POSTGRES_DSN", &cfg.PostgresDSN)
	if v, ok := lookup("SHOP_POSTGRES_AUTO_MIGRATE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("SHOP_POSTGRES_AUTO_MIGRATE: %w", err))
		} else {
			cfg.PostgresAutoMigrate = b
		}
	}
	str("SHOP_SEED_FILE", &cfg.SeedFile)

	if v, ok := lookup("SHOP_VAT_PERCENTAGE"); ok && strings.TrimSpace(v) != "" {
		vat, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("SHOP_VAT_PERCENTAGE: %w", err))
		} else {
			cfg.VATPercentage = vat
		}
	}
	if v, ok := lookup("SHOP_INVOICE_START"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SHOP_INVOICE_START: %w", err))
		} else {
			cfg.InvoiceStart = n
		}
	}
	str("SHOP_ORDER_PREFIX", &cfg.OrderPrefix)
	integer("SHOP_ARTICLE_WIDTH", &cfg.ArticleWidth)
	str("SHOP_TIMEZONE", &cfg.Timezone)
	list("SHOP_MANAGER_EMAILS", &cfg.ManagerEmails)

	var transport string
	str("SHOP_NOTIFICATION_TRANSPORT", &transport)
	if transport != "" {
		cfg.NotificationTransport = NotificationTransport(strings.ToLower(transport))
	}
	list("SHOP_KAFKA_BROKERS", &cfg.KafkaBrokers)
	str("SHOP_KAFKA_GROUP_ID", &cfg.KafkaGroupID)
	str("SHOP_KAFKA_PAYMENT_TOPIC", &cfg.KafkaPaymentTopic)
	str("SHOP_KAFKA_NOTIFICATION_TOPIC", &cfg.KafkaNotificationTopic)
	integer("SHOP_KAFKA_MAX_RETRIES", &cfg.KafkaMaxRetries)
	str("SHOP_AMQP_URL", &cfg.AMQPURL)
	str("SHOP_AMQP_EXCHANGE", &cfg.AMQPExchange)
	str("SHOP_STRIPE_WEBHOOK_SECRET", &cfg.StripeWebhookSecret)

	duration("SHOP_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	integer("SHOP_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	integer("SHOP_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	duration("SHOP_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)

	duration("SHOP_PROCESSED_EVENT_TTL", &cfg.ProcessedEventTTL)
	duration("SHOP_PROCESSED_EVENT_CLEANUP_INTERVAL", &cfg.ProcessedEventCleanup)
	integer("SHOP_PROCESSED_EVENT_CLEANUP_BATCH", &cfg.ProcessedEventCleanupBatch)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
