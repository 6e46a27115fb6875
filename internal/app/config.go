package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/currency"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/messaging/kafka"
)

const envPrefix = "ENC_"

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	GRPCAddr    string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// MemorySeedDemo наполняет in-memory каталог демонстрационными данными.
	MemorySeedDemo bool

	KafkaBrokers  []string
	KafkaClientID string
	KafkaTopics   kafka.Topics

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	JWTSecret   string
	CORSOrigins []string
	AdminRoles  []domain.Role

	Currency          string
	Timezone          string
	SideEffectTimeout time.Duration
	LowStockThreshold int32
	MethodCacheSize   int
	MethodCacheTTL    time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		GRPCAddr:    ":50051",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		MemorySeedDemo:      true,

		KafkaClientID: "encontrar-order-service",
		KafkaTopics:   kafka.DefaultTopics(),

		SMTPPort: 587,
		MailFrom: "Encontrar <no-reply@encontrar.ao>",

		AdminRoles: []domain.Role{domain.RoleAdmin, domain.RoleManager},

		Currency:          "AOA",
		Timezone:          "Africa/Luanda",
		SideEffectTimeout: 10 * time.Second,
		LowStockThreshold: 5,
		MethodCacheSize:   256,
		MethodCacheTTL:    time.Minute,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfig читает настройки из переменных окружения ENC_*. Перед этим
// подгружаются envFiles (по умолчанию .env); отсутствующий файл не ошибка.
// Уже заданные переменные окружения файлы не перекрывают.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := DefaultConfig()
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	envString("HTTP_ADDR", &cfg.HTTPAddr)
	envString("METRICS_ADDR", &cfg.MetricsAddr)
	envString("GRPC_ADDR", &cfg.GRPCAddr)

	envString("STORAGE_DRIVER", &cfg.StorageDriver)
	envString("POSTGRES_DSN", &cfg.PostgresDSN)
	collect(envBool("POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate))
	collect(envBool("MEMORY_SEED_DEMO", &cfg.MemorySeedDemo))

	envList("KAFKA_BROKERS", &cfg.KafkaBrokers)
	envString("KAFKA_CLIENT_ID", &cfg.KafkaClientID)
	envString("KAFKA_TOPIC_ORDERS", &cfg.KafkaTopics.Orders)
	envString("KAFKA_TOPIC_NOTIFICATIONS", &cfg.KafkaTopics.Notifications)
	envString("KAFKA_TOPIC_DLQ", &cfg.KafkaTopics.DeadLetter)

	envString("SMTP_HOST", &cfg.SMTPHost)
	collect(envInt("SMTP_PORT", &cfg.SMTPPort))
	envString("SMTP_USERNAME", &cfg.SMTPUsername)
	envString("SMTP_PASSWORD", &cfg.SMTPPassword)
	envString("MAIL_FROM", &cfg.MailFrom)

	envString("JWT_SECRET", &cfg.JWTSecret)
	envList("CORS_ORIGINS", &cfg.CORSOrigins)
	var roles []string
	if envList("ADMIN_ROLES", &roles) {
		cfg.AdminRoles = lo.Map(roles, func(r string, _ int) domain.Role { return domain.ParseRole(r) })
	}

	envString("CURRENCY", &cfg.Currency)
	envString("TIMEZONE", &cfg.Timezone)
	collect(envDuration("SIDE_EFFECT_TIMEOUT", &cfg.SideEffectTimeout))
	if v, ok := lookupEnv("LOW_STOCK_THRESHOLD"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			collect(fmt.Errorf("%sLOW_STOCK_THRESHOLD: %w", envPrefix, err))
		} else {
			cfg.LowStockThreshold = int32(n)
		}
	}
	collect(envInt("METHOD_CACHE_SIZE", &cfg.MethodCacheSize))
	collect(envDuration("METHOD_CACHE_TTL", &cfg.MethodCacheTTL))

	collect(envDuration("OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval))
	collect(envInt("OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize))
	collect(envInt("OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts))
	collect(envDuration("OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay))

	collect(envDuration("IDEMPOTENCY_TTL", &cfg.IdempotencyTTL))
	collect(envDuration("IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval))
	collect(envInt("IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize))

	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("LOG_FORMAT", &cfg.LogFormat)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.HTTPAddr) == "" {
		fail("http address is required")
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			fail("postgres dsn is required for storage driver %q", c.StorageDriver)
		}
	default:
		fail("unsupported storage driver %q", c.StorageDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		fail("jwt secret is required")
	}
	if _, err := currency.ParseISO(c.Currency); err != nil {
		fail("invalid currency %q: %v", c.Currency, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		fail("invalid timezone %q: %v", c.Timezone, err)
	}
	if c.SMTPHost != "" && (c.SMTPPort <= 0 || c.SMTPPort > 65535) {
		fail("invalid smtp port %d", c.SMTPPort)
	}
	if len(c.AdminRoles) == 0 {
		fail("at least one admin role is required")
	}
	if c.SideEffectTimeout <= 0 || c.OutboxPollInterval <= 0 || c.IdempotencyCleanupInterval <= 0 {
		fail("timeouts and intervals must be positive")
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 || c.IdempotencyCleanupBatchSize <= 0 {
		fail("batch sizes and attempts must be positive")
	}
	if c.OutboxRetryDelay < 0 {
		fail("outbox retry delay must not be negative")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		fail("invalid log level %q", c.LogLevel)
	}

	return errors.Join(errs...)
}

// ConfigureLogging настраивает глобальный logrus: уровень и формат text|json.
func ConfigureLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envString(key string, dst *string) {
	if v, ok := lookupEnv(key); ok {
		*dst = v
	}
}

func envList(key string, dst *[]string) bool {
	v, ok := lookupEnv(key)
	if !ok {
		return false
	}
	*dst = lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string { return strings.TrimSpace(s) }))
	return true
}

func envInt(key string, dst *int) error {
	v, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}
