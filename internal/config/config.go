package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"story-zine/internal/models"

	"github.com/ilyakaznacheev/cleanenv"
)

// Допустимые значения переключателей бэкендов.
const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	EventsLocal    = "local"
	EventsRabbitMQ = "rabbitmq"

	LockLocal = "local"
	LockRedis = "redis"
)

// Config содержит конфигурацию сервиса.
type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"development"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogEncoding string `yaml:"log_encoding" env:"LOG_ENCODING" env-default:"json"`

	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Content  ContentConfig  `yaml:"content"`
	Events   EventsConfig   `yaml:"events"`
	Lock     LockConfig     `yaml:"lock"`
}

type ServerConfig struct {
	Port               string        `yaml:"port" env:"SERVER_PORT" env-default:"3000"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	// Лимит запросов на изменение от одного IP в минуту; 0 отключает лимит.
	WriteRateLimit uint `yaml:"write_rate_limit" env:"WRITE_RATE_LIMIT" env-default:"120"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"file"`
	DataDir string `yaml:"data_dir" env:"DATA_DIR" env-default:"./data"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"story-maker:"`
}

type PostgresConfig struct {
	URL            string `yaml:"url" env:"DATABASE_URL"`
	MaxConnections int32  `yaml:"max_connections" env:"DB_MAX_CONNECTIONS" env-default:"10"`
}

// ContentConfig - ограничения на длину текста и пороги принятия.
type ContentConfig struct {
	ProposalMin   int  `yaml:"proposal_min" env:"PROPOSAL_LENGTH_MIN" env-default:"50"`
	ProposalMax   int  `yaml:"proposal_max" env:"PROPOSAL_LENGTH_MAX" env-default:"250"`
	PageTotalMin  int  `yaml:"page_total_min" env:"PAGE_TOTAL_MIN" env-default:"150"`
	PageTotalMax  int  `yaml:"page_total_max" env:"PAGE_TOTAL_MAX" env-default:"750"`
	AcceptLimit   int  `yaml:"accept_limit" env:"MAX_ACCEPTED_PER_PAGE" env-default:"3"`
	LockThreshold int  `yaml:"lock_threshold" env:"LOCK_ACCEPTED_REQUIRED" env-default:"3"`
	SeedOpening   bool `yaml:"seed_opening" env:"SEED_OPENING" env-default:"false"`
}

type EventsConfig struct {
	Transport   string `yaml:"transport" env:"EVENTS_TRANSPORT" env-default:"local"`
	RabbitMQURL string `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	Exchange    string `yaml:"exchange" env:"EVENTS_EXCHANGE" env-default:"story_events"`
}

type LockConfig struct {
	Backend string        `yaml:"backend" env:"LOCK_BACKEND" env-default:"local"`
	TTL     time.Duration `yaml:"ttl" env:"LOCK_TTL" env-default:"10s"`
	Wait    time.Duration `yaml:"wait" env:"LOCK_WAIT" env-default:"5s"`
}

// DefaultConfigPath используется, если CONFIG_PATH не задан.
const DefaultConfigPath = "config.yml"

// Load читает YAML файл конфигурации (переменные окружения имеют приоритет).
// Если файла нет, конфигурация читается только из окружения.
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return LoadFrom(configPath)
}

// LoadFrom - то же, что Load, но с явным путем к файлу.
func LoadFrom(configPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: failed to read config file '%s': %v. Falling back to environment.", configPath, err)
		}
		cfg = Config{}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case StorageFile:
		if strings.TrimSpace(c.Storage.DataDir) == "" {
			errs = append(errs, errors.New("DATA_DIR is required for the file storage backend"))
		}
	case StorageRedis, StorageMemory:
	case StoragePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	switch c.Events.Transport {
	case EventsLocal:
	case EventsRabbitMQ:
		if c.Events.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required for the rabbitmq events transport"))
		}
		if c.Events.Exchange == "" {
			errs = append(errs, errors.New("EVENTS_EXCHANGE must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_TRANSPORT %q", c.Events.Transport))
	}

	if c.Lock.Wait <= 0 {
		errs = append(errs, errors.New("LOCK_WAIT must be positive"))
	}
	switch c.Lock.Backend {
	case LockLocal:
	case LockRedis:
		if c.Lock.TTL <= 0 {
			errs = append(errs, errors.New("LOCK_TTL must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_BACKEND %q", c.Lock.Backend))
	}

	ct := c.Content
	if ct.ProposalMin <= 0 || ct.ProposalMin > ct.ProposalMax {
		errs = append(errs, fmt.Errorf("proposal length bounds are invalid: min=%d max=%d", ct.ProposalMin, ct.ProposalMax))
	}
	if ct.PageTotalMin < 0 || ct.PageTotalMin > ct.PageTotalMax {
		errs = append(errs, fmt.Errorf("page length bounds are invalid: min=%d max=%d", ct.PageTotalMin, ct.PageTotalMax))
	}
	if ct.AcceptLimit <= 0 || ct.LockThreshold <= 0 {
		errs = append(errs, errors.New("MAX_ACCEPTED_PER_PAGE and LOCK_ACCEPTED_REQUIRED must be positive"))
	} else if ct.LockThreshold > ct.AcceptLimit {
		errs = append(errs, fmt.Errorf("LOCK_ACCEPTED_REQUIRED (%d) exceeds MAX_ACCEPTED_PER_PAGE (%d)", ct.LockThreshold, ct.AcceptLimit))
	}
	if ct.SeedOpening {
		if need := utf8.RuneCountInString(models.OpeningText) + ct.LockThreshold*ct.ProposalMin; need > ct.PageTotalMax {
			errs = append(errs, fmt.Errorf("SEED_OPENING leaves no room to lock page 1: need %d chars, PAGE_TOTAL_MAX is %d", need, ct.PageTotalMax))
		}
	}

	return errors.Join(errs...)
}

// UsesRedis сообщает, нужен ли сервису клиент Redis.
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == StorageRedis || c.Lock.Backend == LockRedis
}
