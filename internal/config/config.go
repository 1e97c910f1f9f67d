// Package config loads server settings. Later sources override earlier ones:
// defaults, then an optional YAML file, then .env and the process environment,
// then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "stock-ledger"
	ServiceVersion = "0.1.0"
)

const (
	LogsPath      = "/v1/logs"
	TracesPath    = "/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	StoreDriver     string        `yaml:"store_driver"`
	MySQLDSN        string        `yaml:"mysql_dsn"`
	SQLiteDSN       string        `yaml:"sqlite_dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// RedisAddr enables the distributed item lock and idempotency keys.
	// Empty means in-process equivalents.
	RedisAddr string `yaml:"redis_addr"`

	// KafkaBrokers enables the Kafka notifier. Empty means notifications are logged.
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	NotifyWorkers   int           `yaml:"notify_workers"`
	NotifyQueueSize int           `yaml:"notify_queue_size"`
	NotifyTimeout   time.Duration `yaml:"notify_timeout"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`

	JWTSecret string `yaml:"jwt_secret"`

	OtelEndpoint   string `yaml:"otel_endpoint"`
	OtelAuthHeader string `yaml:"otel_auth_header"`
}

func Default() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":50051",
		StoreDriver:     DriverSQLite,
		SQLiteDSN:       "file:stock-ledger.db?_pragma=busy_timeout(5000)",
		MaxOpenConns:    50,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		KafkaTopic:      "stock-ledger.notifications",
		NotifyWorkers:   4,
		NotifyQueueSize: 1000,
		NotifyTimeout:   5 * time.Second,
		LockTimeout:     10 * time.Second,
		JWTSecret:       "dev-secret",
	}
}

// Load builds the configuration from every source. args excludes the program name.
func Load(args []string) (*Config, error) {
	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	path, _ := flags.GetString("config")
	if path == "" {
		path = os.Getenv("STOCK_LEDGER_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = d
		return nil
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("STORE_DRIVER", &c.StoreDriver)
	str("MYSQL_DSN", &c.MySQLDSN)
	str("SQLITE_DSN", &c.SQLiteDSN)
	str("REDIS_ADDR", &c.RedisAddr)
	str("KAFKA_TOPIC", &c.KafkaTopic)
	str("JWT_SECRET", &c.JWTSecret)
	str("OTEL_ENDPOINT", &c.OtelEndpoint)
	str("OTEL_AUTH_HEADER", &c.OtelAuthHeader)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.KafkaBrokers = splitList(v)
	}

	return errors.Join(
		num("MAX_OPEN_CONNS", &c.MaxOpenConns),
		num("MAX_IDLE_CONNS", &c.MaxIdleConns),
		num("NOTIFY_WORKERS", &c.NotifyWorkers),
		num("NOTIFY_QUEUE_SIZE", &c.NotifyQueueSize),
		dur("CONN_MAX_LIFETIME", &c.ConnMaxLifetime),
		dur("NOTIFY_TIMEOUT", &c.NotifyTimeout),
		dur("LOCK_TIMEOUT", &c.LockTimeout),
	)
}

func newFlagSet() *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet(ServiceName, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("http-addr", d.HTTPAddr, "HTTP listen address")
	fs.String("grpc-addr", d.GRPCAddr, "gRPC listen address")
	fs.String("store", d.StoreDriver, "store driver: memory, sqlite or mysql")
	fs.String("mysql-dsn", "", "MySQL DSN")
	fs.String("sqlite-dsn", d.SQLiteDSN, "SQLite DSN")
	fs.String("redis-addr", "", "Redis address for item locks and idempotency keys")
	fs.StringSlice("kafka-brokers", nil, "Kafka brokers for notifications")
	fs.String("kafka-topic", d.KafkaTopic, "Kafka notification topic")
	fs.Int("notify-workers", d.NotifyWorkers, "notification worker count")
	fs.String("otel-endpoint", "", "OTLP/HTTP endpoint host:port")
	return fs
}

func (c *Config) applyFlags(fs *pflag.FlagSet) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}

	str("http-addr", &c.HTTPAddr)
	str("grpc-addr", &c.GRPCAddr)
	str("store", &c.StoreDriver)
	str("mysql-dsn", &c.MySQLDSN)
	str("sqlite-dsn", &c.SQLiteDSN)
	str("redis-addr", &c.RedisAddr)
	str("kafka-topic", &c.KafkaTopic)
	str("otel-endpoint", &c.OtelEndpoint)

	if fs.Changed("kafka-brokers") {
		c.KafkaBrokers, _ = fs.GetStringSlice("kafka-brokers")
	}
	if fs.Changed("notify-workers") {
		c.NotifyWorkers, _ = fs.GetInt("notify-workers")
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLiteDSN == "" {
			errs = append(errs, errors.New("sqlite_dsn is required for the sqlite store"))
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("mysql_dsn is required for the mysql store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}

	if c.HTTPAddr == "" && c.GRPCAddr == "" {
		errs = append(errs, errors.New("at least one of http_addr or grpc_addr is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka_topic is required when kafka_brokers is set"))
	}
	if c.NotifyWorkers <= 0 || c.NotifyQueueSize <= 0 {
		errs = append(errs, errors.New("notify_workers and notify_queue_size must be positive"))
	}
	if c.NotifyTimeout <= 0 || c.LockTimeout <= 0 {
		errs = append(errs, errors.New("notify_timeout and lock_timeout must be positive"))
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
