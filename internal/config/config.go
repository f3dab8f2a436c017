package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/coaltail/rhythmlink-backend/internal/storage"
	"github.com/coaltail/rhythmlink-backend/internal/telemetry"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config.yaml"

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	S3        storage.S3Config `yaml:"s3"`
	JWT       JWTConfig        `yaml:"jwt"`
	Kafka     KafkaConfig      `yaml:"kafka"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	LogLevel  string           `yaml:"log_level"`
}

type ServerConfig struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowed_origins"`
	BodyLimitMB    int    `yaml:"body_limit_mb"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN renders the PostgreSQL key/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load reads .env (if any), then the YAML file named by CONFIG_PATH (or
// config.yaml when present), then applies environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: failed to load .env file", "error", err)
	}

	cfg := defaults()

	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	if err := loadFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			BodyLimitMB: 8,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "rhythmlink",
			SSLMode: "disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{Topic: "rhythmlink.events"},
		Telemetry: telemetry.Config{
			ServiceName:  "rhythmlink-backend",
			SampleRatio:  1,
			InsecureHTTP: true,
		},
		LogLevel: "info",
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.AllowedOrigins, "ALLOWED_ORIGINS")

	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}

	setString(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setString(&cfg.S3.Region, "S3_REGION")
	setString(&cfg.S3.Bucket, "S3_BUCKET")
	setString(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setString(&cfg.S3.PublicBaseURL, "S3_PUBLIC_BASE_URL")
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("S3_USE_SSL: %w", err)
		}
		cfg.S3.UseSSL = b
	}

	setString(&cfg.JWT.Secret, "JWT_SECRET")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")

	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
	setString(&cfg.Telemetry.Environment, "ENV")
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG: %w", err)
		}
		cfg.Telemetry.SampleRatio = f
	}
	cfg.Telemetry.Endpoint = stripScheme(cfg.Telemetry.Endpoint)

	setString(&cfg.LogLevel, "LOG_LEVEL")
	return nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Server.Port == "" {
		return errors.New("server port must not be empty")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog levels, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
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

// stripScheme turns "http://collector:4318" into the host:port form the OTLP
// exporter expects.
func stripScheme(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}
