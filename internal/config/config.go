// Package config предоставляет структуры и функции для загрузки конфига сервиса.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Источники тарифных планов.
const (
	PlanSourcePostgres = "postgres"
	PlanSourceWPCom    = "wpcom"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	GRPCHealthAddress       string `yaml:"grpc_health_address" env-default:":50051"`
	PlanSource              string `yaml:"plan_source" env:"PLAN_SOURCE" env-default:"postgres"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	SMTP                    `yaml:"smtp"`
	WPCom                   `yaml:"wpcom"`
	Scheduler               `yaml:"scheduler"`
	FeatureFlags            map[string]bool `yaml:"feature_flags"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP  string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP  time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimitRPS float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst    int           `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ структура для настройки подключения к RabbitMQ
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// SMTP структура для настройки отправки писем
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"password" env:"SMTP_PASSWORD"`
}

// WPCom структура для настройки удалённого API тарифов
type WPCom struct {
	WPComBaseURL   string        `yaml:"base_url" env-default:"https://public-api.wordpress.com/rest/v1.3"`
	WPComToken     string        `yaml:"token" env:"WPCOM_TOKEN"`
	WPComTimeout   time.Duration `yaml:"timeout" env-default:"10s"`
	WPComRateLimit float64       `yaml:"rate_limit" env-default:"2"`
}

// Scheduler структура для настройки планирования и рассылки напоминаний
type Scheduler struct {
	DispatchInterval    time.Duration `yaml:"dispatch_interval" env-default:"1m"`
	DispatchBatchSize   int           `yaml:"dispatch_batch_size" env-default:"100"`
	NotificationTimeout time.Duration `yaml:"notification_timeout" env-default:"10s"`
}

// MustLoad функция для загрузки конфига из файла CONFIG_PATH, завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по пути path.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.PlanSource {
	case PlanSourcePostgres, PlanSourceWPCom:
	default:
		return fmt.Errorf("unknown plan_source %q", c.PlanSource)
	}
	if c.DispatchBatchSize <= 0 {
		return fmt.Errorf("dispatch_batch_size must be positive")
	}
	return nil
}

// FeatureFlag возвращает значение флага по умолчанию из конфига.
func (c *Config) FeatureFlag(name string) bool {
	return c.FeatureFlags[name]
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return strings.Repeat("*", 6)
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"PlanSource: %s\n"+
			"StorageConnectionString: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  Password: %s\n"+
			"  DB: %d\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n"+
			"  MaxRetries: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"Scheduler:\n"+
			"  DispatchInterval: %s\n",
		c.Env,
		c.PlanSource,
		mask(c.StorageConnectionString),
		c.AddressRedis,
		mask(c.Password),
		c.DB,
		mask(c.RabbitMQURL),
		c.RabbitMQMaxRetries,
		c.AddressHTTP,
		c.TimeoutHTTP,
		mask(c.JWTSecretKey),
		c.DispatchInterval,
	)
}
