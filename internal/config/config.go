// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Session                 `yaml:"session"`
	Analyzer                `yaml:"analyzer"`
	Quota                   `yaml:"quota"`
	Billing                 `yaml:"billing"`
	YouTube                 `yaml:"youtube"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Scheduler               `yaml:"scheduler"`
	Cache                   `yaml:"cache"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	// WriteTimeout нижняя граница, итог считает Config.ResponseTimeout.
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"260s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" env-default:"1"`
	RateBurst    int           `yaml:"rate_limit_burst" env-default:"3"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// Session настройки проверки сессионного JWT, выданного внешним провайдером.
// Если задан JWKSURL, токены проверяются по ключам провайдера, иначе по общему секрету.
type Session struct {
	JWTSecretKey string `yaml:"jwt_secret_key" env:"SESSION_JWT_SECRET"`
	JWKSURL      string `yaml:"jwks_url" env:"SESSION_JWKS_URL"`
	Issuer       string `yaml:"issuer" env:"SESSION_ISSUER"`
	Audience     string `yaml:"audience" env:"SESSION_AUDIENCE"`
	CookieName   string `yaml:"cookie_name" env-default:"session_token"`
}

// Analyzer настройки клиента внешнего сервиса анализа комментариев.
type Analyzer struct {
	BaseURL           string        `yaml:"base_url" env:"ANALYZER_BASE_URL" env-default:"http://127.0.0.1:5000"`
	HealthTimeout     time.Duration `yaml:"health_timeout" env-default:"5s"`
	AnalyzeTimeout    time.Duration `yaml:"analyze_timeout" env-default:"180s"`
	ChatTimeout       time.Duration `yaml:"chat_timeout" env-default:"60s"`
	FrameTimeout      time.Duration `yaml:"frame_timeout" env-default:"60s"`
	SummarizeTimeout  time.Duration `yaml:"summarize_timeout" env-default:"180s"`
	CompletionTimeout time.Duration `yaml:"completion_timeout" env-default:"60s"`
}

// Quota ограничения тарифа FREE.
type Quota struct {
	FreeAnalysisLimit int `yaml:"free_analysis_limit" env-default:"1"`
	// ReleaseOnFailure возвращает слот, если анализ завершился ошибкой.
	// По умолчанию выключено: неудачный анализ тоже расходует бесплатный лимит.
	ReleaseOnFailure bool `yaml:"release_on_failure" env:"QUOTA_RELEASE_ON_FAILURE" env-default:"false"`
}

// Billing настройки платежного провайдера Stripe.
type Billing struct {
	StripeSecretKey string `yaml:"stripe_secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret   string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	PriceIDPro      string `yaml:"price_id_pro" env:"STRIPE_PRICE_ID_PRO"`
	FrontendURL     string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
}

// YouTube настройки YouTube Data API. Пустой ключ отключает обогащение метаданными.
type YouTube struct {
	APIKey string `yaml:"api_key" env:"YOUTUBE_API_KEY"`
}

// RabbitMQ настройки подключения к брокеру уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP настройки отправки писем.
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"pass" env:"SMTP_PASS"`
}

// Scheduler настройки фоновых задач обслуживания.
type Scheduler struct {
	SweepSpec   string        `yaml:"sweep_spec" env-default:"@every 5m"`
	StaleAfter  time.Duration `yaml:"stale_after" env-default:"10m"`
	ExpireSpec  string        `yaml:"expire_spec" env-default:"@hourly"`
	ExpireGrace time.Duration `yaml:"expire_grace" env-default:"48h"`
}

// Cache настройки кеширования результатов.
type Cache struct {
	AnalysisTTL time.Duration `yaml:"analysis_ttl" env-default:"1h"`
}

// responseMargin запас на запросы к базе, кешу и метаданным видео внутри одного запроса.
const responseMargin = 20 * time.Second

// ResponseTimeout таймаут записи ответа HTTP-сервера. Самый долгий синхронный путь это
// сравнение: проверка анализатора, анализ обеих сторон параллельно, затем генерация сравнения.
func (c *Config) ResponseTimeout() time.Duration {
	longest := c.HealthTimeout + c.AnalyzeTimeout + c.CompletionTimeout + responseMargin
	return max(c.WriteTimeout, longest)
}

// MustLoad функция для загрузки конфига, возвращает конфиг, сгенерированный из файла CONFIG_PATH.
// Файл .env в рабочей директории читается первым, если он есть.
func MustLoad() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("cannot read .env: %s", err)
	}
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и переменных окружения.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Analyzer:\n"+
			"  BaseURL: %s\n"+
			"  AnalyzeTimeout: %s\n"+
			"Quota:\n"+
			"  FreeAnalysisLimit: %d\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.BaseURL,
		c.AnalyzeTimeout,
		c.FreeAnalysisLimit,
	)
}
