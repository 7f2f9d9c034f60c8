package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию воркера.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL           string `envconfig:"RABBITMQ_URL"`
	RabbitManagementURL string `envconfig:"RABBITMQ_MANAGEMENT_URL"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	NYT struct {
		APIKey  string        `envconfig:"NYT_API_KEY"`
		BaseURL string        `envconfig:"NYT_BASE_URL" default:"https://api.nytimes.com"`
		Timeout time.Duration `envconfig:"NYT_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Ingest struct {
		// Категории опрашиваются строго в заданном порядке,
		// первая считается домашней.
		Categories   []string      `envconfig:"NEWS_CATEGORIES" default:"home,world,national,business,technology"`
		PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"4h"`
		// Провайдер просит не чаще пяти запросов в секунду,
		// поэтому запросы к категориям разносятся по времени.
		FetchSpacing   time.Duration `envconfig:"FETCH_SPACING" default:"500ms"`
		MaxPoolStories int           `envconfig:"MAX_POOL_STORIES" default:"500"`
		GlobalDocID    string        `envconfig:"GLOBAL_STORIES_ID" default:"MASTER_STORIES_DO_NOT_DELETE"`
	} `envconfig:""`

	Limits struct {
		FilterStories int `envconfig:"MAX_FILTER_STORIES" default:"15"`
	} `envconfig:""`

	Reaper struct {
		Interval   time.Duration `envconfig:"REAP_INTERVAL" default:"24h"`
		StaleAfter time.Duration `envconfig:"STALE_AFTER" default:"72h"`
	} `envconfig:""`

	Queues struct {
		Refresh string `envconfig:"REFRESH_QUEUE_KEY" default:"refresh_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
