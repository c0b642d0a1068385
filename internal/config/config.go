package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"
)

type Config struct {
	Env        string     `yaml:"env" env:"APP_ENV" env-default:"production" validate:"oneof=local development production"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Detector   Detector   `yaml:"detector"`
	ObjectURLs ObjectURLs `yaml:"object_urls"`
	History    History    `yaml:"history"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
	Janitor    Janitor    `yaml:"janitor"`
	Redis      Redis      `yaml:"redis"`
	MinIO      MinIO      `yaml:"minio"`
	PGSQL      PQSQL      `yaml:"pgsql"`
}

type HTTPServer struct {
	Address      string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"5m"`
	MaxUploadMB  int64         `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB" env-default:"200" validate:"min=1"`
}

// Detector points at the external plate-detection service
type Detector struct {
	BaseURL string        `yaml:"base_url" env:"DETECTOR_BASE_URL" env-default:"http://127.0.0.1:5000" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" env:"DETECTOR_TIMEOUT" env-default:"5m"`
}

type ObjectURLs struct {
	Backend string        `yaml:"backend" env:"OBJECT_URL_BACKEND" env-default:"memory" validate:"oneof=memory redis minio"`
	TTL     time.Duration `yaml:"ttl" env:"OBJECT_URL_TTL" env-default:"1h"`
}

type History struct {
	Backend   string        `yaml:"backend" env:"HISTORY_BACKEND" env-default:"memory" validate:"oneof=memory postgres"`
	Retention time.Duration `yaml:"retention" env:"HISTORY_RETENTION" env-default:"168h"`
	CacheTTL  time.Duration `yaml:"cache_ttl" env-default:"30s"`
}

type RateLimit struct {
	Enabled  bool  `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"false"`
	Capacity int64 `yaml:"capacity" env-default:"10" validate:"min=1"`
	Refill   int64 `yaml:"refill_per_minute" env-default:"10" validate:"min=1"`
}

type Janitor struct {
	Interval time.Duration `yaml:"interval" env:"JANITOR_INTERVAL" env-default:"1m" validate:"gt=0"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:""`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET" env-default:"plate-results"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type PQSQL struct {
	Host     string `yaml:"host" env:"PG_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"PG_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"PG_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"PG_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"PG_DBNAME" env-default:"plate_console"`
	SSLMode  string `yaml:"sslmode" env:"PG_SSLMODE" env-default:"disable"`
}

// Load reads the config file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist at path: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadEnv builds a config from environment variables and defaults only
func LoadEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.ObjectURLs.Backend == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("invalid config: object_urls.backend is redis but redis.address is empty")
	}
	if c.RateLimit.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("invalid config: rate_limit requires redis.address")
	}
	return nil
}

func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("%s", err)
	}

	return cfg
}
