package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MigrationsPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	Redis    RedisConfig
	AIWorker struct {
		URL string
	}
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. Database variables are required, everything else has defaults.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	cfg.App.Port = envOr("APP_PORT", "8080")

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	cfg.Postgres.Port = os.Getenv("DB_PORT")
	cfg.Postgres.User = os.Getenv("DB_USER")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	cfg.Postgres.SSLMode = envOr("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = envOr("DB_MIGRATIONS_PATH", "migrations")
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute

	for name, v := range map[string]string{
		"DB_HOST":     cfg.Postgres.Host,
		"DB_PORT":     cfg.Postgres.Port,
		"DB_USER":     cfg.Postgres.User,
		"DB_PASSWORD": cfg.Postgres.Password,
		"DB_NAME":     cfg.Postgres.DBName,
	} {
		if v == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	cfg.Redis.Addr = envOr("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = 0

	cfg.AIWorker.URL = envOr("AI_WORKER_URL", "http://localhost:3000")

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
