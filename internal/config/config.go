package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress   string        `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"DEBUG"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	AwardWindow     time.Duration `env:"AWARD_WINDOW" envDefault:"720h"`
	PostgresConfig
	NotifyConfig
}

// NewConfig reads an optional .env file and then the process environment.
func NewConfig() (*Config, error) {
	config := &Config{}

	// a missing .env is the normal case in containers
	_ = godotenv.Load()

	err := env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewConfig: %w", err)
	}
	return config, err
}

type PostgresConfig struct {
	Conn            string `env:"POSTGRES_CONN" envDefault:"postgres://test:test@db:5432/test?sslmode=disable"`
	MaxOpenConns    int    `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int    `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"25"`
	AutoMigrateUp   string `env:"AUTO_MIGRATE_UP" envDefault:"true"`
	AutoMigrateDown string `env:"AUTO_MIGRATE_DOWN" envDefault:"false"`
	MigrationsURL   string `env:"MIGRATIONS_URL" envDefault:"file://internal/repository/db/migrations"`
}

func NewPostgresConfig() (*PostgresConfig, error) {
	config := &PostgresConfig{}

	err := env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewPostgresConfig: %w", err)
	}
	return config, err
}

type NotifyConfig struct {
	Workers   int     `env:"NOTIFY_WORKERS" envDefault:"4"`
	QueueSize int     `env:"NOTIFY_QUEUE_SIZE" envDefault:"1024"`
	EmailRate float64 `env:"EMAIL_RATE_PER_SECOND" envDefault:"5"`
	SMTPConfig
}

// SMTPConfig is optional: with an empty host outgoing mail is only logged.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"noreply@procurement.local"`
}

func (c SMTPConfig) Enabled() bool {
	return len(c.Host) > 0
}
