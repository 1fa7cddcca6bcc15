package db

import (
	"database/sql"
	"net/url"
	"procurement/internal/config"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func NewPostgresDB(cfg *config.PostgresConfig) (*sql.DB, error) {
	logrus.WithField("conn", redact(cfg.Conn)).Info("Connecting db")
	db, err := sql.Open("postgres", cfg.Conn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func redact(conn string) string {
	u, err := url.Parse(conn)
	if err != nil || u.Scheme == "" {
		return "<key-value connection string>"
	}
	return u.Redacted()
}
