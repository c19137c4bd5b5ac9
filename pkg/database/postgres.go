package database

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/flowpilot/pkg/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewPostgresDB abre el pool de PostgreSQL y verifica la conexión
func NewPostgresDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, errx.Wrap(err, "failed to open database", errx.TypeInternal)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errx.Wrap(err, "failed to ping database", errx.TypeInternal).
			WithDetail("host", cfg.Host).
			WithDetail("database", cfg.DBName)
	}

	logx.Info("postgres pool ready (%s/%s, max_open=%d)", cfg.Host, cfg.DBName, cfg.MaxOpenConns)
	return db, nil
}

// CloseDB cierra la conexión a la base de datos
func CloseDB(db *sqlx.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
