package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	defaultConnLifetime = time.Hour
	defaultConnIdleTime = 30 * time.Minute
	defaultPingTimeout  = 5 * time.Second
)

// PostgresStore is the pgx/stdlib backed store.
type PostgresStore struct {
	sqlStore
	dsn string
}

func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{
		sqlStore: sqlStore{dialect: postgresDialect{}, now: time.Now},
		dsn:      dsn,
	}
}

func (s *PostgresStore) Init() error {
	if strings.TrimSpace(s.dsn) == "" {
		return errors.New("postgres: empty DSN")
	}

	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnLifetime)
	db.SetConnMaxIdleTime(defaultConnIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error connecting to database: %w", err)
	}
	s.db = db

	return s.createSchema(ctx)
}
