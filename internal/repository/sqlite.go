package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	sqlStore
	dbPath string
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		sqlStore: sqlStore{dialect: sqliteDialect{}, now: time.Now},
		dbPath:   path,
	}
}

func (s *SQLiteStore) Init() error {
	dsn, err := sqliteDSN(s.dbPath)
	if err != nil {
		return err
	}

	s.db, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	// One writer at a time; readers share the WAL.
	s.db.SetMaxOpenConns(4)

	if err = s.db.Ping(); err != nil {
		s.db.Close()
		return fmt.Errorf("error connecting to database: %w", err)
	}

	return s.createSchema(context.Background())
}

// sqliteDSN turns a file path into a DSN with foreign keys, a busy timeout
// and WAL enabled. Paths already starting with "file:" get the params appended.
func sqliteDSN(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
