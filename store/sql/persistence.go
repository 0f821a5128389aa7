package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// PersistenceConfig carries the connection settings the persistence client
// needs. Server is a DSN: a postgres connection string or a sqlite file URI.
type PersistenceConfig struct {
	Debug          bool
	Driver         string
	Server         string
	PingTimeout    time.Duration
	OtelIdentifier string
	// MaxOpenConns bounds the pool. Shared-cache sqlite needs 1.
	MaxOpenConns int
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-outbound"
	}
	return c.OtelIdentifier
}

// NewPostgresClient opens a lib/pq connection and wraps it in a persistence
// client with the postgres dialect.
func NewPostgresClient(cfg PersistenceConfig) (*persistence.Client, error) {
	if cfg.Driver == "" {
		cfg.Driver = "postgres"
	}
	sqlDB, err := openConnection(cfg)
	if err != nil {
		return nil, err
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}

// NewSQLiteClient opens a mattn/go-sqlite3 connection and wraps it in a
// persistence client with the sqlite dialect.
func NewSQLiteClient(cfg PersistenceConfig) (*persistence.Client, error) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite3"
	}
	sqlDB, err := openConnection(cfg)
	if err != nil {
		return nil, err
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}

func openConnection(cfg PersistenceConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, fmt.Errorf("sqlstore: connection dsn is required")
	}
	sqlDB, err := sql.Open(cfg.Driver, cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s connection: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return sqlDB, nil
}
