package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/velmie/opqueue"
)

const defaultTable = "opqueue_snapshots"

// Config defines MySQL storage behavior.
type Config struct {
	Table string
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = defaultTable
	}

	return c
}

// Option configures the MySQL storage.
type Option func(*Config)

// WithTable sets the snapshot table name.
func WithTable(name string) Option {
	return func(c *Config) {
		c.Table = name
	}
}

// Storage implements opqueue.Storage on a MySQL key/value table.
type Storage struct {
	db      *sql.DB
	table   string
	queries queries
}

var _ opqueue.Storage = (*Storage)(nil)

type queries struct {
	get    string
	set    string
	remove string
}

func newQueries(table string) queries {
	return queries{
		get: fmt.Sprintf("SELECT `value` FROM %s WHERE `key` = ?", table),
		set: fmt.Sprintf(
			"INSERT INTO %s (`key`, `value`) VALUES (?, ?) "+
				"ON DUPLICATE KEY UPDATE `value` = VALUES(`value`)",
			table),
		remove: fmt.Sprintf("DELETE FROM %s WHERE `key` = ?", table),
	}
}

// NewStorage constructs a MySQL storage with validated configuration.
func NewStorage(db *sql.DB, opts ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	table, err := sanitizeTableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	return &Storage{
		db:      db,
		table:   table,
		queries: newQueries(table),
	}, nil
}

// MustNewStorage constructs a MySQL storage or panics on error.
func MustNewStorage(db *sql.DB, opts ...Option) *Storage {
	storage, err := NewStorage(db, opts...)
	if err != nil {
		panic(err)
	}

	return storage
}

// Schema returns the CREATE TABLE statement for the snapshot table.
func Schema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"\t`key` VARCHAR(191) NOT NULL,\n"+
		"\t`value` LONGBLOB NOT NULL,\n"+
		"\tupdated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),\n"+
		"\tPRIMARY KEY (`key`)\n"+
		");", name), nil
}

// InitSchema creates the snapshot table if it does not exist.
func (s *Storage) InitSchema(ctx context.Context) error {
	schema, err := Schema(s.table)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("opqueue mysql: init schema failed: %w", err)
	}

	return nil
}

// Get implements opqueue.Storage.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.queries.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opqueue.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("opqueue mysql: get %q failed: %w", key, err)
	}

	return value, nil
}

// Set implements opqueue.Storage.
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.queries.set, key, value); err != nil {
		return fmt.Errorf("opqueue mysql: set %q failed: %w", key, err)
	}

	return nil
}

// Remove implements opqueue.Storage.
func (s *Storage) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.queries.remove, key); err != nil {
		return fmt.Errorf("opqueue mysql: remove %q failed: %w", key, err)
	}

	return nil
}

func sanitizeTableName(name string) (string, error) {
	if name == "" {
		return "", ErrTableNameRequired
	}
	parts := strings.Split(name, ".")
	for _, part := range parts {
		if part == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidTableName, name)
		}
		for _, r := range part {
			if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				continue
			}

			return "", fmt.Errorf("%w: %s", ErrInvalidTableName, name)
		}
	}

	return name, nil
}
