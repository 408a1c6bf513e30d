package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"paperledger/internal/store"
	"paperledger/internal/store/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects the dialect and connection settings.
type Options struct {
	Driver       string
	Path         string // sqlite file
	DSN          string // postgres dsn
	MaxOpenConns int
}

// GormStore implements store.Store on top of Gorm (SQLite or Postgres).
type GormStore struct {
	db      *gorm.DB
	dialect string
}

var _ store.Store = (*GormStore)(nil)

// Open connects, migrates the ledger tables and returns the store.
func Open(opts Options) (*GormStore, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		path := strings.TrimSpace(opts.Path)
		if path == "" {
			return nil, fmt.Errorf("gorm store: sqlite path cannot be empty")
		}
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dsn := strings.TrimSpace(opts.DSN)
		if dsn == "" {
			return nil, fmt.Errorf("gorm store: postgres dsn cannot be empty")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("gorm store: unsupported driver %q", opts.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	s, err := NewFromDB(db, driver)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = defaultMaxOpenConns(driver)
		}
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen)
	}
	return s, nil
}

// NewFromDB wraps an existing connection and migrates the ledger tables.
func NewFromDB(db *gorm.DB, dialect string) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	models := []interface{}{
		&model.AccountModel{},
		&model.PositionModel{},
		&model.OrderModel{},
		&model.MarkEventModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("gorm store: migrate: %w", err)
	}
	return &GormStore{db: db, dialect: dialect}, nil
}

func defaultMaxOpenConns(driver string) int {
	if driver == DriverPostgres {
		return 10
	}
	// SQLite + WAL: a little read parallelism, one writer at a time.
	return 2
}

// Dialect reports the SQL dialect in use.
func (s *GormStore) Dialect() string {
	if s == nil {
		return ""
	}
	return s.dialect
}

// GormDB exposes the underlying *gorm.DB.
func (s *GormStore) GormDB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *GormStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormUnitOfWork{tx: tx, lockRows: s.dialect == DriverPostgres}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormUnitOfWork struct {
	tx       *gorm.DB
	lockRows bool
	done     bool
}

func (u *gormUnitOfWork) Accounts() store.AccountRepository {
	return NewAccountRepo(u.tx, u.lockRows)
}

func (u *gormUnitOfWork) Positions() store.PositionRepository {
	return NewPositionRepo(u.tx)
}

func (u *gormUnitOfWork) Orders() store.OrderRepository {
	return NewOrderRepo(u.tx)
}

func (u *gormUnitOfWork) Marks() store.MarkRepository {
	return NewMarkRepo(u.tx)
}

func (u *gormUnitOfWork) Commit() error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true
	return u.tx.Commit().Error
}

func (u *gormUnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback().Error
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
