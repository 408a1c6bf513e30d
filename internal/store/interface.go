package store

import (
	"context"

	"paperledger/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction. Calling it after Commit is a no-op.
	Rollback() error

	// Accounts returns the account repository within this transaction.
	Accounts() AccountRepository
	// Positions returns the position repository within this transaction.
	Positions() PositionRepository
	// Orders returns the order repository within this transaction.
	Orders() OrderRepository
	// Marks returns the valuation log repository within this transaction.
	Marks() MarkRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// AccountRepository handles the singleton account row.
type AccountRepository interface {
	// Get returns nil when the account has not been initialized.
	Get(ctx context.Context) (*model.AccountModel, error)
	// GetForUpdate is Get with a row lock held until the transaction ends,
	// where the dialect supports it.
	GetForUpdate(ctx context.Context) (*model.AccountModel, error)
	Save(ctx context.Context, account *model.AccountModel) error
}

// PositionRepository handles per-instrument holdings.
type PositionRepository interface {
	Get(ctx context.Context, code string) (*model.PositionModel, error)
	GetByID(ctx context.Context, id int64) (*model.PositionModel, error)
	// List returns every position ordered by code.
	List(ctx context.Context) ([]model.PositionModel, error)
	Save(ctx context.Context, position *model.PositionModel) error
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// OrderRepository handles the append-only order log.
type OrderRepository interface {
	Insert(ctx context.Context, order *model.OrderModel) error
	// List returns the newest orders first; limit <= 0 returns all of them.
	List(ctx context.Context, limit int) ([]model.OrderModel, error)
	Count(ctx context.Context) (int64, error)
}

// MarkRepository handles the valuation audit log.
type MarkRepository interface {
	Insert(ctx context.Context, event *model.MarkEventModel) error
	List(ctx context.Context, limit int) ([]model.MarkEventModel, error)
}
