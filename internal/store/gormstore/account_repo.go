package gormstore

import (
	"context"
	"errors"

	"paperledger/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountRepo implements the AccountRepository interface.
type accountRepo struct {
	db       *gorm.DB
	lockRows bool
}

// NewAccountRepo creates a new accountRepo. lockRows enables SELECT ... FOR UPDATE.
func NewAccountRepo(db *gorm.DB, lockRows bool) *accountRepo {
	return &accountRepo{db: db, lockRows: lockRows}
}

func (r *accountRepo) Get(ctx context.Context) (*model.AccountModel, error) {
	return r.find(r.db.WithContext(ctx))
}

func (r *accountRepo) GetForUpdate(ctx context.Context) (*model.AccountModel, error) {
	q := r.db.WithContext(ctx)
	if r.lockRows {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(q)
}

func (r *accountRepo) find(q *gorm.DB) (*model.AccountModel, error) {
	var account model.AccountModel
	err := q.Where("id = ?", model.SingletonAccountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Save upserts the singleton row; any other id is refused.
func (r *accountRepo) Save(ctx context.Context, account *model.AccountModel) error {
	if account == nil {
		return errors.New("account cannot be nil")
	}
	if account.ID != model.SingletonAccountID {
		return errors.New("account id must be the singleton id")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cash", "market_value", "total_asset", "frozen_cash", "updated_at"}),
	}).Create(account).Error
}
