package gormstore

import (
	"context"
	"errors"

	"paperledger/internal/store/model"

	"gorm.io/gorm"
)

// orderRepo implements the OrderRepository interface. Orders are never
// updated or deleted through it.
type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepo creates a new orderRepo.
func NewOrderRepo(db *gorm.DB) *orderRepo {
	return &orderRepo{db: db}
}

func (r *orderRepo) Insert(ctx context.Context, order *model.OrderModel) error {
	if order == nil {
		return errors.New("order cannot be nil")
	}
	if order.ID != 0 {
		return errors.New("order already persisted")
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepo) List(ctx context.Context, limit int) ([]model.OrderModel, error) {
	var orders []model.OrderModel
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.OrderModel{}).Count(&n).Error
	return n, err
}
