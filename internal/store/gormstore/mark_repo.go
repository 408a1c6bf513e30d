package gormstore

import (
	"context"

	"paperledger/internal/store/model"

	"gorm.io/gorm"
)

type markRepo struct {
	db *gorm.DB
}

func NewMarkRepo(db *gorm.DB) *markRepo {
	return &markRepo{db: db}
}

func (r *markRepo) Insert(ctx context.Context, event *model.MarkEventModel) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *markRepo) List(ctx context.Context, limit int) ([]model.MarkEventModel, error) {
	var events []model.MarkEventModel
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
