package gormstore

import (
	"context"
	"errors"

	"paperledger/internal/store/model"

	"gorm.io/gorm"
)

// positionRepo implements the PositionRepository interface.
type positionRepo struct {
	db *gorm.DB
}

// NewPositionRepo creates a new positionRepo.
func NewPositionRepo(db *gorm.DB) *positionRepo {
	return &positionRepo{db: db}
}

func (r *positionRepo) Get(ctx context.Context, code string) (*model.PositionModel, error) {
	return r.first(r.db.WithContext(ctx).Where("code = ?", code))
}

func (r *positionRepo) GetByID(ctx context.Context, id int64) (*model.PositionModel, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *positionRepo) first(q *gorm.DB) (*model.PositionModel, error) {
	var pos model.PositionModel
	err := q.First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func (r *positionRepo) List(ctx context.Context) ([]model.PositionModel, error) {
	var positions []model.PositionModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// Save inserts a new position (ID == 0) or rewrites every column of an existing one.
func (r *positionRepo) Save(ctx context.Context, position *model.PositionModel) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	if position.ID == 0 {
		return r.db.WithContext(ctx).Create(position).Error
	}
	return r.db.WithContext(ctx).Save(position).Error
}

func (r *positionRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PositionModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *positionRepo) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.PositionModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
