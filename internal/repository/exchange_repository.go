package repository

import (
	"context"
	"kmms_simulator/internal/model"

	"gorm.io/gorm"
)

type ExchangeRepository struct {
	DB *gorm.DB
}

func NewExchangeRepository(db *gorm.DB) *ExchangeRepository {
	return &ExchangeRepository{DB: db}
}

func (r *ExchangeRepository) Record(ctx context.Context, rec *model.ExchangeRecord) error {
	return r.DB.WithContext(ctx).Create(rec).Error
}
