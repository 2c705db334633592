package db

import (
	"context"
	"errors"

	"lendeefi/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RootRepository struct {
	db *gorm.DB
}

func NewRootRepository(db *gorm.DB) *RootRepository {
	return &RootRepository{db: db}
}

// Deactivate inserts the record unless the root already has one.
func (r *RootRepository) Deactivate(ctx context.Context, d domain.RootDeactivation) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := RootDeactivationModel{
		Root:          d.Root.Hex(),
		DeactivatedBy: d.DeactivatedBy.Hex(),
		DeactivatedAt: d.DeactivatedAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "root"}}, DoNothing: true}).
		Create(&model).Error
}

func (r *RootRepository) Get(ctx context.Context, root common.Hash) (*domain.RootDeactivation, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RootDeactivationModel
	err := r.db.WithContext(ctx).Where("root = ?", root.Hex()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.RootDeactivation{
		Root:          common.HexToHash(model.Root),
		DeactivatedBy: common.HexToAddress(model.DeactivatedBy),
		DeactivatedAt: model.DeactivatedAt.UTC(),
	}, nil
}
