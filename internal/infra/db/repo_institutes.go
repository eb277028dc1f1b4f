package db

import (
	"context"
	"fmt"
	"time"

	"certus/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InstituteRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewInstituteRepository(db *gorm.DB) *InstituteRepository {
	return &InstituteRepository{db: db, now: time.Now}
}

// Upsert registers an institute or refreshes its name and key. The verified
// flag and registration time are never touched.
func (r *InstituteRepository) Upsert(ctx context.Context, identity, name, publicKeyPEM string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if !domain.ValidIdentity(identity) {
		return fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	model := InstituteModel{
		Identity:     identity,
		Name:         name,
		PublicKeyPEM: publicKeyPEM,
		RegisteredAt: r.now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "public_key_pem"}),
		}).
		Create(&model).Error
	return unavailable("register institute", err)
}

func (r *InstituteRepository) MarkVerified(ctx context.Context, identity string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&InstituteModel{}).
		Where("identity = ?", identity).
		Update("is_verified", true)
	if res.Error != nil {
		return unavailable("verify institute", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("institute %s: %w", identity, domain.ErrNotFound)
	}
	return nil
}

func (r *InstituteRepository) Get(ctx context.Context, identity string) (*domain.InstituteRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model InstituteModel
	err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		First(&model).Error
	if err != nil {
		return nil, notFoundOr(err, "institute "+identity)
	}
	return &domain.InstituteRecord{
		Identity:     model.Identity,
		Name:         model.Name,
		PublicKeyPEM: model.PublicKeyPEM,
		IsVerified:   model.IsVerified,
		RegisteredAt: model.RegisteredAt,
	}, nil
}
