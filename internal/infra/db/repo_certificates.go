package db

import (
	"context"
	"fmt"
	"time"

	"certus/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CertificateRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db, now: time.Now}
}

func (r *CertificateRepository) Create(ctx context.Context, rec domain.CertificateRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	issuedAt := rec.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = r.now()
	}
	model := CertificateModel{
		CertificateID:    string(rec.CertificateID),
		UID:              rec.UID,
		CandidateName:    rec.CandidateName,
		CourseName:       rec.CourseName,
		OrgName:          rec.OrgName,
		IPFSHash:         rec.IPFSHash,
		InstituteEmail:   rec.InstituteEmail,
		DigitalSignature: rec.DigitalSignature,
		IssuedAt:         issuedAt.UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "certificate_id"}}, DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		return unavailable("issue certificate", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCertificateExists, rec.CertificateID)
	}
	return nil
}

func (r *CertificateRepository) Get(ctx context.Context, id domain.CertificateID) (*domain.CertificateRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).
		Where("certificate_id = ?", string(id)).
		First(&model).Error
	if err != nil {
		return nil, notFoundOr(err, "certificate "+string(id))
	}
	return certificateFromModel(model), nil
}

// Revoke flips the revoked flag and records the first revocation time in one
// transaction.
func (r *CertificateRepository) Revoke(ctx context.Context, id domain.CertificateID) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CertificateModel{}).
			Where("certificate_id = ?", string(id)).
			Update("revoked", true)
		if res.Error != nil {
			return unavailable("revoke certificate", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("certificate %s: %w", id, domain.ErrNotFound)
		}
		event := RevocationModel{
			ID:            uuid.NewString(),
			CertificateID: string(id),
			RevokedAt:     r.now().UTC(),
		}
		err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "certificate_id"}}, DoNothing: true}).
			Create(&event).Error
		return unavailable("record revocation", err)
	})
}

func (r *CertificateRepository) ListIDs(ctx context.Context) ([]domain.CertificateID, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&CertificateModel{}).
		Order("seq ASC").
		Pluck("certificate_id", &ids).Error
	if err != nil {
		return nil, unavailable("list certificates", err)
	}
	out := make([]domain.CertificateID, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.CertificateID(id))
	}
	return out, nil
}

func certificateFromModel(model CertificateModel) *domain.CertificateRecord {
	return &domain.CertificateRecord{
		CertificateFields: domain.CertificateFields{
			UID:           model.UID,
			CandidateName: model.CandidateName,
			CourseName:    model.CourseName,
			OrgName:       model.OrgName,
		},
		CertificateID:    domain.CertificateID(model.CertificateID),
		IPFSHash:         model.IPFSHash,
		InstituteEmail:   model.InstituteEmail,
		DigitalSignature: model.DigitalSignature,
		Revoked:          model.Revoked,
		IssuedAt:         model.IssuedAt,
	}
}
