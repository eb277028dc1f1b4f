package db

import "time"

type CertificateModel struct {
	Seq              int64     `gorm:"primaryKey;autoIncrement"`
	CertificateID    string    `gorm:"size:64;uniqueIndex;not null"`
	UID              string    `gorm:"not null"`
	CandidateName    string    `gorm:"not null"`
	CourseName       string    `gorm:"not null"`
	OrgName          string    `gorm:"not null"`
	IPFSHash         string    `gorm:"column:ipfs_hash;index;not null"`
	InstituteEmail   string    `gorm:"index;not null"`
	DigitalSignature string    `gorm:"type:text;not null"`
	Revoked          bool      `gorm:"not null;default:false"`
	IssuedAt         time.Time `gorm:"not null"`
}

func (CertificateModel) TableName() string { return "certificates" }

// RevocationModel keeps the time of the first revocation of a certificate.
type RevocationModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	CertificateID string    `gorm:"size:64;uniqueIndex;not null"`
	RevokedAt     time.Time `gorm:"not null"`
}

func (RevocationModel) TableName() string { return "certificate_revocations" }

type InstituteModel struct {
	Identity     string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	PublicKeyPEM string    `gorm:"column:public_key_pem;type:text;not null"`
	IsVerified   bool      `gorm:"not null;default:false"`
	RegisteredAt time.Time `gorm:"not null"`
}

func (InstituteModel) TableName() string { return "institutes" }
