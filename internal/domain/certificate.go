package domain

import (
	"fmt"
	"strings"
	"time"
)

// CertificateFields is the semantic content of a certificate. It never changes
// after issuance.
type CertificateFields struct {
	UID           string `json:"uid"`
	CandidateName string `json:"candidate_name"`
	CourseName    string `json:"course_name"`
	OrgName       string `json:"org_name"`
}

// Validate reports the first blank field as an input error.
func (f CertificateFields) Validate() error {
	switch {
	case strings.TrimSpace(f.UID) == "":
		return missingField("uid")
	case strings.TrimSpace(f.CandidateName) == "":
		return missingField("candidate_name")
	case strings.TrimSpace(f.CourseName) == "":
		return missingField("course_name")
	case strings.TrimSpace(f.OrgName) == "":
		return missingField("org_name")
	}
	return nil
}

// CertificateID is the lowercase hex SHA-256 digest derived from CertificateFields.
type CertificateID string

const CertificateIDLength = 64

func (id CertificateID) String() string { return string(id) }

func ValidCertificateID(id string) bool {
	if len(id) != CertificateIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// CertificateRecord is the signed unit stored on the ledger. Only Revoked may
// change after issuance.
type CertificateRecord struct {
	CertificateFields
	CertificateID    CertificateID `json:"certificate_id"`
	IPFSHash         string        `json:"ipfs_hash"`
	InstituteEmail   string        `json:"institute_email"`
	DigitalSignature string        `json:"digital_signature"`
	Revoked          bool          `json:"revoked"`
	IssuedAt         time.Time     `json:"issued_at,omitempty"`
}

func (r CertificateRecord) Validate() error {
	if err := r.CertificateFields.Validate(); err != nil {
		return err
	}
	if !ValidCertificateID(string(r.CertificateID)) {
		return fmt.Errorf("%w: certificate_id must be 64 lowercase hex characters", ErrInvalidInput)
	}
	if strings.TrimSpace(r.IPFSHash) == "" {
		return missingField("ipfs_hash")
	}
	if strings.TrimSpace(r.InstituteEmail) == "" {
		return missingField("institute_email")
	}
	if strings.TrimSpace(r.DigitalSignature) == "" {
		return missingField("digital_signature")
	}
	return nil
}

// PayloadFields is the field set covered by DigitalSignature.
func (r CertificateRecord) PayloadFields() map[string]string {
	return map[string]string{
		"uid":            r.UID,
		"candidate_name": r.CandidateName,
		"course_name":    r.CourseName,
		"org_name":       r.OrgName,
		"ipfs_hash":      r.IPFSHash,
		"certificate_id": string(r.CertificateID),
	}
}

// DigitalCertificate is the self-contained signed wrapper handed to holders.
// DigitalSignature covers every other field; see SignedContent.
type DigitalCertificate struct {
	CertificateData  map[string]string `json:"certificate_data"`
	DigitalSignature string            `json:"digital_signature"`
	InstituteEmail   string            `json:"institute_email"`
	// Timestamp is the signing time in unix seconds.
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

const DigitalCertificateVersion = "1.0"

// SignedContent is the document DigitalSignature is computed over: the
// wrapper without the signature itself.
func (c DigitalCertificate) SignedContent() map[string]any {
	data := make(map[string]any, len(c.CertificateData))
	for k, v := range c.CertificateData {
		data[k] = v
	}
	return map[string]any{
		"certificate_data": data,
		"institute_email":  c.InstituteEmail,
		"timestamp":        c.Timestamp,
		"version":          c.Version,
	}
}

func missingField(name string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
}
