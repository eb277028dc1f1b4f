package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"certus/internal/domain"
)

// DeriveCertificateID hashes uid, candidate name, course name and org name
// concatenated in that order with no separators.
//
// Field boundaries are not encoded, so ("12", "3x", c, o) and ("1", "23x", c, o)
// derive the same id. Identical content also always derives the same id. Both
// properties are part of the published identifier format and are kept.
func DeriveCertificateID(fields domain.CertificateFields) domain.CertificateID {
	h := sha256.New()
	h.Write([]byte(fields.UID))
	h.Write([]byte(fields.CandidateName))
	h.Write([]byte(fields.CourseName))
	h.Write([]byte(fields.OrgName))
	return domain.CertificateID(hex.EncodeToString(h.Sum(nil)))
}
