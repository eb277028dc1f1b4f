package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Verdict is the outcome of a verification call. The set is closed and the
// values are mutually exclusive.
type Verdict int

const (
	VerdictNotFound Verdict = iota + 1
	VerdictRevoked
	VerdictSignatureInvalid
	// VerdictUnverifiable means the issuing institute has no public key on file,
	// so the signature could not be checked at all.
	VerdictUnverifiable
	VerdictValidInstituteUnverified
	VerdictValidInstituteVerified
)

var verdictNames = map[Verdict]string{
	VerdictNotFound:                 "not_found",
	VerdictRevoked:                  "revoked",
	VerdictSignatureInvalid:         "signature_invalid",
	VerdictUnverifiable:             "unverifiable",
	VerdictValidInstituteUnverified: "signature_valid_institute_unverified",
	VerdictValidInstituteVerified:   "signature_valid_institute_verified",
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

func (v Verdict) SignatureValid() bool {
	return v == VerdictValidInstituteUnverified || v == VerdictValidInstituteVerified
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	name, ok := verdictNames[v]
	if !ok {
		return nil, fmt.Errorf("unknown verdict %d", int(v))
	}
	return json.Marshal(name)
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseVerdict(name)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func ParseVerdict(name string) (Verdict, error) {
	for v, n := range verdictNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown verdict %q", ErrInvalidInput, name)
}

type VerifyResult struct {
	Verdict       Verdict            `json:"verdict"`
	CertificateID CertificateID      `json:"certificate_id"`
	Record        *CertificateRecord `json:"record,omitempty"`
	Institute     *InstituteRecord   `json:"institute,omitempty"`
	CheckedAt     time.Time          `json:"checked_at"`
}
