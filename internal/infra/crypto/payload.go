package crypto

import (
	"fmt"
	"sort"
	"strings"

	"certus/internal/domain"
)

type PayloadFormat string

const (
	FormatLegacy PayloadFormat = "legacy"
	FormatJCS    PayloadFormat = "jcs"
)

func ParsePayloadFormat(value string) (PayloadFormat, error) {
	switch PayloadFormat(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatLegacy:
		return FormatLegacy, nil
	case FormatJCS:
		return FormatJCS, nil
	default:
		return "", fmt.Errorf("%w: unknown payload format %q", domain.ErrInvalidInput, value)
	}
}

// CertificatePayloadKeys is the field set signed at issuance and recomputed
// on verification.
var CertificatePayloadKeys = []string{
	"uid",
	"candidate_name",
	"course_name",
	"org_name",
	"ipfs_hash",
	"certificate_id",
}

// EncodePayload returns the key-sorted encoding of fields. Every key in
// required must be present and non-blank; nothing is defaulted.
func EncodePayload(fields map[string]string, required []string, format PayloadFormat) ([]byte, error) {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(fields[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing payload fields: %s", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return encodeFormat(fields, format)
}

// EncodeDocument is the key-sorted encoding of a nested document, such as a
// digital certificate wrapper, in the same format as EncodePayload.
func EncodeDocument(doc map[string]any, format PayloadFormat) ([]byte, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidInput)
	}
	return encodeFormat(doc, format)
}

func encodeFormat(v any, format PayloadFormat) ([]byte, error) {
	switch format {
	case FormatLegacy, "":
		return canonicalizeAnyStyle(v, legacyStyle)
	case FormatJCS:
		return canonicalizeAnyStyle(v, jcsStyle)
	default:
		return nil, fmt.Errorf("%w: unknown payload format %q", domain.ErrInvalidInput, format)
	}
}
