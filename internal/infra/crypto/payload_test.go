package crypto

import (
	"errors"
	"strings"
	"testing"

	"certus/internal/domain"
)

func samplePayload() map[string]string {
	return map[string]string{
		"uid":            "1001",
		"candidate_name": "Ada Lovelace",
		"course_name":    "Systems Design",
		"org_name":       "Acme Institute",
		"ipfs_hash":      "QmX",
		"certificate_id": "abc",
	}
}

func TestEncodePayload_LegacyBytes(t *testing.T) {
	got, err := EncodePayload(samplePayload(), CertificatePayloadKeys, FormatLegacy)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"candidate_name": "Ada Lovelace", "certificate_id": "abc", "course_name": "Systems Design", "ipfs_hash": "QmX", "org_name": "Acme Institute", "uid": "1001"}`
	if string(got) != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestEncodePayload_InsertionOrderIndependent(t *testing.T) {
	for _, format := range []PayloadFormat{FormatLegacy, FormatJCS} {
		first, err := EncodePayload(samplePayload(), CertificatePayloadKeys, format)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		reordered := make(map[string]string)
		keys := []string{"certificate_id", "org_name", "uid", "ipfs_hash", "course_name", "candidate_name"}
		src := samplePayload()
		for _, k := range keys {
			reordered[k] = src[k]
		}
		second, err := EncodePayload(reordered, CertificatePayloadKeys, format)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if string(first) != string(second) {
			t.Fatalf("%s: encodings differ:\n%s\n%s", format, first, second)
		}
	}
}

func TestEncodePayload_MissingFieldsFailLoudly(t *testing.T) {
	fields := samplePayload()
	delete(fields, "ipfs_hash")
	fields["uid"] = "   "

	_, err := EncodePayload(fields, CertificatePayloadKeys, FormatLegacy)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !strings.Contains(err.Error(), "ipfs_hash") || !strings.Contains(err.Error(), "uid") {
		t.Fatalf("error should name missing fields: %v", err)
	}
}

func TestEncodePayload_KeepsExtraFields(t *testing.T) {
	fields := samplePayload()
	fields["institute_email"] = "acme@example.org"
	got, err := EncodePayload(fields, CertificatePayloadKeys, FormatJCS)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(got), `"institute_email":"acme@example.org"`) {
		t.Fatalf("extra field dropped: %s", got)
	}
}

func TestParsePayloadFormat(t *testing.T) {
	if f, err := ParsePayloadFormat(""); err != nil || f != FormatLegacy {
		t.Fatalf("default format: %v %v", f, err)
	}
	if f, err := ParsePayloadFormat("JCS"); err != nil || f != FormatJCS {
		t.Fatalf("jcs format: %v %v", f, err)
	}
	if _, err := ParsePayloadFormat("xml"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestEncodeDocument_NestedLegacy(t *testing.T) {
	doc := map[string]any{
		"version":          "1.0",
		"timestamp":        int64(1700000000),
		"institute_email":  "acme@example.org",
		"certificate_data": map[string]any{"uid": "1001", "candidate_name": "Ada Lovelace"},
	}
	got, err := EncodeDocument(doc, FormatLegacy)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"certificate_data": {"candidate_name": "Ada Lovelace", "uid": "1001"}, "institute_email": "acme@example.org", "timestamp": 1700000000, "version": "1.0"}`
	if string(got) != want {
		t.Fatalf("encoding mismatch\n got: %s\nwant: %s", got, want)
	}
	if _, err := EncodeDocument(nil, FormatLegacy); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty document, got %v", err)
	}
}
