package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"certus/internal/domain"
)

// pssOptions signs with the largest salt the modulus allows and detects the
// salt length on verify.
var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

type Service struct {
	format PayloadFormat
}

func NewService(format PayloadFormat) *Service {
	if format == "" {
		format = FormatLegacy
	}
	return &Service{format: format}
}

func (s *Service) Format() PayloadFormat {
	return s.format
}

func (s *Service) DeriveCertificateID(fields domain.CertificateFields) domain.CertificateID {
	return DeriveCertificateID(fields)
}

func (s *Service) EncodePayload(fields map[string]string) ([]byte, error) {
	return EncodePayload(fields, CertificatePayloadKeys, s.format)
}

func (s *Service) EncodeDocument(doc map[string]any) ([]byte, error) {
	return EncodeDocument(doc, s.format)
}

func (s *Service) Sign(key *rsa.PrivateKey, payload []byte) (string, error) {
	if key == nil {
		return "", errors.New("private key is required")
	}
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifySignature returns an error wrapping domain.ErrSignatureInvalid for any
// signature that does not check out, including one that is not valid base64.
func (s *Service) VerifySignature(key *rsa.PublicKey, payload []byte, signature string) error {
	if key == nil {
		return errors.New("public key is required")
	}
	if signature == "" {
		return fmt.Errorf("%w: empty signature", domain.ErrSignatureInvalid)
	}
	sigBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: invalid signature encoding: %v", domain.ErrSignatureInvalid, err)
	}
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], sigBytes, pssOptions); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}
	return nil
}
