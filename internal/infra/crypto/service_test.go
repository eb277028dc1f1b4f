package crypto

import (
	"crypto/rsa"
	"errors"
	"testing"

	"certus/internal/domain"
)

func mustKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := GenerateRSAKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestSign_ProbabilisticButVerifiable(t *testing.T) {
	svc := NewService(FormatLegacy)
	key := mustKey(t)
	payload, err := svc.EncodePayload(samplePayload())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	first, err := svc.Sign(key, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, err := svc.Sign(key, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if first == second {
		t.Fatal("expected two different signatures over the same payload")
	}
	for _, sig := range []string{first, second} {
		if err := svc.VerifySignature(&key.PublicKey, payload, sig); err != nil {
			t.Fatalf("verify: %v", err)
		}
	}
}

func TestVerifySignature_DetectsSingleByteTamper(t *testing.T) {
	svc := NewService(FormatJCS)
	key := mustKey(t)
	payload, err := svc.EncodePayload(samplePayload())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sig, err := svc.Sign(key, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	for i := range payload {
		mutated := append([]byte(nil), payload...)
		mutated[i] ^= 0x01
		err := svc.VerifySignature(&key.PublicKey, mutated, sig)
		if !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("byte %d: expected signature invalid, got %v", i, err)
		}
	}
}

func TestVerifySignature_WrongKey(t *testing.T) {
	svc := NewService(FormatLegacy)
	keyA := mustKey(t)
	keyB := mustKey(t)
	payload := []byte(`{"uid": "1"}`)
	sig, err := svc.Sign(keyA, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := svc.VerifySignature(&keyB.PublicKey, payload, sig); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid with wrong key, got %v", err)
	}
}

func TestVerifySignature_BadEncoding(t *testing.T) {
	svc := NewService(FormatLegacy)
	key := mustKey(t)
	if err := svc.VerifySignature(&key.PublicKey, []byte("x"), "%%%not-base64"); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid, got %v", err)
	}
	if err := svc.VerifySignature(&key.PublicKey, []byte("x"), ""); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid for empty signature, got %v", err)
	}
}

func TestPEMRoundTrip(t *testing.T) {
	key := mustKey(t)
	privPEM, err := EncodePrivateKeyPEM(key)
	if err != nil {
		t.Fatalf("encode private: %v", err)
	}
	pubPEM, err := EncodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		t.Fatalf("encode public: %v", err)
	}
	priv, err := ParsePrivateKeyPEM(privPEM)
	if err != nil {
		t.Fatalf("parse private: %v", err)
	}
	pub, err := ParsePublicKeyPEM(pubPEM)
	if err != nil {
		t.Fatalf("parse public: %v", err)
	}
	if !priv.Equal(key) || !pub.Equal(&key.PublicKey) {
		t.Fatal("round-tripped keys differ")
	}
	if pub.E != domain.KeyExponent || pub.N.BitLen() != domain.KeyBits {
		t.Fatalf("unexpected key parameters e=%d bits=%d", pub.E, pub.N.BitLen())
	}
	if _, err := ParsePublicKeyPEM(privPEM); !errors.Is(err, domain.ErrKeyInvalid) {
		t.Fatalf("expected key invalid for private block, got %v", err)
	}
	if _, err := ParsePrivateKeyPEM([]byte("garbage")); !errors.Is(err, domain.ErrKeyInvalid) {
		t.Fatalf("expected key invalid for garbage, got %v", err)
	}
}
