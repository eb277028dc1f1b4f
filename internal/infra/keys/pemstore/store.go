// Package pemstore keeps institute key pairs as PEM files on local disk.
// The files are named private_key.pem and public_key.pem; the .pem suffix
// matches key directories created by earlier deployments, which load as-is.
package pemstore

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/crypto"

	"github.com/gofrs/flock"
)

const (
	PrivateKeyFile = "private_key.pem"
	PublicKeyFile  = "public_key.pem"

	lockDir        = ".locks"
	lockRetryDelay = 50 * time.Millisecond
)

// Store keeps one RSA key pair per institute identity on local disk:
//
//	<root>/<identity>/private_key.pem   PKCS#8, unencrypted, 0600
//	<root>/<identity>/public_key.pem    SubjectPublicKeyInfo, 0644
//
// Private keys are not encrypted at rest. Anyone with read access to root can
// sign as any institute.
type Store struct {
	root string
	now  func() time.Time
}

func NewStore(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("key store root is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create key store root: %w", err)
	}
	return &Store{root: root, now: time.Now}, nil
}

func (s *Store) Root() string {
	return s.root
}

// KeyPaths computes where identity's keys live. It does not touch the disk.
// Surrounding whitespace is ignored, so " a@b" and "a@b" share a directory.
func (s *Store) KeyPaths(identity string) (string, string, error) {
	identity = strings.TrimSpace(identity)
	if !domain.ValidIdentity(identity) {
		return "", "", fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	dir := filepath.Join(s.root, identity)
	return filepath.Join(dir, PrivateKeyFile), filepath.Join(dir, PublicKeyFile), nil
}

// Generate creates and persists a fresh key pair. It never overwrites: if
// either file already exists it returns domain.ErrKeyExists.
func (s *Store) Generate(_ context.Context, identity string) (domain.KeyPair, error) {
	identity = strings.TrimSpace(identity)
	privPath, pubPath, err := s.KeyPaths(identity)
	if err != nil {
		return domain.KeyPair{}, err
	}
	for _, path := range []string{privPath, pubPath} {
		if _, err := os.Stat(path); err == nil {
			return domain.KeyPair{}, fmt.Errorf("%w: %s", domain.ErrKeyExists, identity)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return domain.KeyPair{}, fmt.Errorf("stat key file: %w", err)
		}
	}

	key, err := crypto.GenerateRSAKey()
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	privPEM, err := crypto.EncodePrivateKeyPEM(key)
	if err != nil {
		return domain.KeyPair{}, err
	}
	pubPEM, err := crypto.EncodePublicKeyPEM(&key.PublicKey)
	if err != nil {
		return domain.KeyPair{}, err
	}

	if err := os.MkdirAll(filepath.Dir(privPath), 0o700); err != nil {
		return domain.KeyPair{}, fmt.Errorf("create key directory: %w", err)
	}
	if err := writeExclusive(privPath, privPEM, 0o600); err != nil {
		return domain.KeyPair{}, err
	}
	if err := writeExclusive(pubPath, pubPEM, 0o644); err != nil {
		_ = os.Remove(privPath)
		return domain.KeyPair{}, err
	}
	return domain.KeyPair{Identity: identity, PrivateKey: key, PublicKey: &key.PublicKey}, nil
}

// Ensure returns identity's key pair, generating it on first use. The
// check-then-create runs under a per-identity file lock so concurrent
// onboarding from several processes yields one key pair.
func (s *Store) Ensure(ctx context.Context, identity string) (domain.KeyPair, bool, error) {
	identity = strings.TrimSpace(identity)
	if _, _, err := s.KeyPaths(identity); err != nil {
		return domain.KeyPair{}, false, err
	}
	if err := os.MkdirAll(filepath.Join(s.root, lockDir), 0o700); err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(s.root, lockDir, identity+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("lock key store: %w", err)
	}
	if !locked {
		return domain.KeyPair{}, false, errors.New("lock key store: not acquired")
	}
	defer lock.Unlock()

	priv, err := s.LoadPrivate(ctx, identity)
	switch {
	case err == nil:
		return domain.KeyPair{Identity: identity, PrivateKey: priv, PublicKey: &priv.PublicKey}, false, nil
	case !errors.Is(err, domain.ErrKeyNotFound):
		return domain.KeyPair{}, false, err
	}
	pair, err := s.Generate(ctx, identity)
	if err != nil {
		return domain.KeyPair{}, false, err
	}
	return pair, true, nil
}

func (s *Store) LoadPrivate(_ context.Context, identity string) (*rsa.PrivateKey, error) {
	privPath, _, err := s.KeyPaths(identity)
	if err != nil {
		return nil, err
	}
	data, err := readKeyFile(privPath, identity)
	if err != nil {
		return nil, err
	}
	return crypto.ParsePrivateKeyPEM(data)
}

func (s *Store) LoadPublic(_ context.Context, identity string) (*rsa.PublicKey, error) {
	data, err := s.publicKeyBytes(identity)
	if err != nil {
		return nil, err
	}
	return crypto.ParsePublicKeyPEM(data)
}

// PublicKeyPEM returns the armored public key exactly as stored.
func (s *Store) PublicKeyPEM(_ context.Context, identity string) (string, error) {
	data, err := s.publicKeyBytes(identity)
	if err != nil {
		return "", err
	}
	if _, err := crypto.ParsePublicKeyPEM(data); err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) publicKeyBytes(identity string) ([]byte, error) {
	_, pubPath, err := s.KeyPaths(identity)
	if err != nil {
		return nil, err
	}
	return readKeyFile(pubPath, identity)
}

func (s *Store) ExportBundle(ctx context.Context, identity string) (domain.CredentialBundle, error) {
	identity = strings.TrimSpace(identity)
	pemText, err := s.PublicKeyPEM(ctx, identity)
	if err != nil {
		return domain.CredentialBundle{}, err
	}
	return domain.CredentialBundle{
		InstituteEmail: identity,
		PublicKey:      pemText,
		ExportedAt:     s.now().Unix(),
	}, nil
}

// ImportBundle stores a foreign institute's public key so its certificates can
// be verified locally. Re-importing the same key is a no-op; a different key
// for a known identity is refused.
func (s *Store) ImportBundle(_ context.Context, bundle domain.CredentialBundle) error {
	identity := strings.TrimSpace(bundle.InstituteEmail)
	if identity == "" {
		return fmt.Errorf("%w: institute_email is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(bundle.PublicKey) == "" {
		return fmt.Errorf("%w: public_key is required", domain.ErrInvalidInput)
	}
	if _, err := crypto.ParsePublicKeyPEM([]byte(bundle.PublicKey)); err != nil {
		return err
	}
	_, pubPath, err := s.KeyPaths(identity)
	if err != nil {
		return err
	}
	existing, err := os.ReadFile(pubPath)
	switch {
	case err == nil:
		if bytes.Equal(bytes.TrimSpace(existing), bytes.TrimSpace([]byte(bundle.PublicKey))) {
			return nil
		}
		return fmt.Errorf("%w: %s has a different public key", domain.ErrKeyExists, identity)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read public key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(pubPath), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	return writeExclusive(pubPath, []byte(bundle.PublicKey), 0o644)
}

func readKeyFile(path, identity string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrKeyNotFound, identity)
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return data, nil
}

func writeExclusive(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", domain.ErrKeyExists, path)
		}
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close key file: %w", err)
	}
	return nil
}
