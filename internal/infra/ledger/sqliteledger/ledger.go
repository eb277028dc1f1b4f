// Package sqliteledger is a single-file ledger for deployments that have no
// external chain or database.
package sqliteledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"certus/internal/domain"

	_ "modernc.org/sqlite" // driver registration
)

type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

var _ domain.Ledger = (*Ledger)(nil)

// Open opens or creates the ledger at path. ":memory:" gives a private
// in-memory ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	// One writer keeps ":memory:" databases on a single connection and
	// serialises state transitions.
	db.SetMaxOpenConns(1)
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS certificates (
			seq               INTEGER PRIMARY KEY AUTOINCREMENT,
			certificate_id    TEXT NOT NULL UNIQUE,
			uid               TEXT NOT NULL,
			candidate_name    TEXT NOT NULL,
			course_name       TEXT NOT NULL,
			org_name          TEXT NOT NULL,
			ipfs_hash         TEXT NOT NULL,
			institute_email   TEXT NOT NULL,
			digital_signature TEXT NOT NULL,
			revoked           INTEGER NOT NULL DEFAULT 0,
			issued_at         TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_certificates_ipfs ON certificates(ipfs_hash);
		CREATE TABLE IF NOT EXISTS institutes (
			identity       TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			public_key_pem TEXT NOT NULL,
			is_verified    INTEGER NOT NULL DEFAULT 0,
			registered_at  TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create ledger tables: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) RegisterInstitute(ctx context.Context, identity, name, publicKeyPEM string) error {
	if !domain.ValidIdentity(identity) {
		return fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, identity)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO institutes (identity, name, public_key_pem, is_verified, registered_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(identity) DO UPDATE SET name = excluded.name, public_key_pem = excluded.public_key_pem
	`, identity, name, publicKeyPEM, formatTime(l.now()))
	return unavailable("register institute", err)
}

func (l *Ledger) VerifyInstitute(ctx context.Context, identity string) error {
	res, err := l.db.ExecContext(ctx, `UPDATE institutes SET is_verified = 1 WHERE identity = ?`, identity)
	if err != nil {
		return unavailable("verify institute", err)
	}
	return requireRow(res, "institute "+identity)
}

func (l *Ledger) IssueCertificate(ctx context.Context, record domain.CertificateRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	issuedAt := record.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = l.now()
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO certificates (certificate_id, uid, candidate_name, course_name, org_name,
			ipfs_hash, institute_email, digital_signature, revoked, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(certificate_id) DO NOTHING
	`, string(record.CertificateID), record.UID, record.CandidateName, record.CourseName, record.OrgName,
		record.IPFSHash, record.InstituteEmail, record.DigitalSignature, formatTime(issuedAt))
	if err != nil {
		return unavailable("issue certificate", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("issue certificate", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCertificateExists, record.CertificateID)
	}
	return nil
}

func (l *Ledger) RevokeCertificate(ctx context.Context, id domain.CertificateID) error {
	res, err := l.db.ExecContext(ctx, `UPDATE certificates SET revoked = 1 WHERE certificate_id = ?`, string(id))
	if err != nil {
		return unavailable("revoke certificate", err)
	}
	return requireRow(res, "certificate "+string(id))
}

func (l *Ledger) GetCertificate(ctx context.Context, id domain.CertificateID) (*domain.CertificateRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT certificate_id, uid, candidate_name, course_name, org_name, ipfs_hash,
			institute_email, digital_signature, revoked, issued_at
		FROM certificates WHERE certificate_id = ?
	`, string(id))

	var (
		rec      domain.CertificateRecord
		certID   string
		revoked  int
		issuedAt string
	)
	err := row.Scan(&certID, &rec.UID, &rec.CandidateName, &rec.CourseName, &rec.OrgName, &rec.IPFSHash,
		&rec.InstituteEmail, &rec.DigitalSignature, &revoked, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("certificate %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get certificate", err)
	}
	rec.CertificateID = domain.CertificateID(certID)
	rec.Revoked = revoked != 0
	rec.IssuedAt = parseTime(issuedAt)
	return &rec, nil
}

func (l *Ledger) IsRevoked(ctx context.Context, id domain.CertificateID) (bool, error) {
	var revoked int
	err := l.db.QueryRowContext(ctx, `SELECT revoked FROM certificates WHERE certificate_id = ?`, string(id)).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("certificate %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return false, unavailable("is revoked", err)
	}
	return revoked != 0, nil
}

func (l *Ledger) GetInstitute(ctx context.Context, identity string) (*domain.InstituteRecord, error) {
	var (
		rec          domain.InstituteRecord
		verified     int
		registeredAt string
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT identity, name, public_key_pem, is_verified, registered_at
		FROM institutes WHERE identity = ?
	`, identity).Scan(&rec.Identity, &rec.Name, &rec.PublicKeyPEM, &verified, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("institute %s: %w", identity, domain.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get institute", err)
	}
	rec.IsVerified = verified != 0
	rec.RegisteredAt = parseTime(registeredAt)
	return &rec, nil
}

func (l *Ledger) ListCertificateIDs(ctx context.Context) ([]domain.CertificateID, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT certificate_id FROM certificates ORDER BY seq`)
	if err != nil {
		return nil, unavailable("list certificates", err)
	}
	defer rows.Close()

	var ids []domain.CertificateID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("list certificates", err)
		}
		ids = append(ids, domain.CertificateID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list certificates", err)
	}
	return ids, nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrLedgerUnavailable, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
