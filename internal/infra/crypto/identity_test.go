package crypto

import (
	"testing"

	"certus/internal/domain"
)

func TestDeriveCertificateID_KnownVector(t *testing.T) {
	fields := domain.CertificateFields{
		UID:           "1001",
		CandidateName: "Ada Lovelace",
		CourseName:    "Systems Design",
		OrgName:       "Acme Institute",
	}
	got := DeriveCertificateID(fields)
	want := domain.CertificateID("73a7c3d3c1a36fbfcbd55e22cac680127fc676e1f182790bb05f816ffad9e2e0")
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	if !domain.ValidCertificateID(string(got)) {
		t.Fatalf("derived id is not 64 lowercase hex: %s", got)
	}
}

func TestDeriveCertificateID_Deterministic(t *testing.T) {
	cases := []domain.CertificateFields{
		{UID: "1", CandidateName: "a", CourseName: "b", OrgName: "c"},
		{UID: "", CandidateName: "", CourseName: "", OrgName: ""},
		{UID: "42", CandidateName: "Zoë", CourseName: "Math 101", OrgName: "Uni"},
	}
	for _, fields := range cases {
		first := DeriveCertificateID(fields)
		for i := 0; i < 5; i++ {
			if again := DeriveCertificateID(fields); again != first {
				t.Fatalf("derive not deterministic for %+v: %s != %s", fields, first, again)
			}
		}
	}
}

func TestDeriveCertificateID_AmbiguousBoundariesCollide(t *testing.T) {
	a := domain.CertificateFields{UID: "12", CandidateName: "3x", CourseName: "c", OrgName: "o"}
	b := domain.CertificateFields{UID: "1", CandidateName: "23x", CourseName: "c", OrgName: "o"}
	if DeriveCertificateID(a) != DeriveCertificateID(b) {
		t.Fatal("expected delimiter-free concatenation to collide")
	}
}
