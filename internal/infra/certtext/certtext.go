// Package certtext renders the printable text of a certificate and reads the
// fields back from extracted text.
package certtext

import (
	"fmt"
	"strings"

	"certus/internal/domain"
)

const (
	Title        = "Certificate of Completion"
	emailPrefix  = "Email: "
	certifyLine  = "This is to certify that"
	uidLine      = "with UID"
	completeLine = "has successfully completed the course:"
)

// Content is what a printed certificate shows.
type Content struct {
	domain.CertificateFields
	InstituteEmail string
}

// Render lays the certificate out one item per line:
//
//	<org name>
//	Email: <institute email>
//	Certificate of Completion
//	This is to certify that
//	<candidate name>
//	with UID
//	<uid>
//	has successfully completed the course:
//	<course name>
func Render(c Content) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	for _, v := range []string{c.UID, c.CandidateName, c.CourseName, c.OrgName, c.InstituteEmail} {
		if strings.ContainsAny(v, "\r\n") {
			return "", fmt.Errorf("%w: certificate fields must be single line", domain.ErrInvalidInput)
		}
	}
	lines := []string{
		c.OrgName,
		emailPrefix + c.InstituteEmail,
		Title,
		certifyLine,
		c.CandidateName,
		uidLine,
		c.UID,
		completeLine,
		c.CourseName,
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// Renderer adapts Render to the signing use case.
type Renderer struct{}

func (Renderer) Render(institute string, fields domain.CertificateFields) (string, error) {
	return Render(Content{CertificateFields: fields, InstituteEmail: institute})
}

// Parse extracts content by line position. Blank lines and surrounding
// whitespace are ignored, and the course name is always the last line.
func Parse(text string) (Content, error) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 8 {
		return Content{}, fmt.Errorf("%w: certificate text has %d lines, want at least 8", domain.ErrInvalidInput, len(lines))
	}
	c := Content{
		CertificateFields: domain.CertificateFields{
			OrgName:       lines[0],
			CandidateName: lines[4],
			UID:           lines[6],
			CourseName:    lines[len(lines)-1],
		},
		InstituteEmail: strings.TrimSpace(strings.TrimPrefix(lines[1], emailPrefix)),
	}
	if err := c.Validate(); err != nil {
		return Content{}, err
	}
	return c, nil
}
