package main

import (
	"encoding/json"
	"fmt"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/certtext"
	"certus/internal/infra/crypto"
	"certus/internal/usecase"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// operatorSession acts for the operator running the binary, who holds the
// key store and ledger credentials directly.
func operatorSession() domain.Session {
	now := time.Now().UTC()
	return domain.Session{Subject: "cli", Role: domain.RoleAdmin, IssuedAt: now, ExpiresAt: now.Add(time.Minute)}
}

func addFieldFlags(cmd *cobra.Command, f *domain.CertificateFields) {
	cmd.Flags().StringVar(&f.UID, "uid", "", "certificate uid")
	cmd.Flags().StringVar(&f.CandidateName, "candidate", "", "candidate name")
	cmd.Flags().StringVar(&f.CourseName, "course", "", "course name")
	cmd.Flags().StringVar(&f.OrgName, "org", "", "organisation name")
}

func (c *cli) deriveCmd() *cobra.Command {
	var fields domain.CertificateFields
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the certificate id for a set of fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fields.Validate(); err != nil {
				return err
			}
			id := crypto.DeriveCertificateID(fields)
			if c.jsonOut {
				return c.printJSON(map[string]string{"certificate_id": id.String()})
			}
			fmt.Fprintln(c.out, id)
			return nil
		},
	}
	addFieldFlags(cmd, &fields)
	return cmd
}

func (c *cli) signCmd() *cobra.Command {
	var (
		fields    domain.CertificateFields
		institute string
		ipfsHash  string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign certificate fields into a self-contained digital certificate",
		Long: `sign creates the institute key on first use and prints a digital
certificate JSON document. Nothing is written to the ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			cert, err := a.Signer.CreateDigitalCertificate(cmd.Context(), institute, fields, ipfsHash)
			if err != nil {
				return err
			}
			return c.printJSON(cert)
		},
	}
	addFieldFlags(cmd, &fields)
	cmd.Flags().StringVar(&institute, "institute", "", "institute email")
	cmd.Flags().StringVar(&ipfsHash, "ipfs-hash", "", "content address of the certificate document")
	_ = cmd.MarkFlagRequired("institute")
	_ = cmd.MarkFlagRequired("ipfs-hash")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	var (
		institute string
		file      string
	)
	cmd := &cobra.Command{
		Use:   "verify [certificate_id]",
		Short: "Verify a certificate on the ledger, or a digital certificate file",
		Args: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.NoArgs(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if file != "" {
				data, err := readInput(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				var cert domain.DigitalCertificate
				if err := json.Unmarshal(data, &cert); err != nil {
					return fmt.Errorf("%w: decode digital certificate: %v", domain.ErrInvalidInput, err)
				}
				verdict, err := a.Verifier.VerifyDigitalCertificate(cmd.Context(), cert, institute)
				if err != nil {
					return err
				}
				return c.printVerdict(&domain.VerifyResult{
					Verdict:       verdict,
					CertificateID: domain.CertificateID(cert.CertificateData["certificate_id"]),
				})
			}
			res, err := a.Verifier.Execute(cmd.Context(), domain.CertificateID(args[0]), institute)
			if err != nil {
				return err
			}
			return c.printVerdict(res)
		},
	}
	cmd.Flags().StringVar(&institute, "institute", "", "expected issuing institute")
	cmd.Flags().StringVarP(&file, "file", "f", "", "digital certificate JSON to verify detached (- for stdin)")
	return cmd
}

func (c *cli) printVerdict(res *domain.VerifyResult) error {
	if c.jsonOut {
		if err := c.printJSON(res); err != nil {
			return err
		}
	} else {
		attr := color.FgRed
		switch res.Verdict {
		case domain.VerdictValidInstituteVerified:
			attr = color.FgGreen
		case domain.VerdictValidInstituteUnverified, domain.VerdictUnverifiable:
			attr = color.FgYellow
		}
		color.New(attr).Fprintln(c.out, res.Verdict)
		if res.CertificateID != "" {
			fmt.Fprintf(c.out, "  certificate_id: %s\n", res.CertificateID)
		}
		if res.Record != nil {
			fmt.Fprintf(c.out, "  institute:      %s\n", res.Record.InstituteEmail)
		}
	}
	if !res.Verdict.SignatureValid() {
		return errNotValid
	}
	return nil
}

func (c *cli) issueCmd() *cobra.Command {
	var req usecase.IssueRequest
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a certificate and record it on the ledger",
		Long: `issue signs the certificate with the institute key and submits the
record to the configured ledger. A blank --uid is reserved from the uid
allocator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.Signer.Issue(cmd.Context(), req)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(rec)
			}
			color.New(color.FgGreen).Fprintf(c.out, "issued %s\n", rec.CertificateID)
			fmt.Fprintf(c.out, "  uid:       %s\n  ipfs_hash: %s\n", rec.UID, rec.IPFSHash)
			return nil
		},
	}
	addFieldFlags(cmd, &req.Fields)
	cmd.Flags().StringVar(&req.InstituteEmail, "institute", "", "institute email")
	cmd.Flags().StringVar(&req.IPFSHash, "ipfs-hash", "", "content address of the certificate document")
	_ = cmd.MarkFlagRequired("institute")
	return cmd
}

func (c *cli) revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <certificate_id>",
		Short: "Revoke a certificate; this cannot be undone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.Revoker.Execute(cmd.Context(), operatorSession(), domain.CertificateID(args[0]))
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(rec)
			}
			color.New(color.FgYellow).Fprintf(c.out, "revoked %s\n", rec.CertificateID)
			return nil
		},
	}
}

func (c *cli) certificateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certificate",
		Short: "Render and parse plain-text certificate documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "text <certificate_id>",
		Short: "Render the text document for a recorded certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.Lookup.Get(cmd.Context(), domain.CertificateID(args[0]))
			if err != nil {
				return err
			}
			text, err := certtext.Render(certtext.Content{
				CertificateFields: rec.CertificateFields,
				InstituteEmail:    rec.InstituteEmail,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, text)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "parse <file|->",
		Short: "Read fields from a text document and derive its certificate id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			content, err := certtext.Parse(string(data))
			if err != nil {
				return err
			}
			return c.printJSON(struct {
				domain.CertificateFields
				InstituteEmail string `json:"institute_email"`
				CertificateID  string `json:"certificate_id"`
			}{
				CertificateFields: content.CertificateFields,
				InstituteEmail:    content.InstituteEmail,
				CertificateID:     crypto.DeriveCertificateID(content.CertificateFields).String(),
			})
		},
	})
	return cmd
}
