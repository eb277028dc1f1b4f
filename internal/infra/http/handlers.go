package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/certtext"
	"certus/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type issueRequest struct {
	domain.CertificateFields
	InstituteEmail string `json:"institute_email"`
	IPFSHash       string `json:"ipfs_hash"`
}

type verifyContentRequest struct {
	domain.CertificateFields
	InstituteEmail string `json:"institute_email"`
	// Text is the extracted text of a printed certificate. When set it
	// replaces the individual fields.
	Text string `json:"text,omitempty"`
}

type verifyResponse struct {
	Verdict        domain.Verdict            `json:"verdict"`
	SignatureValid bool                      `json:"signature_valid"`
	CertificateID  domain.CertificateID      `json:"certificate_id"`
	Certificate    *domain.CertificateRecord `json:"certificate,omitempty"`
	Institute      *instituteResponse        `json:"institute,omitempty"`
	CheckedAt      string                    `json:"checked_at"`
}

type instituteResponse struct {
	Identity     string `json:"identity"`
	Name         string `json:"name"`
	PublicKeyPEM string `json:"public_key_pem,omitempty"`
	IsVerified   bool   `json:"is_verified"`
	RegisteredAt string `json:"registered_at,omitempty"`
}

type registerInstituteRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sessionRequest struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	Subject   string      `json:"subject"`
	Role      domain.Role `json:"role"`
	ExpiresAt string      `json:"expires_at"`
}

func (s *Server) handleHealth(c *gin.Context) {
	backend := s.cfg.LedgerBackend
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "ledger": backend})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ledger": backend})
}

func (s *Server) handleDerive(c *gin.Context) {
	if s.signer == nil || s.signer.Crypto == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var fields domain.CertificateFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if err := fields.Validate(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificate_id": s.signer.Crypto.DeriveCertificateID(fields)})
}

func (s *Server) handleIssue(c *gin.Context) {
	if s.signer == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	session, ok := s.authenticate(c)
	if !ok {
		return
	}
	institute := strings.TrimSpace(req.InstituteEmail)
	if institute == "" && !s.authDisabled() {
		institute = session.Subject
	}
	if !s.authorize(c, session, domain.ActionIssueCertificate, institute) {
		return
	}
	rec, err := s.signer.Issue(c.Request.Context(), usecase.IssueRequest{
		InstituteEmail: institute,
		Fields:         req.CertificateFields,
		IPFSHash:       req.IPFSHash,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleGetCertificate(c *gin.Context) {
	if s.lookup == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	rec, err := s.lookup.Get(c.Request.Context(), domain.CertificateID(c.Param("certificate_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleLookupByIPFSHash(c *gin.Context) {
	if s.lookup == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	rec, err := s.lookup.FindByIPFSHash(c.Request.Context(), c.Query("ipfs_hash"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.verifier == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	res, err := s.verifier.Execute(c.Request.Context(), domain.CertificateID(c.Param("certificate_id")), c.Query("institute"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildVerifyResponse(res))
}

func (s *Server) handleVerifyByContent(c *gin.Context) {
	if s.verifier == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req verifyContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	fields, hint := req.CertificateFields, req.InstituteEmail
	if strings.TrimSpace(req.Text) != "" {
		content, err := certtext.Parse(req.Text)
		if err != nil {
			writeError(c, err)
			return
		}
		fields = content.CertificateFields
		if hint == "" {
			hint = content.InstituteEmail
		}
	}
	res, err := s.verifier.VerifyByContent(c.Request.Context(), fields, hint)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildVerifyResponse(res))
}

func (s *Server) handleRevoke(c *gin.Context) {
	if s.revoker == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	id := domain.CertificateID(c.Param("certificate_id"))
	// Ownership is checked by the use case once the record is loaded.
	session, ok := s.authenticate(c)
	if !ok {
		return
	}
	rec, err := s.revoker.Execute(c.Request.Context(), session, id)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRegisterInstitute(c *gin.Context) {
	if s.institutes == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req registerInstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if _, ok := s.requireSession(c, domain.ActionRegisterInstitute, req.Email); !ok {
		return
	}
	rec, err := s.institutes.Register(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildInstituteResponse(rec, true))
}

func (s *Server) handleGetInstitute(c *gin.Context) {
	if s.institutes == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	rec, err := s.institutes.Get(c.Request.Context(), c.Param("identity"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildInstituteResponse(rec, true))
}

func (s *Server) handleApproveInstitute(c *gin.Context) {
	if s.institutes == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	identity := c.Param("identity")
	if _, ok := s.requireSession(c, domain.ActionApproveInstitute, identity); !ok {
		return
	}
	if err := s.institutes.Approve(c.Request.Context(), identity); err != nil {
		writeError(c, err)
		return
	}
	rec, err := s.institutes.Get(c.Request.Context(), identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildInstituteResponse(rec, false))
}

func (s *Server) handleExportCredentials(c *gin.Context) {
	if s.institutes == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	identity := c.Param("identity")
	if _, ok := s.requireSession(c, domain.ActionExportCredentials, identity); !ok {
		return
	}
	bundle, err := s.institutes.ExportCredentials(c.Request.Context(), identity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+identity+`_credentials.json"`)
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleImportCredentials(c *gin.Context) {
	if s.institutes == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var bundle domain.CredentialBundle
	if err := c.ShouldBindJSON(&bundle); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if _, ok := s.requireSession(c, domain.ActionImportCredentials, bundle.InstituteEmail); !ok {
		return
	}
	if err := s.institutes.ImportCredentials(c.Request.Context(), bundle); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"institute_email": bundle.InstituteEmail, "imported": true})
}

// handleIssueSession is called by the authentication front end after it has
// checked the user's credentials.
func (s *Server) handleIssueSession(c *gin.Context) {
	if s.sessions == nil || s.authDisabled() {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "sessions are disabled")
		return
	}
	if !s.validAdminKey(c) {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return
	}
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Role == domain.RoleAdmin && !s.cfg.IsAdmin(req.Email) {
		writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "not an administrator")
		return
	}
	token, session, err := s.sessions.Issue(req.Email, req.Role, s.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		Token:     token,
		Subject:   session.Subject,
		Role:      session.Role,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func buildVerifyResponse(res *domain.VerifyResult) verifyResponse {
	out := verifyResponse{
		Verdict:        res.Verdict,
		SignatureValid: res.Verdict.SignatureValid(),
		CertificateID:  res.CertificateID,
		Certificate:    res.Record,
		CheckedAt:      res.CheckedAt.UTC().Format(time.RFC3339),
	}
	if res.Institute != nil {
		inst := buildInstituteResponse(res.Institute, false)
		out.Institute = &inst
	}
	return out
}

func buildInstituteResponse(rec *domain.InstituteRecord, withKey bool) instituteResponse {
	out := instituteResponse{
		Identity:   rec.Identity,
		Name:       rec.Name,
		IsVerified: rec.IsVerified,
	}
	if withKey {
		out.PublicKeyPEM = rec.PublicKeyPEM
	}
	if !rec.RegisteredAt.IsZero() {
		out.RegisteredAt = rec.RegisteredAt.UTC().Format(time.RFC3339)
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status, code, message := http.StatusInternalServerError, "INTERNAL", "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrKeyInvalid):
		status, code, message = http.StatusBadRequest, "INVALID_INPUT", err.Error()
	case errors.Is(err, domain.ErrInstituteMismatch):
		status, code, message = http.StatusBadRequest, "INSTITUTE_MISMATCH", err.Error()
	case errors.Is(err, domain.ErrSessionExpired):
		status, code, message = http.StatusUnauthorized, "SESSION_EXPIRED", "session expired"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		status, code, message = http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrKeyNotFound):
		status, code, message = http.StatusNotFound, "KEY_NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, message = http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrKeyExists):
		status, code, message = http.StatusConflict, "KEY_EXISTS", err.Error()
	case errors.Is(err, domain.ErrCertificateExists):
		status, code, message = http.StatusConflict, "CERTIFICATE_EXISTS", err.Error()
	case errors.Is(err, domain.ErrLedgerUnavailable):
		status, code, message = http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "ledger unavailable"
	}
	if status >= http.StatusInternalServerError {
		c.Error(err)
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
