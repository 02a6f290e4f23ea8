package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"certifica/cert-portal/cert-portal-backend/internal/audit"
	"certifica/cert-portal/cert-portal-backend/internal/config"
	"certifica/cert-portal/cert-portal-backend/pkg/retry"
	"certifica/cert-portal/cert-portal-backend/pkg/storage"
)

// PermanentSigningError is a non-retryable response from the signing
// service, typically a 4xx (bad credentials, rejected document).
type PermanentSigningError struct {
	StatusCode int
	Body       string
}

func (e *PermanentSigningError) Error() string {
	return fmt.Sprintf("signing service rejected the request: HTTP %d: %s", e.StatusCode, e.Body)
}

// SigningClient posts certificate PDFs to the external signature service.
// Transient failures (timeouts, connection errors, 5xx) are retried with a
// fixed delay; 4xx responses abort immediately.
type SigningClient struct {
	repo    Repository
	files   storage.FileStore
	audit   audit.Recorder
	cfg     config.SigningConfig
	http    *http.Client
	policy  retry.Policy
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewSigningClient(
	repo Repository,
	files storage.FileStore,
	auditRec audit.Recorder,
	cfg config.SigningConfig,
	logger *zap.Logger,
) *SigningClient {
	policy := retry.NewPolicy(cfg.MaxRetries, cfg.RetryDelay)
	policy.Retryable = isRetryable

	var limiter *rate.Limiter
	if cfg.BulkRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.BulkRatePerSecond), 1)
	}

	return &SigningClient{
		repo:    repo,
		files:   files,
		audit:   auditRec,
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		policy:  policy,
		limiter: limiter,
		logger:  logger,
	}
}

func isRetryable(err error) bool {
	var permanent *PermanentSigningError
	return !errors.As(err, &permanent)
}

// Sign posts the certificate PDF and persists the signed result. Idempotent:
// an already-signed certificate is returned unchanged without any network
// call. External certificates bypass internal signing entirely.
func (c *SigningClient) Sign(ctx context.Context, cert *Certificate) (*Certificate, error) {
	if cert.IsSigned {
		return cert, nil
	}
	if cert.IsExternal {
		c.logger.Debug("skipping external certificate",
			zap.String("certificate_uuid", cert.UUID.String()),
			zap.String("external_system", cert.ExternalSystem))
		return cert, nil
	}
	if c.cfg.Endpoint == "" {
		return nil, fmt.Errorf("signing endpoint is not configured")
	}

	sourceKey := cert.QRPDFKey
	if sourceKey == "" {
		sourceKey = cert.PDFFileKey
	}
	if sourceKey == "" {
		sourceKey = cert.OriginalPDFKey
	}
	if sourceKey == "" {
		return nil, fmt.Errorf("certificate %s has no PDF to sign", cert.UUID)
	}
	pdfBytes, err := storage.ReadAll(ctx, c.files, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	var signed []byte
	err = c.policy.Do(ctx, func() error {
		var attemptErr error
		signed, attemptErr = c.post(ctx, cert, pdfBytes)
		return attemptErr
	})
	if err != nil {
		return nil, fmt.Errorf("signing failed for %s: %w", cert.UUID, err)
	}

	signedKey := fmt.Sprintf("certificates/%s/signed.pdf", cert.UUID)
	if err := c.files.Save(ctx, signedKey, bytes.NewReader(signed)); err != nil {
		return nil, fmt.Errorf("failed to store signed PDF: %w", err)
	}

	now := time.Now()
	cert.FinalPDFKey = signedKey
	cert.IsSigned = true
	cert.SignedAt = &now
	if cert.Status == StatusExportedForSigning {
		cert.Status = StatusSignedFinal
	}
	if err := c.repo.UpdateCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to persist signature state: %w", err)
	}

	c.audit.Record(ctx, cert.UUID, "SIGN", map[string]interface{}{
		"endpoint": c.cfg.Endpoint,
	})
	c.logger.Info("certificate signed", zap.String("certificate_uuid", cert.UUID.String()))
	return cert, nil
}

// post performs one signing attempt: multipart upload with a bearer token.
// 2xx returns the signed PDF bytes; 5xx and 429 are transient; any other
// status is permanent.
func (c *SigningClient) post(ctx context.Context, cert *Certificate, pdfBytes []byte) ([]byte, error) {
	var body bytes.Buffer
	mp := multipart.NewWriter(&body)
	part, err := mp.CreateFormFile("file", fmt.Sprintf("%s.pdf", cert.UUID))
	if err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}
	if _, err := part.Write(pdfBytes); err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}
	if err := mp.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", mp.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures come through here; retryable.
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		signed, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read signed PDF: %w", err)
		}
		if len(signed) == 0 {
			return nil, fmt.Errorf("signing service returned an empty body")
		}
		return signed, nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("signing service unavailable: HTTP %d: %s", resp.StatusCode, string(msg))
	}
	return nil, &PermanentSigningError{StatusCode: resp.StatusCode, Body: string(msg)}
}

// SignBulk signs certificates independently, filtering already-signed and
// external ones up front. A failing item never stops the rest.
func (c *SigningClient) SignBulk(ctx context.Context, certs []Certificate) *BatchResult {
	result := &BatchResult{Errors: []BatchError{}}

	var pending []Certificate
	for _, cert := range certs {
		if cert.IsSigned || cert.IsExternal {
			result.SkippedCount++
			continue
		}
		pending = append(pending, cert)
	}

	for i := range pending {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				result.addError(pending[i].UUID.String(), err.Error())
				continue
			}
		}
		if _, err := c.Sign(ctx, &pending[i]); err != nil {
			result.addError(pending[i].UUID.String(), err.Error())
			continue
		}
		result.addSuccess()
	}
	return result
}

// SignPending signs every certificate currently in EXPORTED_FOR_SIGNING.
func (c *SigningClient) SignPending(ctx context.Context) (*BatchResult, error) {
	certs, err := c.repo.ListCertificatesByStatus(ctx, StatusExportedForSigning)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return c.SignBulk(ctx, certs), nil
}
