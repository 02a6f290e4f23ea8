package certificates

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"certifica/cert-portal/cert-portal-backend/internal/audit"
	"certifica/cert-portal/cert-portal-backend/internal/config"
	"certifica/cert-portal/cert-portal-backend/internal/participants"
	"certifica/cert-portal/cert-portal-backend/pkg/pdfstamp"
	"certifica/cert-portal/cert-portal-backend/pkg/qr"
	"certifica/cert-portal/cert-portal-backend/pkg/storage"
	"certifica/cert-portal/cert-portal-backend/pkg/workflows"
)

// UploadedPDF is one file of a batch import.
type UploadedPDF struct {
	Filename string
	Data     []byte
}

// Processor drives externally-imported certificates through the pipeline:
// IMPORTED -> QR_INSERTED -> EXPORTED_FOR_SIGNING -> SIGNED_FINAL, with
// ERROR reachable from any non-terminal state.
type Processor struct {
	repo         Repository
	participants participants.Repository
	files        storage.FileStore
	qrgen        *qr.Generator
	stamper      *pdfstamp.Stamper
	machine      *workflows.StateMachine[ProcessingStatus]
	audit        audit.Recorder
	qrCfg        config.QRProcessingConfig
	logger       *zap.Logger
}

func NewProcessor(
	repo Repository,
	participantsRepo participants.Repository,
	files storage.FileStore,
	qrgen *qr.Generator,
	stamper *pdfstamp.Stamper,
	auditRec audit.Recorder,
	qrCfg config.QRProcessingConfig,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		repo:         repo,
		participants: participantsRepo,
		files:        files,
		qrgen:        qrgen,
		stamper:      stamper,
		machine:      NewStatusMachine(),
		audit:        auditRec,
		qrCfg:        qrCfg,
		logger:       logger,
	}
}

// ImportBatch validates and imports uploaded PDFs, one certificate per file.
// Items are independent: a bad file is reported and the rest continue.
func (p *Processor) ImportBatch(ctx context.Context, uploads []UploadedPDF) *BatchResult {
	result := &BatchResult{Errors: []BatchError{}}

	for _, upload := range uploads {
		if err := p.importOne(ctx, upload, result); err != nil {
			result.addError(upload.Filename, err.Error())
			continue
		}
		result.addSuccess()
	}
	return result
}

func (p *Processor) importOne(ctx context.Context, upload UploadedPDF, result *BatchResult) error {
	if int64(len(upload.Data)) > p.qrCfg.MaxUploadBytes {
		return fmt.Errorf("file exceeds the %d byte limit", p.qrCfg.MaxUploadBytes)
	}
	if !bytes.HasPrefix(upload.Data, []byte("%PDF-")) {
		return fmt.Errorf("file is not a PDF document")
	}
	if _, err := p.stamper.PageCount(upload.Data); err != nil {
		return fmt.Errorf("unreadable PDF structure: %w", err)
	}

	name, found := ExtractNameFromFilename(upload.Filename)
	if !found {
		name, found = ExtractNameFromPDF(upload.Data)
	}
	if !found {
		// Fall back to the raw filename so the operator can fix it later.
		name = upload.Filename
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: could not extract a participant name", upload.Filename))
	}

	participant, err := p.participants.FindOrCreateByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to resolve participant: %w", err)
	}

	certID := uuid.New()
	originalKey := fmt.Sprintf("certificates/%s/original.pdf", certID)
	if err := p.files.Save(ctx, originalKey, bytes.NewReader(upload.Data)); err != nil {
		return fmt.Errorf("failed to store original PDF: %w", err)
	}

	now := time.Now()
	cert := &Certificate{
		UUID:            certID,
		ParticipantID:   participant.ID,
		EventID:         participant.EventID,
		VerificationURL: p.qrCfg.VerificationURL(certID.String()),
		OriginalPDFKey:  originalKey,
		QRPositionX:     p.qrCfg.PositionX,
		QRPositionY:     p.qrCfg.PositionY,
		QRPositionSize:  p.qrCfg.PositionSize,
		Status:          StatusImported,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := p.repo.CreateCertificate(ctx, cert); err != nil {
		return fmt.Errorf("failed to persist certificate: %w", err)
	}

	p.audit.Record(ctx, certID, "IMPORT", map[string]interface{}{
		"filename":       upload.Filename,
		"participant_id": participant.ID.String(),
	})
	return nil
}

// ProcessQR generates the certificate's QR, stamps it onto every page of the
// original PDF and advances IMPORTED -> QR_INSERTED. Any failure after the
// guard moves the certificate to ERROR with the failure recorded; the file
// write is committed before the status advances.
func (p *Processor) ProcessQR(ctx context.Context, certUUID uuid.UUID) (*Certificate, error) {
	cert, err := p.loadCertificate(ctx, certUUID)
	if err != nil {
		return nil, err
	}
	if cert.Status != StatusImported {
		return nil, &workflows.TransitionError[ProcessingStatus]{From: cert.Status, To: StatusQRInserted}
	}

	if err := p.processQR(ctx, cert); err != nil {
		p.moveToError(ctx, cert, err)
		return nil, err
	}

	cert.Status = StatusQRInserted
	cert.ErrorMessage = ""
	cert.LastStatus = nil
	if err := p.repo.UpdateCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to advance status: %w", err)
	}

	p.audit.Record(ctx, cert.UUID, "PROCESS_QR", nil)
	p.logger.Info("QR inserted", zap.String("certificate_uuid", cert.UUID.String()))
	return cert, nil
}

// ProcessQRPending runs ProcessQR over every certificate currently in
// IMPORTED. Failures are isolated per certificate.
func (p *Processor) ProcessQRPending(ctx context.Context) (*BatchResult, error) {
	certs, err := p.repo.ListCertificatesByStatus(ctx, StatusImported)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}

	result := &BatchResult{Errors: []BatchError{}}
	for i := range certs {
		if _, err := p.ProcessQR(ctx, certs[i].UUID); err != nil {
			result.addError(certs[i].UUID.String(), err.Error())
			continue
		}
		result.addSuccess()
	}
	return result, nil
}

func (p *Processor) processQR(ctx context.Context, cert *Certificate) error {
	level := qr.Level(p.qrCfg.ErrorCorrection)
	qrPNG, err := p.qrgen.GeneratePNG(cert.VerificationURL, level, p.qrCfg.BoxSize, p.qrCfg.Border)
	if err != nil {
		return fmt.Errorf("failed to generate QR: %w", err)
	}

	if p.qrCfg.ValidateDecode {
		decoded, err := qr.DecodePNG(qrPNG)
		if err != nil {
			return fmt.Errorf("QR legibility check failed: %w", err)
		}
		if decoded != cert.VerificationURL {
			return fmt.Errorf("QR legibility check failed: decoded %q", decoded)
		}
	}

	original, err := storage.ReadAll(ctx, p.files, cert.OriginalPDFKey)
	if err != nil {
		return fmt.Errorf("failed to read original PDF: %w", err)
	}

	stamped, err := p.stamper.StampAllPages(original, qrPNG,
		cert.QRPositionX, cert.QRPositionY, cert.QRPositionSize)
	if err != nil {
		return fmt.Errorf("failed to stamp QR: %w", err)
	}

	qrImageKey := fmt.Sprintf("certificates/%s/qr.png", cert.UUID)
	qrPDFKey := fmt.Sprintf("certificates/%s/qr_inserted.pdf", cert.UUID)
	if err := p.files.Save(ctx, qrImageKey, bytes.NewReader(qrPNG)); err != nil {
		return fmt.Errorf("failed to store QR image: %w", err)
	}
	if err := p.files.Save(ctx, qrPDFKey, bytes.NewReader(stamped)); err != nil {
		return fmt.Errorf("failed to store stamped PDF: %w", err)
	}

	cert.QRImageKey = qrImageKey
	cert.QRPDFKey = qrPDFKey
	return nil
}

// ImportFinal accepts a signed PDF whose filename embeds the certificate
// UUID and advances EXPORTED_FOR_SIGNING -> SIGNED_FINAL.
func (p *Processor) ImportFinal(ctx context.Context, filename string, data []byte) (*Certificate, error) {
	match := uuidRe.FindString(filename)
	if match == "" {
		return nil, fmt.Errorf("filename %q does not contain a certificate UUID", filename)
	}
	certUUID, err := uuid.Parse(match)
	if err != nil {
		return nil, fmt.Errorf("filename %q does not contain a valid UUID: %w", filename, err)
	}

	cert, err := p.loadCertificate(ctx, certUUID)
	if err != nil {
		return nil, err
	}
	if cert.Status != StatusExportedForSigning {
		return nil, &workflows.TransitionError[ProcessingStatus]{From: cert.Status, To: StatusSignedFinal}
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		err := fmt.Errorf("uploaded file is not a PDF document")
		p.moveToError(ctx, cert, err)
		return nil, err
	}

	finalKey := fmt.Sprintf("certificates/%s/final.pdf", cert.UUID)
	if err := p.files.Save(ctx, finalKey, bytes.NewReader(data)); err != nil {
		err = fmt.Errorf("failed to store final PDF: %w", err)
		p.moveToError(ctx, cert, err)
		return nil, err
	}

	now := time.Now()
	cert.FinalPDFKey = finalKey
	cert.IsSigned = true
	cert.SignedAt = &now
	cert.Status = StatusSignedFinal
	cert.ErrorMessage = ""
	cert.LastStatus = nil
	if err := p.repo.UpdateCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to advance status: %w", err)
	}

	p.audit.Record(ctx, cert.UUID, "IMPORT_FINAL", map[string]interface{}{
		"filename": filename,
	})
	return cert, nil
}

// ImportFinalBatch applies ImportFinal per file, independently.
func (p *Processor) ImportFinalBatch(ctx context.Context, uploads []UploadedPDF) *BatchResult {
	result := &BatchResult{Errors: []BatchError{}}
	for _, upload := range uploads {
		if _, err := p.ImportFinal(ctx, upload.Filename, upload.Data); err != nil {
			result.addError(upload.Filename, err.Error())
			continue
		}
		result.addSuccess()
	}
	return result
}

// RetryFromError moves an ERROR certificate back to the status it failed
// from, so the operator can re-run the failed step.
func (p *Processor) RetryFromError(ctx context.Context, certUUID uuid.UUID) (*Certificate, error) {
	cert, err := p.loadCertificate(ctx, certUUID)
	if err != nil {
		return nil, err
	}
	if cert.Status != StatusError {
		return nil, fmt.Errorf("certificate %s is not in ERROR (status %s)", certUUID, cert.Status)
	}
	if cert.LastStatus == nil {
		return nil, fmt.Errorf("certificate %s has no recorded prior status", certUUID)
	}
	if err := p.machine.Transition(cert.Status, *cert.LastStatus); err != nil {
		return nil, err
	}

	cert.Status = *cert.LastStatus
	cert.LastStatus = nil
	cert.ErrorMessage = ""
	if err := p.repo.UpdateCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to restore status: %w", err)
	}
	return cert, nil
}

func (p *Processor) loadCertificate(ctx context.Context, certUUID uuid.UUID) (*Certificate, error) {
	cert, err := p.repo.GetCertificateByUUID(ctx, certUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	if cert == nil {
		return nil, fmt.Errorf("certificate %s: %w", certUUID, ErrNotFound)
	}
	return cert, nil
}

func (p *Processor) moveToError(ctx context.Context, cert *Certificate, cause error) {
	prior := cert.Status
	cert.LastStatus = &prior
	cert.Status = StatusError
	cert.ErrorMessage = cause.Error()
	if err := p.repo.UpdateCertificate(ctx, cert); err != nil {
		p.logger.Error("failed to record error state",
			zap.String("certificate_uuid", cert.UUID.String()),
			zap.Error(err))
		return
	}
	p.logger.Warn("certificate moved to ERROR",
		zap.String("certificate_uuid", cert.UUID.String()),
		zap.String("cause", cause.Error()))
}
