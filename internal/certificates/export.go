package certificates

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"go.uber.org/zap"

	"certifica/cert-portal/cert-portal-backend/internal/audit"
	"certifica/cert-portal/cert-portal-backend/internal/participants"
	"certifica/cert-portal/cert-portal-backend/pkg/storage"
	"certifica/cert-portal/cert-portal-backend/pkg/workflows"
)

// metadataHeader is the fixed metadata.csv header of the export archive.
var metadataHeader = []string{"UUID", "DNI", "Nombre", "Evento", "Fecha_Exportacion"}

// Bundler packages QR-stamped certificates into the handoff archive for the
// external signer and advances them to EXPORTED_FOR_SIGNING.
type Bundler struct {
	repo         Repository
	participants participants.Repository
	files        storage.FileStore
	audit        audit.Recorder
	logger       *zap.Logger
}

func NewBundler(
	repo Repository,
	participantsRepo participants.Repository,
	files storage.FileStore,
	auditRec audit.Recorder,
	logger *zap.Logger,
) *Bundler {
	return &Bundler{
		repo:         repo,
		participants: participantsRepo,
		files:        files,
		audit:        auditRec,
		logger:       logger,
	}
}

// Export bundles the given certificates (all must be QR_INSERTED) into a zip
// with one PDF per certificate plus metadata.csv. The status side effect only
// happens after the archive is fully built.
func (b *Bundler) Export(ctx context.Context, certs []Certificate) ([]byte, string, error) {
	if len(certs) == 0 {
		return nil, "", fmt.Errorf("nothing to export")
	}
	for i := range certs {
		if certs[i].Status != StatusQRInserted {
			return nil, "", &workflows.TransitionError[ProcessingStatus]{
				From: certs[i].Status, To: StatusExportedForSigning,
			}
		}
	}

	exportedAt := time.Now()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var metaBuf bytes.Buffer
	cw := csv.NewWriter(&metaBuf)
	if err := cw.Write(metadataHeader); err != nil {
		return nil, "", fmt.Errorf("failed to write metadata header: %w", err)
	}

	for i := range certs {
		cert := &certs[i]
		participant, err := b.participants.GetParticipantByID(ctx, cert.ParticipantID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load participant for %s: %w", cert.UUID, err)
		}
		if participant == nil {
			return nil, "", fmt.Errorf("participant for %s: %w", cert.UUID, ErrNotFound)
		}

		pdfBytes, err := storage.ReadAll(ctx, b.files, cert.QRPDFKey)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read stamped PDF for %s: %w", cert.UUID, err)
		}

		dni := participant.DNI
		if dni == "" {
			dni = participant.ID.String()
		}
		entry, err := zw.Create(fmt.Sprintf("%s_%s.pdf", cert.UUID, dni))
		if err != nil {
			return nil, "", fmt.Errorf("failed to add %s to archive: %w", cert.UUID, err)
		}
		if _, err := entry.Write(pdfBytes); err != nil {
			return nil, "", fmt.Errorf("failed to write %s to archive: %w", cert.UUID, err)
		}

		eventName := ""
		if cert.EventID != nil {
			if event, err := b.participants.GetEventByID(ctx, *cert.EventID); err == nil && event != nil {
				eventName = event.Name
			}
		}
		row := []string{
			cert.UUID.String(),
			dni,
			participant.FullName,
			eventName,
			exportedAt.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return nil, "", fmt.Errorf("failed to write metadata row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, "", fmt.Errorf("failed to write metadata: %w", err)
	}
	meta, err := zw.Create("metadata.csv")
	if err != nil {
		return nil, "", fmt.Errorf("failed to add metadata.csv: %w", err)
	}
	if _, err := meta.Write(metaBuf.Bytes()); err != nil {
		return nil, "", fmt.Errorf("failed to write metadata.csv: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	// Archive complete: commit the status advance.
	for i := range certs {
		cert := &certs[i]
		cert.Status = StatusExportedForSigning
		cert.ExportedAt = &exportedAt
		if err := b.repo.UpdateCertificate(ctx, cert); err != nil {
			return nil, "", fmt.Errorf("failed to mark %s exported: %w", cert.UUID, err)
		}
		b.audit.Record(ctx, cert.UUID, "EXPORT", nil)
	}

	filename := fmt.Sprintf("certificados_export_%s.zip", exportedAt.Format("20060102_150405"))
	b.logger.Info("export bundle built",
		zap.Int("certificates", len(certs)),
		zap.String("filename", filename))
	return buf.Bytes(), filename, nil
}

// ExportPending bundles every certificate currently in QR_INSERTED.
func (b *Bundler) ExportPending(ctx context.Context) ([]byte, string, error) {
	certs, err := b.repo.ListCertificatesByStatus(ctx, StatusQRInserted)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list certificates: %w", err)
	}
	return b.Export(ctx, certs)
}
