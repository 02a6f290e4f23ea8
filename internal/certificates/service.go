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
	"certifica/cert-portal/cert-portal-backend/internal/templates"
	"certifica/cert-portal/cert-portal-backend/pkg/qr"
	"certifica/cert-portal/cert-portal-backend/pkg/storage"
)

// Service generates certificates from participant data (the simple entry
// path of the pipeline).
type Service struct {
	repo         Repository
	participants participants.Repository
	templates    templates.Repository
	composer     *Composer
	qrgen        *qr.Generator
	files        storage.FileStore
	audit        audit.Recorder
	qrCfg        config.QRProcessingConfig
	logger       *zap.Logger
}

func NewService(
	repo Repository,
	participantsRepo participants.Repository,
	templatesRepo templates.Repository,
	composer *Composer,
	qrgen *qr.Generator,
	files storage.FileStore,
	auditRec audit.Recorder,
	qrCfg config.QRProcessingConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:         repo,
		participants: participantsRepo,
		templates:    templatesRepo,
		composer:     composer,
		qrgen:        qrgen,
		files:        files,
		audit:        auditRec,
		qrCfg:        qrCfg,
		logger:       logger,
	}
}

// Generate creates the certificate for a participant. Idempotent: a second
// call returns the pre-existing certificate without creating a duplicate.
func (s *Service) Generate(ctx context.Context, participantID uuid.UUID) (*Certificate, error) {
	participant, err := s.participants.GetParticipantByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	if participant == nil {
		return nil, fmt.Errorf("participant %s: %w", participantID, ErrNotFound)
	}

	existing, err := s.repo.GetCertificateByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing certificate: %w", err)
	}
	if existing != nil {
		s.logger.Debug("certificate already exists for participant",
			zap.String("participant_id", participantID.String()),
			zap.String("certificate_uuid", existing.UUID.String()))
		return existing, nil
	}

	tmpl, event, err := s.resolveTemplate(ctx, participant)
	if err != nil {
		return nil, err
	}

	certID := uuid.New()
	verificationURL := s.qrCfg.VerificationURL(certID.String())

	data := map[string]string{
		"nombre":           participant.FullName,
		"dni":              participant.DNI,
		"rol":              participant.Role,
		"verification_url": verificationURL,
	}
	if event != nil {
		data["evento"] = event.Name
		data["fecha"] = event.Date.Format("02/01/2006")
	}

	var elements []templates.TemplateElement
	if tmpl != nil {
		elements, err = s.templates.ListElements(ctx, tmpl.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load template elements: %w", err)
		}
	}

	pdfBytes, err := s.composer.Compose(ctx, tmpl, elements, data, s.templates)
	if err != nil {
		return nil, fmt.Errorf("failed to compose certificate: %w", err)
	}
	qrPNG, err := s.qrgen.GeneratePNG(verificationURL, qr.Level(s.qrCfg.ErrorCorrection), s.qrCfg.BoxSize, s.qrCfg.Border)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR: %w", err)
	}

	pdfKey := fmt.Sprintf("certificates/%s/certificate.pdf", certID)
	qrKey := fmt.Sprintf("certificates/%s/qr.png", certID)
	if err := s.files.Save(ctx, pdfKey, bytes.NewReader(pdfBytes)); err != nil {
		return nil, fmt.Errorf("failed to store certificate PDF: %w", err)
	}
	if err := s.files.Save(ctx, qrKey, bytes.NewReader(qrPNG)); err != nil {
		return nil, fmt.Errorf("failed to store QR image: %w", err)
	}

	now := time.Now()
	cert := &Certificate{
		UUID:            certID,
		ParticipantID:   participant.ID,
		EventID:         participant.EventID,
		VerificationURL: verificationURL,
		PDFFileKey:      pdfKey,
		QRCodeKey:       qrKey,
		// The generated document already carries its QR, so it enters the
		// pipeline ready for export.
		QRPDFKey:       pdfKey,
		QRPositionX:    s.qrCfg.PositionX,
		QRPositionY:    s.qrCfg.PositionY,
		QRPositionSize: s.qrCfg.PositionSize,
		Status:         StatusQRInserted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateCertificate(ctx, cert); err != nil {
		return nil, fmt.Errorf("failed to persist certificate: %w", err)
	}

	s.audit.Record(ctx, certID, "GENERATE", map[string]interface{}{
		"participant_id": participant.ID.String(),
	})
	s.logger.Info("certificate generated",
		zap.String("certificate_uuid", certID.String()),
		zap.String("participant", participant.FullName))
	return cert, nil
}

// GenerateBulk generates certificates for every participant of an event.
// Each item is independent; an event with zero participants is a successful
// empty result, not an error.
func (s *Service) GenerateBulk(ctx context.Context, eventID uuid.UUID) (*BatchResult, error) {
	event, err := s.participants.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}

	list, err := s.participants.ListParticipantsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	result := &BatchResult{Errors: []BatchError{}}
	if len(list) == 0 {
		result.Message = fmt.Sprintf("event %q has no participants", event.Name)
		return result, nil
	}

	for _, p := range list {
		if _, err := s.Generate(ctx, p.ID); err != nil {
			result.addError(p.FullName, err.Error())
			continue
		}
		result.addSuccess()
	}
	return result, nil
}

// GetByUUID resolves a certificate for the verification endpoint.
func (s *Service) GetByUUID(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	cert, err := s.repo.GetCertificateByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	if cert == nil {
		return nil, fmt.Errorf("certificate %s: %w", id, ErrNotFound)
	}
	return cert, nil
}

// resolveTemplate picks the event-level override when present, else the
// default template. A missing default is a fatal configuration error.
func (s *Service) resolveTemplate(ctx context.Context, participant *participants.Participant) (*templates.Template, *participants.Event, error) {
	var event *participants.Event
	var err error
	if participant.EventID != nil {
		event, err = s.participants.GetEventByID(ctx, *participant.EventID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load event: %w", err)
		}
	}

	if event != nil && event.TemplateID != nil {
		tmpl, err := s.templates.GetTemplateByID(ctx, *event.TemplateID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load event template: %w", err)
		}
		if tmpl != nil {
			return tmpl, event, nil
		}
	}

	tmpl, err := s.templates.GetDefaultTemplate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load default template: %w", err)
	}
	if tmpl == nil {
		return nil, nil, ErrNoDefaultTemplate
	}
	return tmpl, event, nil
}
