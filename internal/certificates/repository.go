package certificates

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateCertificate(ctx context.Context, cert *Certificate) error
	GetCertificateByUUID(ctx context.Context, id uuid.UUID) (*Certificate, error)
	GetCertificateByParticipant(ctx context.Context, participantID uuid.UUID) (*Certificate, error)
	ListCertificatesByStatus(ctx context.Context, status ProcessingStatus) ([]Certificate, error)
	ListCertificatesByEvent(ctx context.Context, eventID uuid.UUID) ([]Certificate, error)
	UpdateCertificate(ctx context.Context, cert *Certificate) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateCertificate(ctx context.Context, cert *Certificate) error {
	query := `
		INSERT INTO certificates (
			uuid, participant_id, event_id, verification_url,
			pdf_file_key, qr_code_key,
			original_pdf_key, qr_image_key, qr_pdf_key, final_pdf_key,
			qr_position_x, qr_position_y, qr_position_size,
			processing_status, last_status, error_message,
			is_signed, signed_at, is_external, external_url, external_system,
			exported_at, created_at, updated_at
		) VALUES (
			:uuid, :participant_id, :event_id, :verification_url,
			:pdf_file_key, :qr_code_key,
			:original_pdf_key, :qr_image_key, :qr_pdf_key, :final_pdf_key,
			:qr_position_x, :qr_position_y, :qr_position_size,
			:processing_status, :last_status, :error_message,
			:is_signed, :signed_at, :is_external, :external_url, :external_system,
			:exported_at, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, cert)
	return err
}

func (r *postgresRepository) GetCertificateByUUID(ctx context.Context, id uuid.UUID) (*Certificate, error) {
	var cert Certificate
	err := r.db.GetContext(ctx, &cert, "SELECT * FROM certificates WHERE uuid = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &cert, err
}

func (r *postgresRepository) GetCertificateByParticipant(ctx context.Context, participantID uuid.UUID) (*Certificate, error) {
	var cert Certificate
	err := r.db.GetContext(ctx, &cert, "SELECT * FROM certificates WHERE participant_id = $1", participantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &cert, err
}

func (r *postgresRepository) ListCertificatesByStatus(ctx context.Context, status ProcessingStatus) ([]Certificate, error) {
	var certs []Certificate
	err := r.db.SelectContext(ctx, &certs,
		"SELECT * FROM certificates WHERE processing_status = $1 ORDER BY created_at", status)
	return certs, err
}

func (r *postgresRepository) ListCertificatesByEvent(ctx context.Context, eventID uuid.UUID) ([]Certificate, error) {
	var certs []Certificate
	err := r.db.SelectContext(ctx, &certs,
		"SELECT * FROM certificates WHERE event_id = $1 ORDER BY created_at", eventID)
	return certs, err
}

func (r *postgresRepository) UpdateCertificate(ctx context.Context, cert *Certificate) error {
	cert.UpdatedAt = time.Now()
	query := `
		UPDATE certificates SET
			verification_url = :verification_url,
			pdf_file_key = :pdf_file_key,
			qr_code_key = :qr_code_key,
			original_pdf_key = :original_pdf_key,
			qr_image_key = :qr_image_key,
			qr_pdf_key = :qr_pdf_key,
			final_pdf_key = :final_pdf_key,
			qr_position_x = :qr_position_x,
			qr_position_y = :qr_position_y,
			qr_position_size = :qr_position_size,
			processing_status = :processing_status,
			last_status = :last_status,
			error_message = :error_message,
			is_signed = :is_signed,
			signed_at = :signed_at,
			is_external = :is_external,
			external_url = :external_url,
			external_system = :external_system,
			exported_at = :exported_at,
			updated_at = :updated_at
		WHERE uuid = :uuid`
	_, err := r.db.NamedExecContext(ctx, query, cert)
	return err
}
