package certificates

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"certifica/cert-portal/cert-portal-backend/pkg/workflows"
)

// ProcessingStatus is the pipeline state of an externally-imported
// certificate.
type ProcessingStatus string

const (
	StatusImported           ProcessingStatus = "IMPORTED"
	StatusQRInserted         ProcessingStatus = "QR_INSERTED"
	StatusExportedForSigning ProcessingStatus = "EXPORTED_FOR_SIGNING"
	StatusSignedFinal        ProcessingStatus = "SIGNED_FINAL"
	StatusError              ProcessingStatus = "ERROR"
)

// NewStatusMachine returns the canonical transition table. ERROR is reachable
// from every non-terminal state and is itself non-terminal: an operator may
// retry back to the status recorded when the failure happened.
func NewStatusMachine() *workflows.StateMachine[ProcessingStatus] {
	return workflows.NewStateMachine(map[ProcessingStatus][]ProcessingStatus{
		StatusImported:           {StatusQRInserted, StatusError},
		StatusQRInserted:         {StatusExportedForSigning, StatusError},
		StatusExportedForSigning: {StatusSignedFinal, StatusError},
		StatusSignedFinal:        {},
		StatusError:              {StatusImported, StatusQRInserted, StatusExportedForSigning},
	})
}

// Certificate is the single record both entry paths converge on. The uuid is
// immutable once issued and embedded in the QR verification payload.
type Certificate struct {
	UUID            uuid.UUID  `json:"uuid" db:"uuid"`
	ParticipantID   uuid.UUID  `json:"participant_id" db:"participant_id"`
	EventID         *uuid.UUID `json:"event_id,omitempty" db:"event_id"`
	VerificationURL string     `json:"verification_url" db:"verification_url"`

	// Simple path payload.
	PDFFileKey string `json:"pdf_file_key,omitempty" db:"pdf_file_key"`
	QRCodeKey  string `json:"qr_code_key,omitempty" db:"qr_code_key"`

	// Pipeline path payload.
	OriginalPDFKey string  `json:"original_pdf_key,omitempty" db:"original_pdf_key"`
	QRImageKey     string  `json:"qr_image_key,omitempty" db:"qr_image_key"`
	QRPDFKey       string  `json:"qr_pdf_key,omitempty" db:"qr_pdf_key"`
	FinalPDFKey    string  `json:"final_pdf_key,omitempty" db:"final_pdf_key"`
	QRPositionX    float64 `json:"qr_position_x" db:"qr_position_x"`
	QRPositionY    float64 `json:"qr_position_y" db:"qr_position_y"`
	QRPositionSize float64 `json:"qr_position_size" db:"qr_position_size"`

	Status ProcessingStatus `json:"processing_status" db:"processing_status"`
	// LastStatus remembers where the pipeline was when it entered ERROR, so
	// an operator retry can resume there.
	LastStatus   *ProcessingStatus `json:"last_status,omitempty" db:"last_status"`
	ErrorMessage string            `json:"error_message,omitempty" db:"error_message"`

	IsSigned bool       `json:"is_signed" db:"is_signed"`
	SignedAt *time.Time `json:"signed_at,omitempty" db:"signed_at"`

	// External certificates bypass internal signing; is_signed is not
	// authoritative for them.
	IsExternal     bool   `json:"is_external" db:"is_external"`
	ExternalURL    string `json:"external_url,omitempty" db:"external_url"`
	ExternalSystem string `json:"external_system,omitempty" db:"external_system"`

	ExportedAt *time.Time `json:"exported_at,omitempty" db:"exported_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// BatchError reports one failed item of a batch operation.
type BatchError struct {
	Item    string `json:"item"`
	Message string `json:"message"`
}

// BatchResult is the structured outcome of every batch operation. Batches
// never abort on a single failure; success_count + error_count always equals
// the number of processed items.
type BatchResult struct {
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	SkippedCount int          `json:"skipped_count,omitempty"`
	Errors       []BatchError `json:"errors"`
	Warnings     []string     `json:"warnings,omitempty"`
	Message      string       `json:"message,omitempty"`
}

func (r *BatchResult) addSuccess() { r.SuccessCount++ }

func (r *BatchResult) addError(item, msg string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, BatchError{Item: item, Message: msg})
}

var (
	// ErrNotFound covers missing certificates/participants/events.
	ErrNotFound = errors.New("not found")
	// ErrNoDefaultTemplate is a fatal configuration error: generation needs
	// an event template override or a single default template.
	ErrNoDefaultTemplate = errors.New("no default certificate template configured")
)
