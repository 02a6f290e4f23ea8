package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Entry is one append-only audit record. Entries are never read back by the
// core pipeline; the sink is write-only at this boundary.
type Entry struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	CertificateID uuid.UUID       `json:"certificate_id" db:"certificate_id"`
	Action        string          `json:"action" db:"action"` // 'GENERATE', 'PROCESS_QR', 'EXPORT', 'SIGN', 'IMPORT_FINAL'
	Detail        json.RawMessage `json:"detail" db:"detail"`
	PerformedAt   time.Time       `json:"performed_at" db:"performed_at"`
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, certificateID uuid.UUID, action string, detail map[string]interface{})
}

type postgresRecorder struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRecorder creates a recorder writing to the audit_entries table. Audit
// failures are logged, never propagated: the pipeline must not fail because
// the trail could not be written.
func NewRecorder(db *sqlx.DB, logger *zap.Logger) Recorder {
	return &postgresRecorder{db: db, logger: logger}
}

func (r *postgresRecorder) Record(ctx context.Context, certificateID uuid.UUID, action string, detail map[string]interface{}) {
	payload, err := json.Marshal(detail)
	if err != nil {
		payload = []byte("{}")
	}
	entry := &Entry{
		ID:            uuid.New(),
		CertificateID: certificateID,
		Action:        action,
		Detail:        payload,
		PerformedAt:   time.Now(),
	}
	query := `
		INSERT INTO audit_entries (
			id, certificate_id, action, detail, performed_at
		) VALUES (
			:id, :certificate_id, :action, :detail, :performed_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		r.logger.Warn("failed to append audit entry",
			zap.String("certificate_id", certificateID.String()),
			zap.String("action", action),
			zap.Error(err))
	}
}

// NopRecorder discards entries. Used by tests.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, certificateID uuid.UUID, action string, detail map[string]interface{}) {
}
