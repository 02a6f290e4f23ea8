package participants

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a person a certificate can be issued to. Read-mostly from
// the pipeline's point of view; batch import may create one when an external
// PDF arrives for an unknown name.
type Participant struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	DNI       string     `json:"dni" db:"dni"`
	FullName  string     `json:"full_name" db:"full_name"`
	Email     string     `json:"email" db:"email"`
	Role      string     `json:"role" db:"role"`
	EventID   *uuid.UUID `json:"event_id,omitempty" db:"event_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Event groups participants and may carry its own certificate template.
type Event struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Date       time.Time  `json:"date" db:"date"`
	TemplateID *uuid.UUID `json:"template_id,omitempty" db:"template_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
