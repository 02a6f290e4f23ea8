package participants

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetParticipantByID(ctx context.Context, id uuid.UUID) (*Participant, error)
	ListParticipantsByEvent(ctx context.Context, eventID uuid.UUID) ([]Participant, error)
	FindParticipantByName(ctx context.Context, fullName string) (*Participant, error)
	CreateParticipant(ctx context.Context, p *Participant) error
	FindOrCreateByName(ctx context.Context, fullName string) (*Participant, error)

	GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetParticipantByID(ctx context.Context, id uuid.UUID) (*Participant, error) {
	var p Participant
	err := r.db.GetContext(ctx, &p, "SELECT * FROM participants WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &p, err
}

func (r *postgresRepository) ListParticipantsByEvent(ctx context.Context, eventID uuid.UUID) ([]Participant, error) {
	var list []Participant
	err := r.db.SelectContext(ctx, &list, "SELECT * FROM participants WHERE event_id = $1 ORDER BY full_name", eventID)
	return list, err
}

func (r *postgresRepository) FindParticipantByName(ctx context.Context, fullName string) (*Participant, error) {
	var p Participant
	err := r.db.GetContext(ctx, &p, "SELECT * FROM participants WHERE LOWER(full_name) = LOWER($1)", fullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &p, err
}

func (r *postgresRepository) CreateParticipant(ctx context.Context, p *Participant) error {
	query := `
		INSERT INTO participants (
			id, dni, full_name, email, role, event_id, created_at
		) VALUES (
			:id, :dni, :full_name, :email, :role, :event_id, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, p)
	return err
}

func (r *postgresRepository) FindOrCreateByName(ctx context.Context, fullName string) (*Participant, error) {
	existing, err := r.FindParticipantByName(ctx, fullName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	p := &Participant{
		ID:        uuid.New(),
		FullName:  fullName,
		CreatedAt: time.Now(),
	}
	if err := r.CreateParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepository) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var e Event
	err := r.db.GetContext(ctx, &e, "SELECT * FROM events WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &e, err
}
