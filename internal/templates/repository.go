package templates

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error)
	GetDefaultTemplate(ctx context.Context) (*Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)

	CreateElement(ctx context.Context, e *TemplateElement) error
	ListElements(ctx context.Context, templateID uuid.UUID) ([]TemplateElement, error)

	CreateAsset(ctx context.Context, a *Asset) error
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateTemplate(ctx context.Context, t *Template) error {
	query := `
		INSERT INTO templates (
			id, name, canvas_width, canvas_height, background_color,
			is_default, event_id, created_at, updated_at
		) VALUES (
			:id, :name, :canvas_width, :canvas_height, :background_color,
			:is_default, :event_id, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, t)
	return err
}

func (r *postgresRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	var t Template
	err := r.db.GetContext(ctx, &t, "SELECT * FROM templates WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &t, err
}

func (r *postgresRepository) GetDefaultTemplate(ctx context.Context) (*Template, error) {
	var t Template
	err := r.db.GetContext(ctx, &t, "SELECT * FROM templates WHERE is_default = true ORDER BY updated_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &t, err
}

func (r *postgresRepository) ListTemplates(ctx context.Context) ([]Template, error) {
	var list []Template
	err := r.db.SelectContext(ctx, &list, "SELECT * FROM templates ORDER BY created_at DESC")
	return list, err
}

func (r *postgresRepository) CreateElement(ctx context.Context, e *TemplateElement) error {
	query := `
		INSERT INTO template_elements (
			id, template_id, element_type, position_x, position_y, width,
			height, rotation, z_index, content, style_config, asset_id,
			is_locked, is_visible, created_at
		) VALUES (
			:id, :template_id, :element_type, :position_x, :position_y, :width,
			:height, :rotation, :z_index, :content, :style_config, :asset_id,
			:is_locked, :is_visible, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, e)
	return err
}

// ListElements returns elements in creation order; the render engine applies
// the z_index ordering so ties keep creation order.
func (r *postgresRepository) ListElements(ctx context.Context, templateID uuid.UUID) ([]TemplateElement, error) {
	var list []TemplateElement
	err := r.db.SelectContext(ctx, &list,
		"SELECT * FROM template_elements WHERE template_id = $1 ORDER BY created_at, id", templateID)
	return list, err
}

func (r *postgresRepository) CreateAsset(ctx context.Context, a *Asset) error {
	query := `
		INSERT INTO template_assets (
			id, file_name, content_type, data, created_at
		) VALUES (
			:id, :file_name, :content_type, :data, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, a)
	return err
}

func (r *postgresRepository) GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error) {
	var a Asset
	err := r.db.GetContext(ctx, &a, "SELECT * FROM template_assets WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &a, err
}
