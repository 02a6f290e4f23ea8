package templates

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ElementType string

const (
	ElementText     ElementType = "TEXT"
	ElementImage    ElementType = "IMAGE"
	ElementQR       ElementType = "QR"
	ElementFormula  ElementType = "FORMULA"
	ElementVariable ElementType = "VARIABLE"
)

// KnownElementTypes is the closed set of element types. Dispatch on element
// type must handle every entry here.
var KnownElementTypes = []ElementType{
	ElementText, ElementImage, ElementQR, ElementFormula, ElementVariable,
}

func (t ElementType) Valid() bool {
	for _, k := range KnownElementTypes {
		if t == k {
			return true
		}
	}
	return false
}

// StyleConfig holds the abstract per-element style. Stored as JSONB.
type StyleConfig struct {
	FontFamily   string  `json:"font_family,omitempty"`
	FontSize     float64 `json:"font_size,omitempty"`
	Color        string  `json:"color,omitempty"` // #RRGGBB
	Align        string  `json:"align,omitempty"` // left, center, right
	Weight       string  `json:"weight,omitempty"`
	Opacity      float64 `json:"opacity,omitempty"`
	BorderWidth  float64 `json:"border_width,omitempty"`
	BorderColor  string  `json:"border_color,omitempty"`
	ShadowColor  string  `json:"shadow_color,omitempty"`
	ShadowOffset float64 `json:"shadow_offset,omitempty"`
}

func (s StyleConfig) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StyleConfig) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = StyleConfig{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StyleConfig", src)
	}
}

// Template is a certificate layout canvas. Element positions are expressed
// in the canvas coordinate space (same units as width/height).
type Template struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	CanvasWidth     float64    `json:"canvas_width" db:"canvas_width"`
	CanvasHeight    float64    `json:"canvas_height" db:"canvas_height"`
	BackgroundColor string     `json:"background_color" db:"background_color"`
	IsDefault       bool       `json:"is_default" db:"is_default"`
	EventID         *uuid.UUID `json:"event_id,omitempty" db:"event_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// TemplateElement is one positioned element on a template canvas.
type TemplateElement struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	TemplateID uuid.UUID   `json:"template_id" db:"template_id"`
	Type       ElementType `json:"element_type" db:"element_type"`
	PositionX  float64     `json:"position_x" db:"position_x"`
	PositionY  float64     `json:"position_y" db:"position_y"`
	Width      float64     `json:"width" db:"width"`
	Height     float64     `json:"height" db:"height"`
	Rotation   float64     `json:"rotation" db:"rotation"`
	ZIndex     int         `json:"z_index" db:"z_index"`
	Content    string      `json:"content" db:"content"`
	Style      StyleConfig `json:"style_config" db:"style_config"`
	AssetID    *uuid.UUID  `json:"asset_id,omitempty" db:"asset_id"`
	IsLocked   bool        `json:"is_locked" db:"is_locked"`
	IsVisible  bool        `json:"is_visible" db:"is_visible"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// Validate enforces the element geometry invariants.
func (e *TemplateElement) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown element type %q", string(e.Type))
	}
	if e.Width <= 0 || e.Height <= 0 {
		return fmt.Errorf("element dimensions must be positive, got %gx%g", e.Width, e.Height)
	}
	if e.Rotation < 0 || e.Rotation > 360 {
		return fmt.Errorf("rotation must be within [0, 360], got %g", e.Rotation)
	}
	if e.Type == ElementImage && e.AssetID == nil {
		return fmt.Errorf("image element requires an asset reference")
	}
	return nil
}

// Asset is an uploaded binary referenced by IMAGE elements.
type Asset struct {
	ID          uuid.UUID `json:"id" db:"id"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	Data        []byte    `json:"-" db:"data"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
