package templates

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"certifica/cert-portal/cert-portal-backend/internal/formula"
	"certifica/cert-portal/cert-portal-backend/pkg/qr"
)

// PaintKind tags a resolved paint operation.
type PaintKind string

const (
	PaintText  PaintKind = "text"
	PaintImage PaintKind = "image"
)

// PaintItem is one concrete draw operation in page space. Image payloads are
// embedded inline so the page description is self-contained.
type PaintItem struct {
	Kind     PaintKind
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
	Text     string
	Image    []byte
	Style    StyleConfig
}

// Page is the renderable description the composer paints from. Coordinates
// map 1:1 onto the template canvas space.
type Page struct {
	Width      float64
	Height     float64
	Landscape  bool
	Background string
	Items      []PaintItem
}

// AssetStore resolves IMAGE element references.
type AssetStore interface {
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)
}

var variableRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Engine resolves positioned template elements into a page description.
type Engine struct {
	validator *formula.Validator
	qrgen     *qr.Generator
	qrLevel   qr.Level
	qrBoxSize int
	qrBorder  int
}

func NewEngine(validator *formula.Validator, qrgen *qr.Generator, level qr.Level, boxSize, border int) *Engine {
	return &Engine{
		validator: validator,
		qrgen:     qrgen,
		qrLevel:   level,
		qrBoxSize: boxSize,
		qrBorder:  border,
	}
}

// Render resolves every visible element in ascending z_index order (creation
// order breaks ties) and returns the finished page description. A single bad
// element degrades to an inline error marker instead of failing the page;
// only systemic failures (asset store errors, QR generation) abort.
func (e *Engine) Render(ctx context.Context, tmpl *Template, elements []TemplateElement, data map[string]string, assets AssetStore) (*Page, error) {
	if tmpl.CanvasWidth <= 0 || tmpl.CanvasHeight <= 0 {
		return nil, fmt.Errorf("template canvas must have positive dimensions")
	}

	page := &Page{
		Width:      tmpl.CanvasWidth,
		Height:     tmpl.CanvasHeight,
		Landscape:  tmpl.CanvasWidth > tmpl.CanvasHeight,
		Background: tmpl.BackgroundColor,
	}

	ordered := make([]TemplateElement, len(elements))
	copy(ordered, elements)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ZIndex < ordered[j].ZIndex })

	for _, el := range ordered {
		if !el.IsVisible {
			continue
		}
		if err := el.Validate(); err != nil {
			page.Items = append(page.Items, errorMarker(el, err.Error()))
			continue
		}

		switch el.Type {
		case ElementText, ElementVariable:
			page.Items = append(page.Items, PaintItem{
				Kind:     PaintText,
				X:        el.PositionX,
				Y:        el.PositionY,
				Width:    el.Width,
				Height:   el.Height,
				Rotation: el.Rotation,
				Text:     e.substitute(el.Content, data),
				Style:    resolveStyle(el),
			})

		case ElementFormula:
			result := e.validator.Validate(el.Content)
			if !result.IsValid {
				page.Items = append(page.Items, errorMarker(el, firstError(result.Errors)))
				continue
			}
			page.Items = append(page.Items, PaintItem{
				Kind:     PaintText,
				X:        el.PositionX,
				Y:        el.PositionY,
				Width:    el.Width,
				Height:   el.Height,
				Rotation: el.Rotation,
				Text:     result.Sanitized,
				Style:    resolveStyle(el),
			})

		case ElementImage:
			asset, err := assets.GetAsset(ctx, *el.AssetID)
			if err != nil {
				return nil, fmt.Errorf("failed to load asset %s: %w", el.AssetID, err)
			}
			if asset == nil {
				page.Items = append(page.Items, errorMarker(el, "missing asset"))
				continue
			}
			page.Items = append(page.Items, PaintItem{
				Kind:     PaintImage,
				X:        el.PositionX,
				Y:        el.PositionY,
				Width:    el.Width,
				Height:   el.Height,
				Rotation: el.Rotation,
				Image:    asset.Data,
				Style:    resolveStyle(el),
			})

		case ElementQR:
			payload := data["verification_url"]
			if payload == "" {
				page.Items = append(page.Items, errorMarker(el, "no verification URL for QR element"))
				continue
			}
			img, err := e.qrgen.GeneratePNG(payload, e.qrLevel, e.qrBoxSize, e.qrBorder)
			if err != nil {
				return nil, fmt.Errorf("failed to generate QR element: %w", err)
			}
			page.Items = append(page.Items, PaintItem{
				Kind:   PaintImage,
				X:      el.PositionX,
				Y:      el.PositionY,
				Width:  el.Width,
				Height: el.Height,
				Image:  img,
				Style:  resolveStyle(el),
			})
		}
	}

	return page, nil
}

// HasVisualElements reports whether a template has at least one visible
// element; the composer uses this to pick the engine path over the simple
// fixed layout.
func HasVisualElements(elements []TemplateElement) bool {
	for _, el := range elements {
		if el.IsVisible {
			return true
		}
	}
	return false
}

// substitute replaces {{variable}} tokens from data. Unresolved tokens stay
// as literal placeholders.
func (e *Engine) substitute(content string, data map[string]string) string {
	return variableRe.ReplaceAllStringFunc(content, func(token string) string {
		name := variableRe.FindStringSubmatch(token)[1]
		if value, ok := data[name]; ok {
			return value
		}
		return token
	})
}

func firstError(errs []string) string {
	if len(errs) == 0 {
		return "invalid formula"
	}
	return errs[0]
}

func errorMarker(el TemplateElement, msg string) PaintItem {
	return PaintItem{
		Kind:   PaintText,
		X:      el.PositionX,
		Y:      el.PositionY,
		Width:  el.Width,
		Height: el.Height,
		Text:   fmt.Sprintf("[error: %s]", msg),
		Style: StyleConfig{
			FontFamily: "Helvetica",
			FontSize:   10,
			Color:      "#CC0000",
			Align:      "left",
			Opacity:    1,
		},
	}
}

// resolveStyle maps the abstract style config to concrete paint attributes,
// filling defaults per element type.
func resolveStyle(el TemplateElement) StyleConfig {
	s := el.Style
	if s.FontFamily == "" {
		s.FontFamily = "Helvetica"
	}
	if s.FontSize <= 0 {
		switch el.Type {
		case ElementFormula:
			s.FontSize = 14
		default:
			s.FontSize = 12
		}
	}
	if s.Color == "" {
		s.Color = "#000000"
	}
	if s.Align == "" {
		s.Align = "left"
	}
	if s.Weight == "" {
		s.Weight = "normal"
	}
	if s.Opacity <= 0 || s.Opacity > 1 {
		s.Opacity = 1
	}
	if s.BorderWidth > 0 && s.BorderColor == "" {
		s.BorderColor = "#000000"
	}
	s.Align = strings.ToLower(s.Align)
	return s
}
