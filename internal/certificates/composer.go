package certificates

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"certifica/cert-portal/cert-portal-backend/internal/config"
	"certifica/cert-portal/cert-portal-backend/internal/templates"
	"certifica/cert-portal/cert-portal-backend/pkg/qr"
)

// Composer turns participant data and a template into PDF bytes. Two
// strategies: the visual template engine when the template has elements, and
// a fixed simple layout as fallback.
type Composer struct {
	engine *templates.Engine
	qrgen  *qr.Generator
	qrCfg  config.QRProcessingConfig
}

func NewComposer(engine *templates.Engine, qrgen *qr.Generator, qrCfg config.QRProcessingConfig) *Composer {
	return &Composer{engine: engine, qrgen: qrgen, qrCfg: qrCfg}
}

// Compose renders the certificate PDF. data carries the participant-scoped
// variables, including "verification_url" for the QR payload.
func (c *Composer) Compose(ctx context.Context, tmpl *templates.Template, elements []templates.TemplateElement, data map[string]string, assets templates.AssetStore) ([]byte, error) {
	if tmpl != nil && templates.HasVisualElements(elements) {
		page, err := c.engine.Render(ctx, tmpl, elements, data, assets)
		if err != nil {
			return nil, fmt.Errorf("failed to render template: %w", err)
		}
		return c.paintPage(page)
	}
	return c.simpleLayout(data)
}

// paintPage draws an engine page description 1:1 in canvas coordinates.
func (c *Composer) paintPage(page *templates.Page) ([]byte, error) {
	orientation := "P"
	if page.Landscape {
		orientation = "L"
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	if page.Background != "" {
		r, g, b := parseHexColor(page.Background)
		pdf.SetFillColor(r, g, b)
		pdf.Rect(0, 0, page.Width, page.Height, "F")
	}

	for i, item := range page.Items {
		rotated := item.Rotation != 0
		if rotated {
			pdf.TransformBegin()
			pdf.TransformRotate(-item.Rotation, item.X+item.Width/2, item.Y+item.Height/2)
		}
		if item.Style.Opacity < 1 {
			pdf.SetAlpha(item.Style.Opacity, "Normal")
		}

		switch item.Kind {
		case templates.PaintText:
			c.paintText(pdf, item)
		case templates.PaintImage:
			c.paintImage(pdf, item, fmt.Sprintf("paint-item-%d", i))
		}

		if item.Style.Opacity < 1 {
			pdf.SetAlpha(1, "Normal")
		}
		if rotated {
			pdf.TransformEnd()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Composer) paintText(pdf *gofpdf.Fpdf, item templates.PaintItem) {
	style := fontStyle(item.Style.Weight)
	pdf.SetFont(fontFamily(item.Style.FontFamily), style, item.Style.FontSize)

	r, g, b := parseHexColor(item.Style.Color)
	pdf.SetTextColor(r, g, b)

	border := "0"
	if item.Style.BorderWidth > 0 {
		br, bg, bb := parseHexColor(item.Style.BorderColor)
		pdf.SetDrawColor(br, bg, bb)
		pdf.SetLineWidth(item.Style.BorderWidth)
		border = "1"
	}

	pdf.SetXY(item.X, item.Y)
	lineHeight := item.Style.FontSize * 1.2
	pdf.MultiCell(item.Width, lineHeight, item.Text, border, alignCode(item.Style.Align), false)
}

func (c *Composer) paintImage(pdf *gofpdf.Fpdf, item templates.PaintItem, name string) {
	imageType := detectImageType(item.Image)
	if imageType == "" {
		// Unsupported payloads degrade to a visible marker, matching the
		// engine's behavior for bad elements.
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(204, 0, 0)
		pdf.SetXY(item.X, item.Y)
		pdf.MultiCell(item.Width, 12, "[error: unsupported image format]", "0", "L", false)
		return
	}
	opts := gofpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(item.Image))
	pdf.ImageOptions(name, item.X, item.Y, item.Width, item.Height, false, opts, 0, "")
}

// simpleLayout is the fixed fallback: title, participant data, QR in the
// bottom-right corner, footer with the verification URL.
func (c *Composer) simpleLayout(data map[string]string) ([]byte, error) {
	verificationURL := data["verification_url"]
	if verificationURL == "" {
		return nil, fmt.Errorf("verification URL is required")
	}
	qrPNG, err := c.qrgen.GeneratePNG(verificationURL, qr.Level(c.qrCfg.ErrorCorrection), c.qrCfg.BoxSize, c.qrCfg.Border)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR: %w", err)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	pdf.SetFont("Helvetica", "B", 28)
	pdf.SetTextColor(30, 30, 30)
	pdf.SetXY(0, 90)
	pdf.CellFormat(pageW, 36, "CERTIFICADO", "0", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetXY(0, 150)
	pdf.CellFormat(pageW, 20, "Otorgado a:", "0", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetXY(0, 180)
	pdf.CellFormat(pageW, 28, data["nombre"], "0", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	y := 230.0
	for _, line := range []struct{ label, key string }{
		{"DNI", "dni"},
		{"Rol", "rol"},
		{"Evento", "evento"},
		{"Fecha", "fecha"},
	} {
		if value := data[line.key]; value != "" {
			pdf.SetXY(0, y)
			pdf.CellFormat(pageW, 18, fmt.Sprintf("%s: %s", line.label, value), "0", 1, "C", false, 0, "")
			y += 24
		}
	}

	qrSize := 110.0
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("simple-qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("simple-qr", pageW-qrSize-40, pageH-qrSize-80, qrSize, qrSize, false, opts, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.SetXY(0, pageH-50)
	pdf.CellFormat(pageW, 12, fmt.Sprintf("Verifique este certificado en %s", verificationURL), "0", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func fontFamily(name string) string {
	switch strings.ToLower(name) {
	case "times", "times new roman", "serif":
		return "Times"
	case "courier", "monospace":
		return "Courier"
	case "arial":
		return "Arial"
	default:
		return "Helvetica"
	}
}

func fontStyle(weight string) string {
	switch strings.ToLower(weight) {
	case "bold":
		return "B"
	case "italic":
		return "I"
	case "bolditalic", "bold-italic":
		return "BI"
	default:
		return ""
	}
}

func alignCode(align string) string {
	switch align {
	case "center":
		return "C"
	case "right":
		return "R"
	default:
		return "L"
	}
}

// parseHexColor reads #RRGGBB; anything unparsable is black.
func parseHexColor(s string) (int, int, int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}

func detectImageType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "PNG"
	case bytes.HasPrefix(data, []byte("\xFF\xD8")):
		return "JPG"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "GIF"
	default:
		return ""
	}
}
