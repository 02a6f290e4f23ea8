package pdfstamp

import (
	"bytes"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"

	"certifica/cert-portal/cert-portal-backend/pkg/qr"
)

func buildPDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Arial", "", 14)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Cell(40, 20, "Certificado de prueba")
	}
	var buf bytes.Buffer
	assert.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func overlayPNG(t *testing.T) []byte {
	t.Helper()
	data, err := qr.NewGenerator(150).GeneratePNG("https://example.org/verificar/x/", qr.LevelM, 10, 4)
	assert.NoError(t, err)
	return data
}

func TestStampAllPages(t *testing.T) {
	s := NewStamper()
	src := buildPDF(t, 3)

	out, err := s.StampAllPages(src, overlayPNG(t), 450, 700, 100)
	assert.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	n, err := s.PageCount(out)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStampRejectsNonPDF(t *testing.T) {
	s := NewStamper()

	_, err := s.StampAllPages([]byte("not a pdf"), overlayPNG(t), 0, 0, 100)
	assert.Error(t, err)

	_, err = s.StampAllPages(buildPDF(t, 1), nil, 0, 0, 100)
	assert.Error(t, err)

	_, err = s.StampAllPages(buildPDF(t, 1), overlayPNG(t), 0, 0, 0)
	assert.Error(t, err)
}

func TestStampSurvivesCorruptSource(t *testing.T) {
	s := NewStamper()
	corrupt := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0x41}, 64)...)

	_, err := s.StampAllPages(corrupt, overlayPNG(t), 0, 0, 100)
	assert.Error(t, err)
}

func TestPageCount(t *testing.T) {
	s := NewStamper()

	n, err := s.PageCount(buildPDF(t, 2))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.PageCount([]byte("nope"))
	assert.Error(t, err)
}
