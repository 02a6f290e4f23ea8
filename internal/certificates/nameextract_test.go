package certificates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractNameFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		found    bool
	}{
		{"Juan_Perez_Garcia.pdf", "Juan Perez Garcia", true},
		{"maria-lopez.pdf", "maria lopez", true},
		{"Ana.Sofia.Ramirez.pdf", "Ana Sofia Ramirez", true},
		{"certificado_Juan_Perez_550e8400-e29b-41d4-a716-446655440000.pdf", "certificado Juan Perez", true},
		{"12345.pdf", "", false},
		{"scan001.pdf", "", false},
		{"x.pdf", "", false},
		{"a_b.pdf", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, found := ExtractNameFromFilename(tt.filename)
		assert.Equal(t, tt.found, found, "filename %q", tt.filename)
		assert.Equal(t, tt.want, got, "filename %q", tt.filename)
	}
}

func TestExtractNameFromPDFMalformedInput(t *testing.T) {
	// Garbage bytes must fail cleanly, never panic.
	name, ok := ExtractNameFromPDF([]byte("%PDF-1.4 truncated garbage"))
	assert.False(t, ok)
	assert.Empty(t, name)

	name, ok = ExtractNameFromPDF(nil)
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestExtractNameFromPDFNoTextLayer(t *testing.T) {
	// A PDF produced without any label lines yields nothing.
	data := makeTestPDF(t, 1)
	name, ok := ExtractNameFromPDF(data)
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestIsNameToken(t *testing.T) {
	assert.True(t, isNameToken("Juan"))
	assert.True(t, isNameToken("de"))
	assert.False(t, isNameToken("J"))
	assert.False(t, isNameToken("2026"))
	assert.False(t, isNameToken("A1"))
}
