package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRoundTrip(t *testing.T) {
	g := NewGenerator(0)
	url := "https://certificados.example.org/verificar/3f0c7a2e-9d14-4a14-8a9a-6f1d2b3c4d5e/"

	img, err := g.Generate(url, LevelM, 10, 4)
	assert.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, DefaultCanonicalSize, bounds.Dx())
	assert.Equal(t, DefaultCanonicalSize, bounds.Dy())

	decoded, err := Decode(img)
	assert.NoError(t, err)
	assert.Equal(t, url, decoded)
}

func TestGenerateDeterministic(t *testing.T) {
	g := NewGenerator(300)

	a, err := g.GeneratePNG("https://example.org/verificar/abc/", LevelH, 8, 2)
	assert.NoError(t, err)
	b, err := g.GeneratePNG("https://example.org/verificar/abc/", LevelH, 8, 2)
	assert.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGeneratePNGRoundTrip(t *testing.T) {
	g := NewGenerator(400)

	data, err := g.GeneratePNG("https://example.org/verificar/xyz/", LevelQ, 10, 4)
	assert.NoError(t, err)

	decoded, err := DecodePNG(data)
	assert.NoError(t, err)
	assert.Equal(t, "https://example.org/verificar/xyz/", decoded)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	g := NewGenerator(0)

	_, err := g.Generate("", LevelM, 10, 4)
	assert.Error(t, err)

	_, err = g.Generate("https://example.org", Level("X"), 10, 4)
	assert.Error(t, err)

	_, err = g.Generate("https://example.org", LevelM, 0, 4)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"L", "M", "Q", "H"} {
		level, err := ParseLevel(s)
		assert.NoError(t, err)
		assert.Equal(t, Level(s), level)
	}

	_, err := ParseLevel("Z")
	assert.Error(t, err)
}
