package certificates

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Name extraction is best effort: results are never treated as validated
// identity data, only as a hint for find-or-create during batch import.

var (
	separatorRe = regexp.MustCompile(`[_\-.]+`)
	spaceRe     = regexp.MustCompile(`\s+`)
	uuidRe      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

	// labelPatterns match "Certificado de: Juan Pérez" style lines on the
	// first page of imported PDFs.
	labelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)certificado\s+de\s*:?\s*([^\n\r]+)`),
		regexp.MustCompile(`(?i)otorgado\s+a\s*:?\s*([^\n\r]+)`),
		regexp.MustCompile(`(?i)participante\s*:?\s*([^\n\r]+)`),
	}
)

// ExtractNameFromFilename strips the extension, normalizes separators and
// requires at least two name tokens. Returns ("", false) when the filename
// does not look like a person's name.
func ExtractNameFromFilename(filename string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = uuidRe.ReplaceAllString(base, " ")
	base = separatorRe.ReplaceAllString(base, " ")
	base = spaceRe.ReplaceAllString(strings.TrimSpace(base), " ")
	if base == "" {
		return "", false
	}

	tokens := strings.Fields(base)
	var nameTokens []string
	for _, tok := range tokens {
		if isNameToken(tok) {
			nameTokens = append(nameTokens, tok)
		}
	}
	if len(nameTokens) < 2 {
		return "", false
	}
	return strings.Join(nameTokens, " "), true
}

// ExtractNameFromPDF scans the first page's text for label patterns like
// "Certificado de:". Returns ("", false) when nothing plausible is found or
// when the PDF text layer cannot be read.
func ExtractNameFromPDF(data []byte) (name string, ok bool) {
	// The reader panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			name, ok = "", false
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil || reader.NumPage() == 0 {
		return "", false
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil || text == "" {
		return "", false
	}

	for _, pattern := range labelPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := spaceRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
		tokens := strings.Fields(candidate)
		var nameTokens []string
		for _, tok := range tokens {
			if !isNameToken(tok) {
				break
			}
			nameTokens = append(nameTokens, tok)
			if len(nameTokens) == 5 {
				break
			}
		}
		if len(nameTokens) >= 2 {
			return strings.Join(nameTokens, " "), true
		}
	}
	return "", false
}

// isNameToken filters out numbers, codes and single letters.
func isNameToken(tok string) bool {
	if len([]rune(tok)) < 2 {
		return false
	}
	for _, r := range tok {
		if r >= '0' && r <= '9' {
			return false
		}
	}
	return true
}
