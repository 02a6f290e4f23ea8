package pdfstamp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
)

const overlayImageName = "qr-overlay"

// Stamper composites a raster overlay onto every page of an existing PDF.
type Stamper struct{}

func NewStamper() *Stamper {
	return &Stamper{}
}

// StampAllPages draws overlayPNG at (x, y) with the given square size (all in
// PDF points, origin top-left) on every page of src and returns the resulting
// document. The source is never modified.
func (s *Stamper) StampAllPages(src []byte, overlayPNG []byte, x, y, size float64) (out []byte, err error) {
	if !bytes.HasPrefix(src, []byte("%PDF-")) {
		return nil, fmt.Errorf("source is not a PDF document")
	}
	if len(overlayPNG) == 0 {
		return nil, fmt.Errorf("empty overlay image")
	}
	if size <= 0 {
		return nil, fmt.Errorf("overlay size must be positive, got %f", size)
	}

	// The page importer panics on malformed cross-reference tables instead
	// of returning errors; surface that as a normal error to the caller.
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("failed to parse source PDF: %v", r)
		}
	}()

	pdf := gofpdf.New("P", "pt", "A4", "")
	importer := gofpdi.NewImporter()

	rs := io.ReadSeeker(bytes.NewReader(src))
	firstTpl := importer.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	pageSizes := importer.GetPageSizes()
	pageCount := len(pageSizes)
	if pageCount == 0 {
		return nil, fmt.Errorf("source PDF has no pages")
	}

	pdf.RegisterImageOptionsReader(
		overlayImageName,
		gofpdf.ImageOptions{ImageType: "PNG"},
		bytes.NewReader(overlayPNG),
	)

	for page := 1; page <= pageCount; page++ {
		box, ok := pageSizes[page]["/MediaBox"]
		if !ok {
			return nil, fmt.Errorf("page %d has no media box", page)
		}
		w, h := box["w"], box["h"]

		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})

		tpl := firstTpl
		if page > 1 {
			tpl = importer.ImportPageFromStream(pdf, &rs, page, "/MediaBox")
		}
		importer.UseImportedTemplate(pdf, tpl, 0, 0, w, h)

		pdf.ImageOptions(overlayImageName, x, y, size, size, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write stamped PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount parses src just far enough to count its pages.
func (s *Stamper) PageCount(src []byte) (n int, err error) {
	if !bytes.HasPrefix(src, []byte("%PDF-")) {
		return 0, fmt.Errorf("source is not a PDF document")
	}
	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = fmt.Errorf("failed to parse source PDF: %v", r)
		}
	}()

	pdf := gofpdf.New("P", "pt", "A4", "")
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(src))
	importer.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")
	return len(importer.GetPageSizes()), nil
}
