package templates

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const archiveVersion = "1.0"

// archiveInfo is the export_info.json payload.
type archiveInfo struct {
	Version      string    `json:"version"`
	TemplateName string    `json:"template_name"`
	ElementCount int       `json:"element_count"`
	AssetCount   int       `json:"asset_count"`
	ExportedAt   time.Time `json:"exported_at"`
}

// assetMeta is one entry of assets.json; the binary lives under assets/.
type assetMeta struct {
	ID           uuid.UUID `json:"id"`
	FileName     string    `json:"file_name"`
	ContentType  string    `json:"content_type"`
	ArchivePath  string    `json:"archive_path"`
	SizeBytes    int       `json:"size_bytes"`
}

// ArchiveBundle is a parsed template archive ready to be persisted.
type ArchiveBundle struct {
	Template Template
	Elements []TemplateElement
	Assets   []Asset
}

const archiveReadme = `Certificate template archive.

Contents:
  export_info.json  export metadata
  template.json     template definition (canvas, defaults)
  elements.json     positioned elements, z-ordered at render time
  assets.json       asset index
  assets/           asset binaries, named <id>_<originalname>

Import through the template import endpoint; IDs are re-generated on import.
`

// BuildArchive packages a template with its elements and assets into a zip.
// Returns the archive bytes and a suggested filename.
func BuildArchive(tmpl *Template, elements []TemplateElement, assets []Asset) ([]byte, string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	writeJSON := func(name string, v interface{}) error {
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	info := archiveInfo{
		Version:      archiveVersion,
		TemplateName: tmpl.Name,
		ElementCount: len(elements),
		AssetCount:   len(assets),
		ExportedAt:   time.Now().UTC(),
	}
	if err := writeJSON("export_info.json", info); err != nil {
		return nil, "", err
	}
	if err := writeJSON("template.json", tmpl); err != nil {
		return nil, "", err
	}
	if err := writeJSON("elements.json", elements); err != nil {
		return nil, "", err
	}

	metas := make([]assetMeta, 0, len(assets))
	for _, a := range assets {
		path := fmt.Sprintf("assets/%s_%s", a.ID, a.FileName)
		metas = append(metas, assetMeta{
			ID:          a.ID,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			ArchivePath: path,
			SizeBytes:   len(a.Data),
		})
		w, err := zw.Create(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := writeJSON("assets.json", metas); err != nil {
		return nil, "", err
	}

	w, err := zw.Create("README.txt")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create README.txt: %w", err)
	}
	if _, err := io.WriteString(w, archiveReadme); err != nil {
		return nil, "", fmt.Errorf("failed to write README.txt: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	filename := fmt.Sprintf("template_%s_%s.zip",
		sanitizeFilename(tmpl.Name), time.Now().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}

// ParseArchive reads a template archive. Template, element and asset IDs are
// re-generated so an import never collides with existing records; element and
// image asset references are remapped accordingly.
func ParseArchive(data []byte) (*ArchiveBundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid archive: %w", err)
	}

	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}
	readJSON := func(name string, v interface{}) error {
		f, ok := files[name]
		if !ok {
			return fmt.Errorf("archive is missing %s", name)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		return json.NewDecoder(rc).Decode(v)
	}

	var info archiveInfo
	if err := readJSON("export_info.json", &info); err != nil {
		return nil, err
	}
	if info.Version != archiveVersion {
		return nil, fmt.Errorf("unsupported archive version %q", info.Version)
	}

	bundle := &ArchiveBundle{}
	if err := readJSON("template.json", &bundle.Template); err != nil {
		return nil, err
	}
	if err := readJSON("elements.json", &bundle.Elements); err != nil {
		return nil, err
	}
	var metas []assetMeta
	if err := readJSON("assets.json", &metas); err != nil {
		return nil, err
	}

	assetIDMap := map[uuid.UUID]uuid.UUID{}
	for _, meta := range metas {
		f, ok := files[meta.ArchivePath]
		if !ok {
			return nil, fmt.Errorf("archive is missing asset %s", meta.ArchivePath)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open asset %s: %w", meta.ArchivePath, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read asset %s: %w", meta.ArchivePath, err)
		}

		newID := uuid.New()
		assetIDMap[meta.ID] = newID
		bundle.Assets = append(bundle.Assets, Asset{
			ID:          newID,
			FileName:    meta.FileName,
			ContentType: meta.ContentType,
			Data:        content,
			CreatedAt:   time.Now(),
		})
	}

	bundle.Template.ID = uuid.New()
	bundle.Template.IsDefault = false
	bundle.Template.EventID = nil
	now := time.Now()
	bundle.Template.CreatedAt = now
	bundle.Template.UpdatedAt = now

	for i := range bundle.Elements {
		el := &bundle.Elements[i]
		el.ID = uuid.New()
		el.TemplateID = bundle.Template.ID
		el.CreatedAt = now
		if el.AssetID != nil {
			mapped, ok := assetIDMap[*el.AssetID]
			if !ok {
				return nil, fmt.Errorf("element references unknown asset %s", el.AssetID)
			}
			el.AssetID = &mapped
		}
		if err := el.Validate(); err != nil {
			return nil, fmt.Errorf("invalid element in archive: %w", err)
		}
	}

	return bundle, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_")
	name = replacer.Replace(name)
	if name == "" {
		name = "template"
	}
	return name
}
