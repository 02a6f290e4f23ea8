package templates

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	tmpl := rg.Group("/templates")
	{
		tmpl.GET("", h.List)
		tmpl.GET("/:id", h.Get)
		tmpl.GET("/:id/export", h.ExportArchive)
		tmpl.POST("/import", h.ImportArchive)
	}
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListTemplates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	tmpl, err := h.repo.GetTemplateByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tmpl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// ExportArchive downloads the template with its elements and assets as a
// self-contained zip.
func (h *Handler) ExportArchive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	tmpl, err := h.repo.GetTemplateByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tmpl == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}

	elements, err := h.repo.ListElements(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var assets []Asset
	seen := map[uuid.UUID]bool{}
	for i := range elements {
		if elements[i].AssetID == nil || seen[*elements[i].AssetID] {
			continue
		}
		seen[*elements[i].AssetID] = true
		asset, err := h.repo.GetAsset(ctx, *elements[i].AssetID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if asset != nil {
			assets = append(assets, *asset)
		}
	}

	archive, filename, err := BuildArchive(tmpl, elements, assets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/zip", archive)
}

// ImportArchive creates a new template from an exported archive. All IDs are
// regenerated so an archive can be imported repeatedly.
func (h *Handler) ImportArchive(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	bundle, err := ParseArchive(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	// Imported templates never steal the default slot.
	bundle.Template.IsDefault = false
	if err := h.repo.CreateTemplate(ctx, &bundle.Template); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i := range bundle.Assets {
		if err := h.repo.CreateAsset(ctx, &bundle.Assets[i]); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	for i := range bundle.Elements {
		if err := h.repo.CreateElement(ctx, &bundle.Elements[i]); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"template_id": bundle.Template.ID,
		"elements":    len(bundle.Elements),
		"assets":      len(bundle.Assets),
	})
}
