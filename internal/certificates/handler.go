package certificates

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"certifica/cert-portal/cert-portal-backend/internal/participants"
	"certifica/cert-portal/cert-portal-backend/pkg/workflows"
)

type Handler struct {
	service          *Service
	processor        *Processor
	signer           *SigningClient
	bundler          *Bundler
	registry         *RegistryExporter
	participantsRepo participants.Repository
}

func NewHandler(
	service *Service,
	processor *Processor,
	signer *SigningClient,
	bundler *Bundler,
	registry *RegistryExporter,
	participantsRepo participants.Repository,
) *Handler {
	return &Handler{
		service:          service,
		processor:        processor,
		signer:           signer,
		bundler:          bundler,
		registry:         registry,
		participantsRepo: participantsRepo,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	certs := rg.Group("/certificates")
	{
		certs.POST("/import", h.ImportBatch)
		certs.POST("/process-qr", h.ProcessQRPending)
		certs.POST("/export", h.Export)
		certs.POST("/import-final", h.ImportFinal)
		certs.POST("/sign-bulk", h.SignPending)
		certs.GET("/:uuid", h.Get)
		certs.POST("/:uuid/process-qr", h.ProcessQR)
		certs.POST("/:uuid/sign", h.Sign)
		certs.POST("/:uuid/retry", h.Retry)
	}
	events := rg.Group("/events")
	{
		events.POST("/:id/generate", h.GenerateForEvent)
		events.GET("/:id/registry", h.Registry)
	}
	rg.POST("/participants/:id/generate", h.GenerateForParticipant)
}

// RegisterVerification mounts the public verification endpoint. It lives
// outside the API group because the URL printed inside the QR must stay
// stable.
func (h *Handler) RegisterVerification(r gin.IRouter) {
	r.GET("/verificar/:uuid/", h.Verify)
	r.GET("/verificar/:uuid", h.Verify)
}

func (h *Handler) ImportBatch(c *gin.Context) {
	uploads, err := readUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.processor.ImportBatch(c.Request.Context(), uploads)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ProcessQR(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	cert, err := h.processor.ProcessQR(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *Handler) ProcessQRPending(c *gin.Context) {
	result, err := h.processor.ProcessQRPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Export(c *gin.Context) {
	archive, filename, err := h.bundler.ExportPending(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/zip", archive)
}

func (h *Handler) ImportFinal(c *gin.Context) {
	uploads, err := readUploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.processor.ImportFinalBatch(c.Request.Context(), uploads)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Sign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	cert, err := h.service.GetByUUID(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}

	signed, err := h.signer.Sign(c.Request.Context(), cert)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}

func (h *Handler) SignPending(c *gin.Context) {
	result, err := h.signer.SignPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	cert, err := h.service.GetByUUID(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *Handler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	cert, err := h.processor.RetryFromError(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *Handler) GenerateForParticipant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	cert, err := h.service.Generate(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

func (h *Handler) GenerateForEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result, err := h.service.GenerateBulk(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Registry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	workbook, err := h.registry.ExportRegistryForEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "registro_certificados.xlsx"))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

// Verify is the public endpoint the QR URL points at.
func (h *Handler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "invalid uuid"})
		return
	}

	cert, err := h.service.GetByUUID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"valid": false, "error": "certificate not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"valid": false, "error": err.Error()})
		return
	}

	response := gin.H{
		"valid":     true,
		"uuid":      cert.UUID,
		"status":    cert.Status,
		"is_signed": cert.IsSigned,
		"signed_at": cert.SignedAt,
	}
	if participant, err := h.participantsRepo.GetParticipantByID(c.Request.Context(), cert.ParticipantID); err == nil && participant != nil {
		response["nombre"] = participant.FullName
		if cert.EventID != nil {
			if event, err := h.participantsRepo.GetEventByID(c.Request.Context(), *cert.EventID); err == nil && event != nil {
				response["evento"] = event.Name
			}
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	var transition *workflows.TransitionError[ProcessingStatus]
	var permanent *PermanentSigningError
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNoDefaultTemplate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &permanent):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// readUploads collects all multipart files from the "files" field.
func readUploads(c *gin.Context) ([]UploadedPDF, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("multipart form is required: %w", err)
	}
	files := form.File["files"]
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}

	uploads := make([]UploadedPDF, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, UploadedPDF{Filename: fh.Filename, Data: data})
	}
	return uploads, nil
}
