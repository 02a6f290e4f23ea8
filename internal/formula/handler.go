package formula

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes formula checking to the template editor UI.
type Handler struct {
	validator *Validator
}

func NewHandler(validator *Validator) *Handler {
	return &Handler{validator: validator}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	formulas := rg.Group("/formulas")
	{
		formulas.POST("/validate", h.Validate)
		formulas.POST("/extract", h.Extract)
	}
}

type markupRequest struct {
	Markup string `json:"markup"`
}

func (h *Handler) Validate(c *gin.Context) {
	var req markupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.validator.Validate(req.Markup)
	response := gin.H{
		"is_valid": result.IsValid,
		"errors":   result.Errors,
		"warnings": result.Warnings,
	}
	if result.IsValid {
		response["sanitized_markup"] = result.Sanitized
	} else {
		response["suggestions"] = h.validator.SuggestCorrections(req.Markup)
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) Extract(c *gin.Context) {
	var req markupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	blocks := h.validator.ExtractMathContent(req.Markup)
	c.JSON(http.StatusOK, gin.H{"blocks": blocks, "count": len(blocks)})
}
