package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"cleaning-cards/models"
	"cleaning-cards/service"
)

// maxImageBytes caps a single uploaded photo. The client compresses to well
// under this; anything larger is not a phone photo.
const maxImageBytes = 15 << 20

// Handlers holds the HTTP handlers for the analysis endpoints.
type Handlers struct {
	analyzer *service.Analyzer
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(analyzer *service.Analyzer) *Handlers {
	return &Handlers{analyzer: analyzer}
}

// HealthCheck handles the root health probe.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "cleaning-cards",
	})
}

// AnalyzeRoomPhoto handles POST /api/analysis/room-photo. The request is
// multipart/form-data with an `image` file and optional `locale`; followup
// mode additionally requires `previousImage` (base64) and `previousCards`
// (JSON array). Client input errors fail fast with 4xx before any model
// call is made.
func (h *Handlers) AnalyzeRoomPhoto(c *gin.Context) {
	if c.ContentType() != "multipart/form-data" {
		c.JSON(http.StatusUnsupportedMediaType, models.ErrorResponse{
			Error: "content-type must be multipart/form-data",
		})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "image file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "image file is required"})
		return
	}
	defer file.Close()
	// Read one byte past the cap so a too-large upload is detected and
	// rejected rather than truncated into a corrupt prefix.
	imageData, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil || len(imageData) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "image file is required"})
		return
	}
	if len(imageData) > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "image exceeds the 15MB limit"})
		return
	}

	locale := c.PostForm("locale")
	mode := c.PostForm("mode")

	switch mode {
	case "", models.ModeInitial:
		h.analyzeInitial(c, imageData, locale)
	case models.ModeFollowup:
		h.analyzeFollowup(c, imageData, locale)
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid mode"})
	}
}

func (h *Handlers) analyzeInitial(c *gin.Context, imageData []byte, locale string) {
	result, err := h.analyzer.AnalyzeInitial(c.Request.Context(), imageData, locale)
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) analyzeFollowup(c *gin.Context, afterImage []byte, locale string) {
	previousImageB64 := c.PostForm("previousImage")
	previousCardsJSON := c.PostForm("previousCards")
	if previousImageB64 == "" || previousCardsJSON == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "followup mode requires previousImage and previousCards",
		})
		return
	}

	beforeImage, err := base64.StdEncoding.DecodeString(previousImageB64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid previousImage base64"})
		return
	}

	var previousCards []models.CleaningCard
	if err := json.Unmarshal([]byte(previousCardsJSON), &previousCards); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid previousCards JSON"})
		return
	}

	result, err := h.analyzer.AnalyzeFollowup(c.Request.Context(), beforeImage, afterImage, previousCards, locale)
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeAnalysisError maps pipeline failures onto the wire. An exhausted
// parse/repair sequence surfaces the raw model text for diagnostics; this is
// the only place raw model output reaches the caller.
func (h *Handlers) writeAnalysisError(c *gin.Context, err error) {
	var invalidJSON *service.InvalidJSONError
	if errors.As(err, &invalidJSON) {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error: "invalid_json_from_model",
			Raw:   invalidJSON.Raw,
		})
		return
	}
	log.Errorf("analysis failed: %v", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
}
