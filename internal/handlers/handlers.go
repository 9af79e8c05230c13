package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/lesion-api/internal/report"
	"github.com/Brownie44l1/lesion-api/internal/services"
)

// ReportRenderer turns a client-supplied verdict into a PDF document.
type ReportRenderer interface {
	Render(in report.Input) ([]byte, error)
}

type Handler struct {
	analyzer  *services.Analyzer
	renderer  ReportRenderer
	modelType string
}

func NewHandler(analyzer *services.Analyzer, renderer ReportRenderer, modelType string) *Handler {
	return &Handler{
		analyzer:  analyzer,
		renderer:  renderer,
		modelType: modelType,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.analyzer.CheckHealth(c.Request.Context(), h.modelType))
}

// Analyze classifies the image uploaded in the "image" form field.
func (h *Handler) Analyze(c *gin.Context) {
	outcome := h.analyzer.Analyze(c.Request.Context(), uploadFrom(c))

	if outcome.Kind != services.OutcomeSuccess {
		body := gin.H{"error": outcome.Error}
		if outcome.Details != "" {
			body["details"] = outcome.Details
		}
		c.JSON(outcome.Status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         outcome.Verdict.Status,
		"confidence":     outcome.Verdict.Confidence,
		"prediction_raw": outcome.Verdict.Raw,
		"timestamp":      outcome.Timestamp,
	})
}

// uploadFrom defers multipart parsing until the analyzer asks for the
// file. A field sent with an empty filename is parsed by net/http as a
// plain value, so it is reported as an upload without a name.
func uploadFrom(c *gin.Context) services.UploadSource {
	return func() (*services.Upload, error) {
		fh, err := c.FormFile("image")
		if err == nil {
			return &services.Upload{
				Filename: fh.Filename,
				Read:     func() ([]byte, error) { return readFile(fh) },
			}, nil
		}

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		if !errors.Is(err, http.ErrMissingFile) {
			slog.Info("multipart form rejected", "error", err)
		}
		if form := c.Request.MultipartForm; form != nil {
			if _, ok := form.Value["image"]; ok {
				return &services.Upload{
					Read: func() ([]byte, error) { return nil, errors.New("no file content") },
				}, nil
			}
		}
		return nil, nil
	}
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// GenerateReport renders the posted verdict as a PDF attachment.
func (h *Handler) GenerateReport(c *gin.Context) {
	var req report.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid report request",
			"details": err.Error(),
		})
		return
	}

	pdf, err := h.renderer.Render(req)
	if err != nil {
		slog.Error("report generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Report generation failed",
			"details": err.Error(),
		})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=report.pdf")
	c.Data(http.StatusOK, "application/pdf", pdf)
}
