// Package report renders the downloadable summary of a verdict.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/Brownie44l1/lesion-api/internal/model"
)

const (
	Title      = "Skin Lesion Analysis Report"
	Disclaimer = "Disclaimer: AI-generated screening result, not a medical diagnosis. Consult a dermatologist."
)

// Input is a verdict supplied by the client. Values are displayed as given.
type Input struct {
	Date       string      `json:"date" binding:"required"`
	Status     string      `json:"status" binding:"required"`
	Confidence json.Number `json:"confidence" binding:"required"`
}

type Renderer struct{}

// NewRenderer returns a renderer producing uncompressed page streams, so
// the report text can be found in the raw bytes.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render builds a one-page PDF. Text the core fonts cannot encode, and any
// failure inside the PDF writer, is returned as KindRenderFailure.
func (r *Renderer) Render(in Input) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = model.Errorf(model.KindRenderFailure, "render", "pdf panic: %v", rec)
		}
	}()

	lines := []string{
		Title,
		"Date: " + in.Date,
		"Status: " + in.Status,
		"Confidence: " + in.Confidence.String() + "%",
		Disclaimer,
	}
	enc := charmap.Windows1252.NewEncoder()
	for i, line := range lines {
		encoded, err := enc.String(line)
		if err != nil {
			return nil, &model.Error{Kind: model.KindRenderFailure, Op: "render", Err: fmt.Errorf("unencodable text %q: %w", line, err)}
		}
		lines[i] = encoded
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetTitle(Title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, lines[0], "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range lines[1:4] {
		pdf.CellFormat(0, 8, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, lines[4], "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &model.Error{Kind: model.KindRenderFailure, Op: "render", Err: err}
	}
	return buf.Bytes(), nil
}
