package services

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Brownie44l1/lesion-api/internal/model"
	"github.com/Brownie44l1/lesion-api/internal/preprocess"
)

// AllowedExtensions lists the accepted upload suffixes, lower case.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "webp"}

// ModelSource hands out the process classifier, loading it on demand.
type ModelSource interface {
	EnsureLoaded(ctx context.Context) (model.Classifier, error)
	Loaded() bool
}

type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeUnavailable   OutcomeKind = "unavailable"
	OutcomeNoFile        OutcomeKind = "no_file"
	OutcomeInvalidType   OutcomeKind = "invalid_type"
	OutcomeUnprocessable OutcomeKind = "unprocessable"
	OutcomeInternal      OutcomeKind = "internal"
)

// Outcome is the terminal result of one analyze request.
type Outcome struct {
	Kind      OutcomeKind
	Status    int
	Error     string
	Details   string
	Verdict   *model.Verdict
	Timestamp int64
}

// Upload is the file attached to an analyze request. Read is only called
// once every cheaper check has passed.
type Upload struct {
	Filename string
	Read     func() ([]byte, error)
}

// UploadSource extracts the attached file. It returns (nil, nil) when the
// request carries none, and an error when the body itself is unusable.
type UploadSource func() (*Upload, error)

// Attached wraps an already extracted upload.
func Attached(u *Upload) UploadSource {
	return func() (*Upload, error) { return u, nil }
}

type Analyzer struct {
	models ModelSource
	logger *slog.Logger
	now    func() time.Time
}

func NewAnalyzer(models ModelSource, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{models: models, logger: logger, now: time.Now}
}

// WithClock replaces the clock used for verdict timestamps.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze validates the request in order availability, presence, type,
// content, then runs inference. The source is not consulted until a
// classifier is available.
func (a *Analyzer) Analyze(ctx context.Context, source UploadSource) Outcome {
	classifier, err := a.models.EnsureLoaded(ctx)
	if err != nil {
		return Outcome{
			Kind:    OutcomeUnavailable,
			Status:  http.StatusServiceUnavailable,
			Error:   "Model not loaded",
			Details: err.Error(),
		}
	}

	upload, err := source()
	if err != nil {
		a.logger.Info("request body rejected", "error", err)
		return badRequest(OutcomeUnprocessable, "Invalid image", err.Error())
	}
	if upload == nil {
		return badRequest(OutcomeNoFile, "No image provided", "")
	}
	if upload.Filename == "" {
		return badRequest(OutcomeNoFile, "No selected file", "")
	}
	if !AllowedFile(upload.Filename) {
		return badRequest(OutcomeInvalidType, "Invalid file type",
			"allowed: "+strings.Join(AllowedExtensions, ", "))
	}

	data, err := upload.Read()
	if err != nil {
		a.logger.Info("upload unreadable", "filename", upload.Filename, "error", err)
		return badRequest(OutcomeUnprocessable, "Invalid image", err.Error())
	}
	tensor, err := preprocess.Normalize(data)
	if err != nil {
		a.logger.Info("image rejected", "filename", upload.Filename, "error", err)
		return badRequest(OutcomeUnprocessable, "Invalid image", err.Error())
	}

	score, err := predict(classifier, tensor)
	if err != nil {
		a.logger.Error("inference failed", "filename", upload.Filename, "error", err)
		return Outcome{
			Kind:    OutcomeInternal,
			Status:  http.StatusInternalServerError,
			Error:   "Analysis failed",
			Details: err.Error(),
		}
	}

	verdict := model.Interpret(score)
	a.logger.Info("analysis complete",
		"filename", upload.Filename,
		"status", verdict.Status,
		"confidence", verdict.Confidence,
	)
	return Outcome{
		Kind:      OutcomeSuccess,
		Status:    http.StatusOK,
		Verdict:   &verdict,
		Timestamp: a.now().UnixMilli(),
	}
}

func predict(c model.Classifier, t *model.ImageTensor) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.Errorf(model.KindInferenceFailure, "predict", "panic: %v", r)
		}
	}()
	score, err = c.PredictProbability(t)
	if err != nil && model.KindOf(err) == model.KindUnknown {
		err = &model.Error{Kind: model.KindInferenceFailure, Op: "predict", Err: err}
	}
	return score, err
}

func badRequest(kind OutcomeKind, msg, details string) Outcome {
	return Outcome{Kind: kind, Status: http.StatusBadRequest, Error: msg, Details: details}
}

// AllowedFile reports whether filename carries an accepted extension,
// compared case-insensitively.
func AllowedFile(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Health is the snapshot served on /health.
type Health struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelType   string `json:"model_type"`
	Mode        string `json:"mode"`
}

// CheckHealth tries to load the model if none is held and reports the
// result. It never fails.
func (a *Analyzer) CheckHealth(ctx context.Context, modelType string) Health {
	_, err := a.models.EnsureLoaded(ctx)
	h := Health{Status: "online", ModelLoaded: err == nil && a.models.Loaded(), ModelType: modelType, Mode: "real-time"}
	if !h.ModelLoaded {
		h.Mode = "degraded"
	}
	return h
}
