package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Brownie44l1/lesion-api/internal/model"
)

type Config struct {
	Server ServerConfig
	Model  ModelConfig
}

type ServerConfig struct {
	Port            string
	Mode            string
	MaxUploadBytes  int64
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

type ModelConfig struct {
	Path         string
	MetadataPath string
	Type         string
	InputName    string
	OutputName   string
	Layout       model.Layout
	LibraryPath  string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "5000"),
			Mode:            getEnv("GIN_MODE", "release"),
			MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
			CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Model: ModelConfig{
			Path:         getEnv("MODEL_PATH", "models/skin_cancer_cnn.onnx"),
			MetadataPath: getEnv("MODEL_METADATA_PATH", ""),
			Type:         getEnv("MODEL_TYPE", "CNN (ONNX)"),
			InputName:    getEnv("MODEL_INPUT_NAME", "input"),
			OutputName:   getEnv("MODEL_OUTPUT_NAME", "output"),
			Layout:       getEnvLayout("MODEL_LAYOUT", model.LayoutNHWC),
			LibraryPath:  getEnv("ONNXRUNTIME_LIB", ""),
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model.Path) == "" {
		return errors.New("MODEL_PATH must not be empty")
	}
	if c.Server.Port == "" {
		return errors.New("PORT must not be empty")
	}
	return nil
}

// ONNXOptions converts the model section into loader options.
func (m ModelConfig) ONNXOptions() model.ONNXOptions {
	return model.ONNXOptions{
		LibraryPath:  m.LibraryPath,
		MetadataPath: m.MetadataPath,
		Metadata: model.Metadata{
			InputName:  m.InputName,
			OutputName: m.OutputName,
			Layout:     m.Layout,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

func getEnvLayout(key string, defaultValue model.Layout) model.Layout {
	raw := strings.ToLower(os.Getenv(key))
	switch model.Layout(raw) {
	case "":
		return defaultValue
	case model.LayoutNHWC, model.LayoutNCHW:
		return model.Layout(raw)
	}
	slog.Warn("invalid layout in environment, using default", "key", key, "value", raw, "default", defaultValue)
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
