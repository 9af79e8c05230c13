package config

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/Brownie44l1/lesion-api/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "GIN_MODE", "MODEL_PATH", "MODEL_LAYOUT", "MAX_UPLOAD_MB", "CORS_ORIGINS", "SHUTDOWN_TIMEOUT", "MODEL_METADATA_PATH"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	if cfg.Server.Port != "5000" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.Server.MaxUploadBytes)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"*"}) {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Model.Path != "models/skin_cancer_cnn.onnx" {
		t.Errorf("Model.Path = %q", cfg.Model.Path)
	}
	if cfg.Model.Layout != model.LayoutNHWC {
		t.Errorf("Layout = %q", cfg.Model.Layout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MODEL_PATH", "/srv/model.onnx")
	t.Setenv("MODEL_LAYOUT", "NCHW")
	t.Setenv("MAX_UPLOAD_MB", "4")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://scan.example ,")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("MODEL_INPUT_NAME", "input_1")

	cfg := Load()
	if cfg.Server.Port != "8080" || cfg.Model.Path != "/srv/model.onnx" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Model.Layout != model.LayoutNCHW {
		t.Errorf("Layout = %q", cfg.Model.Layout)
	}
	if cfg.Server.MaxUploadBytes != 4<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.Server.MaxUploadBytes)
	}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, []string{"http://localhost:3000", "https://scan.example"}) {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}

	opts := cfg.Model.ONNXOptions()
	if opts.Metadata.InputName != "input_1" || opts.Metadata.Layout != model.LayoutNCHW {
		t.Errorf("ONNXOptions() = %+v", opts)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "lots")
	t.Setenv("SHUTDOWN_TIMEOUT", "-3s")
	t.Setenv("MODEL_LAYOUT", "planar")

	cfg := Load()
	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Model.Layout != model.LayoutNHWC {
		t.Errorf("Layout = %q", cfg.Model.Layout)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: "5000"}, Model: ModelConfig{Path: "  "}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for blank model path")
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "warn")
	logger.Info("dropped")
	logger.Warn("kept", "path", "models/x.onnx")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["path"] != "models/x.onnx" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["source"]; ok {
		t.Error("production logs should not carry source")
	}
}
