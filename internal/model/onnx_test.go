package model

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWithDefaults(t *testing.T) {
	md, err := withDefaults(Metadata{})
	if err != nil {
		t.Fatalf("withDefaults: %v", err)
	}
	if md.InputName != "input" || md.OutputName != "output" || md.Layout != LayoutNHWC {
		t.Errorf("unexpected defaults: %+v", md)
	}
	if !reflect.DeepEqual(md.InputShape, []int64{1, 224, 224, 3}) {
		t.Errorf("InputShape = %v", md.InputShape)
	}
	if !reflect.DeepEqual(md.OutputShape, []int64{1, 1}) {
		t.Errorf("OutputShape = %v", md.OutputShape)
	}

	md, err = withDefaults(Metadata{Layout: LayoutNCHW})
	if err != nil {
		t.Fatalf("withDefaults(nchw): %v", err)
	}
	if !reflect.DeepEqual(md.InputShape, []int64{1, 3, 224, 224}) {
		t.Errorf("nchw InputShape = %v", md.InputShape)
	}
}

func TestWithDefaultsRejects(t *testing.T) {
	if _, err := withDefaults(Metadata{Layout: "hwcn"}); err == nil {
		t.Error("expected error for unknown layout")
	}
	if _, err := withDefaults(Metadata{InputShape: []int64{1, 128, 128, 3}}); err == nil {
		t.Error("expected error for wrong input size")
	}
}

func TestResolveMetadataSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")
	if err := os.WriteFile(path, []byte(`{"input_name":"input_1","layout":"nchw"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	md, err := resolveMetadata(ONNXOptions{
		MetadataPath: path,
		Metadata:     Metadata{InputName: "input", OutputName: "dense_1"},
	})
	if err != nil {
		t.Fatalf("resolveMetadata: %v", err)
	}
	if md.InputName != "input_1" {
		t.Errorf("InputName = %q, want sidecar value", md.InputName)
	}
	if md.OutputName != "dense_1" {
		t.Errorf("OutputName = %q, want configured value", md.OutputName)
	}
	if md.Layout != LayoutNCHW {
		t.Errorf("Layout = %q, want nchw", md.Layout)
	}
}

func TestResolveMetadataBadSidecar(t *testing.T) {
	dir := t.TempDir()
	if _, err := resolveMetadata(ONNXOptions{MetadataPath: filepath.Join(dir, "missing.json")}); err == nil {
		t.Error("expected error for missing sidecar")
	}

	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveMetadata(ONNXOptions{MetadataPath: path}); err == nil {
		t.Error("expected error for malformed sidecar")
	}
}

func TestImageTensorNCHW(t *testing.T) {
	// 1x2x2x3 NHWC
	tensor := &ImageTensor{
		Data:  []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Shape: [4]int64{1, 2, 2, 3},
	}
	want := []float32{1, 4, 7, 10, 2, 5, 8, 11, 3, 6, 9, 12}
	if got := tensor.NCHW(); !reflect.DeepEqual(got, want) {
		t.Errorf("NCHW() = %v, want %v", got, want)
	}
}
