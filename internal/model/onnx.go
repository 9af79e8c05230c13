package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Classifier is a loaded binary classifier. PredictProbability returns the
// probability of the malignant class for one image.
type Classifier interface {
	PredictProbability(t *ImageTensor) (float64, error)
	Close() error
}

// ONNXOptions configures how an artifact is opened with onnxruntime.
type ONNXOptions struct {
	LibraryPath  string
	MetadataPath string
	Metadata     Metadata
}

var runtimeMu sync.Mutex

func initRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// ShutdownRuntime releases the process-wide onnxruntime environment.
func ShutdownRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXClassifier runs a sigmoid-output CNN through onnxruntime.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// ONNXLoader returns a Loader opening artifacts with the given options.
func ONNXLoader(opts ONNXOptions) Loader {
	return func(path string) (Classifier, error) {
		return LoadONNX(path, opts)
	}
}

func LoadONNX(modelPath string, opts ONNXOptions) (*ONNXClassifier, error) {
	metadata, err := resolveMetadata(opts)
	if err != nil {
		return nil, err
	}
	if err := initRuntime(opts.LibraryPath); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func resolveMetadata(opts ONNXOptions) (Metadata, error) {
	md := opts.Metadata
	if opts.MetadataPath != "" {
		raw, err := os.ReadFile(opts.MetadataPath)
		if err != nil {
			return md, fmt.Errorf("failed to read metadata: %w", err)
		}
		var side Metadata
		if err := json.Unmarshal(raw, &side); err != nil {
			return md, fmt.Errorf("failed to parse metadata: %w", err)
		}
		md = mergeMetadata(md, side)
	}
	return withDefaults(md)
}

func mergeMetadata(base, over Metadata) Metadata {
	if over.InputName != "" {
		base.InputName = over.InputName
	}
	if over.OutputName != "" {
		base.OutputName = over.OutputName
	}
	if over.Layout != "" {
		base.Layout = over.Layout
	}
	if len(over.InputShape) > 0 {
		base.InputShape = over.InputShape
	}
	if len(over.OutputShape) > 0 {
		base.OutputShape = over.OutputShape
	}
	return base
}

func withDefaults(md Metadata) (Metadata, error) {
	if md.InputName == "" {
		md.InputName = "input"
	}
	if md.OutputName == "" {
		md.OutputName = "output"
	}
	if md.Layout == "" {
		md.Layout = LayoutNHWC
	}
	if len(md.InputShape) == 0 {
		switch md.Layout {
		case LayoutNHWC:
			md.InputShape = []int64{1, ImageSize, ImageSize, Channels}
		case LayoutNCHW:
			md.InputShape = []int64{1, Channels, ImageSize, ImageSize}
		default:
			return md, fmt.Errorf("unsupported layout %q", md.Layout)
		}
	}
	if len(md.OutputShape) == 0 {
		md.OutputShape = []int64{1, 1}
	}

	size := int64(1)
	for _, dim := range md.InputShape {
		size *= dim
	}
	if size != 1*ImageSize*ImageSize*Channels {
		return md, fmt.Errorf("input shape %v does not hold one %dx%d RGB image", md.InputShape, ImageSize, ImageSize)
	}
	return md, nil
}

func (c *ONNXClassifier) PredictProbability(t *ImageTensor) (score float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = Errorf(KindInferenceFailure, "predict", "onnxruntime panic: %v", r)
		}
	}()

	input := t.Data
	if c.Metadata.Layout == LayoutNCHW {
		input = t.NCHW()
	}
	dst := c.inputTensor.GetData()
	if len(input) != len(dst) {
		return 0, Errorf(KindInferenceFailure, "predict", "expected %d values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := c.session.Run(); err != nil {
		return 0, &Error{Kind: KindInferenceFailure, Op: "predict", Err: fmt.Errorf("inference failed: %w", err)}
	}

	out := c.outputTensor.GetData()
	if len(out) == 0 {
		return 0, Errorf(KindInferenceFailure, "predict", "model produced no output")
	}
	score = float64(out[0])
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, Errorf(KindInferenceFailure, "predict", "score %v outside [0,1]", score)
	}
	return score, nil
}

func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	if c.session != nil {
		err := c.session.Destroy()
		c.session = nil
		return err
	}
	return nil
}
