package model

const (
	ImageSize = 224
	Channels  = 3
)

// Layout is the memory order the classifier expects its input in.
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

// Metadata describes the graph of the artifact. It can be supplied as a
// JSON sidecar next to the model; missing fields keep their defaults.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	Layout      Layout  `json:"layout"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
}

// ImageTensor is a single RGB image, 224x224, values in [0,1], stored
// NHWC with a batch dimension of 1.
type ImageTensor struct {
	Data  []float32
	Shape [4]int64
}

// NCHW returns a copy of the tensor data in channel-first order.
func (t *ImageTensor) NCHW() []float32 {
	h, w, c := int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3])
	out := make([]float32, len(t.Data))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pixelIndex := y*w + x
			for ch := 0; ch < c; ch++ {
				out[ch*w*h+pixelIndex] = t.Data[pixelIndex*c+ch]
			}
		}
	}
	return out
}

type Status string

const (
	StatusMalignant Status = "malignant"
	StatusBenign    Status = "benign"
)

// Verdict is the interpreted result of one prediction.
type Verdict struct {
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Raw        float64 `json:"prediction_raw"`
}
