// Package preprocess turns uploaded image bytes into the tensor the
// classifier consumes.
package preprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/lesion-api/internal/model"
)

// MaxPixels bounds the decoded size of an upload. Larger images are
// rejected from their header before any pixel buffer is allocated.
const MaxPixels = 18_000_000

// Normalize decodes data, drops alpha, resizes to 224x224 with bicubic
// resampling and scales channels to [0,1]. Every failure, including a
// decoder panic, is returned as a KindDecodeFailure error.
func Normalize(data []byte) (t *model.ImageTensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = model.Errorf(model.KindDecodeFailure, "normalize", "decoder panic: %v", r)
		}
	}()

	if len(data) == 0 {
		return nil, model.Errorf(model.KindDecodeFailure, "normalize", "empty image")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &model.Error{Kind: model.KindDecodeFailure, Op: "normalize", Err: fmt.Errorf("decode header: %w", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, model.Errorf(model.KindDecodeFailure, "normalize", "image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, model.Errorf(model.KindDecodeFailure, "normalize",
			"image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &model.Error{Kind: model.KindDecodeFailure, Op: "normalize", Err: fmt.Errorf("decode: %w", err)}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, model.Errorf(model.KindDecodeFailure, "normalize", "image has no pixels")
	}

	resized := resize.Resize(model.ImageSize, model.ImageSize, toRGB(img), resize.Bicubic)
	rgba, ok := resized.(*image.RGBA)
	if !ok {
		rgba = toRGB(resized)
	}
	return toTensor(rgba), nil
}

// toRGB copies img into an opaque RGBA image. Color channels are taken
// unpremultiplied and alpha is discarded; gray sources yield r=g=b.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := dst.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[di] = src.Pix[si]
				dst.Pix[di+1] = src.Pix[si+1]
				dst.Pix[di+2] = src.Pix[si+2]
				dst.Pix[di+3] = 0xff
				si += 4
				di += 4
			}
		}
		return dst
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.A = 0xff
			dst.SetRGBA(x, y, color.RGBA(c))
		}
	}
	return dst
}

func toTensor(img *image.RGBA) *model.ImageTensor {
	width, height := model.ImageSize, model.ImageSize
	data := make([]float32, width*height*model.Channels)

	for y := 0; y < height; y++ {
		row := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		for x := 0; x < width; x++ {
			p := row + x*4
			pixelIndex := (y*width + x) * model.Channels
			data[pixelIndex] = float32(img.Pix[p]) / 255.0
			data[pixelIndex+1] = float32(img.Pix[p+1]) / 255.0
			data[pixelIndex+2] = float32(img.Pix[p+2]) / 255.0
		}
	}

	return &model.ImageTensor{
		Data:  data,
		Shape: [4]int64{1, int64(height), int64(width), model.Channels},
	}
}
