// Package imageio converts between image tensors and PNG files.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/born-ml/denoise/internal/tensor"
)

// FromTensor converts a [C, H, W] or [H, W] tensor with values in [0, 1]
// into an image. C = 1 gives Gray, C = 3 an opaque RGBA and C = 4 an NRGBA.
// Values are clamped, scaled by 255 and truncated.
func FromTensor[B tensor.Backend](t *tensor.Tensor[float32, B]) (image.Image, error) {
	shape := t.Shape()
	var c, h, w int
	switch len(shape) {
	case 2:
		c, h, w = 1, shape[0], shape[1]
	case 3:
		c, h, w = shape[0], shape[1], shape[2]
	default:
		return nil, fmt.Errorf("image tensor must be [C, H, W] or [H, W], got %v", shape)
	}

	data := t.Data()
	plane := h * w
	at := func(ch, y, x int) uint8 { return toByte(data[ch*plane+y*w+x]) }
	rect := image.Rect(0, 0, w, h)

	switch c {
	case 1:
		img := image.NewGray(rect)
		for y := range h {
			for x := range w {
				img.SetGray(x, y, color.Gray{Y: at(0, y, x)})
			}
		}
		return img, nil
	case 3:
		img := image.NewRGBA(rect)
		for y := range h {
			for x := range w {
				img.SetRGBA(x, y, color.RGBA{R: at(0, y, x), G: at(1, y, x), B: at(2, y, x), A: 255})
			}
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(rect)
		for y := range h {
			for x := range w {
				img.SetNRGBA(x, y, color.NRGBA{R: at(0, y, x), G: at(1, y, x), B: at(2, y, x), A: at(3, y, x)})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("image tensor must have 1, 3 or 4 channels, got %d", c)
	}
}

func toByte(v float32) uint8 {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v * 255)
	}
}

// ToTensor converts img into a [1, channels, H, W] tensor with values in
// [0, 1]. channels must be 1 (luma), 3 (RGB) or 4 (non-premultiplied RGBA).
func ToTensor[B tensor.Backend](img image.Image, channels int, backend B) (*tensor.Tensor[float32, B], error) {
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("channels must be 1, 3 or 4, got %d", channels)
	}
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	if h == 0 || w == 0 {
		return nil, fmt.Errorf("empty image %v", bounds)
	}

	t := tensor.Zeros[float32](tensor.Shape{1, channels, h, w}, backend)
	data := t.Data()
	plane := h * w
	for y := range h {
		for x := range w {
			px := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			i := y*w + x
			if channels == 1 {
				data[i] = float32(color.GrayModel.Convert(px).(color.Gray).Y) / 255
				continue
			}
			n := color.NRGBAModel.Convert(px).(color.NRGBA)
			data[i] = float32(n.R) / 255
			data[plane+i] = float32(n.G) / 255
			data[2*plane+i] = float32(n.B) / 255
			if channels == 4 {
				data[3*plane+i] = float32(n.A) / 255
			}
		}
	}
	return t, nil
}

// SavePNG encodes img to path.
func SavePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path) //nolint:gosec // caller-chosen output path
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// LoadPNG decodes the PNG at path into a [1, channels, H, W] tensor.
func LoadPNG[B tensor.Backend](path string, channels int, backend B) (*tensor.Tensor[float32, B], error) {
	f, err := os.Open(path) //nolint:gosec // dataset path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	t, err := ToTensor(img, channels, backend)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
