package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/denoise/internal/parallel"
	"github.com/born-ml/denoise/internal/tensor"
)

// ChannelMoments returns per-channel mean and biased variance of x [N, C, H, W].
// Accumulation is done in float64.
func (cpu *CPUBackend) ChannelMoments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("channel_moments: input must be 4D [N,C,H,W], got %v", shape))
	}
	n, c, plane := shape[0], shape[1], shape[2]*shape[3]
	src := x.AsFloat32()

	mean = tensor.MustRaw(tensor.Shape{c}, tensor.Float32, cpu.device)
	variance = tensor.MustRaw(tensor.Shape{c}, tensor.Float32, cpu.device)
	m, v := mean.AsFloat32(), variance.AsFloat32()
	count := float64(n * plane)

	parallel.For(c, func(ch int) {
		var sum, sq float64
		for b := 0; b < n; b++ {
			for _, val := range src[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				sum += float64(val)
			}
		}
		mu := sum / count
		for b := 0; b < n; b++ {
			for _, val := range src[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				d := float64(val) - mu
				sq += d * d
			}
		}
		m[ch] = float32(mu)
		v[ch] = float32(sq / count)
	}, cpu.par)
	return mean, variance
}

// BatchNorm2D normalizes x [N, C, H, W] with per-channel statistics [C]:
//
//	y = (x - mean) / sqrt(variance + eps) * weight + bias
//
// weight and bias are optional ([C] each, or nil).
func (cpu *CPUBackend) BatchNorm2D(x, mean, variance, weight, bias *tensor.RawTensor, eps float64) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: input must be 4D [N,C,H,W], got %v", shape))
	}
	n, c, plane := shape[0], shape[1], shape[2]*shape[3]
	for name, p := range map[string]*tensor.RawTensor{"mean": mean, "variance": variance, "weight": weight, "bias": bias} {
		if p != nil && !p.Shape().Equal(tensor.Shape{c}) {
			panic(fmt.Sprintf("batchnorm2d: %s shape %v, expected [%d]", name, p.Shape(), c))
		}
	}

	scale := make([]float32, c)
	shift := make([]float32, c)
	m, v := mean.AsFloat32(), variance.AsFloat32()
	for ch := 0; ch < c; ch++ {
		inv := 1 / math.Sqrt(float64(v[ch])+eps)
		g, b := 1.0, 0.0
		if weight != nil {
			g = float64(weight.AsFloat32()[ch])
		}
		if bias != nil {
			b = float64(bias.AsFloat32()[ch])
		}
		scale[ch] = float32(g * inv)
		shift[ch] = float32(b - float64(m[ch])*g*inv)
	}

	out := tensor.MustRaw(shape, tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), out.AsFloat32()
	parallel.ForBatch(n, c, func(b, ch int) {
		off := (b*c + ch) * plane
		s, t := scale[ch], shift[ch]
		for i := off; i < off+plane; i++ {
			dst[i] = src[i]*s + t
		}
	}, cpu.par)
	return out
}
