package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/denoise/internal/parallel"
	"github.com/born-ml/denoise/internal/tensor"
)

// axis describes one spatial dimension of a convolution.
type axis struct {
	in, out, kernel           int
	stride, padding, dilation int
}

func newAxis(in, kernel int, opts tensor.ConvOptions, transposed bool) axis {
	o := opts.Normalized()
	out := o.ConvOutputSize(in, kernel)
	if transposed {
		out = o.ConvTransposeOutputSize(in, kernel)
	}
	return axis{in: in, out: out, kernel: kernel, stride: o.Stride, padding: o.Padding, dilation: o.Dilation}
}

// identityAxis is the height axis used when Conv1D runs through the 2-D kernels.
var identityAxis = axis{in: 1, out: 1, kernel: 1, stride: 1, dilation: 1}

// Conv2D performs a 2-D convolution using im2col and GEMM.
//
// Input shape:  [N, C_in, H, W]
// Weight shape: [C_out, C_in, kH, kW]
// Output shape: [N, C_out, H_out, W_out]
//
// where H_out = floor((H + 2p - d(kH-1) - 1)/s) + 1, and likewise for W.
// Each sample is lowered to a column matrix [C_in*kH*kW, H_out*W_out] and
// multiplied by the weight viewed as [C_out, C_in*kH*kW].
func (cpu *CPUBackend) Conv2D(input, weight *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	in, w := input.Shape(), weight.Shape()
	if len(in) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(in)))
	}
	if len(w) != 4 {
		panic(fmt.Sprintf("conv2d: weight must be 4D [C_out,C_in,K_h,K_w], got %dD", len(w)))
	}
	if in[1] != w[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != weight channels %d", in[1], w[1]))
	}
	mustValidOptions("conv2d", opts, w[2], w[3])

	h := newAxis(in[2], w[2], opts, false)
	x := newAxis(in[3], w[3], opts, false)
	if h.out <= 0 || x.out <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d for input %v, kernel %v, %+v",
			h.out, x.out, in, w, opts))
	}

	out := tensor.MustRaw(tensor.Shape{in[0], w[0], h.out, x.out}, tensor.Float32, cpu.device)
	cpu.convForward(out, input, weight, in[0], in[1], w[0], h, x)
	return out
}

// Conv1D performs a 1-D convolution: input [N, C_in, L], weight [C_out, C_in, k].
// It runs through the 2-D path with a unit height axis.
func (cpu *CPUBackend) Conv1D(input, weight *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	in, w := input.Shape(), weight.Shape()
	if len(in) != 3 {
		panic(fmt.Sprintf("conv1d: input must be 3D [N,C,L], got %dD", len(in)))
	}
	if len(w) != 3 {
		panic(fmt.Sprintf("conv1d: weight must be 3D [C_out,C_in,K], got %dD", len(w)))
	}
	if in[1] != w[1] {
		panic(fmt.Sprintf("conv1d: input channels %d != weight channels %d", in[1], w[1]))
	}
	mustValidOptions("conv1d", opts, w[2], w[2])

	x := newAxis(in[2], w[2], opts, false)
	if x.out <= 0 {
		panic(fmt.Sprintf("conv1d: invalid output length %d for input %v, kernel %v, %+v", x.out, in, w, opts))
	}

	out := tensor.MustRaw(tensor.Shape{in[0], w[0], x.out}, tensor.Float32, cpu.device)
	cpu.convForward(out, input, weight, in[0], in[1], w[0], identityAxis, x)
	return out
}

// ConvTranspose2D performs a transposed 2-D convolution (the adjoint of Conv2D).
//
// Input shape:  [N, C_in, H, W]
// Weight shape: [C_in, C_out, kH, kW]
// Output shape: [N, C_out, H_out, W_out]
//
// where H_out = (H-1)s - 2p + d(kH-1) + output_padding + 1. Each sample is
// multiplied by the transposed weight into a column matrix which col2im then
// scatters into the output.
func (cpu *CPUBackend) ConvTranspose2D(input, weight *tensor.RawTensor, opts tensor.ConvOptions) *tensor.RawTensor {
	in, w := input.Shape(), weight.Shape()
	if len(in) != 4 {
		panic(fmt.Sprintf("conv_transpose2d: input must be 4D [N,C,H,W], got %dD", len(in)))
	}
	if len(w) != 4 {
		panic(fmt.Sprintf("conv_transpose2d: weight must be 4D [C_in,C_out,K_h,K_w], got %dD", len(w)))
	}
	if in[1] != w[0] {
		panic(fmt.Sprintf("conv_transpose2d: input channels %d != weight channels %d", in[1], w[0]))
	}
	mustValidOptions("conv_transpose2d", opts, w[2], w[3])

	h := newAxis(in[2], w[2], opts, true)
	x := newAxis(in[3], w[3], opts, true)
	if h.out <= 0 || x.out <= 0 {
		panic(fmt.Sprintf("conv_transpose2d: invalid output dimensions: out_h=%d, out_w=%d for input %v, kernel %v, %+v",
			h.out, x.out, in, w, opts))
	}

	out := tensor.MustRaw(tensor.Shape{in[0], w[1], h.out, x.out}, tensor.Float32, cpu.device)
	cpu.convTransposeForward(out, input, weight, in[0], in[1], w[1], h, x)
	return out
}

func mustValidOptions(op string, opts tensor.ConvOptions, kh, kw int) {
	if err := opts.Validate(min(kh, kw)); err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
}

func (cpu *CPUBackend) convForward(out, input, weight *tensor.RawTensor, n, cIn, cOut int, h, w axis) {
	src := input.AsFloat32()
	dst := out.AsFloat32()
	k := weight.AsFloat32()

	colRows := cIn * h.kernel * w.kernel
	colCols := h.out * w.out
	inSize := cIn * h.in * w.in
	outSize := cOut * colCols
	kernel := blas32.General{Rows: cOut, Cols: colRows, Stride: colRows, Data: k}

	parallel.For(n, func(b int) {
		col := make([]float32, colRows*colCols)
		im2col(col, src[b*inSize:(b+1)*inSize], cIn, h, w)
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			kernel,
			blas32.General{Rows: colRows, Cols: colCols, Stride: colCols, Data: col},
			0,
			blas32.General{Rows: cOut, Cols: colCols, Stride: colCols, Data: dst[b*outSize : (b+1)*outSize]})
	}, cpu.par)
}

func (cpu *CPUBackend) convTransposeForward(out, input, weight *tensor.RawTensor, n, cIn, cOut int, h, w axis) {
	src := input.AsFloat32()
	dst := out.AsFloat32()
	k := weight.AsFloat32()

	colRows := cOut * h.kernel * w.kernel
	colCols := h.in * w.in
	inSize := cIn * colCols
	outSize := cOut * h.out * w.out
	kernel := blas32.General{Rows: cIn, Cols: colRows, Stride: colRows, Data: k}

	parallel.For(n, func(b int) {
		col := make([]float32, colRows*colCols)
		blas32.Gemm(blas.Trans, blas.NoTrans, 1,
			kernel,
			blas32.General{Rows: cIn, Cols: colCols, Stride: colCols, Data: src[b*inSize : (b+1)*inSize]},
			0,
			blas32.General{Rows: colRows, Cols: colCols, Stride: colCols, Data: col})
		col2im(dst[b*outSize:(b+1)*outSize], col, cOut, h, w)
	}, cpu.par)
}

// im2col lowers one sample [C, H, W] into col [C*kH*kW, H_out*W_out].
// Row (c, kh, kw) holds the input value each output position reads through
// that kernel tap, or zero where the tap falls in the padding.
func im2col(col, src []float32, c int, h, w axis) {
	plane := h.in * w.in
	cols := h.out * w.out
	row := 0
	for ch := 0; ch < c; ch++ {
		for kh := 0; kh < h.kernel; kh++ {
			for kw := 0; kw < w.kernel; kw++ {
				dst := col[row*cols : (row+1)*cols]
				for oh := 0; oh < h.out; oh++ {
					ih := oh*h.stride - h.padding + kh*h.dilation
					for ow := 0; ow < w.out; ow++ {
						iw := ow*w.stride - w.padding + kw*w.dilation
						if ih >= 0 && ih < h.in && iw >= 0 && iw < w.in {
							dst[oh*w.out+ow] = src[ch*plane+ih*w.in+iw]
						}
					}
				}
				row++
			}
		}
	}
}

// col2im is the adjoint of im2col: col [C*kH*kW, H_in*W_in] is accumulated
// into dst [C, H_out, W_out], where output position o receives input i
// through tap k when o = i*s - p + k*d.
func col2im(dst, col []float32, c int, h, w axis) {
	plane := h.out * w.out
	cols := h.in * w.in
	row := 0
	for ch := 0; ch < c; ch++ {
		for kh := 0; kh < h.kernel; kh++ {
			for kw := 0; kw < w.kernel; kw++ {
				src := col[row*cols : (row+1)*cols]
				for ih := 0; ih < h.in; ih++ {
					oh := ih*h.stride - h.padding + kh*h.dilation
					if oh < 0 || oh >= h.out {
						continue
					}
					for iw := 0; iw < w.in; iw++ {
						ow := iw*w.stride - w.padding + kw*w.dilation
						if ow >= 0 && ow < w.out {
							dst[ch*plane+oh*w.out+ow] += src[ih*w.in+iw]
						}
					}
				}
				row++
			}
		}
	}
}
