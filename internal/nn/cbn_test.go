package nn

import (
	"math"
	"testing"

	"github.com/born-ml/denoise/internal/backend/cpu"
	"github.com/born-ml/denoise/internal/tensor"
)

func TestConditionalBatchNorm2D_Init(t *testing.T) {
	backend := cpu.New()
	cbn := NewConditionalBatchNorm2D(4, 3, backend)
	w := cbn.Embedding().Weight.Tensor()

	if !w.Shape().Equal(tensor.Shape{3, 8}) {
		t.Fatalf("embedding shape: expected [3 8], got %v", w.Shape())
	}
	for k := range 3 {
		for c := range 4 {
			if scale := w.At(k, c); math.Abs(float64(scale)-1) > 0.2 {
				t.Errorf("scale[%d,%d] = %v, expected near 1", k, c, scale)
			}
			if shift := w.At(k, 4+c); shift != 0 {
				t.Errorf("shift[%d,%d] = %v, expected 0", k, c, shift)
			}
		}
	}
	if len(cbn.Parameters()) != 1 {
		t.Errorf("only the embedding is learnable, got %d parameters", len(cbn.Parameters()))
	}
}

func TestConditionalBatchNorm2D_AffinePerClass(t *testing.T) {
	backend := cpu.New()
	cbn := NewConditionalBatchNorm2D(1, 2, backend)
	Eval(cbn)
	copy(cbn.Embedding().Weight.Tensor().Data(), []float32{
		2, 1, // class 0: gamma 2, beta 1
		-1, 5, // class 1: gamma -1, beta 5
	})

	x := tensor.Ones[float32](tensor.Shape{2, 1, 2, 2}, backend)
	y := tensor.MustFromSlice([]int32{0, 1}, tensor.Shape{2}, backend)
	out := cbn.Forward(x, y)

	norm := 1 / math.Sqrt(1+DefaultBatchNormEps)
	for h := range 2 {
		for w := range 2 {
			if got := float64(out.At(0, 0, h, w)); !approx(got, 2*norm+1, 1e-5) {
				t.Errorf("class 0: expected %v, got %v", 2*norm+1, got)
			}
			if got := float64(out.At(1, 0, h, w)); !approx(got, -norm+5, 1e-5) {
				t.Errorf("class 1: expected %v, got %v", -norm+5, got)
			}
		}
	}
}

// TestConditionalBatchNorm2D_NoCrossClassLeakage perturbs the rows of classes
// that are not in the batch and expects identical output.
func TestConditionalBatchNorm2D_NoCrossClassLeakage(t *testing.T) {
	backend := cpu.New()
	cbn := NewConditionalBatchNorm2D(3, 4, backend)
	Eval(cbn)

	x := tensor.Randn(tensor.Shape{2, 3, 4, 4}, 0, 1, nil, backend)
	y := tensor.MustFromSlice([]int32{1, 3}, tensor.Shape{2}, backend)
	before := cbn.Forward(x, y).Copy()

	w := cbn.Embedding().Weight.Tensor()
	for _, k := range []int{0, 2} {
		for j := range 6 {
			w.Set(float32(100+j), k, j)
		}
	}
	after := cbn.Forward(x, y)
	for i := range before.Data() {
		if before.Data()[i] != after.Data()[i] {
			t.Fatalf("element %d changed from %v to %v", i, before.Data()[i], after.Data()[i])
		}
	}

	// Changing class 3 affects only the second sample.
	w.Set(7, 3, 0)
	changed := cbn.Forward(x, y)
	for i := range 3 * 16 {
		if before.Data()[i] != changed.Data()[i] {
			t.Fatal("sample 0 must not depend on class 3")
		}
	}
}

func TestConditionalBatchNorm2D_Contract(t *testing.T) {
	backend := cpu.New()
	cbn := NewConditionalBatchNorm2D(2, 2, backend)
	x := tensor.Zeros[float32](tensor.Shape{2, 2, 3, 3}, backend)

	expectPanic(t, "class out of range", func() {
		cbn.Forward(x, tensor.MustFromSlice([]int32{0, 2}, tensor.Shape{2}, backend))
	})
	expectPanic(t, "label count", func() {
		cbn.Forward(x, tensor.MustFromSlice([]int32{0}, tensor.Shape{1}, backend))
	})

	assertKeys(t, cbn.StateDict(), "bn.running_mean", "bn.running_var", "bn.num_batches_tracked", "embed.weight")
}
