package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// Batch normalization defaults.
const (
	DefaultBatchNormEps      = 1e-5
	DefaultBatchNormMomentum = 0.1
)

// BatchNorm2D normalizes each channel of a [N, C, H, W] input.
//
// In training mode the layer normalizes with the batch statistics and
// updates its running estimates:
//
//	running_mean = (1 - momentum)*running_mean + momentum*batch_mean
//	running_var  = (1 - momentum)*running_var  + momentum*batch_var*n/(n-1)
//
// where n = N*H*W. In evaluation mode the running estimates are used.
// Layers start in training mode.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float64
	momentum    float64
	affine      bool
	training    bool

	weight *Parameter[B] // [C], ones
	bias   *Parameter[B] // [C], zeros

	runningMean       *tensor.Tensor[float32, B] // [C]
	runningVar        *tensor.Tensor[float32, B] // [C]
	numBatchesTracked *tensor.Tensor[int64, B]   // scalar

	backend B
}

// NewBatchNorm2D creates a batch normalization layer with the default eps
// and momentum.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, affine bool, backend B) *BatchNorm2D[B] {
	return NewBatchNorm2DWithOptions(numFeatures, DefaultBatchNormEps, DefaultBatchNormMomentum, affine, backend)
}

// NewBatchNorm2DWithOptions creates a batch normalization layer.
func NewBatchNorm2DWithOptions[B tensor.Backend](numFeatures int, eps, momentum float64, affine bool, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid number of features %d", numFeatures))
	}
	bn := &BatchNorm2D[B]{
		numFeatures:       numFeatures,
		eps:               eps,
		momentum:          momentum,
		affine:            affine,
		training:          true,
		runningMean:       Zeros(tensor.Shape{numFeatures}, backend),
		runningVar:        Ones(tensor.Shape{numFeatures}, backend),
		numBatchesTracked: tensor.Zeros[int64](tensor.Shape{}, backend),
		backend:           backend,
	}
	if affine {
		bn.weight = NewParameter("weight", Ones(tensor.Shape{numFeatures}, backend))
		bn.bias = NewParameter("bias", Zeros(tensor.Shape{numFeatures}, backend))
	}
	return bn
}

// Forward normalizes input [N, C, H, W].
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: expected [N, %d, H, W] input, got %v", bn.numFeatures, shape))
	}

	var weight, bias *tensor.RawTensor
	if bn.affine {
		weight, bias = bn.weight.Raw(), bn.bias.Raw()
	}

	if !bn.training {
		out := bn.backend.BatchNorm2D(input.Raw(), bn.runningMean.Raw(), bn.runningVar.Raw(), weight, bias, bn.eps)
		return tensor.New[float32](out, bn.backend)
	}

	mean, variance := bn.backend.ChannelMoments(input.Raw())
	bn.updateRunningStats(mean.AsFloat32(), variance.AsFloat32(), shape[0]*shape[2]*shape[3])
	out := bn.backend.BatchNorm2D(input.Raw(), mean, variance, weight, bias, bn.eps)
	return tensor.New[float32](out, bn.backend)
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance []float32, n int) {
	correction := 1.0
	if n > 1 {
		correction = float64(n) / float64(n-1)
	}
	m := bn.momentum
	rm := bn.runningMean.Data()
	rv := bn.runningVar.Data()
	for c := range rm {
		rm[c] = float32((1-m)*float64(rm[c]) + m*float64(mean[c]))
		rv[c] = float32((1-m)*float64(rv[c]) + m*float64(variance[c])*correction)
	}
	bn.numBatchesTracked.Data()[0]++
}

// Train switches between batch statistics (true) and running statistics (false).
func (bn *BatchNorm2D[B]) Train(training bool) { bn.training = training }

// Training reports whether the layer is in training mode.
func (bn *BatchNorm2D[B]) Training() bool { return bn.training }

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] { return bn.runningMean }

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] { return bn.runningVar }

// NumBatchesTracked returns how many training batches updated the statistics.
func (bn *BatchNorm2D[B]) NumBatchesTracked() int64 { return bn.numBatchesTracked.Data()[0] }

// Parameters returns weight and bias, or nothing when not affine.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	if !bn.affine {
		return nil
	}
	return []*Parameter[B]{bn.weight, bn.bias}
}

// StateDict returns the affine parameters and the running buffers.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	sd := paramState(bn.Parameters())
	sd["running_mean"] = bn.runningMean.Raw()
	sd["running_var"] = bn.runningVar.Raw()
	sd["num_batches_tracked"] = bn.numBatchesTracked.Raw()
	return sd
}

// LoadStateDict restores parameters and running buffers.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadParams(bn.Parameters(), stateDict); err != nil {
		return err
	}
	for name, raw := range map[string]*tensor.RawTensor{
		"running_mean":        bn.runningMean.Raw(),
		"running_var":         bn.runningVar.Raw(),
		"num_batches_tracked": bn.numBatchesTracked.Raw(),
	} {
		if err := loadInto(raw, stateDict, name); err != nil {
			return err
		}
	}
	return nil
}

func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(%d, eps=%g, momentum=%g, affine=%t)", bn.numFeatures, bn.eps, bn.momentum, bn.affine)
}
