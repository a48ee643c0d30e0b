package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// ConditionalBatchNorm2D normalizes without affine parameters and then applies
// a per-class affine transform:
//
//	gamma, beta = chunk(embed(y), 2)
//	output = gamma[:, :, None, None] * bn(x) + beta[:, :, None, None]
//
// The embedding's scale half starts at N(1, 0.02) and its shift half at zero.
type ConditionalBatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	numClasses  int
	bn          *BatchNorm2D[B]
	embed       *Embedding[B]
}

// NewConditionalBatchNorm2D creates a class-conditioned batch norm layer.
func NewConditionalBatchNorm2D[B tensor.Backend](numFeatures, numClasses int, backend B) *ConditionalBatchNorm2D[B] {
	if numClasses <= 0 {
		panic(fmt.Sprintf("conditional batchnorm: invalid number of classes %d", numClasses))
	}
	weight := Zeros(tensor.Shape{numClasses, 2 * numFeatures}, backend)
	scale := Normal(tensor.Shape{numClasses * numFeatures}, 1, 0.02, backend).Data()
	data := weight.Data()
	for k := range numClasses {
		copy(data[k*2*numFeatures:k*2*numFeatures+numFeatures], scale[k*numFeatures:(k+1)*numFeatures])
	}

	return &ConditionalBatchNorm2D[B]{
		numFeatures: numFeatures,
		numClasses:  numClasses,
		bn:          NewBatchNorm2D(numFeatures, false, backend),
		embed:       NewEmbeddingWithWeight(weight),
	}
}

// Forward normalizes x [N, C, H, W] and applies the affine transform of each
// sample's class y [N].
func (c *ConditionalBatchNorm2D[B]) Forward(x *tensor.Tensor[float32, B], y *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	n := x.Shape()[0]
	if ys := y.Shape(); len(ys) != 1 || ys[0] != n {
		panic(fmt.Sprintf("conditional batchnorm: expected %d class indices, got shape %v", n, ys))
	}

	out := c.bn.Forward(x)
	parts := c.embed.Forward(y).Chunk(2, 1)
	gamma := parts[0].Reshape(n, c.numFeatures, 1, 1)
	beta := parts[1].Reshape(n, c.numFeatures, 1, 1)
	return out.Mul(gamma).Add(beta)
}

// Embedding returns the (scale, shift) table.
func (c *ConditionalBatchNorm2D[B]) Embedding() *Embedding[B] { return c.embed }

// Train switches the underlying batch norm's mode.
func (c *ConditionalBatchNorm2D[B]) Train(training bool) { c.bn.Train(training) }

// Parameters returns the embedding weight.
func (c *ConditionalBatchNorm2D[B]) Parameters() []*Parameter[B] {
	return c.embed.Parameters()
}

// StateDict returns "bn.*" buffers and "embed.weight".
func (c *ConditionalBatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return ChildrenState(map[string]Stateful{"bn": c.bn, "embed": c.embed})
}

// LoadStateDict restores the buffers and the embedding.
func (c *ConditionalBatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadChildren(map[string]Stateful{"bn": c.bn, "embed": c.embed}, stateDict)
}
