package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// Embedding is a lookup table that maps discrete indices to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim] learnable parameter
//   - Forward: indices [...] -> embeddings [..., EmbedDim]
//
// Example:
//
//	// One row of (scale, shift) pairs per noise class.
//	embed := nn.NewEmbedding[B](8, 2*channels, backend)
//	rows := embed.Forward(classIDs) // [batch, 2*channels]
type Embedding[B tensor.Backend] struct {
	Weight   *Parameter[B] // Embedding weight matrix [NumEmbed, EmbedDim]
	NumEmbed int           // Number of embeddings
	EmbedDim int           // Embedding dimension
}

// NewEmbedding creates a new Embedding layer with weights drawn from N(0, 1).
//
// For other initialization strategies, initialize the weight tensor manually
// and pass it to NewEmbeddingWithWeight.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		panic(fmt.Sprintf("embedding: invalid size %dx%d", numEmbeddings, embeddingDim))
	}
	return NewEmbeddingWithWeight(Normal(tensor.Shape{numEmbeddings, embeddingDim}, 0, 1, backend))
}

// NewEmbeddingWithWeight creates an Embedding layer around weight [num, dim].
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D, got %v", shape))
	}
	return &Embedding[B]{
		Weight:   NewParameter("weight", weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
	}
}

// Forward looks up the rows for int32 indices. Out-of-range indices panic.
func (e *Embedding[B]) Forward(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	backend := indices.Backend()
	return tensor.New[float32](backend.Embedding(e.Weight.Raw(), indices.Raw()), backend)
}

// Parameters returns the weight.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}

// StateDict returns "weight".
func (e *Embedding[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(e.Parameters())
}

// LoadStateDict copies the weight from stateDict.
func (e *Embedding[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(e.Parameters(), stateDict)
}
