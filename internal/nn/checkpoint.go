package nn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/born-ml/denoise/internal/serialization"
	"github.com/born-ml/denoise/internal/tensor"
)

// ModelPrefix is the namespace of model tensors inside a checkpoint.
const ModelPrefix = "model."

// ErrNoModelEntry is returned when a checkpoint holds no model tensors.
var ErrNoModelEntry = errors.New("checkpoint has no model entry")

// CheckpointMeta describes a checkpoint beyond its tensors.
//
// Example:
//
//	err := nn.SaveCheckpoint("runs/gated/model_best.born", model, nn.CheckpointMeta{
//	    ModelType: "GatedDenoiser",
//	    Epoch:     40,
//	    BestLoss:  0.0123,
//	})
type CheckpointMeta struct {
	ModelType string            // Registered architecture name
	Epoch     int               // Training epoch number
	Step      int64             // Training step number
	BestLoss  float64           // Best validation loss so far
	Metadata  map[string]string // Additional metadata

	// Filled in on load.
	ID              string
	ProducerVersion string
	CreatedAt       time.Time
}

// SaveCheckpoint writes the model's state dict to path under the "model."
// prefix together with meta.
func SaveCheckpoint(path string, model Stateful, meta CheckpointMeta) (err error) {
	stateDict := make(map[string]*tensor.RawTensor)
	for name, raw := range model.StateDict() {
		stateDict[ModelPrefix+name] = raw
	}

	writer, err := serialization.NewBornWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	header := serialization.Header{
		ModelType: meta.ModelType,
		Metadata:  meta.Metadata,
		CheckpointMeta: &serialization.CheckpointMeta{
			Epoch:    meta.Epoch,
			Step:     meta.Step,
			BestLoss: meta.BestLoss,
		},
	}
	if err := writer.WriteStateDict(stateDict, header); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the checkpoint at path and strict-loads its "model."
// tensors into model. The model must be constructed with the same
// architecture and hyperparameters as when the checkpoint was saved.
//
// Example:
//
//	model := models.New(cfg, backend)
//	meta, err := nn.LoadCheckpoint("model_best.born", backend, model)
func LoadCheckpoint[B tensor.Backend](path string, backend B, model Stateful) (meta CheckpointMeta, err error) {
	reader, err := serialization.NewBornReader(path)
	if err != nil {
		return meta, fmt.Errorf("failed to open checkpoint %s: %w", path, err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	stateDict, err := reader.ReadStateDict(backend.Device())
	if err != nil {
		return meta, fmt.Errorf("failed to read state dict: %w", err)
	}

	modelState := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if rest, ok := strings.CutPrefix(name, ModelPrefix); ok {
			modelState[rest] = raw
		}
	}
	if len(modelState) == 0 {
		return meta, fmt.Errorf("%s: %w", path, ErrNoModelEntry)
	}
	if err := LoadStrict(model, modelState); err != nil {
		return meta, fmt.Errorf("failed to load model state: %w", err)
	}

	return metaFromHeader(reader.Header()), nil
}

// InspectCheckpoint returns the metadata and tensor names of a checkpoint
// without loading it into a model.
func InspectCheckpoint(path string) (CheckpointMeta, []serialization.TensorMeta, error) {
	reader, err := serialization.NewBornReader(path)
	if err != nil {
		return CheckpointMeta{}, nil, fmt.Errorf("failed to open checkpoint %s: %w", path, err)
	}
	defer reader.Close() //nolint:errcheck // read-only

	header := reader.Header()
	return metaFromHeader(header), header.Tensors, nil
}

func metaFromHeader(header serialization.Header) CheckpointMeta {
	meta := CheckpointMeta{
		ModelType:       header.ModelType,
		Metadata:        header.Metadata,
		ID:              header.ID,
		ProducerVersion: header.ProducerVersion,
		CreatedAt:       header.CreatedAt,
	}
	if cm := header.CheckpointMeta; cm != nil {
		meta.Epoch = cm.Epoch
		meta.Step = cm.Step
		meta.BestLoss = cm.BestLoss
	}
	return meta
}
