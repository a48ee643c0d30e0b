package loader

import (
	"fmt"
	"os"

	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/internal/tensor"
)

// ReadStateDict loads every tensor of a SafeTensors file, renamed by mapper.
// Two source names that map onto the same target are an error.
func ReadStateDict(path string, mapper NameMapper, device tensor.Device) (map[string]*tensor.RawTensor, map[string]string, error) {
	reader, err := NewSafeTensorsReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close() //nolint:errcheck // read-only

	if mapper == nil {
		mapper = IdentityMapper{}
	}
	stateDict := make(map[string]*tensor.RawTensor)
	sources := make(map[string]string)
	for _, name := range reader.TensorNames() {
		target := mapper.MapName(name)
		if prev, dup := sources[target]; dup {
			return nil, nil, fmt.Errorf("%s: tensors %s and %s both map to %s", path, prev, name, target)
		}
		raw, err := reader.LoadTensor(name, device)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		stateDict[target] = raw
		sources[target] = name
	}
	return stateDict, reader.Metadata(), nil
}

// Import loads a SafeTensors file into model. Every model tensor must be
// present with a matching dtype and shape, and no extra tensors are allowed.
func Import(path string, model nn.Stateful, mapper NameMapper, device tensor.Device) error {
	stateDict, _, err := ReadStateDict(path, mapper, device)
	if err != nil {
		return err
	}
	if err := nn.LoadStrict(model, stateDict); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	return nil
}

// Export writes model's state dict to path.
func Export(path string, model nn.Stateful, metadata map[string]string) (err error) {
	f, err := os.Create(path) //nolint:gosec // caller-chosen output path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return WriteSafeTensors(f, model.StateDict(), metadata)
}
