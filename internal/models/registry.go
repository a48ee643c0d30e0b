// Package models holds the closed set of denoising architectures and the
// registry that builds them from a config record.
package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/denoise/internal/config"
	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/internal/tensor"
)

// ErrUnknownArchitecture is returned for model names outside the registry.
var ErrUnknownArchitecture = errors.New("unknown architecture")

// Architecture identifies a registered model class.
type Architecture int

// Registered architectures.
const (
	ResidualDenoiser Architecture = iota + 1
	GatedDenoiser
	ISOBatchNormDenoiser
)

var architectureNames = map[Architecture]string{
	ResidualDenoiser:     "ResidualDenoiser",
	GatedDenoiser:        "GatedDenoiser",
	ISOBatchNormDenoiser: "ISOBatchNormDenoiser",
}

// Architectures lists every registered architecture.
func Architectures() []Architecture {
	return []Architecture{ResidualDenoiser, GatedDenoiser, ISOBatchNormDenoiser}
}

func (a Architecture) String() string {
	if name, ok := architectureNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Architecture(%d)", int(a))
}

// ParseArchitecture resolves a config model name. Matching ignores case.
func ParseArchitecture(name string) (Architecture, error) {
	for a, n := range architectureNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (known: ResidualDenoiser, GatedDenoiser, ISOBatchNormDenoiser)", ErrUnknownArchitecture, name)
}

// Denoiser is implemented by every registered architecture.
//
// Forward takes a noisy batch [N, C, H, W] and the ISO of each sample [N, 1]
// and returns the denoised batch with the input's shape.
type Denoiser[B tensor.Backend] interface {
	Forward(noisy, iso *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*nn.Parameter[B]
	nn.Stateful
	nn.Trainable

	// Architecture reports the registry entry the model was built from.
	Architecture() Architecture

	// ValidateInput reports whether a noisy batch of this shape can be
	// processed.
	ValidateInput(shape tensor.Shape) error
}

// New builds the architecture named by cfg.Model. The model starts in
// training mode with freshly initialized weights.
func New[B tensor.Backend](cfg *config.Config, backend B) (Denoiser[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	arch, err := ParseArchitecture(cfg.Model)
	if err != nil {
		return nil, err
	}
	act, err := nn.ActivationByName[B](cfg.Activation)
	if err != nil {
		return nil, err
	}

	switch arch {
	case ResidualDenoiser:
		return newResidualDenoiser(cfg, backend), nil
	case GatedDenoiser:
		return newGatedDenoiser(cfg, act, backend), nil
	case ISOBatchNormDenoiser:
		return newISOBatchNormDenoiser(cfg, backend), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchitecture, arch)
	}
}

// validateImageBatch checks the common [N, C, H, W] input contract.
func validateImageBatch(shape tensor.Shape, channels int) error {
	if len(shape) != 4 {
		return fmt.Errorf("expected [N, C, H, W] input, got %v", shape)
	}
	if shape[1] != channels {
		return fmt.Errorf("expected %d channels, got %d", channels, shape[1])
	}
	return shape.Validate()
}

func samePadding(kernel int) int { return kernel / 2 }
