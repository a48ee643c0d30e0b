package main

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/denoise/internal/imageio"
	"github.com/born-ml/denoise/internal/infer"
)

func TestRun_InitInspectTest(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "gated")
	var out bytes.Buffer

	require.NoError(t, run([]string{"init", "-model", "GatedDenoiser", "-features", "4", "-blocks", "1", runDir}, &out))
	assert.Contains(t, out.String(), "Initialized GatedDenoiser")

	out.Reset()
	require.NoError(t, run([]string{"inspect", runDir}, &out))
	assert.Contains(t, out.String(), "Model:      GatedDenoiser")
	assert.Contains(t, out.String(), "model.head.conv_features.weight")
	assert.Contains(t, out.String(), "init = random")

	dataset := filepath.Join(root, "noisy")
	require.NoError(t, os.MkdirAll(dataset, 0o750))
	require.NoError(t, imageio.SavePNG(filepath.Join(dataset, "x_iso1600.png"), image.NewRGBA(image.Rect(0, 0, 8, 6))))

	out.Reset()
	require.NoError(t, run([]string{"test", "-quiet", "-workers", "1", runDir, dataset}, &out))
	assert.Contains(t, out.String(), "1 images written")
	assert.FileExists(t, filepath.Join(runDir, "model_best", "Test_Image_1.png"))

	err := run([]string{"test", "-quiet", runDir, dataset}, &out)
	assert.ErrorIs(t, err, infer.ErrOutputExists)
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorIs(t, run(nil, &out), errUsage)
	assert.ErrorIs(t, run([]string{"train"}, &out), errUsage)
	assert.ErrorIs(t, run([]string{"test", "only-one"}, &out), errUsage)
	assert.ErrorIs(t, run([]string{"init", "dir"}, &out), errUsage)

	require.NoError(t, run([]string{"version"}, &out))
	assert.Contains(t, out.String(), version)
}

func TestRun_InitRejectsUnknownModel(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"init", "-model", "UNet", filepath.Join(t.TempDir(), "x")}, &out)
	assert.Error(t, err)
}

func TestRun_ExportImport(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	var out bytes.Buffer
	require.NoError(t, run([]string{"init", "-model", "ISOBatchNormDenoiser", "-features", "4", "-blocks", "2", src}, &out))

	weights := filepath.Join(root, "weights.safetensors")
	require.NoError(t, run([]string{"export", src, weights}, &out))
	assert.FileExists(t, weights)

	// A fresh run directory with the same config receives the exported weights.
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.MkdirAll(dst, 0o750))
	cfg, err := os.ReadFile(filepath.Join(src, "denoising.config"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dst, "denoising.config"), cfg, 0o600))

	out.Reset()
	require.NoError(t, run([]string{"import", weights, dst}, &out))
	assert.Contains(t, out.String(), "Imported")

	out.Reset()
	require.NoError(t, run([]string{"inspect", dst}, &out))
	assert.Contains(t, out.String(), "imported_from = weights.safetensors")

	// A config for a different architecture rejects the weights.
	other := filepath.Join(root, "other")
	require.NoError(t, run([]string{"init", "-model", "ResidualDenoiser", "-features", "4", "-blocks", "2", other}, &out))
	assert.Error(t, run([]string{"import", weights, other}, &out))
}
