package infer

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/denoise/internal/backend/cpu"
	"github.com/born-ml/denoise/internal/config"
	"github.com/born-ml/denoise/internal/imageio"
	"github.com/born-ml/denoise/internal/models"
	"github.com/born-ml/denoise/internal/nn"
)

// writeRun creates a run directory holding a config and a freshly
// initialized checkpoint.
func writeRun(t *testing.T, model string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, os.MkdirAll(dir, 0o750))

	cfg := config.Default(model)
	cfg.Features = 4
	cfg.Blocks = 1
	require.NoError(t, config.Save(filepath.Join(dir, config.FileName), cfg))

	m, err := models.New(cfg, cpu.New())
	require.NoError(t, err)
	require.NoError(t, nn.SaveCheckpoint(filepath.Join(dir, BestCheckpointName), m, nn.CheckpointMeta{
		ModelType: model,
		Epoch:     3,
	}))
	return dir
}

func writeDataset(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for i, name := range names {
		img := image.NewRGBA(image.Rect(0, 0, 6, 4))
		for y := range 4 {
			for x := range 6 {
				img.SetRGBA(x, y, color.RGBA{R: uint8(40 * i), G: uint8(10 * x), B: uint8(20 * y), A: 255})
			}
		}
		require.NoError(t, imageio.SavePNG(filepath.Join(dir, name), img))
	}
	return dir
}

func TestRun_WritesOneImagePerSample(t *testing.T) {
	for _, arch := range models.Architectures() {
		t.Run(arch.String(), func(t *testing.T) {
			run := writeRun(t, arch.String())
			dataset := writeDataset(t, "a_iso100.png", "b_iso800.png", "c_iso3200.png")

			var progress bytes.Buffer
			summary, err := Run(Options{
				Checkpoint: run,
				Dataset:    dataset,
				Workers:    2,
				Progress:   &progress,
			})
			require.NoError(t, err)

			assert.Equal(t, filepath.Join(run, "model_best"), summary.OutputDir)
			assert.Equal(t, 3, summary.Images)
			assert.Equal(t, arch, summary.Model)
			assert.NotEmpty(t, summary.CheckpointID)
			assert.NotZero(t, progress.Len())

			for i := range 3 {
				out, err := imageio.LoadPNG(filepath.Join(summary.OutputDir, ImageName(i)), 3, cpu.New())
				require.NoError(t, err)
				assert.Equal(t, []int{1, 3, 4, 6}, []int(out.Shape()))
			}
			_, err = os.Stat(filepath.Join(summary.OutputDir, ImageName(3)))
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

func TestRun_RerunFailsWhenOutputExists(t *testing.T) {
	run := writeRun(t, "ResidualDenoiser")
	dataset := writeDataset(t, "a_iso100.png")
	opts := Options{Checkpoint: run, Dataset: dataset, Quiet: true}

	summary, err := Run(opts)
	require.NoError(t, err)

	first := filepath.Join(summary.OutputDir, ImageName(0))
	before, err := os.ReadFile(first)
	require.NoError(t, err)
	info, err := os.Stat(first)
	require.NoError(t, err)

	_, err = Run(opts)
	assert.ErrorIs(t, err, ErrOutputExists)

	after, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	again, err := os.Stat(first)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())
	_, err = os.Stat(filepath.Join(summary.OutputDir, ImageName(1)))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateOutputDir(t *testing.T) {
	root := t.TempDir()

	nested := filepath.Join(root, "a", "b", "out")
	require.NoError(t, createOutputDir(nested))
	assert.DirExists(t, nested)
	assert.ErrorIs(t, createOutputDir(nested), ErrOutputExists)

	file := filepath.Join(root, "taken")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.ErrorIs(t, createOutputDir(file), ErrOutputExists)
}

func TestCreateOutputDir_ConcurrentCallersOneWins(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	const callers = 16
	var wg sync.WaitGroup
	var created atomic.Int32
	for range callers {
		wg.Go(func() {
			err := createOutputDir(dir)
			if err == nil {
				created.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrOutputExists)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())
}

func TestRun_CheckpointFileAndExplicitOutput(t *testing.T) {
	run := writeRun(t, "ResidualDenoiser")
	dataset := writeDataset(t, "a_iso100.png", "b_iso200.png")
	out := filepath.Join(t.TempDir(), "nested", "results")

	summary, err := Run(Options{
		Checkpoint: filepath.Join(run, BestCheckpointName),
		Dataset:    dataset,
		OutputDir:  out,
		Quiet:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, out, summary.OutputDir)
	assert.FileExists(t, filepath.Join(out, "Test_Image_1.png"))
	assert.FileExists(t, filepath.Join(out, "Test_Image_2.png"))
}

func TestRun_Errors(t *testing.T) {
	run := writeRun(t, "ResidualDenoiser")
	dataset := writeDataset(t, "a_iso100.png")

	_, err := Run(Options{Checkpoint: filepath.Join(t.TempDir(), "missing.born"), Dataset: dataset, Quiet: true})
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	_, err = Run(Options{Checkpoint: run, Dataset: dataset, Device: "cuda", OutputDir: filepath.Join(t.TempDir(), "o"), Quiet: true})
	assert.Error(t, err)

	noISO := writeDataset(t, "plain.png")
	_, err = Run(Options{Checkpoint: run, Dataset: noISO, OutputDir: filepath.Join(t.TempDir(), "o"), Quiet: true})
	assert.Error(t, err)
}

func TestRun_GatedRejectsOddSizes(t *testing.T) {
	run := writeRun(t, "GatedDenoiser")
	dir := t.TempDir()
	require.NoError(t, imageio.SavePNG(filepath.Join(dir, "odd_iso400.png"), image.NewRGBA(image.Rect(0, 0, 5, 4))))

	_, err := Run(Options{Checkpoint: run, Dataset: dir, OutputDir: filepath.Join(t.TempDir(), "o"), Quiet: true})
	assert.Error(t, err)
}

func TestResolveCheckpoint(t *testing.T) {
	run := writeRun(t, "ResidualDenoiser")

	ckpt, cfg, err := ResolveCheckpoint(run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(run, BestCheckpointName), ckpt)
	assert.Equal(t, filepath.Join(run, config.FileName), cfg)

	file := filepath.Join(run, "epoch_10.born")
	ckpt, cfg, err = ResolveCheckpoint(file)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
	assert.Empty(t, ckpt)
	assert.Empty(t, cfg)
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("runs", "a", "model_best"), DefaultOutputDir(filepath.Join("runs", "a", "model_best.born")))
	assert.Equal(t, filepath.Join("runs", "ckpt"), DefaultOutputDir(filepath.Join("runs", "ckpt.epoch.10.born")))
}
