// Package infer runs a trained denoiser over a folder of noisy images and
// writes the restored images as PNG files.
package infer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/born-ml/denoise/internal/backend/cpu"
	"github.com/born-ml/denoise/internal/config"
	"github.com/born-ml/denoise/internal/data"
	"github.com/born-ml/denoise/internal/imageio"
	"github.com/born-ml/denoise/internal/models"
	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/internal/tensor"
)

// BestCheckpointName is the checkpoint picked when a run directory is given.
const BestCheckpointName = "model_best.born"

var (
	// ErrCheckpointNotFound is returned when the checkpoint path is neither a
	// file nor a run directory.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrOutputExists is returned when the output directory already exists.
	ErrOutputExists = errors.New("output directory already exists")
)

// Options configures a test run.
type Options struct {
	Checkpoint string // checkpoint file or run directory
	Dataset    string // folder of noisy PNGs
	OutputDir  string // defaults to <checkpoint dir>/<checkpoint name>
	Workers    int    // loader workers
	Device     string // overrides the config's device when set
	Quiet      bool   // disables the progress bar

	// Progress receives the progress bar. Defaults to os.Stderr.
	Progress io.Writer
}

// Summary describes a finished run.
type Summary struct {
	OutputDir    string
	Images       int
	CheckpointID string
	Model        models.Architecture
}

// Run loads the checkpoint, denoises every dataset sample in order and writes
// Test_Image_<n>.png files into the output directory. Output written before a
// failure is left in place.
func Run(opts Options) (Summary, error) {
	ckptPath, cfgPath, err := ResolveCheckpoint(opts.Checkpoint)
	if err != nil {
		return Summary{}, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Device != "" {
		cfg.Device = opts.Device
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = DefaultOutputDir(ckptPath)
	}
	if err := createOutputDir(outDir); err != nil {
		return Summary{}, err
	}

	if _, err := tensor.ParseDevice(cfg.Device); err != nil {
		return Summary{}, err
	}
	backend := cpu.New()

	log.Printf("Loading checkpoint %s", ckptPath)
	model, err := models.New(cfg, backend)
	if err != nil {
		return Summary{}, err
	}
	meta, err := nn.LoadCheckpoint(ckptPath, backend, model)
	if err != nil {
		return Summary{}, err
	}
	nn.Eval(model)
	log.Printf("Loaded %s (%d parameters, epoch %d)", model.Architecture(), nn.CountParameters(model.Parameters()), meta.Epoch)

	dataset, err := data.NewFolderDataset(opts.Dataset, cfg.InChannels, backend)
	if err != nil {
		return Summary{}, err
	}
	loader := data.NewLoader[*cpu.CPUBackend](dataset, opts.Workers)
	bar := newProgressBar(loader.Len(), opts)

	err = loader.Each(func(i int, s data.Sample[*cpu.CPUBackend]) error {
		if err := denoise(model, s, filepath.Join(outDir, ImageName(i))); err != nil {
			return err
		}
		return bar.Add(1)
	})
	if err != nil {
		return Summary{}, err
	}
	if err := bar.Finish(); err != nil {
		return Summary{}, err
	}

	log.Printf("Wrote %d images to %s", loader.Len(), outDir)
	return Summary{
		OutputDir:    outDir,
		Images:       loader.Len(),
		CheckpointID: meta.ID,
		Model:        model.Architecture(),
	}, nil
}

func denoise(model models.Denoiser[*cpu.CPUBackend], s data.Sample[*cpu.CPUBackend], path string) error {
	if err := model.ValidateInput(s.Noisy.Shape()); err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	out := model.Forward(s.Noisy, s.ISO)
	img, err := imageio.FromTensor(out.Reshape(out.Shape()[1:]...))
	if err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	return imageio.SavePNG(path, img)
}

// ImageName returns the output file name of sample i (0-based).
func ImageName(i int) string {
	return fmt.Sprintf("Test_Image_%d.png", i+1)
}

// ResolveCheckpoint maps a checkpoint file or a run directory onto the
// checkpoint file and its denoising.config.
func ResolveCheckpoint(path string) (checkpoint, cfg string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrCheckpointNotFound, path)
	}
	switch {
	case info.Mode().IsRegular():
		return path, filepath.Join(filepath.Dir(path), config.FileName), nil
	case info.IsDir():
		return filepath.Join(path, BestCheckpointName), filepath.Join(path, config.FileName), nil
	default:
		return "", "", fmt.Errorf("%w: %s is not a file or directory", ErrCheckpointNotFound, path)
	}
}

// DefaultOutputDir places results next to the checkpoint, in a directory
// named after the checkpoint file up to its first '.'.
func DefaultOutputDir(checkpoint string) string {
	name, _, _ := strings.Cut(filepath.Base(checkpoint), ".")
	return filepath.Join(filepath.Dir(checkpoint), name)
}

// createOutputDir creates dir and its parents. dir itself must not exist;
// os.Mkdir makes that check and the creation a single step.
func createOutputDir(dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.Mkdir(dir, 0o750); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrOutputExists, dir)
		}
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

func newProgressBar(n int, opts Options) *progressbar.ProgressBar {
	w := opts.Progress
	if w == nil {
		w = os.Stderr
	}
	if opts.Quiet {
		w = io.Discard
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("denoising"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}
