// Package main provides the denoise CLI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/born-ml/denoise/internal/backend/cpu"
	"github.com/born-ml/denoise/internal/config"
	"github.com/born-ml/denoise/internal/infer"
	"github.com/born-ml/denoise/internal/loader"
	"github.com/born-ml/denoise/internal/models"
	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/internal/serialization"
)

const version = "v0.3.0"

var errUsage = errors.New("usage")

func main() {
	log.SetFlags(log.LstdFlags)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if errors.Is(err, errUsage) {
			log.Print(err)
			usage(os.Stderr)
			os.Exit(2)
		}
		log.Fatalf("denoise: %v", err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: denoise <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  test     [-workers N] [-device cpu] [-quiet] <checkpoint> <dataset> [output]")
	fmt.Fprintln(w, "  init     -model NAME [-features N] [-blocks N] [-channels N] <dir>")
	fmt.Fprintln(w, "  inspect  <checkpoint>")
	fmt.Fprintln(w, "  import   <weights.safetensors> <run-dir>")
	fmt.Fprintln(w, "  export   <checkpoint> <weights.safetensors>")
	fmt.Fprintln(w, "  version")
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "test":
		return runTest(args[1:], stdout)
	case "init":
		return runInit(args[1:], stdout)
	case "inspect":
		return runInspect(args[1:], stdout)
	case "import":
		return runImport(args[1:], stdout)
	case "export":
		return runExport(args[1:], stdout)
	case "version":
		fmt.Fprintf(stdout, "denoise %s (.born producer %s)\n", version, serialization.ProducerVersion)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func runTest(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	workers := fs.Int("workers", 4, "Number of dataset loader workers")
	device := fs.String("device", "", "Device override (default: from denoising.config)")
	quiet := fs.Bool("quiet", false, "Disable the progress bar")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		return fmt.Errorf("%w: test needs <checkpoint> <dataset> [output]", errUsage)
	}

	opts := infer.Options{
		Checkpoint: fs.Arg(0),
		Dataset:    fs.Arg(1),
		OutputDir:  fs.Arg(2),
		Workers:    *workers,
		Device:     *device,
		Quiet:      *quiet,
	}
	summary, err := infer.Run(opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d images written to %s (checkpoint %s)\n",
		summary.Model, summary.Images, summary.OutputDir, summary.CheckpointID)
	return nil
}

func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	model := fs.String("model", "", "Architecture: ResidualDenoiser, GatedDenoiser or ISOBatchNormDenoiser")
	features := fs.Int("features", config.DefaultFeatures, "Feature channels")
	blocks := fs.Int("blocks", config.DefaultBlocks, "Number of blocks")
	channels := fs.Int("channels", config.DefaultInChannels, "Image channels (1, 3 or 4)")
	activation := fs.String("activation", config.DefaultActivation, "Gated feature activation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *model == "" || fs.NArg() != 1 {
		return fmt.Errorf("%w: init needs -model NAME <dir>", errUsage)
	}
	dir := fs.Arg(0)

	cfg := config.Default(*model)
	cfg.Features = *features
	cfg.Blocks = *blocks
	cfg.InChannels = *channels
	cfg.Activation = *activation

	denoiser, err := models.New(cfg, cpu.New())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return err
	}
	ckpt := filepath.Join(dir, infer.BestCheckpointName)
	if err := nn.SaveCheckpoint(ckpt, denoiser, nn.CheckpointMeta{
		ModelType: denoiser.Architecture().String(),
		Metadata:  map[string]string{"init": "random"},
	}); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Initialized %s with %d parameters in %s\n",
		denoiser.Architecture(), nn.CountParameters(denoiser.Parameters()), ckpt)
	return nil
}

func runInspect(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: inspect needs <checkpoint>", errUsage)
	}

	ckpt, _, err := infer.ResolveCheckpoint(fs.Arg(0))
	if err != nil {
		return err
	}
	meta, tensors, err := nn.InspectCheckpoint(ckpt)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Checkpoint: %s\n", ckpt)
	fmt.Fprintf(stdout, "ID:         %s\n", meta.ID)
	fmt.Fprintf(stdout, "Model:      %s\n", meta.ModelType)
	fmt.Fprintf(stdout, "Producer:   %s\n", meta.ProducerVersion)
	fmt.Fprintf(stdout, "Created:    %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(stdout, "Epoch:      %d (step %d, best loss %g)\n", meta.Epoch, meta.Step, meta.BestLoss)
	keys := make([]string, 0, len(meta.Metadata))
	for k := range meta.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(stdout, "  %s = %s\n", k, meta.Metadata[k])
	}

	fmt.Fprintf(stdout, "\nTensors (%d):\n", len(tensors))
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, t := range tensors {
		fmt.Fprintf(tw, "  %s\t%s\t%v\n", t.Name, t.DType, t.Shape)
	}
	return tw.Flush()
}

// runImport converts SafeTensors weights into <run-dir>/model_best.born. The
// run directory must already hold the denoising.config describing the model.
func runImport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	raw := fs.Bool("raw", false, "Match tensor names exactly instead of stripping PyTorch wrapper prefixes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: import needs <weights.safetensors> <run-dir>", errUsage)
	}
	weights, dir := fs.Arg(0), fs.Arg(1)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		return err
	}
	backend := cpu.New()
	denoiser, err := models.New(cfg, backend)
	if err != nil {
		return err
	}

	var mapper loader.NameMapper = loader.NewTorchMapper()
	if *raw {
		mapper = loader.IdentityMapper{}
	}
	if err := loader.Import(weights, denoiser, mapper, backend.Device()); err != nil {
		return err
	}

	ckpt := filepath.Join(dir, infer.BestCheckpointName)
	if err := nn.SaveCheckpoint(ckpt, denoiser, nn.CheckpointMeta{
		ModelType: denoiser.Architecture().String(),
		Metadata:  map[string]string{"imported_from": filepath.Base(weights)},
	}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Imported %d tensors into %s\n", len(denoiser.StateDict()), ckpt)
	return nil
}

// runExport writes the weights of a checkpoint as SafeTensors.
func runExport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: export needs <checkpoint> <weights.safetensors>", errUsage)
	}

	ckpt, cfgPath, err := infer.ResolveCheckpoint(fs.Arg(0))
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	backend := cpu.New()
	denoiser, err := models.New(cfg, backend)
	if err != nil {
		return err
	}
	meta, err := nn.LoadCheckpoint(ckpt, backend, denoiser)
	if err != nil {
		return err
	}

	if err := loader.Export(fs.Arg(1), denoiser, map[string]string{
		"format":     "pt",
		"model":      meta.ModelType,
		"checkpoint": meta.ID,
	}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported %s to %s\n", ckpt, fs.Arg(1))
	return nil
}
