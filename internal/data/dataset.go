// Package data reads noisy test images and their ISO metadata.
package data

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/denoise/internal/imageio"
	"github.com/born-ml/denoise/internal/tensor"
)

// ManifestName is the optional file that lists a folder's samples.
const ManifestName = "manifest.yaml"

var isoRegexp = regexp.MustCompile(`(?i)iso(\d+)`)

// Sample is one test input.
type Sample[B tensor.Backend] struct {
	Noisy *tensor.Tensor[float32, B] // [1, C, H, W] in [0, 1]
	ISO   *tensor.Tensor[float32, B] // [1, 1]
	Path  string
}

// Dataset yields samples by index.
type Dataset[B tensor.Backend] interface {
	Len() int
	Get(i int) (Sample[B], error)
}

// Entry is a manifest line.
type Entry struct {
	Image string  `yaml:"image"`
	ISO   float64 `yaml:"iso"`
}

// FolderDataset reads PNG images from a directory.
//
// When the directory holds a manifest.yaml, its entries are used in order:
//
//	# manifest.yaml
//	- {image: scene01.png, iso: 3200}
//	- {image: scene02.png, iso: 800}
//
// Otherwise every *.png file is used in name order, and the ISO comes from an
// "iso<digits>" token in the file name (e.g. "street_iso1600.png").
type FolderDataset[B tensor.Backend] struct {
	dir      string
	entries  []Entry
	channels int
	backend  B
}

// NewFolderDataset indexes dir. Images are converted to channels channels.
func NewFolderDataset[B tensor.Backend](dir string, channels int, backend B) (*FolderDataset[B], error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset: %s is not a directory", dir)
	}

	entries, err := readManifest(filepath.Join(dir, ManifestName))
	switch {
	case errors.Is(err, os.ErrNotExist):
		entries, err = discover(dir)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	return &FolderDataset[B]{dir: dir, entries: entries, channels: channels, backend: backend}, nil
}

func readManifest(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var entries []Entry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	for i, e := range entries {
		if e.Image == "" {
			return nil, fmt.Errorf("dataset: %s entry %d has no image", path, i)
		}
		if e.ISO <= 0 {
			return nil, fmt.Errorf("dataset: %s entry %d (%s) has no positive iso", path, i, e.Image)
		}
	}
	return entries, nil
}

func discover(dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	sort.Strings(paths)

	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		iso, err := ParseISO(name)
		if err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		entries = append(entries, Entry{Image: name, ISO: iso})
	}
	return entries, nil
}

// ParseISO extracts the ISO value from a file name such as "x_iso800.png".
func ParseISO(name string) (float64, error) {
	m := isoRegexp.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("no iso<digits> token in %q", name)
	}
	iso, err := strconv.Atoi(m[1])
	if err != nil || iso <= 0 {
		return 0, fmt.Errorf("invalid iso in %q", name)
	}
	return float64(iso), nil
}

// Len returns the number of samples.
func (d *FolderDataset[B]) Len() int { return len(d.entries) }

// Entries returns the indexed samples.
func (d *FolderDataset[B]) Entries() []Entry { return d.entries }

// Get decodes sample i.
func (d *FolderDataset[B]) Get(i int) (Sample[B], error) {
	if i < 0 || i >= len(d.entries) {
		return Sample[B]{}, fmt.Errorf("dataset: index %d out of range [0, %d)", i, len(d.entries))
	}
	e := d.entries[i]
	path := e.Image
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.dir, path)
	}
	noisy, err := imageio.LoadPNG(path, d.channels, d.backend)
	if err != nil {
		return Sample[B]{}, fmt.Errorf("dataset: %w", err)
	}
	iso := tensor.Full(tensor.Shape{1, 1}, float32(e.ISO), d.backend)
	return Sample[B]{Noisy: noisy, ISO: iso, Path: path}, nil
}
