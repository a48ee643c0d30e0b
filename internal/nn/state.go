package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/denoise/internal/tensor"
)

// mergeState copies src into dst with every key prefixed by "prefix.".
func mergeState(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

// subState returns the entries of src under "prefix." with the prefix removed.
func subState(src map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	p := prefix + "."
	for name, raw := range src {
		if rest, ok := strings.CutPrefix(name, p); ok {
			out[rest] = raw
		}
	}
	return out
}

// loadChild loads the "prefix." entries of stateDict into child.
func loadChild(child Stateful, prefix string, stateDict map[string]*tensor.RawTensor) error {
	if err := child.LoadStateDict(subState(stateDict, prefix)); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}

// loadInto copies the named entry of stateDict into dst after checking shape
// and dtype.
func loadInto(dst *tensor.RawTensor, stateDict map[string]*tensor.RawTensor, name string) error {
	src, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing key %q", name)
	}
	if src.DType() != dst.DType() {
		return fmt.Errorf("%s: dtype %s, expected %s", name, src.DType(), dst.DType())
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s: shape %v, expected %v", name, src.Shape(), dst.Shape())
	}
	copy(dst.Data(), src.Data())
	return nil
}

// LoadStrict loads stateDict into m and fails if any key is missing or
// left unused.
func LoadStrict(m Stateful, stateDict map[string]*tensor.RawTensor) error {
	expected := m.StateDict()
	var missing, unexpected []string
	for name := range expected {
		if _, ok := stateDict[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range stateDict {
		if _, ok := expected[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)
		return fmt.Errorf("state dict mismatch: missing %v, unexpected %v", missing, unexpected)
	}
	return m.LoadStateDict(stateDict)
}

// ChildrenState merges the state of named children, prefixing each key with
// the child's name.
func ChildrenState(children map[string]Stateful) map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for prefix, child := range children {
		mergeState(sd, prefix, child.StateDict())
	}
	return sd
}

// LoadChildren hands each named child its share of stateDict.
func LoadChildren(children map[string]Stateful, stateDict map[string]*tensor.RawTensor) error {
	for prefix, child := range children {
		if err := loadChild(child, prefix, stateDict); err != nil {
			return err
		}
	}
	return nil
}
