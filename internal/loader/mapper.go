package loader

import "strings"

// NameMapper maps a weight name from a foreign state dict onto the name used
// by the model's StateDict.
type NameMapper interface {
	MapName(name string) string
}

// IdentityMapper leaves names unchanged.
type IdentityMapper struct{}

// MapName returns name.
func (IdentityMapper) MapName(name string) string { return name }

// TorchMapper normalizes names from PyTorch state dicts. Layer names already
// match (conv_features, cond_gate, bn1.running_mean, ...); only wrapper
// prefixes differ:
//   - "module."    added by DataParallel / DistributedDataParallel
//   - "_orig_mod." added by torch.compile
//   - "model."     when the state dict was saved under a "model" entry
type TorchMapper struct {
	prefixes []string
}

// NewTorchMapper creates a mapper for PyTorch state dicts.
func NewTorchMapper() *TorchMapper {
	return &TorchMapper{prefixes: []string{"module.", "_orig_mod.", "model."}}
}

// MapName strips every known wrapper prefix, in any order.
func (m *TorchMapper) MapName(name string) string {
	for {
		stripped := false
		for _, p := range m.prefixes {
			if rest, ok := strings.CutPrefix(name, p); ok {
				name = rest
				stripped = true
			}
		}
		if !stripped {
			return name
		}
	}
}
