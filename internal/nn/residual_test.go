package nn

import (
	"testing"

	"github.com/born-ml/denoise/internal/backend/cpu"
	"github.com/born-ml/denoise/internal/tensor"
)

func TestResidualBlock_Downsample(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name     string
		cfg      ResidualConfig
		in       tensor.Shape
		want     tensor.Shape
		wantProj bool
	}{
		{
			name: "identity shortcut",
			cfg:  ResidualConfig{InChannels: 4, OutChannels: 4, KernelSize: 3, Padding: 1, Residual: true},
			in:   tensor.Shape{2, 4, 8, 8},
			want: tensor.Shape{2, 4, 8, 8},
		},
		{
			name:     "channel change",
			cfg:      ResidualConfig{InChannels: 4, OutChannels: 6, KernelSize: 3, Padding: 1, Residual: true},
			in:       tensor.Shape{2, 4, 8, 8},
			want:     tensor.Shape{2, 6, 8, 8},
			wantProj: true,
		},
		{
			name:     "strided",
			cfg:      ResidualConfig{InChannels: 4, OutChannels: 8, KernelSize: 3, Stride: 2, Padding: 1, Residual: true},
			in:       tensor.Shape{2, 4, 16, 16},
			want:     tensor.Shape{2, 8, 4, 4},
			wantProj: true,
		},
		{
			name:     "strided odd size",
			cfg:      ResidualConfig{InChannels: 3, OutChannels: 3, KernelSize: 3, Stride: 2, Padding: 1, Residual: true},
			in:       tensor.Shape{1, 3, 13, 9},
			want:     tensor.Shape{1, 3, 4, 3},
			wantProj: true,
		},
		{
			name: "dilated",
			cfg: ResidualConfig{InChannels: 2, OutChannels: 2, KernelSize: 3, Padding: 1,
				Dilation: [2]int{2, 3}, Residual: true},
			in:   tensor.Shape{1, 2, 10, 10},
			want: tensor.Shape{1, 2, 10, 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := NewResidualBlock(tt.cfg, backend)
			if block.HasDownsample() != tt.wantProj {
				t.Errorf("HasDownsample = %t, want %t", block.HasDownsample(), tt.wantProj)
			}
			out := block.Forward(tensor.Randn(tt.in, 0, 1, nil, backend))
			if !out.Shape().Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, out.Shape())
			}
		})
	}
}

// silenceSecondStage makes the main path output exactly zero in eval mode.
func silenceSecondStage(conv *Conv2D[testBackend]) {
	fillParam(conv.Weight(), 0)
	fillParam(conv.Bias(), 0)
}

func TestResidualBlock_ResidualFlag(t *testing.T) {
	backend := cpu.New()
	cfg := ResidualConfig{InChannels: 3, OutChannels: 3, KernelSize: 3, Padding: 1}
	x := tensor.Randn(tensor.Shape{2, 3, 5, 5}, 0, 1, nil, backend)

	plain := NewResidualBlock(cfg, backend)
	Eval(plain)
	silenceSecondStage(plain.conv2)
	for i, v := range plain.Forward(x).Data() {
		if v != 0 {
			t.Fatalf("residual=false: element %d = %v, identity term must not be added", i, v)
		}
	}

	cfg.Residual = true
	res := NewResidualBlock(cfg, backend)
	Eval(res)
	silenceSecondStage(res.conv2)
	got := res.Forward(x).Data()
	for i, v := range x.ReLU().Data() {
		if got[i] != v {
			t.Fatalf("residual=true: element %d = %v, expected relu(x) = %v", i, got[i], v)
		}
	}
}

func TestResidualBlock_TrainPropagation(t *testing.T) {
	backend := cpu.New()
	block := NewResidualBlock(ResidualConfig{InChannels: 2, OutChannels: 4, KernelSize: 3, Padding: 1}, backend)
	Eval(block)

	if block.bn1.Training() || block.bn2.Training() {
		t.Error("Eval should reach bn1 and bn2")
	}
	if block.downsample.Module(1).(*BatchNorm2D[testBackend]).Training() {
		t.Error("Eval should reach the downsample batch norm")
	}
}

func TestResidualBlock_StateDictKeys(t *testing.T) {
	backend := cpu.New()
	block := NewResidualBlock(ResidualConfig{InChannels: 2, OutChannels: 4, KernelSize: 3, Stride: 2, Padding: 1}, backend)
	sd := block.StateDict()

	for _, key := range []string{
		"conv1.weight", "conv1.bias", "bn1.running_var", "conv2.weight", "bn2.num_batches_tracked",
		"downsample.0.weight", "downsample.0.bias", "downsample.1.running_mean",
	} {
		if _, ok := sd[key]; !ok {
			t.Errorf("missing %q", key)
		}
	}
	if shape := sd["downsample.0.weight"].Shape(); !shape.Equal(tensor.Shape{4, 2, 1, 1}) {
		t.Errorf("downsample weight shape: got %v", shape)
	}
}

func TestGatedResidualBlock_Conditioned(t *testing.T) {
	backend := cpu.New()
	cfg := ResidualConfig{InChannels: 2, OutChannels: 4, KernelSize: 3, Stride: 2, Padding: 1,
		Dilation: [2]int{1, 2}, Residual: true, ConditionChannels: 1}
	block := NewGatedResidualBlock(cfg, ReLUFunc[testBackend], backend)

	x := tensor.Randn(tensor.Shape{2, 2, 12, 12}, 0, 1, nil, backend)
	c := tensor.Full[float32](tensor.Shape{2, 1, 1}, 0.4, backend)
	out := block.Forward(x, c)
	if !out.Shape().Equal(tensor.Shape{2, 4, 3, 3}) {
		t.Errorf("expected [2 4 3 3], got %v", out.Shape())
	}
	for i, v := range out.Data() {
		if v < 0 {
			t.Fatalf("element %d = %v, final ReLU must make outputs non-negative", i, v)
		}
	}

	sd := block.StateDict()
	for _, key := range []string{"conv1.cond_features.weight", "conv2.cond_gate.weight", "conv1.conv_gate.weight", "downsample.0.weight"} {
		if _, ok := sd[key]; !ok {
			t.Errorf("missing %q", key)
		}
	}
	if _, ok := sd["conv1.conv_gate.bias"]; ok {
		t.Error("conditioned gated convolutions must not have a bias")
	}

	expectPanic(t, "missing condition", func() { block.Forward(x, nil) })
}

func TestGatedResidualBlock_Unconditioned(t *testing.T) {
	backend := cpu.New()
	block := NewGatedResidualBlock(ResidualConfig{InChannels: 3, OutChannels: 3, KernelSize: 3, Padding: 1, Residual: true},
		nil, backend)
	if block.HasDownsample() {
		t.Error("matching shapes must not create a projection")
	}
	out := block.Forward(tensor.Randn(tensor.Shape{1, 3, 6, 6}, 0, 1, nil, backend), nil)
	if !out.Shape().Equal(tensor.Shape{1, 3, 6, 6}) {
		t.Errorf("expected [1 3 6 6], got %v", out.Shape())
	}
}
