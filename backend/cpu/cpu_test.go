// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu_test

import (
	"testing"

	"github.com/born-ml/denoise/backend/cpu"
	"github.com/born-ml/denoise/tensor"
)

// TestWorkersDoNotChangeResults runs the same convolution sequentially and in
// parallel.
func TestWorkersDoNotChangeResults(t *testing.T) {
	seq := cpu.NewWithWorkers(1)
	par := cpu.NewWithWorkers(4)

	xs := tensor.Randn(tensor.Shape{2, 3, 6, 6}, 0, 1, nil, seq)
	ws := tensor.Randn(tensor.Shape{5, 3, 3, 3}, 0, 1, nil, seq)
	xp := tensor.MustFromSlice(xs.Data(), xs.Shape(), par)
	wp := tensor.MustFromSlice(ws.Data(), ws.Shape(), par)

	opts := tensor.ConvOptions{Padding: 1}
	a := xs.Conv2D(ws, opts)
	b := xp.Conv2D(wp, opts)
	if !a.Shape().Equal(tensor.Shape{2, 5, 6, 6}) {
		t.Fatalf("shape = %v", a.Shape())
	}
	for i := range a.Data() {
		if a.Data()[i] != b.Data()[i] {
			t.Fatalf("element %d: sequential %v, parallel %v", i, a.Data()[i], b.Data()[i])
		}
	}
	if seq.Name() != "CPU" {
		t.Errorf("Name() = %q", seq.Name())
	}
}
