package wiring

import (
	"math"
	"strings"
	"testing"
)

// feedback builds r → ctrl → plant → (ctrl, y).
func feedback(t *testing.T) *Diagram {
	t.Helper()
	d := New([]string{"r"}, []string{"y"})
	ctrl := d.AddBox("ctrl", []string{"r", "y"}, []string{"u"})
	plant := d.AddBox("plant", []string{"u"}, []string{"y"})
	mustNil(t, d.ConnectInput(0, ctrl, 0))
	mustNil(t, d.Connect(ctrl, 0, plant, 0))
	mustNil(t, d.Connect(plant, 0, ctrl, 1))
	mustNil(t, d.ConnectOutput(plant, 0, 0))
	return d
}

func mustNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConnect_RangeChecks(t *testing.T) {
	d := New([]string{"a"}, []string{"b"})
	x := d.AddBox("x", []string{"in"}, []string{"out"})

	tests := []struct {
		name string
		err  error
	}{
		{"source port", d.Connect(x, 1, x, 0)},
		{"target port", d.Connect(x, 0, x, 3)},
		{"missing box", d.Connect(5, 0, x, 0)},
		{"outer input", d.ConnectInput(1, x, 0)},
		{"outer output", d.ConnectOutput(x, 0, 2)},
		{"input target", d.ConnectInput(0, x, -1)},
	}
	for _, tt := range tests {
		if tt.err == nil {
			t.Errorf("%s: expected range error", tt.name)
		}
	}
	if len(d.Wires())+len(d.InWires())+len(d.OutWires()) != 0 {
		t.Error("rejected wires must not be recorded")
	}
}

func TestGatherInputs_Sums(t *testing.T) {
	d := New([]string{"a", "b"}, nil)
	src := d.AddBox("src", nil, []string{"v"})
	dst := d.AddBox("dst", []string{"v", "w"}, nil)
	mustNil(t, d.Connect(src, 0, dst, 0))
	mustNil(t, d.ConnectInput(0, dst, 0))
	mustNil(t, d.ConnectInput(1, dst, 0))

	in := GatherInputs(d, [][]float64{{2}, {}}, []float64{10, 100})
	if got := in[dst][0]; got != 112 {
		t.Errorf("summed input = %v, want 112", got)
	}
	if got := in[dst][1]; got != 0 {
		t.Errorf("undriven input = %v, want 0", got)
	}
	if len(in[src]) != 0 {
		t.Errorf("src has no inputs, got %v", in[src])
	}

	counts := DrivenBy(d)
	if counts[dst][0] != 3 || counts[dst][1] != 0 {
		t.Errorf("DrivenBy = %v", counts)
	}
}

func TestGatherInputs_MissingValuesReadNaN(t *testing.T) {
	d := New([]string{"a"}, []string{"y"})
	src := d.AddBox("src", nil, []string{"v"})
	dst := d.AddBox("dst", []string{"v", "w"}, nil)
	mustNil(t, d.Connect(src, 0, dst, 0))
	mustNil(t, d.ConnectInput(0, dst, 1))
	mustNil(t, d.ConnectOutput(src, 0, 0))

	in := GatherInputs(d, [][]float64{{}, {}}, nil)
	if !math.IsNaN(in[dst][0]) || !math.IsNaN(in[dst][1]) {
		t.Errorf("inputs = %v, want NaN for short readout and short u", in[dst])
	}
	if out := GatherOutputs(d, [][]float64{{}, {}}); !math.IsNaN(out[0]) {
		t.Errorf("outputs = %v, want [NaN]", out)
	}
}

func TestGatherOutputs(t *testing.T) {
	d := feedback(t)
	out := GatherOutputs(d, [][]float64{{0.5}, {7}})
	if len(out) != 1 || out[0] != 7 {
		t.Errorf("outputs = %v, want [7]", out)
	}
}

func TestBoxIndex(t *testing.T) {
	d := feedback(t)
	if i, ok := BoxIndex(d, "plant"); !ok || i != 1 {
		t.Errorf("BoxIndex(plant) = %d, %v", i, ok)
	}
	if _, ok := BoxIndex(d, "nope"); ok {
		t.Error("unexpected match")
	}
}

func TestRenderMermaid(t *testing.T) {
	out, err := Render(feedback(t), "loop", FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"flowchart LR", `in_0(["r"])`, `box_0 -->|"u"| box_1`, `box_1 -->|"y"| out_0`, `in_0 -->|"r"| box_0`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderASCII(t *testing.T) {
	out, err := Render(feedback(t), "loop", FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"loop", "▣ ctrl", "▸ u", "plant.y ─▶ ctrl.y", "r ─▶ ctrl.r", "plant.y ─▶ y"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	// every box row has the same display width
	var widths []int
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "│") {
			widths = append(widths, len([]rune(line)))
		}
	}
	for _, w := range widths {
		if w != widths[0] {
			t.Fatalf("ragged box rows: %v", widths)
		}
	}
}

func TestRender_Errors(t *testing.T) {
	if _, err := Render(nil, "", FormatASCII); err == nil {
		t.Error("nil diagram should fail")
	}
	if _, err := Render(feedback(t), "", Format("svg")); err == nil {
		t.Error("unknown format should fail")
	}
	out, _ := Render(New(nil, nil), "", FormatASCII)
	if !strings.Contains(out, "Diagram (empty)") {
		t.Errorf("empty diagram: %q", out)
	}
}
