package wiring

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Render produces a diagram of g in the requested format.
func Render(g Graph, name string, format Format) (string, error) {
	if g == nil {
		return "", fmt.Errorf("nil diagram")
	}
	switch format {
	case FormatMermaid:
		return renderMermaid(g), nil
	case FormatASCII:
		return renderASCII(g, name), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// SourceLabel names the origin of a wire as "box.port".
func SourceLabel(g Graph, p Port) string {
	b := g.Boxes()[p.Box]
	return b.Name + "." + b.Outputs[p.Port]
}

// TargetLabel names the destination of a wire as "box.port".
func TargetLabel(g Graph, p Port) string {
	b := g.Boxes()[p.Box]
	return b.Name + "." + b.Inputs[p.Port]
}

// --- Mermaid flowchart ---

func renderMermaid(g Graph) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	for i, name := range g.Inputs() {
		b.WriteString(fmt.Sprintf("    in_%d([%q])\n", i, name))
	}
	for i, box := range g.Boxes() {
		b.WriteString(fmt.Sprintf("    box_%d[%q]\n", i, boxCaption(box)))
	}
	for i, name := range g.Outputs() {
		b.WriteString(fmt.Sprintf("    out_%d([%q])\n", i, name))
	}

	for _, w := range g.InWires() {
		b.WriteString(fmt.Sprintf("    in_%d -->|%q| box_%d\n",
			w.Input, g.Boxes()[w.Target.Box].Inputs[w.Target.Port], w.Target.Box))
	}
	for _, w := range g.Wires() {
		b.WriteString(fmt.Sprintf("    box_%d -->|%q| box_%d\n",
			w.Source.Box, g.Boxes()[w.Source.Box].Outputs[w.Source.Port], w.Target.Box))
	}
	for _, w := range g.OutWires() {
		b.WriteString(fmt.Sprintf("    box_%d -->|%q| out_%d\n",
			w.Source.Box, g.Boxes()[w.Source.Box].Outputs[w.Source.Port], w.Output))
	}

	for i := range g.Inputs() {
		b.WriteString(fmt.Sprintf("    style in_%d fill:#1a3a4a,stroke:#0af\n", i))
	}
	for i := range g.Outputs() {
		b.WriteString(fmt.Sprintf("    style out_%d fill:#0d6,stroke:#0a5,color:#fff\n", i))
	}
	return b.String()
}

func boxCaption(box Box) string {
	return fmt.Sprintf("%s (%s → %s)", box.Name, strings.Join(box.Inputs, ", "), strings.Join(box.Outputs, ", "))
}

// --- ASCII ---

func renderASCII(g Graph, name string) string {
	var b strings.Builder
	if name == "" {
		name = "Diagram"
	}

	boxes := g.Boxes()
	if len(boxes) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Uniform box width so every box and connector aligns.
	const indent = 4
	width := uniformBoxWidth(boxes, name)
	pad := strings.Repeat(" ", indent)

	b.WriteString(pad + "╔" + strings.Repeat("═", width) + "╗\n")
	b.WriteString(pad + "║" + centerPad(name, width) + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", width) + "╝\n")
	if len(g.Inputs()) > 0 {
		b.WriteString(pad + " in:  " + strings.Join(g.Inputs(), ", ") + "\n")
	}
	if len(g.Outputs()) > 0 {
		b.WriteString(pad + " out: " + strings.Join(g.Outputs(), ", ") + "\n")
	}

	for _, box := range boxes {
		b.WriteString(pad + "┌" + strings.Repeat("─", width) + "┐\n")
		for _, line := range boxLines(box) {
			b.WriteString(pad + "│" + line + strings.Repeat(" ", width-runewidth.StringWidth(line)) + "│\n")
		}
		b.WriteString(pad + "└" + strings.Repeat("─", width) + "┘\n")
	}

	var wires []string
	for _, w := range g.InWires() {
		wires = append(wires, g.Inputs()[w.Input]+" ─▶ "+TargetLabel(g, w.Target))
	}
	for _, w := range g.Wires() {
		wires = append(wires, SourceLabel(g, w.Source)+" ─▶ "+TargetLabel(g, w.Target))
	}
	for _, w := range g.OutWires() {
		wires = append(wires, SourceLabel(g, w.Source)+" ─▶ "+g.Outputs()[w.Output])
	}
	if len(wires) > 0 {
		b.WriteString(pad + " wires:\n")
		for _, w := range wires {
			b.WriteString(pad + "   " + w + "\n")
		}
	}
	return b.String()
}

func boxLines(box Box) []string {
	lines := []string{" ▣ " + box.Name + " "}
	for _, p := range box.Inputs {
		lines = append(lines, "   ▸ "+p+" ")
	}
	for _, p := range box.Outputs {
		lines = append(lines, "   ◂ "+p+" ")
	}
	return lines
}

// uniformBoxWidth returns the widest interior width needed across all boxes
// and the header name.
func uniformBoxWidth(boxes []Box, name string) int {
	w := 22
	if nw := runewidth.StringWidth(name) + 4; nw > w {
		w = nw
	}
	for _, box := range boxes {
		for _, line := range boxLines(box) {
			if lw := runewidth.StringWidth(line); lw > w {
				w = lw
			}
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}
