// Package wiring models directed wiring diagrams: boxes with named, ordered
// input and output ports, box-to-box wires, and wires to and from the
// diagram boundary. Contract composition and dynamics composition read a
// diagram through the Graph interface only.
package wiring

import (
	"fmt"
	"math"
)

// Box is a component instance in a diagram.
type Box struct {
	Name    string
	Inputs  []string
	Outputs []string
}

// Port addresses a port of a box by box index and port index.
type Port struct {
	Box  int
	Port int
}

// Wire connects an output port of one box to an input port of another.
type Wire struct {
	Source Port
	Target Port
}

// InWire connects a diagram-level input to a box input port.
type InWire struct {
	Input  int
	Target Port
}

// OutWire connects a box output port to a diagram-level output.
type OutWire struct {
	Source Port
	Output int
}

// Graph is the read API over a wiring diagram. Port indices referenced by
// wires are within range of the declared arities.
type Graph interface {
	Inputs() []string
	Outputs() []string
	Boxes() []Box
	Wires() []Wire
	InWires() []InWire
	OutWires() []OutWire
}

// Diagram is the in-memory Graph implementation. Build it with New, AddBox
// and the Connect methods; treat it as read-only once handed to a composer.
type Diagram struct {
	inputs   []string
	outputs  []string
	boxes    []Box
	wires    []Wire
	inWires  []InWire
	outWires []OutWire
}

// New returns an empty diagram with the given outer ports.
func New(inputs, outputs []string) *Diagram {
	return &Diagram{inputs: inputs, outputs: outputs}
}

func (d *Diagram) Inputs() []string { return d.inputs }
func (d *Diagram) Outputs() []string { return d.outputs }
func (d *Diagram) Boxes() []Box { return d.boxes }
func (d *Diagram) Wires() []Wire { return d.wires }
func (d *Diagram) InWires() []InWire { return d.inWires }
func (d *Diagram) OutWires() []OutWire { return d.outWires }

// AddBox appends a box and returns its index.
func (d *Diagram) AddBox(name string, inputs, outputs []string) int {
	d.boxes = append(d.boxes, Box{Name: name, Inputs: inputs, Outputs: outputs})
	return len(d.boxes) - 1
}

// Connect adds a wire from output port srcPort of box src to input port
// tgtPort of box tgt.
func (d *Diagram) Connect(src, srcPort, tgt, tgtPort int) error {
	if err := d.checkPort(src, srcPort, false); err != nil {
		return fmt.Errorf("wire source: %w", err)
	}
	if err := d.checkPort(tgt, tgtPort, true); err != nil {
		return fmt.Errorf("wire target: %w", err)
	}
	d.wires = append(d.wires, Wire{Source: Port{src, srcPort}, Target: Port{tgt, tgtPort}})
	return nil
}

// ConnectInput wires outer input `input` to input port `port` of box `box`.
func (d *Diagram) ConnectInput(input, box, port int) error {
	if input < 0 || input >= len(d.inputs) {
		return fmt.Errorf("outer input %d out of range (%d inputs)", input, len(d.inputs))
	}
	if err := d.checkPort(box, port, true); err != nil {
		return fmt.Errorf("input wire target: %w", err)
	}
	d.inWires = append(d.inWires, InWire{Input: input, Target: Port{box, port}})
	return nil
}

// ConnectOutput wires output port `port` of box `box` to outer output `output`.
func (d *Diagram) ConnectOutput(box, port, output int) error {
	if output < 0 || output >= len(d.outputs) {
		return fmt.Errorf("outer output %d out of range (%d outputs)", output, len(d.outputs))
	}
	if err := d.checkPort(box, port, false); err != nil {
		return fmt.Errorf("output wire source: %w", err)
	}
	d.outWires = append(d.outWires, OutWire{Source: Port{box, port}, Output: output})
	return nil
}

func (d *Diagram) checkPort(box, port int, input bool) error {
	if box < 0 || box >= len(d.boxes) {
		return fmt.Errorf("box %d out of range (%d boxes)", box, len(d.boxes))
	}
	b := d.boxes[box]
	n, kind := len(b.Outputs), "output"
	if input {
		n, kind = len(b.Inputs), "input"
	}
	if port < 0 || port >= n {
		return fmt.Errorf("box %q has no %s port %d (%d ports)", b.Name, kind, port, n)
	}
	return nil
}

// BoxIndex returns the index of the first box with the given name.
func BoxIndex(g Graph, name string) (int, bool) {
	for i, b := range g.Boxes() {
		if b.Name == name {
			return i, true
		}
	}
	return -1, false
}

// GatherInputs reconstructs every box's input vector from the boxes'
// readouts and the outer input u. Each port receives the sum of all wires
// terminating there; an undriven port reads 0. A wire whose source value is
// missing contributes NaN.
func GatherInputs(g Graph, readouts [][]float64, u []float64) [][]float64 {
	boxes := g.Boxes()
	in := make([][]float64, len(boxes))
	for i, b := range boxes {
		in[i] = make([]float64, len(b.Inputs))
	}
	for _, w := range g.Wires() {
		in[w.Target.Box][w.Target.Port] += at(readouts, w.Source)
	}
	for _, w := range g.InWires() {
		v := math.NaN()
		if w.Input < len(u) {
			v = u[w.Input]
		}
		in[w.Target.Box][w.Target.Port] += v
	}
	return in
}

// GatherOutputs sums the readouts feeding each outer output.
func GatherOutputs(g Graph, readouts [][]float64) []float64 {
	out := make([]float64, len(g.Outputs()))
	for _, w := range g.OutWires() {
		out[w.Output] += at(readouts, w.Source)
	}
	return out
}

func at(readouts [][]float64, p Port) float64 {
	if p.Box >= len(readouts) || p.Port >= len(readouts[p.Box]) {
		return math.NaN()
	}
	return readouts[p.Box][p.Port]
}

// DrivenBy counts the wires terminating at each box input port, keyed by
// box index then port index.
func DrivenBy(g Graph) [][]int {
	boxes := g.Boxes()
	counts := make([][]int, len(boxes))
	for i, b := range boxes {
		counts[i] = make([]int, len(b.Inputs))
	}
	for _, w := range g.Wires() {
		counts[w.Target.Box][w.Target.Port]++
	}
	for _, w := range g.InWires() {
		counts[w.Target.Box][w.Target.Port]++
	}
	return counts
}
