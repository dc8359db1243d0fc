package machine

import "slices"

// PortVerdicts is the pass/fail result of evaluating a machine's contract at
// one instant. It is either Atomic or Composite.
type PortVerdicts interface {
	isPortVerdicts()
}

// Atomic holds one verdict per port of a single component. Verdicts align
// positionally with the component's contract; true means the value lies in
// its interval.
type Atomic struct {
	InputNames  []string
	OutputNames []string
	Inputs      []bool
	Outputs     []bool
}

// Entry is one named member of a Composite.
type Entry struct {
	Name     string
	Verdicts PortVerdicts
}

// Composite holds the verdicts of every box of a composed machine, in box
// order. An entry is itself Composite when the box is a composed machine.
type Composite struct {
	Entries []Entry
}

func (Atomic) isPortVerdicts() {}
func (Composite) isPortVerdicts() {}

// Passed reports whether every port passed.
func (a Atomic) Passed() bool {
	return !slices.Contains(a.Inputs, false) && !slices.Contains(a.Outputs, false)
}

// Leaf is an Atomic verdict addressed by its fully qualified box path.
type Leaf struct {
	Path string
	Atomic
}

// PathSeparator joins box names in a qualified path.
const PathSeparator = "."

// Flatten lists every atomic verdict under its qualified path, depth first in
// box order. An Atomic input yields one leaf with an empty path.
func Flatten(v PortVerdicts) []Leaf {
	var out []Leaf
	flatten(v, "", &out)
	return out
}

func flatten(v PortVerdicts, prefix string, out *[]Leaf) {
	switch v := v.(type) {
	case Atomic:
		*out = append(*out, Leaf{Path: prefix, Atomic: v})
	case Composite:
		for _, e := range v.Entries {
			path := e.Name
			if prefix != "" {
				path = prefix + PathSeparator + e.Name
			}
			flatten(e.Verdicts, path, out)
		}
	}
}

// Passed reports whether every port of every leaf passed.
func Passed(v PortVerdicts) bool {
	for _, l := range Flatten(v) {
		if !l.Passed() {
			return false
		}
	}
	return true
}
