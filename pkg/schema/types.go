// Package schema defines the contractnet/v0 system definition document.
package schema

import "strings"

// APIVersion is the only accepted document version.
const APIVersion = "contractnet/v0"

// ---------------------------------------------------------------------------
// System
// ---------------------------------------------------------------------------

// System is the top-level contractnet/v0 document: a network of boxes plus
// optional reusable subsystems and a simulation setup.
type System struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Meta       Meta   `yaml:"meta"       json:"meta"`
	Network    `yaml:",inline"`
	Systems    map[string]Network `yaml:"systems,omitempty"    json:"systems,omitempty"`
	Simulation *Simulation        `yaml:"simulation,omitempty" json:"simulation,omitempty"`
}

// Meta names and describes a system.
type Meta struct {
	Name        string `yaml:"name"                  json:"name" jsonschema:"minLength=1"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ---------------------------------------------------------------------------
// Network
// ---------------------------------------------------------------------------

// Network is one level of wiring: outer ports, boxes and wires between them.
type Network struct {
	Inputs  []Terminal `yaml:"inputs,omitempty"  json:"inputs,omitempty"`
	Outputs []Terminal `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Boxes   []Box      `yaml:"boxes"             json:"boxes" jsonschema:"minItems=1"`
	Wires   []Wire     `yaml:"wires,omitempty"   json:"wires,omitempty"`
}

// Terminal is an outer port of a network.
type Terminal struct {
	Name string `yaml:"name" json:"name" jsonschema:"pattern=^[A-Za-z_][A-Za-z0-9_]*$"`
}

// Box is either atomic (states, dynamics, readout) or a reference to a named
// subsystem.
type Box struct {
	Name        string    `yaml:"name"                  json:"name" jsonschema:"pattern=^[A-Za-z_][A-Za-z0-9_]*$"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Inputs      []PortDef `yaml:"inputs,omitempty"      json:"inputs,omitempty"`
	Outputs     []PortDef `yaml:"outputs,omitempty"     json:"outputs,omitempty"`
	States      []string  `yaml:"states,omitempty"      json:"states,omitempty"`
	Dynamics    []string  `yaml:"dynamics,omitempty"    json:"dynamics,omitempty"`
	Readout     []string  `yaml:"readout,omitempty"     json:"readout,omitempty"`
	System      string    `yaml:"system,omitempty"      json:"system,omitempty"`
}

// IsReference reports whether the box stands for a named subsystem.
func (b Box) IsReference() bool { return b.System != "" }

// PortDef is a box port with its operating range in interval notation.
// An empty range is unconstrained.
type PortDef struct {
	Name  string `yaml:"name"            json:"name" jsonschema:"pattern=^[A-Za-z_][A-Za-z0-9_]*$"`
	Range string `yaml:"range,omitempty" json:"range,omitempty"`
}

// Wire connects two endpoints written "box.port", or a bare outer port name.
type Wire struct {
	From string `yaml:"from" json:"from" jsonschema:"minLength=1"`
	To   string `yaml:"to"   json:"to"   jsonschema:"minLength=1"`
}

// SplitEndpoint splits "box.port" into its parts. A bare name is an outer
// port and yields an empty box.
func SplitEndpoint(s string) (box, port string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

// ---------------------------------------------------------------------------
// Simulation
// ---------------------------------------------------------------------------

// Simulation configures a solver run and the outer input signals.
type Simulation struct {
	TSpan   [2]float64         `yaml:"tspan"             json:"tspan"`
	DT      float64            `yaml:"dt"                json:"dt"`
	Method  string             `yaml:"method,omitempty"  json:"method,omitempty" jsonschema:"enum=euler,enum=midpoint,enum=rk4"`
	Initial map[string]float64 `yaml:"initial,omitempty" json:"initial,omitempty"`
	Inputs  []string           `yaml:"inputs,omitempty"  json:"inputs,omitempty"`
	Params  map[string]float64 `yaml:"params,omitempty"  json:"params,omitempty"`
}

// Lookup returns the named subsystem, or the top-level network for "".
func (s *System) Lookup(name string) (Network, bool) {
	if name == "" {
		return s.Network, true
	}
	n, ok := s.Systems[name]
	return n, ok
}
