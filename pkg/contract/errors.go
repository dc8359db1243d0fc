package contract

import (
	"errors"
	"fmt"

	"github.com/ormasoftchile/contractnet/pkg/interval"
)

// Composition-time errors. Every typed error below unwraps to one of these.
var (
	// ErrContractDefinition indicates an empty or backwards interval.
	ErrContractDefinition = errors.New("contract: empty interval in contract definition")

	// ErrStructuralMismatch indicates the diagram and the contracts disagree
	// about topology.
	ErrStructuralMismatch = errors.New("contract: diagram and contracts disagree on structure")

	// ErrIncompatibleContract indicates a wire whose endpoint intervals do
	// not overlap.
	ErrIncompatibleContract = errors.New("contract: incompatible contract")
)

// Direction distinguishes input ports from output ports.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// DefinitionError reports an empty interval at construction.
type DefinitionError struct {
	Direction Direction
	Index     int
	Interval  interval.Interval
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s %d: interval %s is empty", e.Direction, e.Index, e.Interval)
}

func (e *DefinitionError) Unwrap() error { return ErrContractDefinition }

// MismatchKind classifies a StructuralError.
type MismatchKind string

const (
	MismatchBoxCount  MismatchKind = "box_count"
	MismatchDuplicate MismatchKind = "duplicate_name"
	MismatchArity     MismatchKind = "port_arity"
	MismatchPortName  MismatchKind = "port_name"
)

// StructuralError reports a disagreement between a diagram and the contracts
// supplied for it. Box is -1 when the mismatch is not about a single box.
type StructuralError struct {
	Kind    MismatchKind
	Box     int
	Name    string
	Message string
}

func (e *StructuralError) Error() string {
	if e.Box >= 0 {
		return fmt.Sprintf("%s: box %d (%q): %s", e.Kind, e.Box, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StructuralError) Unwrap() error { return ErrStructuralMismatch }

// WireRef identifies an internal wire by its endpoint boxes and port name.
type WireRef struct {
	SourceBox  int
	SourceName string
	TargetBox  int
	TargetName string
	Port       string
}

func (w WireRef) String() string {
	return fmt.Sprintf("%s (box %d) → %s (box %d) on port %q", w.SourceName, w.SourceBox, w.TargetName, w.TargetBox, w.Port)
}

// IncompatibilityError reports a wire whose source output interval and
// target input interval are disjoint.
type IncompatibilityError struct {
	Wire   WireRef
	Source interval.Interval
	Target interval.Interval
}

func (e *IncompatibilityError) Error() string {
	return fmt.Sprintf("incompatible contract on wire %s: source emits %s, target accepts %s", e.Wire, e.Source, e.Target)
}

func (e *IncompatibilityError) Unwrap() error { return ErrIncompatibleContract }

// UndefinedWarning reports a wire whose source interval is not contained in
// the target interval: the source may emit values the target does not
// accept. Composition proceeds.
type UndefinedWarning struct {
	Wire    WireRef
	Source  interval.Interval
	Target  interval.Interval
	Overlap interval.Interval
}

func (w UndefinedWarning) String() string {
	return fmt.Sprintf("undefined behavior on wire %s: source emits %s, target accepts %s (overlap %s)", w.Wire, w.Source, w.Target, w.Overlap)
}
