// Package validate implements the contractnet/v0 3-phase validation
// pipeline: structural → semantic → domain.
package validate

import (
	"fmt"

	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/system"
)

// ValidationError represents one error or warning from the validation pipeline.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s at %s", e.Phase, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
}

func errorf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: "error",
	}
}

func warningf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: "warning",
	}
}

// ValidateFile runs the full 3-phase pipeline on a system file.
func ValidateFile(path string, c *system.Compiler) (*schema.System, []*ValidationError) {
	sys, err := schema.LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{errorf("structural", "", "failed to load: %s", err)}
	}
	return sys, ValidateSystem(sys, c)
}

// ValidateSystem runs phases 2 and 3 on an already-loaded system. Domain
// rules run only when the semantic phase found no errors.
func ValidateSystem(sys *schema.System, c *system.Compiler) []*ValidationError {
	errs := validateSemantic(sys)
	if HasErrors(errs) {
		return errs
	}
	return append(errs, validateDomain(sys, c)...)
}

// HasErrors reports whether any entry has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// Split separates errors from warnings, preserving order.
func Split(all []*ValidationError) (errs, warnings []*ValidationError) {
	for _, e := range all {
		if e.Severity == "warning" {
			warnings = append(warnings, e)
		} else {
			errs = append(errs, e)
		}
	}
	return errs, warnings
}
