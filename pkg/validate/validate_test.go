package validate

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ormasoftchile/contractnet/pkg/schema"
	"github.com/ormasoftchile/contractnet/pkg/system"
)

func testdataPath(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

func newCompiler(t *testing.T) *system.Compiler {
	t.Helper()
	c, err := system.NewCompiler(0)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func validate(t *testing.T, name string) []*ValidationError {
	t.Helper()
	_, errs := ValidateFile(testdataPath(name), newCompiler(t))
	return errs
}

// hasMessage reports whether an entry of the given severity contains every fragment.
func hasMessage(errs []*ValidationError, severity string, fragments ...string) bool {
	for _, e := range errs {
		if e.Severity != severity {
			continue
		}
		ok := true
		for _, f := range fragments {
			if !strings.Contains(e.Error(), f) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func TestValidateFile_Valid(t *testing.T) {
	errs := validate(t, "valid.yaml")
	if len(errs) != 0 {
		t.Fatalf("expected no findings, got: %v", errs)
	}
}

func TestValidateFile_Missing(t *testing.T) {
	sys, errs := ValidateFile(testdataPath("nope.yaml"), nil)
	if sys != nil {
		t.Error("expected nil system")
	}
	if len(errs) != 1 || errs[0].Phase != "structural" {
		t.Fatalf("expected one structural error, got: %v", errs)
	}
}

func TestValidateFile_Domain(t *testing.T) {
	tests := []struct {
		file      string
		fragments [][]string
	}{
		{
			file: "bad_wires.yaml",
			fragments: [][]string{
				{`box "a" has no input "nope"`, "wires[0].to"},
				{`box "a" has no output "u"`, "wires[1].from"},
				{`unknown box "ghost"`, "wires[2].from"},
				{"wire connects two outer ports", "wires[3]"},
			},
		},
		{
			file: "bad_box.yaml",
			fragments: [][]string{
				{`input name "u" clashes with state "u"`},
				{"range [3, 1] is empty", "boxes[0].inputs[0].range"},
				{"expected bracket notation", "boxes[0].outputs[0].range"},
				{"1 expressions for 2 states"},
				{"0 expressions for 1 outputs"},
				{"boxes[0].dynamics[0]"},
				{`duplicate box name "a"`},
				{"cannot declare ports"},
				{`unknown subsystem "missing"`},
			},
		},
		{
			file: "cycle.yaml",
			fragments: [][]string{
				{"subsystem reference cycle", "ping pong ping"},
			},
		},
		{
			file: "bad_simulation.yaml",
			fragments: [][]string{
				{"dt must be positive"},
				{"tspan end 1 must exceed start 5"},
				{"2 expressions for 1 outer inputs"},
				{`unknown state "a.y"`},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			errs := validate(t, tt.file)
			for _, e := range errs {
				if e.Severity == "error" && e.Phase != "domain" {
					t.Errorf("unexpected %s error: %v", e.Phase, e)
				}
			}
			for _, f := range tt.fragments {
				if !hasMessage(errs, "error", f...) {
					t.Errorf("missing error containing %q in: %v", f, errs)
				}
			}
		})
	}
}

func TestValidateFile_Semantic(t *testing.T) {
	errs := validate(t, "semantic.yaml")
	if !HasErrors(errs) {
		t.Fatal("expected semantic errors")
	}
	for _, e := range errs {
		if e.Phase != "semantic" {
			t.Errorf("domain rules must not run after semantic errors, got: %v", e)
		}
	}
	for _, loc := range []string{"meta/name", "boxes/0/name", "simulation/method"} {
		found := false
		for _, e := range errs {
			if e.Path == loc {
				found = true
			}
		}
		if !found {
			t.Errorf("expected semantic error at %s, got: %v", loc, errs)
		}
	}
}

func TestValidateFile_Warnings(t *testing.T) {
	errs := validate(t, "warnings.yaml")
	errors, warnings := Split(errs)
	if len(errors) != 0 {
		t.Fatalf("expected no errors, got: %v", errors)
	}
	for _, f := range [][]string{
		{`"b.v" is driven by 2 wires`, "summed"},
		{`"c.w" is not connected`},
		{`outer output "z" is not connected`, "outputs[1]"},
	} {
		if !hasMessage(warnings, "warning", f...) {
			t.Errorf("missing warning containing %q in: %v", f, warnings)
		}
	}
	if len(warnings) != 3 {
		t.Errorf("expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestValidateSystem_NilCompilerSkipsExpressions(t *testing.T) {
	sys, err := schema.LoadFile(testdataPath("valid.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	sys.Boxes[0].Dynamics = []string{"T +"}

	if errs := ValidateSystem(sys, nil); HasErrors(errs) {
		t.Errorf("expected no errors without a compiler, got: %v", errs)
	}
	errs := ValidateSystem(sys, newCompiler(t))
	if !hasMessage(errs, "error", "boxes[0].dynamics[0]") {
		t.Errorf("expected compile error, got: %v", errs)
	}
}

func TestValidateSystem_ParamClash(t *testing.T) {
	sys, err := schema.LoadFile(testdataPath("valid.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	sys.Simulation.Params["T"] = 1

	errs := ValidateSystem(sys, nil)
	if !hasMessage(errs, "error", `state name "T" clashes with param "T"`) {
		t.Errorf("expected param clash, got: %v", errs)
	}
}

func TestValidationError_Error(t *testing.T) {
	e := errorf("domain", "wires[0]", "bad %s", "wire")
	if got := e.Error(); got != "[domain] bad wire at wires[0]" {
		t.Errorf("Error() = %q", got)
	}
	e = warningf("semantic", "", "x")
	if got := e.Error(); got != "[semantic] x" {
		t.Errorf("Error() = %q", got)
	}
}
