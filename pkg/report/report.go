// Package report renders contract verdicts and failure reports as terminal
// tables, Markdown or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ormasoftchile/contractnet/pkg/contract"
	"github.com/ormasoftchile/contractnet/pkg/machine"
	"github.com/ormasoftchile/contractnet/pkg/monitor"
)

// Format selects the output encoding.
type Format string

const (
	Table    Format = "table"
	Markdown Format = "markdown"
	JSON     Format = "json"
)

// ParseFormat accepts table, markdown or json; empty means Table.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", Table:
		return Table, nil
	case Markdown, JSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q (want table, markdown or json)", s)
}

// Options configure a Renderer.
type Options struct {
	Format Format
	Title  string // heading for table and markdown output
	Width  int    // word wrap for styled markdown; 0 disables wrapping
	Raw    bool   // emit markdown source instead of styling it
}

// Renderer writes verdicts and failure reports in one format.
type Renderer struct {
	opts Options
}

// New returns a Renderer. An empty format means Table.
func New(opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = Table
	}
	return &Renderer{opts: opts}
}

// row is one port line shared by all shapes.
type row struct {
	path   string
	dir    contract.Direction
	port   string
	result string
	ok     bool
}

// Verdicts renders pass/fail verdicts sampled at time t. Atomic verdicts
// get a port table; composite verdicts add a box column.
func (r *Renderer) Verdicts(w io.Writer, v machine.PortVerdicts, t float64) error {
	leaves := machine.Flatten(v)
	_, composite := v.(machine.Composite)

	var rows []row
	failing := 0
	for _, l := range leaves {
		add := func(dir contract.Direction, names []string, pass []bool) {
			for i, ok := range pass {
				res := GlyphPassed + " pass"
				if !ok {
					res = GlyphFailed + " fail"
					failing++
				}
				rows = append(rows, row{path: l.Path, dir: dir, port: portName(names, i), result: res, ok: ok})
			}
		}
		add(contract.Input, l.InputNames, l.Inputs)
		add(contract.Output, l.OutputNames, l.Outputs)
	}

	summary := fmt.Sprintf("%s all ports pass at t = %g", GlyphPassed, t)
	if failing > 0 {
		summary = fmt.Sprintf("%s %d %s failing at t = %g", GlyphFailed, failing, plural(failing, "port", "ports"), t)
	}

	switch r.opts.Format {
	case JSON:
		return writeJSON(w, verdictsJSON(leaves, t))
	case Markdown:
		return r.markdown(w, r.title("Contract verdicts"), summary, composite, "Verdict", rows)
	default:
		return r.table(w, r.title("Contract verdicts"), summary, failing == 0, composite, "Verdict", rows)
	}
}

// Failures renders the failing ranges of every port in rep.
func (r *Renderer) Failures(w io.Writer, rep *monitor.FailureReport) error {
	if r.opts.Format == JSON {
		return writeJSON(w, rep)
	}

	var rows []row
	for _, b := range rep.Boxes {
		add := func(dir contract.Direction, ports []monitor.PortFailures) {
			for _, p := range ports {
				res := GlyphPassed + " none"
				if len(p.Ranges) > 0 {
					parts := make([]string, len(p.Ranges))
					for i, rg := range p.Ranges {
						parts[i] = rg.Format(rep.Units)
					}
					res = GlyphFailed + " " + strings.Join(parts, ", ")
				}
				rows = append(rows, row{path: b.Path, dir: dir, port: p.Name, result: res, ok: len(p.Ranges) == 0})
			}
		}
		add(contract.Input, b.Inputs)
		add(contract.Output, b.Outputs)
	}

	n := rep.Count()
	summary := fmt.Sprintf("%s no violations across %d samples", GlyphPassed, rep.Samples)
	if n > 0 {
		summary = fmt.Sprintf("%s %d %s across %d samples (%s)", GlyphFailed, n, plural(n, "violation", "violations"), rep.Samples, rep.Units)
	}
	composite := len(rep.Boxes) > 1 || (len(rep.Boxes) == 1 && rep.Boxes[0].Path != "")

	if r.opts.Format == Markdown {
		return r.markdown(w, r.title("Contract failures"), summary, composite, "Failures", rows)
	}
	return r.table(w, r.title("Contract failures"), summary, n == 0, composite, "Failures", rows)
}

// Warnings lists composition warnings, one per line.
func (r *Renderer) Warnings(w io.Writer, warnings []string) error {
	if len(warnings) == 0 {
		return nil
	}
	if r.opts.Format == JSON {
		return writeJSON(w, map[string][]string{"warnings": warnings})
	}
	var b strings.Builder
	for _, msg := range warnings {
		line := GlyphWarning + "  " + msg
		if r.opts.Format == Table {
			line = warnStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) title(def string) string {
	if r.opts.Title != "" {
		return r.opts.Title
	}
	return def
}

func (r *Renderer) table(w io.Writer, title, summary string, ok, withPath bool, resultHeader string, rows []row) error {
	headers, cells := layout(withPath, resultHeader, rows)
	result := len(headers) - 1

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(i, col int) lipgloss.Style {
			switch {
			case i == table.HeaderRow:
				return headerStyle
			case col != result:
				return cellStyle
			case rows[i].ok:
				return passStyle
			default:
				return failStyle
			}
		})

	status := summaryPass
	if !ok {
		status = summaryFail
	}
	out := titleStyle.Render(title) + "\n" + t.String() + "\n" + status.Render(summary) + "\n"
	_, err := io.WriteString(w, out)
	return err
}

func (r *Renderer) markdown(w io.Writer, title, summary string, withPath bool, resultHeader string, rows []row) error {
	headers, cells := layout(withPath, resultHeader, rows)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%s\n\n", summary)
	if len(cells) > 0 {
		markdownTable(&b, headers, cells)
	}

	md := b.String()
	if !r.opts.Raw {
		md = renderMarkdown(md, r.opts.Width)
	}
	_, err := io.WriteString(w, md)
	return err
}

func layout(withPath bool, resultHeader string, rows []row) ([]string, [][]string) {
	headers := []string{"Direction", "Port", resultHeader}
	if withPath {
		headers = append([]string{"Box"}, headers...)
	}
	cells := make([][]string, len(rows))
	for i, rw := range rows {
		c := []string{string(rw.dir), rw.port, rw.result}
		if withPath {
			c = append([]string{rw.path}, c...)
		}
		cells[i] = c
	}
	return headers, cells
}

type portVerdict struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

type leafVerdicts struct {
	Path    string        `json:"path"`
	Inputs  []portVerdict `json:"inputs"`
	Outputs []portVerdict `json:"outputs"`
}

type verdictsDoc struct {
	Time   float64        `json:"t"`
	Passed bool           `json:"passed"`
	Boxes  []leafVerdicts `json:"boxes"`
}

func verdictsJSON(leaves []machine.Leaf, t float64) verdictsDoc {
	doc := verdictsDoc{Time: t, Passed: true, Boxes: []leafVerdicts{}}
	ports := func(names []string, pass []bool) []portVerdict {
		out := make([]portVerdict, len(pass))
		for i, ok := range pass {
			out[i] = portVerdict{Name: portName(names, i), Passed: ok}
		}
		return out
	}
	for _, l := range leaves {
		doc.Boxes = append(doc.Boxes, leafVerdicts{
			Path:    l.Path,
			Inputs:  ports(l.InputNames, l.Inputs),
			Outputs: ports(l.OutputNames, l.Outputs),
		})
		doc.Passed = doc.Passed && l.Passed()
	}
	return doc
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func portName(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("#%d", i)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
