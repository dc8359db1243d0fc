package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/contractnet/pkg/system"
	"github.com/ormasoftchile/contractnet/pkg/wiring"
)

var (
	diagramFormat  string
	diagramNetwork string
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [system.yaml]",
	Short: "Render the wiring diagram of a system network",
	Long: `Render one network of a system as a Mermaid flowchart or an ASCII sketch.

--network selects a nested network by its box path (for example ctrl or
ctrl.pid); the default is the top level.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	sys, c, err := loadValid(cmd, args[0])
	if err != nil {
		return err
	}
	built, err := system.Build(sys, c)
	if err != nil {
		return err
	}
	d, ok := built.Diagrams[diagramNetwork]
	if !ok {
		paths := slices.Sorted(maps.Keys(built.Diagrams))
		return fmt.Errorf("no network %q (have: %s)", diagramNetwork, strings.Join(quoted(paths), ", "))
	}
	name := built.Name
	if diagramNetwork != "" {
		name = diagramNetwork
	}
	out, err := wiring.Render(d, name, wiring.Format(diagramFormat))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

func quoted(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

func init() {
	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid", "Diagram format: mermaid or ascii")
	diagramCmd.Flags().StringVar(&diagramNetwork, "network", "", "Box path of the network to render (default: top level)")
}
