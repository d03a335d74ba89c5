package plan

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ExportGraphviz writes the DAG as a Graphviz DOT file. Nodes are labeled
// id:source_type and edges point in dependency direction. Diagnostic
// output only; no consumer depends on the exact layout.
func (d *OperationDAG) ExportGraphviz(path string) error {
	var b strings.Builder
	b.WriteString("digraph queryplan {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")

	for _, id := range d.nodes {
		op, _ := d.plan.Operation(id)
		b.WriteString(fmt.Sprintf("  %q [label=%q];\n", id,
			fmt.Sprintf("%s:%s", id, op.SourceType)))
	}
	for _, id := range d.nodes {
		for _, dependent := range d.Dependents(id) {
			b.WriteString(fmt.Sprintf("  %q -> %q;\n", id, dependent))
		}
	}
	b.WriteString("}\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write DOT file: %w", err)
	}
	return nil
}

// Visualize renders the DAG to an image via the local graphviz `dot`
// binary. When graphviz is not installed only the DOT file is produced.
func (d *OperationDAG) Visualize(imagePath string) error {
	dotPath := imagePath + ".dot"
	if err := d.ExportGraphviz(dotPath); err != nil {
		return err
	}

	if _, err := exec.LookPath("dot"); err != nil {
		return nil
	}

	cmd := exec.Command("dot", "-Tpng", "-o", imagePath, dotPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("dot rendering failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
