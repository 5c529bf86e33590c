package ordering

import (
	"fmt"
	"strings"
)

// DOT generates a Graphviz representation of the current creation order.
// Nodes are ranked by position; cyclic references are drawn dashed.
func (g *Graph) DOT() string {
	// Node colours and edge styles must come from the same version.
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := g.snapshotLocked()

	var sb strings.Builder

	sb.WriteString("digraph CreationOrder {\n")
	sb.WriteString("  rankdir=BT;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for p, e := range snap.Entries {
		color := "white"
		if len(e.CyclicAttributes) > 0 {
			color = "lightcoral"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\" [label=\"%d: %s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
			e.Type, p, e.Type, color))
	}
	sb.WriteString("\n")

	for _, e := range snap.Entries {
		idx, ok := g.nodes.lookup(e.Type)
		if !ok {
			continue
		}
		for _, grp := range g.nodes.nodes[idx].groups {
			if _, known := g.nodes.lookup(grp.target); !known {
				continue
			}
			for _, a := range grp.attrs {
				sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [label=\"%s\", %s];\n",
					e.Type, grp.target, a.Name, getDependencyStyle(a.Cyclic)))
			}
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// getDependencyStyle returns a DOT style string for a reference.
func getDependencyStyle(cyclic bool) string {
	if cyclic {
		return "style=dashed, color=red"
	}
	return "style=solid, color=black"
}
