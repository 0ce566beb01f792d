// Package graph draws the conversation state machine.
package graph

import (
	"fmt"
	"strings"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// Overlay marks a session's position on the diagram.
type Overlay struct {
	Visited []domain.State
	Current domain.State
}

// GenerateMermaid produces a Mermaid flowchart of the given edges.
// It applies semantic styling:
// - Start: ((Circle))
// - Waiting for user input: [/Parallelogram/]
// - Default: [Rectangle]
// The reset command is drawn once, as a dotted edge from a virtual node.
func GenerateMermaid(edges []domain.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, s := range domain.AllStates() {
		id := sanitizeMermaidID(string(s))
		opener, closer := "[", "]"
		switch {
		case s == domain.StateStart:
			opener, closer = "((", "))"
		case strings.HasPrefix(string(s), "WAITING_"):
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, s, closer)
	}

	for _, e := range edges {
		label := strings.ReplaceAll(e.On, "\"", "'")
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", sanitizeMermaidID(string(e.From)), label, sanitizeMermaidID(string(e.To)))
	}
	fmt.Fprintf(&sb, "    reset{{\"/start\"}} -.-> %s\n", sanitizeMermaidID(string(domain.StateMenu)))

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, s := range overlay.Visited {
			id := sanitizeMermaidID(string(s))
			if !seen[id] && s.Valid() {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		if overlay.Current.Valid() {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(string(overlay.Current)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.ToLower(strings.NewReplacer(".", "_", "-", "_", "/", "_", " ", "_").Replace(id))
}
