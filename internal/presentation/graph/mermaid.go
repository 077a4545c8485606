package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
)

// GraphOverlay contains dynamic call state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFor builds an overlay from a session's path and current menu.
func OverlayFor(s *domain.Session) *GraphOverlay {
	if s == nil {
		return nil
	}
	return &GraphOverlay{
		VisitedNodes: append([]string(nil), s.Path...),
		CurrentNode:  s.CurrentMenu,
	}
}

// sinks are the pseudo-nodes terminating options point at.
var sinks = map[domain.ActionKind]struct{ id, shape string }{
	domain.ActionEndCall:       {"__end", `((("end call")))`},
	domain.ActionTransferAgent: {"__agent", `[["agent"]]`},
	domain.ActionLookupRecord:  {"__lookup", `{{"lookup"}}`},
}

// GenerateMermaid produces a Mermaid flowchart of the menu graph.
// It applies semantic styling:
// - Root menu: ((Circle))
// - Collecting menu: [/Parallelogram/]
// - Default: [Rectangle]
// Options sharing a target are merged into one labelled edge.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(nodes []domain.MenuNode, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	used := make(map[domain.ActionKind]bool)
	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == domain.RootMenu:
			opener, closer = "((", "))"
		case node.Collects():
			opener, closer = "[/", "/]"
		}

		label := node.ID
		if node.Collects() {
			label = fmt.Sprintf("%s <br/> %d digits", node.ID, node.Collect.Length)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		for _, e := range edgesOf(node) {
			to := sanitizeMermaidID(e.target)
			if e.sink != "" {
				used[e.sink] = true
				to = sinks[e.sink].id
			}
			tokens := strings.ReplaceAll(strings.Join(e.tokens, ","), "\"", "'")
			sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, tokens, to))
		}
	}

	for _, kind := range []domain.ActionKind{domain.ActionEndCall, domain.ActionTransferAgent, domain.ActionLookupRecord} {
		if used[kind] {
			sb.WriteString(fmt.Sprintf("    %s%s\n", sinks[kind].id, sinks[kind].shape))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

type edge struct {
	target string
	sink   domain.ActionKind
	tokens []string
}

// edgesOf groups a node's options by destination, in token order.
func edgesOf(node domain.MenuNode) []edge {
	var out []edge
	index := make(map[string]int)
	for _, token := range node.ValidTokens() {
		opt := node.Options[token]
		key := "menu:" + opt.Target
		var e edge
		if opt.Action == domain.ActionGotoMenu {
			e.target = opt.Target
		} else {
			key = "sink:" + string(opt.Action)
			e.sink = opt.Action
		}
		if i, ok := index[key]; ok {
			out[i].tokens = append(out[i].tokens, token)
			continue
		}
		e.tokens = []string{token}
		index[key] = len(out)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].tokens[0] < out[j].tokens[0] })
	return out
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
