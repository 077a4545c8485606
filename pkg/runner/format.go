package runner

import (
	"fmt"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
)

// FormatDecision renders a decision as markdown, the way a caller would hear it.
func FormatDecision(d domain.Decision) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\n\n")
	}

	switch d.Kind {
	case domain.DecisionCollecting:
		line("`%s`", d.Buffer)
		return strings.TrimSpace(b.String())
	case domain.DecisionInvalidInput:
		line("**%s**", d.Message)
		if d.Intent != "" {
			line("_Heard: %s_", d.Intent)
		}
		line("Valid options: %s", strings.Join(d.ValidTokens, ", "))
	default:
		if d.Message != "" {
			line("**%s**", d.Message)
		}
	}

	if d.Record != nil {
		line("%s", d.Record.Summary())
	}

	switch d.Kind {
	case domain.DecisionCallEnded:
		line("_Call ended._")
	case domain.DecisionTransferred:
		line("_Transferring to an agent._")
	case domain.DecisionRecordFound:
		line("_Call ended._")
	default:
		if d.Prompt != "" {
			line("> %s", d.Prompt)
		}
	}
	return strings.TrimSpace(b.String())
}
