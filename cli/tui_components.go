package cli

import (
	"strings"
	"time"

	"github.com/contextos/ctxos/api"
)

// panelStages are the lifecycle stages shown on the rail at the top of the
// panel.
var panelStages = []string{"Compose", "Submit", "Enhance", "Clarify", "Ready"}

func renderStageRail(theme tuiTheme, stages []string, current int) string {
	if len(stages) == 0 {
		return ""
	}

	segments := make([]string, 0, len(stages)*2-1)
	for i, stage := range stages {
		var label string
		switch {
		case i < current:
			label = theme.stageDone.Render("[" + stage + "]")
		case i == current:
			label = theme.stageCurrent.Render("[" + stage + "]")
		default:
			label = theme.stagePending.Render("[" + stage + "]")
		}
		segments = append(segments, label)
		if i < len(stages)-1 {
			connector := theme.stagePending.Render("->")
			if i < current {
				connector = theme.stageDone.Render("->")
			}
			segments = append(segments, connector)
		}
	}

	return strings.Join(segments, " ")
}

func renderErrorCard(theme tuiTheme, msg string, width int) string {
	if width < 20 {
		width = 20
	}
	body := strings.Builder{}
	body.WriteString(theme.danger.Render("Error"))
	body.WriteString("\n")
	body.WriteString(theme.text.Render(msg))
	return theme.panel.Width(width).Render(body.String())
}

func statusStyle(theme tuiTheme, status api.PromptStatus) string {
	switch status {
	case api.StatusCompleted:
		return theme.ok.Render(string(status))
	case api.StatusFailed:
		return theme.danger.Render(string(status))
	case api.StatusProcessing:
		return theme.info.Render(string(status))
	case api.StatusPending:
		return theme.warn.Render(string(status))
	default:
		return theme.muted.Render(string(status))
	}
}

func schemaTypeStyle(theme tuiTheme, t api.SchemaType) string {
	switch t {
	case api.SchemaBusiness:
		return theme.info.Render(string(t))
	case api.SchemaRole:
		return theme.ok.Render(string(t))
	case api.SchemaProject:
		return theme.warn.Render(string(t))
	default:
		return theme.muted.Render(string(t))
	}
}

func formatHistoryDate(at time.Time) string {
	if at.IsZero() {
		return "n/a"
	}
	return at.Format("Jan 2 15:04")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
