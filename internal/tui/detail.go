package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/evanschultz/quadro/internal/domain"
)

// markdownRenderer renders markdown for terminal views and recreates the renderer when wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown input into ANSI-styled terminal text with the requested wrap width.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// taskMarkdown builds the detail document for one task.
func taskMarkdown(task domain.Task, assignee string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", task.Title)
	rows := [][2]string{
		{"Status", string(task.Status)},
		{"Priority", string(task.Priority)},
		{"Origin", string(task.OriginModule)},
		{"Due", formatDue(task.DueDate)},
		{"Assignee", assignee},
		{"Company", task.EmpresaID},
		{"Process", task.ProcessoID},
		{"Report", task.DenunciaID},
		{"Debt", task.DividaID},
	}
	b.WriteString("| Field | Value |\n|---|---|\n")
	for _, row := range rows {
		if strings.TrimSpace(row[1]) == "" {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], row[1])
	}
	if desc := strings.TrimSpace(task.Description); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}
	if len(task.Anexos) > 0 {
		b.WriteString("\n## Attachments\n\n")
		for _, a := range task.Anexos {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	fmt.Fprintf(&b, "\n`%s` · v%d · updated %s\n", task.ID, task.Version, task.UpdatedAt.Format("2006-01-02 15:04"))
	return b.String()
}
