package board

import (
	"fmt"
	"strings"

	"hemo-board/internal/model"
)

// CardMarkdown renders one card as a short markdown document for detail views.
func CardMarkdown(c model.Card) string {
	var b strings.Builder
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "(sin nombre)"
	}
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(name))
	if c.Done {
		b.WriteString("**Finalizado** ✓\n\n")
	}
	fmt.Fprintf(&b, "- **Día:** %s\n", c.Day)
	fmt.Fprintf(&b, "- **Sala/Turno:** %s\n", c.Row)
	if c.Room != "" {
		fmt.Fprintf(&b, "- **Habitación:** %s\n", escapeMarkdown(c.Room))
	}
	fmt.Fprintf(&b, "- **Procedimiento:** %s\n", c.Proc)
	if dx := strings.TrimSpace(c.Dx); dx != "" {
		fmt.Fprintf(&b, "\n## Diagnóstico\n\n%s\n", dx)
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "[", `\[`, "]", `\]`)

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
