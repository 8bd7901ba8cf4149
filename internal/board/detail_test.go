package board

import (
	"strings"
	"testing"

	"hemo-board/internal/model"
)

func TestCardMarkdown(t *testing.T) {
	md := CardMarkdown(model.Card{Name: "Ruiz_*", Room: "3B", Dx: "IAM inferior", Proc: model.ProcICP, Day: "2025-03-03", Row: model.RowSala2, Done: true})
	for _, want := range []string{"# Ruiz\\_\\*", "**Finalizado**", "- **Sala/Turno:** Sala 2", "## Diagnóstico", "IAM inferior"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(CardMarkdown(model.Card{Proc: model.ProcFOP}), "Diagnóstico") {
		t.Fatalf("empty diagnosis should be omitted")
	}
}
