package board

import (
	"bytes"
	"strings"
	"testing"

	"hemo-board/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	cards := []model.Card{
		{ID: "2", Name: "Pérez, J", Room: "12", Dx: "EAo \"severa\"", Proc: model.ProcTAVI, Day: "2025-03-03", Row: model.RowSala1, Ord: 20, Done: true},
		{ID: "1", Name: "García", Room: "204", Dx: "angina", Proc: model.ProcICP, Day: "2025-03-03", Row: model.RowSala1, Ord: 10},
		{ID: "3", Name: "López", Proc: model.ProcOtros, Day: "2025-03-05", Row: model.RowTarde, Ord: -3},
		{ID: "4", Name: "next week", Proc: model.ProcOtros, Day: "2025-03-10", Row: model.RowTarde},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, cards, week))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"))
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(out, "\ufeff"), "\n"), "\n")
	assert.Equal(t, []string{
		"Día,Sala/Turno,Orden,Nombre/ID,Habitación,Diagnóstico,Procedimiento,Finalizado",
		"2025-03-03,Sala 1,1,García,204,angina,ICP,No",
		`2025-03-03,Sala 1,2,"Pérez, J",12,"EAo ""severa""",TAVI,Sí`,
		"2025-03-05,Tarde,1,López,,,Otros,No",
	}, lines)
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "pizarra_2025-03-03_a_2025-03-07.csv", ExportFileName(week))
}
