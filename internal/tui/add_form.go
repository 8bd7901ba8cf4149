package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"hemo-board/internal/model"
)

const (
	fieldName = iota
	fieldRoom
	fieldDx
	fieldProc
	fieldCount
)

var fieldLabels = [fieldCount]string{"Nombre/ID", "Habitación", "Diagnóstico", "Procedimiento"}

// addForm collects a new card for the cell under the cursor.
type addForm struct {
	day    string
	row    model.Row
	inputs [fieldCount]textinput.Model
	focus  int
}

func newAddForm(day string, row model.Row) addForm {
	f := addForm{day: day, row: row}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 120
		f.inputs[i] = ti
	}
	f.inputs[fieldProc].Placeholder = string(model.ProcCoronaria)
	return f
}

func (f *addForm) focusCmd() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	return f.inputs[f.focus].Focus()
}

func (f *addForm) next(delta int) tea.Cmd {
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	return f.focusCmd()
}

func (f *addForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// procSuggestion returns the best procedure match for what has been typed.
// An empty field suggests the default procedure.
func (f addForm) procSuggestion() (model.Procedure, bool) {
	return suggestProcedure(f.inputs[fieldProc].Value())
}

func (f addForm) draft() (model.CardDraft, error) {
	proc, ok := f.procSuggestion()
	if !ok {
		return model.CardDraft{}, fmt.Errorf("%w: %q", model.ErrUnknownProcedure, f.inputs[fieldProc].Value())
	}
	return model.CardDraft{
		Name: strings.TrimSpace(f.inputs[fieldName].Value()),
		Room: strings.TrimSpace(f.inputs[fieldRoom].Value()),
		Dx:   strings.TrimSpace(f.inputs[fieldDx].Value()),
		Proc: proc,
		Day:  f.day,
		Row:  f.row,
	}, nil
}

func suggestProcedure(input string) (model.Procedure, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return model.ProcCoronaria, true
	}
	if p, err := model.ParseProcedure(input); err == nil {
		return p, true
	}
	names := make([]string, len(model.Procedures))
	for i, p := range model.Procedures {
		names[i] = string(p)
	}
	matches := fuzzy.Find(input, names)
	if len(matches) == 0 {
		return "", false
	}
	return model.Procedures[matches[0].Index], true
}

func (f addForm) view(width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nueva tarjeta · %s · %s\n\n", f.day, f.row)
	for i, in := range f.inputs {
		marker := "  "
		if i == f.focus {
			marker = glyphFocus() + " "
		}
		line := marker + fmt.Sprintf("%-14s", fieldLabels[i]) + in.View()
		if i == fieldProc {
			if p, ok := f.procSuggestion(); ok {
				line += styleMuted().Render("  → " + string(p))
			} else {
				line += styleMuted().Render("  → ?")
			}
		}
		b.WriteString(truncateLine(line, width))
		b.WriteByte('\n')
	}
	b.WriteString("\n")
	b.WriteString(styleMuted().Render("tab: siguiente campo · enter: guardar · esc: cancelar"))
	return b.String()
}
