package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"hemo-board/internal/board"
	"hemo-board/internal/docs"
	"hemo-board/internal/model"
	"hemo-board/internal/perm"
)

const rowLabelWidth = 8

var weekdayShort = [...]string{"Lun", "Mar", "Mié", "Jue", "Vie"}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return xansi.Truncate(s, width, glyphEllipsis())
}

func (m boardModel) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	if !m.loaded {
		return "cargando semana…"
	}

	var b strings.Builder
	b.WriteString(m.viewHeader(width))
	b.WriteByte('\n')

	switch m.mode {
	case modeDetail:
		b.WriteString(m.viewDetail(width))
	case modeAdd:
		b.WriteString(m.form.view(width))
	case modeHelp:
		body, _ := docs.Get("keys")
		b.WriteString(renderMarkdown(body, width-2))
	default:
		b.WriteString(m.viewGrid(width))
	}
	b.WriteByte('\n')
	b.WriteString(m.viewFooter(width))
	return b.String()
}

func (m boardModel) viewHeader(width int) string {
	g := m.snap.Grid
	title := "Pizarra semanal"
	if len(g.Days) > 0 {
		title = fmt.Sprintf("Pizarra semanal · %s – %s", g.Days[0], g.Days[len(g.Days)-1])
	}
	who := "sin sesión"
	if m.actor.User != nil {
		who = m.actor.User.ID
		if m.actor.User.Email != "" {
			who = m.actor.User.Email
		}
	}
	right := fmt.Sprintf("%s (%s) · %d tarjetas", who, m.actor.Role, len(m.snap.Cards))
	left := lipgloss.NewStyle().Bold(true).Render(title)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + styleMuted().Render(right)

	if m.mode == modeSearch || m.search.Value() != "" {
		line += "\n" + m.search.View()
		if n := m.snap.Grid.Len(); m.search.Value() != "" {
			line += styleMuted().Render(fmt.Sprintf("  (%d coincidencias)", n))
		}
	}
	return truncateBlock(line, width)
}

func (m boardModel) viewGrid(width int) string {
	g := m.snap.Grid
	if len(g.Days) == 0 {
		return ""
	}
	colW := (width - rowLabelWidth) / len(g.Days)
	if colW < 8 {
		colW = 8
	}
	today := m.now().UTC().Format(model.DayLayout)

	header := []string{lipgloss.NewStyle().Width(rowLabelWidth).Render("")}
	for i, d := range g.Days {
		label := d
		if i < len(weekdayShort) {
			label = weekdayShort[i] + " " + dayMonth(d)
		}
		st := lipgloss.NewStyle().Width(colW).Bold(true).Foreground(colorSurfaceFg)
		if d == today {
			st = st.Background(colorToday)
		}
		header = append(header, st.Render(truncateLine(label, colW)))
	}

	lines := []string{lipgloss.JoinHorizontal(lipgloss.Top, header...)}
	for ri, r := range g.Rows {
		height := 1
		for _, d := range g.Days {
			if n := len(g.Cell(d, r)); n > height {
				height = n
			}
		}
		band := []string{styleMuted().Width(rowLabelWidth).Render(truncateLine(string(r), rowLabelWidth-1))}
		for di, d := range g.Days {
			cell := m.viewCell(g.Cell(d, r), di, ri, colW, height)
			st := lipgloss.NewStyle().Width(colW)
			if d == today {
				st = st.Background(colorToday)
			}
			band = append(band, st.Render(cell))
		}
		sep := styleMuted().Render(strings.Repeat(glyphRule(), clamp(width, 1, rowLabelWidth+colW*len(g.Days))))
		lines = append(lines, sep, lipgloss.JoinHorizontal(lipgloss.Top, band...))
	}
	return strings.Join(lines, "\n")
}

func (m boardModel) viewCell(cards []model.Card, di, ri, colW, height int) string {
	out := make([]string, 0, height)
	for i, c := range cards {
		selected := di == m.dayIdx && ri == m.rowIdx && i == m.pos
		out = append(out, m.viewCardLine(c, selected, colW-1))
	}
	if len(cards) == 0 && di == m.dayIdx && ri == m.rowIdx {
		out = append(out, lipgloss.NewStyle().Foreground(colorSelectedBorder).Render(glyphEmptyCell()))
	}
	for len(out) < height {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

func (m boardModel) viewCardLine(c model.Card, selected bool, width int) string {
	name := displayName(c)
	proc := styleProc(c.Proc).Render(procBadge(c.Proc))
	mark := glyphPending()
	if c.Done {
		mark = glyphDone()
	}
	line := fmt.Sprintf("%s %s %s", mark, proc, name)
	if c.Room != "" {
		line += styleMuted().Render(" " + c.Room)
	}
	line = truncateLine(line, width)

	st := lipgloss.NewStyle()
	if c.Done {
		st = faintIfDark(st.Strikethrough(true))
	}
	if selected {
		st = st.Background(colorSelectedBg).Foreground(colorSelectedFg).Bold(true)
	}
	return st.Render(line)
}

// procBadge is a short procedure label that fits narrow columns.
func procBadge(p model.Procedure) string {
	switch p {
	case model.ProcCoronaria:
		return "COR"
	case model.ProcCDerecho:
		return "CD"
	case model.ProcOclusionCron:
		return "OCT"
	case model.ProcMitraclip:
		return "MTC"
	case model.ProcTriclip:
		return "TRC"
	case model.ProcOrejuela:
		return "ORJ"
	case model.ProcOtros:
		return "OTR"
	}
	return string(p)
}

func (m boardModel) viewDetail(width int) string {
	c, ok := m.selected()
	if !ok {
		return styleMuted().Render("(ninguna tarjeta seleccionada)")
	}
	body := renderMarkdown(board.CardMarkdown(c), width-2)
	meta := fmt.Sprintf("orden %d · creada %s", c.Ord, humanize.RelTime(c.CreatedAt, m.now(), "ago", "from now"))
	if c.CreatedBy != nil {
		meta += " por " + *c.CreatedBy
	}
	return body + "\n\n" + styleMuted().Render(truncateLine(meta, width))
}

func (m boardModel) viewFooter(width int) string {
	var lines []string
	if m.mode == modeConfirmDelete {
		if c, ok := m.selected(); ok {
			lines = append(lines, fmt.Sprintf("¿Borrar %q? (y/n)", displayName(c)))
		}
	}
	if m.status != "" {
		st := lipgloss.NewStyle()
		if m.statusErr {
			st = st.Background(colorFlashErrorBg).Foreground(colorFlashErrorFg)
		}
		lines = append(lines, st.Render(truncateLine(m.status, width)))
	}
	help := "←↑↓→ mover cursor · K/J subir/bajar · H/L día · {/} sala · f al principio · x hecho · a añadir · d borrar · / buscar · n/p semana · ? ayuda · q salir"
	if !perm.CanEdit(m.actor.Role) {
		help = "←↑↓→ mover cursor · enter detalle · / buscar · n/p/t semana · r recargar · ? ayuda · q salir (solo lectura)"
	}
	lines = append(lines, styleMuted().Render(truncateLine(help, width)))
	return strings.Join(lines, "\n")
}

func truncateBlock(s string, width int) string {
	parts := strings.Split(s, "\n")
	for i, p := range parts {
		parts[i] = truncateLine(p, width)
	}
	return strings.Join(parts, "\n")
}

func dayMonth(day string) string {
	t, err := time.Parse(model.DayLayout, day)
	if err != nil {
		return day
	}
	return t.Format("02/01")
}
