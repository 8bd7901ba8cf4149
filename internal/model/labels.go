package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownRow       = errors.New("unknown row")
	ErrUnknownProcedure = errors.New("unknown procedure")
)

// Row is a room or shift label. The set is fixed and ordered top to bottom.
type Row string

const (
	RowSala1 Row = "Sala 1"
	RowSala2 Row = "Sala 2"
	RowSala3 Row = "Sala 3"
	RowTarde Row = "Tarde"
)

var Rows = []Row{RowSala1, RowSala2, RowSala3, RowTarde}

// RowIndex returns the position of r in Rows, or -1.
func RowIndex(r Row) int {
	for i, x := range Rows {
		if x == r {
			return i
		}
	}
	return -1
}

func ParseRow(s string) (Row, error) {
	s = strings.TrimSpace(s)
	for _, r := range Rows {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	// Short forms used on the command line: "1", "2", "3", "t".
	switch strings.ToLower(s) {
	case "1", "sala1":
		return RowSala1, nil
	case "2", "sala2":
		return RowSala2, nil
	case "3", "sala3":
		return RowSala3, nil
	case "t", "tarde":
		return RowTarde, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRow, s)
}

type Procedure string

const (
	ProcCoronaria    Procedure = "Coronaria"
	ProcCDerecho     Procedure = "C.Derecho"
	ProcICP          Procedure = "ICP"
	ProcOclusionCron Procedure = "Oclusión crónica"
	ProcTAVI         Procedure = "TAVI"
	ProcMitraclip    Procedure = "Mitraclip"
	ProcTriclip      Procedure = "Triclip"
	ProcOrejuela     Procedure = "Orejuela"
	ProcFOP          Procedure = "FOP"
	ProcCIA          Procedure = "CIA"
	ProcOtros        Procedure = "Otros"
)

var Procedures = []Procedure{
	ProcCoronaria,
	ProcCDerecho,
	ProcICP,
	ProcOclusionCron,
	ProcTAVI,
	ProcMitraclip,
	ProcTriclip,
	ProcOrejuela,
	ProcFOP,
	ProcCIA,
	ProcOtros,
}

// ParseProcedure matches case-insensitively and tolerates a missing accent
// on "Oclusión crónica".
func ParseProcedure(s string) (Procedure, error) {
	key := foldAccents(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range Procedures {
		if foldAccents(strings.ToLower(string(p))) == key {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProcedure, s)
}

type ProcCategory string

const (
	CategoryDiagnostic   ProcCategory = "diagnostic"
	CategoryIntervention ProcCategory = "intervention"
	CategoryCTO          ProcCategory = "cto"
	CategoryStructural   ProcCategory = "structural"
	CategoryOther        ProcCategory = "other"
)

func (p Procedure) Category() ProcCategory {
	switch p {
	case ProcCoronaria, ProcCDerecho:
		return CategoryDiagnostic
	case ProcICP:
		return CategoryIntervention
	case ProcOclusionCron:
		return CategoryCTO
	case ProcTAVI, ProcMitraclip, ProcTriclip, ProcOrejuela, ProcFOP, ProcCIA:
		return CategoryStructural
	default:
		return CategoryOther
	}
}

func foldAccents(s string) string {
	r := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", ".", "")
	return r.Replace(s)
}
