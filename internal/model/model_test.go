package model

import (
	"errors"
	"testing"
)

func TestParseRow(t *testing.T) {
	cases := map[string]Row{
		"Sala 1": RowSala1,
		"sala 2": RowSala2,
		" 3 ":    RowSala3,
		"t":      RowTarde,
		"TARDE":  RowTarde,
		"sala1":  RowSala1,
	}
	for in, want := range cases {
		got, err := ParseRow(in)
		if err != nil || got != want {
			t.Fatalf("ParseRow(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseRow("Sala 4"); !errors.Is(err, ErrUnknownRow) {
		t.Fatalf("expected ErrUnknownRow; got %v", err)
	}
}

func TestRowIndexFollowsDisplayOrder(t *testing.T) {
	for i, r := range Rows {
		if RowIndex(r) != i {
			t.Fatalf("RowIndex(%q) = %d; want %d", r, RowIndex(r), i)
		}
	}
	if RowIndex("Mañana") != -1 {
		t.Fatalf("expected -1 for unknown row")
	}
}

func TestParseProcedure(t *testing.T) {
	cases := map[string]Procedure{
		"icp":              ProcICP,
		"Oclusion cronica": ProcOclusionCron,
		"c.derecho":        ProcCDerecho,
		"cderecho":         ProcCDerecho,
		" tavi ":           ProcTAVI,
	}
	for in, want := range cases {
		got, err := ParseProcedure(in)
		if err != nil || got != want {
			t.Fatalf("ParseProcedure(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseProcedure("bypass"); !errors.Is(err, ErrUnknownProcedure) {
		t.Fatalf("expected ErrUnknownProcedure; got %v", err)
	}
}

func TestProcedureCategory(t *testing.T) {
	cases := map[Procedure]ProcCategory{
		ProcCoronaria:    CategoryDiagnostic,
		ProcICP:          CategoryIntervention,
		ProcOclusionCron: CategoryCTO,
		ProcFOP:          CategoryStructural,
		ProcOtros:        CategoryOther,
	}
	for p, want := range cases {
		if got := p.Category(); got != want {
			t.Fatalf("%q.Category() = %q; want %q", p, got, want)
		}
	}
}

func TestCardPatchApply(t *testing.T) {
	c := Card{ID: "c1", Name: "A", Day: "2025-03-03", Row: RowSala1, Ord: 10}
	if !(CardPatch{}).IsEmpty() {
		t.Fatalf("expected zero patch to be empty")
	}
	got := OrdPatch(-5).Apply(c)
	if got.Ord != -5 || got.Name != "A" || got.Day != c.Day {
		t.Fatalf("unexpected patched card %+v", got)
	}
	done := true
	name := "B"
	got = CardPatch{Name: &name, Done: &done}.Apply(c)
	if got.Name != "B" || !got.Done || got.Ord != 10 {
		t.Fatalf("unexpected patched card %+v", got)
	}
	if c.Cell() != (CellKey{Day: "2025-03-03", Row: RowSala1}) {
		t.Fatalf("unexpected cell %+v", c.Cell())
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("editor"); !ok || r != RoleEditor {
		t.Fatalf("expected editor")
	}
	if r, ok := ParseRole("admin"); ok || r != RoleUnknown {
		t.Fatalf("expected unknown for admin; got %q", r)
	}
}
