package facts

import (
	"strings"
	"testing"
)

func sampleTables() Tables {
	return Tables{
		Files: []FileRow{
			{Path: "a.json"},
			{Path: "b.json"},
		},
		Terms: []TermRow{
			{Name: "top.clk", File: "a.json"},
			{Name: "top.dbg.cnt", File: "b.json"},
		},
		Constants: []ConstantRow{
			{Name: "top.W", File: "a.json"},
			{Name: "top.dbg.N", File: "b.json"},
		},
		Dependencies: []DependencyRow{
			{File: "b.json", From: "top.dbg.N", To: "top.W"},
		},
	}
}

func TestFilterTablesByFiles(t *testing.T) {
	filtered := FilterTablesByFiles(sampleTables(), map[string]bool{"a.json": true})

	if len(filtered.Files) != 1 || filtered.Files[0].Path != "a.json" {
		t.Fatalf("expected only a.json file row, got %#v", filtered.Files)
	}
	if len(filtered.Terms) != 1 || filtered.Terms[0].File != "a.json" {
		t.Fatalf("expected only a.json term rows, got %#v", filtered.Terms)
	}
	if len(filtered.Dependencies) != 0 {
		t.Fatalf("expected no dependency rows, got %#v", filtered.Dependencies)
	}
}

func TestFilterTablesByNames(t *testing.T) {
	keep := func(name string) bool { return !strings.HasPrefix(name, "top.dbg.") }
	filtered := FilterTablesByNames(sampleTables(), keep)

	if len(filtered.Files) != 2 {
		t.Fatalf("expected file rows untouched, got %#v", filtered.Files)
	}
	if len(filtered.Terms) != 1 || filtered.Terms[0].Name != "top.clk" {
		t.Fatalf("expected debug terms dropped, got %#v", filtered.Terms)
	}
	if len(filtered.Constants) != 1 || len(filtered.Dependencies) != 0 {
		t.Fatalf("expected debug constant and its dependency dropped, got %#v", filtered)
	}
}

func TestFilterDeltaByFilesEmpty(t *testing.T) {
	delta := Delta{
		Added: Tables{
			Files: []FileRow{{Path: "a.json"}},
		},
		Removed: Tables{
			Files: []FileRow{{Path: "b.json"}},
		},
	}

	filtered := FilterDeltaByFiles(delta, map[string]bool{})
	if len(filtered.Added.Files) != 0 || len(filtered.Removed.Files) != 0 {
		t.Fatalf("expected empty delta, got %#v", filtered)
	}
}
