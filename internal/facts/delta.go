package facts

import (
	"strconv"
	"strings"
)

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two
// snapshots, for example the same design resolved under two override
// sets.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// Empty reports whether the delta carries no rows.
func (d Delta) Empty() bool {
	return d.Added.RowCount() == 0 && d.Removed.RowCount() == 0
}

// RowCount is the number of rows across every relation.
func (t Tables) RowCount() int {
	return len(t.Files) + len(t.Terms) + len(t.Binds) + len(t.Constants) + len(t.Dependencies) + len(t.Unresolved)
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Files = diffRows(from.Files, to.Files, func(r FileRow) string {
		return r.Path + "|" + intKey(r.Terms) + "|" + intKey(r.Binds) + "|" + intKey(r.Constants)
	})
	out.Terms = diffRows(from.Terms, to.Terms, func(r TermRow) string {
		return r.Name + "|" + r.File + "|" + strings.Join(r.Types, ",") + "|" + boolKey(r.Signed) + "|" +
			r.MSB + "|" + r.LSB + "|" + intKey(r.Width) + "|" + intKey(r.Dims) + "|" + boolKey(r.Resolved)
	})
	out.Binds = diffRows(from.Binds, to.Binds, func(r BindRow) string {
		return r.Target + "|" + r.File + "|" + intKey(r.Index) + "|" + r.Tree + "|" + r.State + "|" + boolKey(r.Clocked)
	})
	out.Constants = diffRows(from.Constants, to.Constants, func(r ConstantRow) string {
		return r.Name + "|" + r.File + "|" + r.Value + "|" + intKey(r.Width) + "|" + boolKey(r.Signed) + "|" + r.Kind
	})
	out.Dependencies = diffRows(from.Dependencies, to.Dependencies, func(r DependencyRow) string {
		return r.File + "|" + r.From + "|" + r.To
	})
	out.Unresolved = diffRows(from.Unresolved, to.Unresolved, func(r UnresolvedRow) string {
		return r.Name + "|" + r.File + "|" + intKey(r.Depth) + "|" + boolKey(r.InCycle) + "|" + r.Reason
	})

	return out
}

func emptyTables() Tables {
	return Tables{
		Files:        []FileRow{},
		Terms:        []TermRow{},
		Binds:        []BindRow{},
		Constants:    []ConstantRow{},
		Dependencies: []DependencyRow{},
		Unresolved:   []UnresolvedRow{},
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}
