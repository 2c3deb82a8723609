package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes the human readable report.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "=== Snapshots ===\n")
	for _, f := range r.Files {
		cached := ""
		if f.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(w, "  %s: %d terms, %d binds, %d constants%s\n", f.Path, f.Terms, f.Binds, len(f.Constants), cached)
	}

	if n := countConstants(r.Files); n > 0 {
		fmt.Fprintf(w, "\n=== Constants ===\n")
		for _, f := range r.Files {
			names := make([]string, 0, len(f.Constants))
			for name := range f.Constants {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "  %s = %s\n", name, f.Constants[name])
			}
		}
	}

	if len(r.Tables.Unresolved) > 0 {
		fmt.Fprintf(w, "\n=== Unresolved Parameters ===\n")
		for _, u := range r.Tables.Unresolved {
			fmt.Fprintf(w, "  %s: %s\n", u.Name, u.Reason)
		}
	}

	if len(r.Violations) > 0 {
		fmt.Fprintf(w, "\n=== Violations ===\n")
		for _, v := range r.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			fmt.Fprintf(w, "%s [%s] %s: %s - %s\n", icon, v.Rule, v.File, v.Name, v.Message)
		}
	}

	fmt.Fprintf(w, "\n=== Summary ===\n")
	fmt.Fprintf(w, "  Files:    %d\n", len(r.Files))
	fmt.Fprintf(w, "  Errors:   %d\n", r.Summary.Errors)
	fmt.Fprintf(w, "  Warnings: %d\n", r.Summary.Warnings)
	fmt.Fprintf(w, "  Info:     %d\n", r.Summary.Info)
	if r.Changes != nil {
		fmt.Fprintf(w, "  Changes:  +%d -%d rows\n", r.Changes.Added, r.Changes.Removed)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\n=== Snapshot Errors ===\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}
}

func countConstants(files []FileReport) int {
	n := 0
	for _, f := range files {
		n += len(f.Constants)
	}
	return n
}
