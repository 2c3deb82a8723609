package facts

// FilterTablesByFiles returns a new Tables object containing only rows
// whose file is present in the provided file set.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	if len(files) == 0 {
		return emptyTables()
	}
	out := emptyTables()
	for _, row := range tables.Files {
		if files[row.Path] {
			out.Files = append(out.Files, row)
		}
	}
	keep := func(_ string, file string) bool { return files[file] }
	filterRows(&out, tables, keep)
	return out
}

// FilterTablesByNames keeps rows whose signal name satisfies keep.
// Dependencies survive only when both ends do. File rows are kept as is.
func FilterTablesByNames(tables Tables, keep func(name string) bool) Tables {
	out := emptyTables()
	out.Files = append(out.Files, tables.Files...)
	filterRows(&out, tables, func(name, _ string) bool { return keep(name) })
	return out
}

func filterRows(out *Tables, in Tables, keep func(name, file string) bool) {
	for _, row := range in.Terms {
		if keep(row.Name, row.File) {
			out.Terms = append(out.Terms, row)
		}
	}
	for _, row := range in.Binds {
		if keep(row.Target, row.File) {
			out.Binds = append(out.Binds, row)
		}
	}
	for _, row := range in.Constants {
		if keep(row.Name, row.File) {
			out.Constants = append(out.Constants, row)
		}
	}
	for _, row := range in.Dependencies {
		if keep(row.From, row.File) && keep(row.To, row.File) {
			out.Dependencies = append(out.Dependencies, row)
		}
	}
	for _, row := range in.Unresolved {
		if keep(row.Name, row.File) {
			out.Unresolved = append(out.Unresolved, row)
		}
	}
}

// FilterDeltaByFiles applies FilterTablesByFiles to both sides.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}
