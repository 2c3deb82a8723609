package dataflow

// CheckReferences verifies that every bind target and every Terminal in
// any bind tree, term range or array dimension names a declared term.
// All missing names are collected into a single DefinitionError.
func CheckReferences(terms *Terms, binds *Binddict) error {
	var missing []string
	seen := make(map[string]bool)
	note := func(name string) {
		if !terms.Has(name) && !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	noteTree := func(n Node) {
		for _, id := range Identifiers(n) {
			note(id)
		}
	}

	for _, name := range terms.Names() {
		t, _ := terms.Get(name)
		noteTree(t.MSB)
		noteTree(t.LSB)
		for _, d := range t.Dims {
			noteTree(d.Left)
			noteTree(d.Right)
		}
	}
	if binds != nil {
		for _, name := range binds.Names() {
			note(name)
			for _, b := range binds.Get(name) {
				noteTree(b.Tree)
				noteTree(b.MSB)
				noteTree(b.LSB)
				noteTree(b.Ptr)
				noteTree(b.Delay)
			}
		}
	}
	if len(missing) > 0 {
		return NewDefinitionError("term", missing...)
	}
	return nil
}
