package dataflow

import (
	"fmt"
	"strings"
)

// DefinitionError reports a name that is absent from the table it was
// looked up in: a term, a constant, or a bind target. It signals an
// inconsistent input graph and is never defaulted away.
type DefinitionError struct {
	What  string // "term", "constant", ...
	Names []string
}

func NewDefinitionError(what string, names ...string) *DefinitionError {
	return &DefinitionError{What: what, Names: names}
}

func (e *DefinitionError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("%s not found: %s", e.What, e.Names[0])
	}
	return fmt.Sprintf("%d %ss not found: %s", len(e.Names), e.What, strings.Join(e.Names, ", "))
}

// UnsupportedNodeError is raised when folding meets a node it cannot
// evaluate: a Delay, or a variant outside the known set.
type UnsupportedNodeError struct {
	Kind NodeKind
	Node string
}

func (e *UnsupportedNodeError) Error() string {
	return fmt.Sprintf("can not evaluate and optimize %s: %s", e.Kind, e.Node)
}
