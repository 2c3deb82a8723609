package dataflow

import "strings"

// ScopeSeparator joins the labels of a hierarchical name.
const ScopeSeparator = "."

// SplitScope splits a hierarchical name into its labels. An escaped
// identifier (\foo.bar ) runs to the next whitespace and may contain
// separators; it is kept as one label.
func SplitScope(name string) []string {
	var labels []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case escaped:
			if c == ' ' || c == '\t' || c == '\n' {
				escaped = false
				continue
			}
			cur.WriteByte(c)
		case c == '\\' && strings.TrimSpace(cur.String()) == "":
			cur.Reset()
			cur.WriteByte(c)
			escaped = true
		case c == '.':
			labels = append(labels, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(labels, cur.String())
}

// NormalizeScope trims whitespace around labels and drops empty ones, so
// "top. sub..x" and "top.sub.x" name the same signal.
func NormalizeScope(name string) string {
	labels := SplitScope(name)
	out := labels[:0]
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	var b strings.Builder
	for i, l := range out {
		if i > 0 {
			b.WriteString(ScopeSeparator)
		}
		b.WriteString(l)
		// an escaped label needs its terminating space back before a separator
		if strings.HasPrefix(l, `\`) && i < len(out)-1 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// ScopeDepth is the number of labels in a normalized name.
func ScopeDepth(name string) int {
	n := NormalizeScope(name)
	if n == "" {
		return 0
	}
	return len(SplitScope(n))
}
