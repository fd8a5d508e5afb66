package pgsolver

import (
	"fmt"
	"strings"
)

// DefaultBufferCap bounds the size of a rendered explanation before it is
// truncated.
const DefaultBufferCap = 8192

const truncationNotice = "[Error message truncated or incomplete]"

// lineTable assigns numeric labels, on demand, to incompatibilities that
// are referenced more than once in the derivation DAG.
type lineTable struct {
	label    map[incompatibilityID]int
	lines    map[incompatibilityID]string
	refCount map[incompatibilityID]int
	next     int
}

func newLineTable(st *store, root *Incompatibility) *lineTable {
	lt := &lineTable{
		label:    make(map[incompatibilityID]int),
		lines:    make(map[incompatibilityID]string),
		refCount: make(map[incompatibilityID]int),
	}
	lt.countRefs(st, root, make(map[incompatibilityID]bool))
	return lt
}

// countRefs walks the DAG once to find out-degree (how many distinct
// parents reference each derived incompatibility), which determines
// whether it needs a back-reference label.
func (lt *lineTable) countRefs(st *store, ic *Incompatibility, visited map[incompatibilityID]bool) {
	if visited[ic.id] {
		return
	}
	visited[ic.id] = true
	if ic.Reason != ReasonDerived {
		return
	}
	for _, cid := range ic.Causes {
		lt.refCount[cid]++
		lt.countRefs(st, st.get(cid), visited)
	}
}

func (lt *lineTable) labelFor(id incompatibilityID) int {
	if n, ok := lt.label[id]; ok {
		return n
	}
	lt.next++
	lt.label[id] = lt.next
	return lt.next
}

// Report walks the derivation DAG rooted at root and produces a
// line-numbered, locally-sound English explanation: every sentence is
// either a leaf reason or the conjunction of previously explained claims.
// names resolves a PackageID to "author/name" for rendering. The returned
// bool is true iff the buffer was truncated before the full explanation
// fit.
func Report(st *store, root *Incompatibility, names func(PackageID) string, bufCap int) (string, bool) {
	lt := newLineTable(st, root)
	var out []string
	truncated := false

	var explain func(ic *Incompatibility) string
	explain = func(ic *Incompatibility) string {
		if ic.isLeaf() {
			return leafSentence(ic, names)
		}

		a := st.get(ic.Causes[0])
		b := st.get(ic.Causes[1])

		// Prefer explaining the "simpler" (both-external) cause first,
		// if present.
		aExternal, bExternal := a.isLeaf(), b.isLeaf()

		var sentence string
		switch {
		case !aExternal && !bExternal:
			// Case: both derived. Explain the simpler side (two external
			// causes) first when one qualifies; whichever side ends up
			// referenced elsewhere gets a label, and the other closes
			// with a back-reference.
			first, second := a, b
			if isSimple(st, b) && !isSimple(st, a) {
				first, second = b, a
			}
			fBody := explainOrRef(first, lt, explain, &out, names, &truncated, bufCap)
			sBody := explainOrRef(second, lt, explain, &out, names, &truncated, bufCap)
			sentence = fmt.Sprintf("%s, and because %s, %s", fBody, sBody, ic.String(names))
		case aExternal != bExternal:
			// Case: one derived, one external. Explain the derived side
			// first, then append the external claim. When the derived
			// side is itself an unlabeled derivation with exactly one
			// derived child, collapse the two layers into one sentence
			// with two "and because" clauses to reduce depth.
			derived, leaf := a, b
			if !bExternal {
				derived, leaf = b, a
			}
			if inner, innerLeaf, ok := collapsible(st, lt, derived); ok {
				body := explainOrRef(inner, lt, explain, &out, names, &truncated, bufCap)
				sentence = fmt.Sprintf("%s, and because %s, and because %s, %s",
					body, leafSentence(innerLeaf, names), leafSentence(leaf, names), ic.String(names))
			} else {
				body := explainOrRef(derived, lt, explain, &out, names, &truncated, bufCap)
				sentence = fmt.Sprintf("%s, and because %s, %s", body, leafSentence(leaf, names), ic.String(names))
			}
		default:
			// Both external.
			sentence = fmt.Sprintf("Because %s and %s, %s", leafSentence(a, names), leafSentence(b, names), ic.String(names))
		}
		return sentence
	}

	final := explain(root)
	out = appendLine(out, final, &truncated, bufCap)

	joined := strings.Join(out, "\n")
	if truncated && !strings.HasSuffix(joined, truncationNotice) {
		joined += "\n" + truncationNotice
	}
	return joined, truncated
}

// isSimple reports whether ic is a derived incompatibility whose two
// causes are both external, the side worth explaining first because it
// closes in one sentence.
func isSimple(st *store, ic *Incompatibility) bool {
	if ic.isLeaf() {
		return false
	}
	return st.get(ic.Causes[0]).isLeaf() && st.get(ic.Causes[1]).isLeaf()
}

// collapsible reports whether derived is an unlabeled derivation with
// exactly one prior-derived cause and one external cause, and if so
// returns that derived child and the external cause, so the caller can
// fold both layers into a single sentence.
func collapsible(st *store, lt *lineTable, derived *Incompatibility) (inner *Incompatibility, leaf *Incompatibility, ok bool) {
	if derived.isLeaf() || lt.refCount[derived.id] > 1 {
		return nil, nil, false
	}
	a, b := st.get(derived.Causes[0]), st.get(derived.Causes[1])
	switch {
	case !a.isLeaf() && b.isLeaf():
		return a, b, true
	case a.isLeaf() && !b.isLeaf():
		return b, a, true
	default:
		return nil, nil, false
	}
}

func leafSentence(ic *Incompatibility, names func(PackageID) string) string {
	switch ic.Reason {
	case ReasonDependency:
		// Terms hold (pkg positive, dep negative); the dep side is
		// negated back to its positive claim for rendering.
		if len(ic.Terms) == 2 {
			return fmt.Sprintf("%s depends on %s", ic.Terms[0].String(names(ic.Terms[0].Pkg)), ic.Terms[1].negate().String(names(ic.Terms[1].Pkg)))
		}
	case ReasonNoVersions:
		if len(ic.Terms) == 1 {
			r := ic.Terms[0].Range.String()
			if r == "" {
				r = "any version"
			}
			return fmt.Sprintf("no versions of %s match %s", names(ic.Terms[0].Pkg), r)
		}
	case ReasonRoot:
		if len(ic.Terms) == 1 {
			return fmt.Sprintf("%s is required", ic.Terms[0].negate().String(names(ic.Terms[0].Pkg)))
		}
	}
	return ic.String(names)
}

// explainOrRef emits the full sentence for ic into out and returns either
// that sentence (if ic is referenced only once) or a back-reference of the
// form "(N)" after assigning it a label and appending its own line.
func explainOrRef(ic *Incompatibility, lt *lineTable, explain func(*Incompatibility) string, out *[]string, names func(PackageID) string, truncated *bool, bufCap int) string {
	if lt.refCount[ic.id] > 1 {
		if _, done := lt.lines[ic.id]; done {
			return fmt.Sprintf("(%d)", lt.label[ic.id])
		}
		n := lt.labelFor(ic.id)
		sentence := explain(ic)
		lt.lines[ic.id] = sentence
		*out = appendLine(*out, fmt.Sprintf("(%d) %s", n, sentence), truncated, bufCap)
		return fmt.Sprintf("(%d)", n)
	}
	return explain(ic)
}

func appendLine(out []string, line string, truncated *bool, bufCap int) []string {
	if *truncated {
		return out
	}
	total := 0
	for _, l := range out {
		total += len(l) + 1
	}
	if total+len(line) > bufCap {
		*truncated = true
		return out
	}
	return append(out, line)
}
