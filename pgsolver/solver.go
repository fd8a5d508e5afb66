package pgsolver

import (
	"sort"

	"github.com/elm-wrap/wrap/internal/wraplog"
)

// Options configure a solve run.
type Options struct {
	// Trace enables propagation/decision/backtrack logging via
	// internal/wraplog even when the global verbose flag is off.
	Trace bool
}

// Solution is the successful outcome of a solve: one version chosen per
// non-root package reachable from the root's dependencies.
type Solution struct {
	Versions map[PackageID]Version
	Attempts int
}

// Solver runs the PubGrub loop against a Provider: unit propagation,
// decision, and conflict-driven backtracking to fixed point or failure.
type Solver struct {
	store    *store
	ps       *partialSolution
	provider *memoizedProvider
	interner *Interner
	opts     Options
	attempts int
}

// NewSolver constructs a Solver over the given provider and interner.
func NewSolver(interner *Interner, provider Provider, opts Options) *Solver {
	return &Solver{
		store:    newStore(),
		ps:       newPartialSolution(),
		provider: newMemoizedProvider(provider),
		interner: interner,
		opts:     opts,
	}
}

// MemoStats exposes the provider memoization hit/miss counters.
func (s *Solver) MemoStats() (hits, misses int) { return s.provider.Stats() }

func (s *Solver) name(pkg PackageID) string { return s.interner.Lookup(pkg).String() }

// tracef logs solver progress: unconditionally when Options.Trace is set,
// otherwise only under the package-wide verbose flag.
func (s *Solver) tracef(format string, args ...interface{}) {
	if s.opts.Trace {
		wraplog.Logf(format, args...)
		return
	}
	wraplog.Vlogf(format, args...)
}

// Solve runs the solver to fixed point or failure, given the root's
// declared dependency ranges.
func (s *Solver) Solve(rootDeps []Dependency) (*Solution, error) {
	s.ps.seedRoot(RootVersion)
	for _, d := range rootDeps {
		ic := s.store.add([]Term{negTerm(d.Pkg, d.Range)}, ReasonRoot, [2]incompatibilityID{})
		s.ps.derive(d.Pkg, posTerm(d.Pkg, d.Range), ic.id)
	}

	for {
		if err := s.propagate(); err != nil {
			return nil, err
		}

		pkg, ok := s.nextDecisionCandidate()
		if !ok {
			break
		}
		if err := s.makeDecision(pkg); err != nil {
			return nil, err
		}
	}

	versions := make(map[PackageID]Version)
	for pkg, v := range s.ps.decided {
		if pkg == RootID {
			continue
		}
		versions[pkg] = v
	}
	return &Solution{Versions: versions, Attempts: s.attempts}, nil
}

// propagate performs unit propagation to fixed point: every
// incompatibility touching a changed package is classified against the
// partial solution, conflicts are resolved, and almost-satisfied clauses
// yield new derivations.
func (s *Solver) propagate() error {
	for {
		changedAny := false
		// Snapshot the changed set; propagation may add to it as
		// derivations land, so loop until nothing new appears.
		pending := make([]PackageID, 0, len(s.ps.changed))
		for pkg := range s.ps.changed {
			pending = append(pending, pkg)
		}
		sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })

		for _, pkg := range pending {
			for id := 0; id < len(s.store.all); id++ {
				ic := s.store.all[id]
				if _, touches := ic.termFor(pkg); !touches {
					continue
				}
				class := s.classify(ic)
				switch class.kind {
				case classSatisfied:
					s.tracef("conflict in %s", ic.String(s.name))
					if err := s.resolveConflict(ic); err != nil {
						return err
					}
					changedAny = true
				case classAlmostSatisfied:
					s.ps.derive(class.unsatPkg, class.unsatTerm.negate(), ic.id)
					s.tracef("derived %s (from %s)", class.unsatTerm.negate().String(s.name(class.unsatPkg)), ic.String(s.name))
					changedAny = true
				}
			}
			delete(s.ps.changed, pkg)
		}

		if !changedAny {
			return nil
		}
	}
}

type classKind uint8

const (
	classIrrelevant classKind = iota
	classSatisfied
	classAlmostSatisfied
)

type classification struct {
	kind      classKind
	unsatPkg  PackageID
	unsatTerm Term
}

// classify places one incompatibility relative to the current partial
// solution: satisfied (conflict), almost satisfied (one unsatisfied term
// left to derive), or irrelevant.
func (s *Solver) classify(ic *Incompatibility) classification {
	unsatCount := 0
	var unsatTerm Term
	for _, t := range ic.Terms {
		sel, ok := s.ps.relevantRange(t.Pkg)
		if !ok {
			sel = Any()
		}
		if t.Pkg == RootID {
			if v, has := s.ps.decisionVersion(RootID); has {
				sel = Exact(v)
			}
		}
		switch {
		case t.satisfiedBy(sel):
			// satisfied, contributes nothing further
		case t.contradictedBy(sel):
			return classification{kind: classIrrelevant}
		default:
			unsatCount++
			unsatTerm = t
			if unsatCount > 1 {
				return classification{kind: classIrrelevant}
			}
		}
	}
	if unsatCount == 0 {
		return classification{kind: classSatisfied}
	}
	return classification{kind: classAlmostSatisfied, unsatPkg: unsatTerm.Pkg, unsatTerm: unsatTerm}
}

// resolveConflict implements 1-UIP backjumping conflict resolution: walk
// backwards, replacing the most recent still-relevant derivation with its
// cause's terms, until only one term of the working incompatibility
// remains at the current decision level.
func (s *Solver) resolveConflict(conflict *Incompatibility) error {
	ic := conflict
	for {
		if len(ic.Terms) == 0 {
			names := s.name
			return &NoSolutionError{Root: ic, store: s.store, names: names}
		}

		var mostRecent termSatisfier
		var mostRecentTerm Term
		mostRecentIdx := -1
		secondLevel := 0
		for _, t := range ic.Terms {
			sat := s.ps.findSatisfier(t)
			if sat.index > mostRecentIdx {
				if mostRecentIdx >= 0 && mostRecent.level > secondLevel {
					secondLevel = mostRecent.level
				}
				mostRecent = sat
				mostRecentTerm = t
				mostRecentIdx = sat.index
			} else if sat.level > secondLevel {
				secondLevel = sat.level
			}
		}

		// The satisfier's own package may have contributed earlier
		// assignments toward satisfying its term; their level bounds the
		// backjump target too (the "previous satisfier" includes the
		// satisfier's own term, not just the other terms').
		if prev, ok := s.ps.findPreviousSatisfier(mostRecentTerm, mostRecent.index); ok && prev.level > secondLevel {
			secondLevel = prev.level
		}

		if mostRecent.isDecision || secondLevel != mostRecent.level {
			target := secondLevel
			if mostRecent.isDecision {
				target = mostRecent.level - 1
			}
			if target < 0 {
				target = 0
			}
			// ic is already present in the store: it is either the
			// original conflicting incompatibility passed in, or one
			// created by the merge branch below on a prior loop
			// iteration. Either way its id is stable and safe to cite as
			// a cause for the new derivation.
			s.ps.backtrackTo(target)
			s.attempts++

			// Re-derive the negation of whichever single term remains
			// unsatisfied at the backtrack target for the one package not
			// yet resolved, continuing propagation from there.
			pkg, term := pickBacktrackTerm(ic, s.ps)
			s.ps.derive(pkg, term, ic.id)
			return nil
		}

		// Merge: replace mostRecent's own package term with the terms of
		// its cause, excluding the term about that package from both
		// sides (it's the one being resolved away). When the satisfying
		// derivation covered the working term only in combination with
		// earlier assignments, the leftover constraint on that package
		// travels along as a difference term so the resolvent stays a
		// valid consequence.
		causeIC := s.store.get(mostRecent.cause)
		merged := mergeTerms(ic.Terms, causeIC.Terms, mostRecentTerm.Pkg)
		satAssign := s.ps.satisfierAssignment(mostRecent.index)
		if satAssign.kind == kindDerivation && !mostRecentTerm.satisfiedBy(applyAssignment(Any(), satAssign)) {
			merged = append(merged, differenceInverse(satAssign.term, mostRecentTerm))
		}
		ic = s.store.add(merged, ReasonDerived, [2]incompatibilityID{ic.id, causeIC.id})
	}
}

// mergeTerms unions a's terms (minus the one for excludePkg) with b's terms
// (minus the one for excludePkg), deduping by package+polarity+range.
func mergeTerms(a, b []Term, excludePkg PackageID) []Term {
	out := make([]Term, 0, len(a)+len(b))
	seen := make(map[Term]bool)
	add := func(terms []Term) {
		for _, t := range terms {
			if t.Pkg == excludePkg {
				continue
			}
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	add(a)
	add(b)
	return out
}

// pickBacktrackTerm chooses, from ic's terms, the one whose negation should
// be (re-)derived immediately after backtracking: the term belonging to the
// package whose satisfier was most recent, i.e. the only one not yet
// satisfied at the new, earlier decision level.
func pickBacktrackTerm(ic *Incompatibility, ps *partialSolution) (PackageID, Term) {
	for _, t := range ic.Terms {
		sel, ok := ps.relevantRange(t.Pkg)
		if !ok {
			sel = Any()
		}
		if !t.satisfiedBy(sel) && !t.contradictedBy(sel) {
			return t.Pkg, t.negate()
		}
	}
	// All terms already resolved one way or another: pick the first as a
	// conservative fallback so propagation can re-examine it.
	return ic.Terms[0].Pkg, ic.Terms[0].negate()
}

// nextDecisionCandidate picks the package to decide next: smallest
// remaining candidate set first (fail fast), ties broken by interning
// order.
func (s *Solver) nextDecisionCandidate() (PackageID, bool) {
	type cand struct {
		pkg   PackageID
		count int
	}
	var candidates []cand
	for pkg := range s.ps.required {
		if s.ps.hasDecision(pkg) {
			continue
		}
		r := s.ps.positive[pkg]
		versions, err := s.provider.Versions(pkg)
		n := 0
		if err == nil {
			for _, v := range versions {
				if r.Contains(v) {
					n++
				}
			}
		}
		candidates = append(candidates, cand{pkg: pkg, count: n})
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count < candidates[j].count
		}
		return candidates[i].pkg < candidates[j].pkg
	})
	return candidates[0].pkg, true
}

// makeDecision picks the newest acceptable version of pkg, or synthesizes
// a no-versions incompatibility when none qualifies.
func (s *Solver) makeDecision(pkg PackageID) error {
	r := s.ps.positive[pkg]
	versions, err := s.provider.Versions(pkg)
	if err != nil {
		return &InternalFailure{Msg: err.Error()}
	}

	var chosen Version
	found := false
	for _, v := range versions { // newest-first, per Provider contract
		if !r.Contains(v) {
			continue
		}
		excluded := false
		for _, ic := range s.store.all {
			if len(ic.Terms) == 1 && ic.Terms[0].Pkg == pkg && ic.Terms[0].Positive &&
				ic.Terms[0].Range.equalRange(Exact(v)) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		chosen = v
		found = true
		break
	}

	if !found {
		s.store.add([]Term{posTerm(pkg, r)}, ReasonNoVersions, [2]incompatibilityID{})
		s.ps.changed[pkg] = struct{}{}
		s.tracef("no acceptable version of %s in %s", s.name(pkg), r.String())
		return nil
	}

	deps, err := s.provider.DependenciesOf(pkg, chosen)
	if err != nil {
		return &InternalFailure{Msg: err.Error()}
	}
	for _, d := range deps {
		s.store.add([]Term{posTerm(pkg, Exact(chosen)), negTerm(d.Pkg, d.Range)}, ReasonDependency, [2]incompatibilityID{})
	}
	s.ps.decide(pkg, chosen)
	// Re-enter pkg into the changed set so propagation examines the
	// dependency incompatibilities just registered, including those whose
	// dep already has a decision, which may surface an immediate conflict.
	s.ps.changed[pkg] = struct{}{}
	for _, d := range deps {
		if !s.ps.hasDecision(d.Pkg) {
			s.ps.changed[d.Pkg] = struct{}{}
		}
	}
	return nil
}
