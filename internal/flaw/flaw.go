/*
   Copyright 2020 Joseph Cumines

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package flaw defines the three flaw variants of spec.md §3 and the
// flaw-selection policy of §4.5: an ordered list of criteria, the first of
// which has a non-empty applicable set determines which flaw is repaired
// next and in what order candidates are tried.
package flaw

import (
	"math/rand"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/formula"
)

// Kind tags which of the three flaw variants a Flaw value holds.
type Kind int

const (
	KindOpenCondition Kind = iota
	KindUnsafe
	KindMutexThreat
)

// Flaw is a tagged union over OpenCondition/Unsafe/MutexThreat (spec §3).
type Flaw struct {
	Kind Kind

	// OpenCondition
	Step      int
	Formula   *formula.Formula
	When      formula.When
	Static    bool // true if Formula's predicate is static (criterion "static-open")

	// Unsafe
	LinkFrom, LinkTo   int
	LinkCondStep       int
	LinkLiteral        *formula.Formula
	ThreatStep         int
	ThreatEffect       *action.Effect
	Separable          bool // false if no consistent separating binding exists

	// MutexThreat
	Step1, Step2   int
	Effect1, Effect2 *action.Effect
}

// OpenCondition constructs an OpenCondition flaw.
func OpenCondition(step int, f *formula.Formula, when formula.When, static bool) Flaw {
	return Flaw{Kind: KindOpenCondition, Step: step, Formula: f, When: when, Static: static}
}

// Unsafe constructs an Unsafe (threatened causal link) flaw.
func Unsafe(linkFrom, linkTo int, linkLiteral *formula.Formula, threatStep int, threatEffect *action.Effect, separable bool) Flaw {
	return Flaw{Kind: KindUnsafe, LinkFrom: linkFrom, LinkTo: linkTo, LinkLiteral: linkLiteral, ThreatStep: threatStep, ThreatEffect: threatEffect, Separable: separable}
}

// MutexThreat constructs a MutexThreat flaw.
func MutexThreat(step1 int, eff1 *action.Effect, step2 int, eff2 *action.Effect) Flaw {
	return Flaw{Kind: KindMutexThreat, Step1: step1, Effect1: eff1, Step2: step2, Effect2: eff2}
}

// Class further categorizes a flaw for criterion matching (spec §4.5):
// non-separable-threat, separable-threat, open, local-open, static-open,
// unsafe-open.
type Class int

const (
	ClassOpen Class = iota
	ClassLocalOpen
	ClassStaticOpen
	ClassUnsafeOpen // an open condition that is also the target of an Unsafe link, i.e. "needs re-establishing"
	ClassSeparableThreat
	ClassNonSeparableThreat
	ClassMutex
)

// Classes returns every Class a flaw belongs to, given the step id selected
// immediately before it (for "local-open"; 0 if none yet).
func (f Flaw) Classes(prevStep int) []Class {
	switch f.Kind {
	case KindOpenCondition:
		cs := []Class{ClassOpen}
		if f.Step == prevStep {
			cs = append(cs, ClassLocalOpen)
		}
		if f.Static {
			cs = append(cs, ClassStaticOpen)
		}
		return cs
	case KindUnsafe:
		if f.Separable {
			return []Class{ClassSeparableThreat}
		}
		return []Class{ClassNonSeparableThreat}
	default:
		return []Class{ClassMutex}
	}
}

// TieBreak selects how candidates within one criterion's applicable set are
// ordered (spec §4.5).
type TieBreak int

const (
	LIFO TieBreak = iota
	FIFO
	Random
	LeastRefinements
	MostRefinements
	NewStep
	ReuseStep
	LeastCost
	MostCost
	LeastWork
	MostWork
)

// RankHeuristic selects which heuristic a cost/work tie-break consults.
type RankHeuristic int

const (
	RankAdditive RankHeuristic = iota
	RankMakespan
)

// Criterion is one entry of a flaw-selection order: it applies to a set of
// flaw classes, optionally filters by a maximum refinement count, and
// resolves ties with the given TieBreak (and, for heuristic orders, the
// given RankHeuristic with an optional "reuse" variant).
type Criterion struct {
	Classes     []Class
	MaxRefs     int // 0 means unlimited
	TieBreak    TieBreak
	Heuristic   RankHeuristic
	ReuseAware  bool
}

// Policy is an ordered list of criteria (spec §4.5 "Configured as an ordered
// list of selection criteria").
type Policy struct {
	Criteria []Criterion
	RNG      *rand.Rand
}

// Candidate pairs a flaw with the data the policy's tie-breaks need:
// its index in plan order, its refinement count (computed lazily, only when
// a criterion sets MaxRefs or uses an LR/MR tie-break), and its heuristic
// rank.
type Candidate struct {
	Flaw         Flaw
	PlanOrder    int
	Refinements  func() int // lazy: counting routines run in "test only" mode
	Rank         func() (cost float64, work int)
	Serial       int // LIFO/FIFO tie-break key, assigned on flaw creation
}

func matches(c Criterion, classes []Class) bool {
	for _, want := range c.Classes {
		for _, have := range classes {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Select scans criteria in order, stops at the first one whose applicable
// set is non-empty, and returns the candidate that criterion's tie-break
// picks together with the criterion itself (spec §4.5 "Selection
// algorithm"); ok is false when no criterion applies.
func (p *Policy) Select(candidates []Candidate, prevStep int) (Candidate, Criterion, bool) {
	for _, crit := range p.Criteria {
		var applicable []Candidate
		for _, cand := range candidates {
			if !matches(crit, cand.Flaw.Classes(prevStep)) {
				continue
			}
			if crit.MaxRefs > 0 && cand.Refinements != nil && cand.Refinements() > crit.MaxRefs {
				continue
			}
			applicable = append(applicable, cand)
		}
		if len(applicable) == 0 {
			continue
		}
		return p.pick(applicable, crit), crit, true
	}
	return Candidate{}, Criterion{}, false
}

func (p *Policy) pick(cands []Candidate, crit Criterion) Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if p.less(c, best, crit) {
			best = c
		}
	}
	return best
}

func (p *Policy) less(a, b Candidate, crit Criterion) bool {
	switch crit.TieBreak {
	case LIFO:
		return a.Serial > b.Serial
	case FIFO:
		return a.Serial < b.Serial
	case Random:
		if p.RNG == nil {
			return a.Serial < b.Serial
		}
		return p.RNG.Intn(2) == 0
	case LeastRefinements:
		return a.Refinements() < b.Refinements()
	case MostRefinements:
		return a.Refinements() > b.Refinements()
	case NewStep:
		return a.Flaw.Kind == KindOpenCondition && b.Flaw.Kind == KindOpenCondition && a.Serial < b.Serial
	case ReuseStep:
		return a.Flaw.Kind == KindOpenCondition && b.Flaw.Kind == KindOpenCondition && a.Serial < b.Serial
	case LeastCost:
		ac, _ := a.Rank()
		bc, _ := b.Rank()
		return ac < bc
	case MostCost:
		ac, _ := a.Rank()
		bc, _ := b.Rank()
		return ac > bc
	case LeastWork:
		_, aw := a.Rank()
		_, bw := b.Rank()
		return aw < bw
	case MostWork:
		_, aw := a.Rank()
		_, bw := b.Rank()
		return aw > bw
	default:
		return a.Serial < b.Serial
	}
}
