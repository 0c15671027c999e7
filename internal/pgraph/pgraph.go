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

// Package pgraph implements the lifted planning-graph heuristic of
// spec.md §4.3: a relaxed reachability analysis producing per-literal
// add-cost/add-work/makespan estimates and achiever sets, computed level by
// level the way katalvlaran/lvlath's graph/algorithms package sweeps a
// frontier (explicit per-round slice, math.Inf(1) sentinel for unreached
// nodes), per SPEC_FULL.md §B / DESIGN.md.
package pgraph

import (
	"math"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/binding"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/term"
)

// ActionCost selects how an effect's achievement contributes to add-cost
// (spec §4.3 "Action-cost modes").
type ActionCost int

const (
	ActionCostUnit ActionCost = iota
	ActionCostDuration
	ActionCostRelative
)

// Value is the triple (add-cost, add-work, makespan) of spec §4.3, with
// componentwise minimum, saturating sum, and a distinguished Infinite.
type Value struct {
	Cost     float64
	Work     int
	Makespan float64
}

// Infinite is the distinguished "unreachable" value.
var Infinite = Value{Cost: math.Inf(1), Work: math.MaxInt32, Makespan: math.Inf(1)}

// Min returns the componentwise minimum of a and b.
func Min(a, b Value) Value {
	v := a
	if b.Cost < v.Cost {
		v.Cost = b.Cost
	}
	if b.Work < v.Work {
		v.Work = b.Work
	}
	if b.Makespan < v.Makespan {
		v.Makespan = b.Makespan
	}
	return v
}

// Add returns the saturating componentwise sum of a and b (saturating at
// Infinite so that adding to an unreached literal stays unreached).
func Add(a, b Value) Value {
	if a.Cost == math.Inf(1) || b.Cost == math.Inf(1) {
		return Infinite
	}
	return Value{Cost: a.Cost + b.Cost, Work: a.Work + b.Work, Makespan: a.Makespan + b.Makespan}
}

func (v Value) isInfinite() bool { return math.IsInf(v.Cost, 1) }

// Achiever names the (ground action, effect) pair that can establish a
// literal, per spec §4.3 "Record the (action, effect) pair as an achiever".
type Achiever struct {
	Action *action.Action
	Effect *action.Effect
}

// InitialState is the minimal view of the problem's initial state pgraph
// preprocessing needs.
type InitialState interface {
	formula.InitialState
	TimedInitialLiterals() []TimedLiteral
	// InitialAtoms enumerates every ground atom true in the initial state,
	// seeded at level 0 (spec §4.3 step 2).
	InitialAtoms() []*formula.Formula
}

// TimedLiteral is an (time, literal) pair from the problem's timed-initial
// literal list (spec §6 Problem).
type TimedLiteral struct {
	Time    float64
	Literal *formula.Formula
}

type literalKey struct {
	pred *term.Predicate
	args string
}

func keyOf(f *formula.Formula) literalKey {
	atom := f.Atomic()
	var b []byte
	for _, a := range atom.Args {
		b = append(b, []byte(a.String())...)
		b = append(b, '|')
	}
	return literalKey{pred: atom.Predicate, args: string(b)}
}

// Graph is the frozen result of one planning-graph fixpoint computation
// (spec §4.3): per-ground-literal heuristic values and achiever sets, plus
// per-action-schema parameter-tuple domains.
type Graph struct {
	cost       ActionCost
	threshold  float64
	positive   map[literalKey]Value
	negative   map[literalKey]Value
	achievers  map[literalKey][]Achiever
	schemaDoms map[string]*binding.StepDomain
	types      *term.Table
}

// Options configures a planning-graph build.
type Options struct {
	ActionCost ActionCost
	Threshold  float64
}

// Build runs the level-by-level fixpoint of spec §4.3 over every ground
// action derivable from schemas (already grounded by the caller against
// compatible object tuples, step 1) and the initial/timed-initial literals
// (step 2), iterating until no literal's value improves (step 3-4).
func Build(types *term.Table, grounded []*action.Action, init InitialState, opts Options) *Graph {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.01
	}
	g := &Graph{
		cost:       opts.ActionCost,
		threshold:  opts.Threshold,
		positive:   map[literalKey]Value{},
		negative:   map[literalKey]Value{},
		achievers:  map[literalKey][]Achiever{},
		schemaDoms: map[string]*binding.StepDomain{},
		types:      types,
	}

	// Step 2: seed level 0 with the initial atoms and timed-initial literals.
	for _, atom := range init.InitialAtoms() {
		g.observe(atom, Value{Cost: 0, Work: 1, Makespan: 0})
	}
	for _, tl := range init.TimedInitialLiterals() {
		v := Value{Cost: tl.Time, Work: 1, Makespan: tl.Time}
		g.observe(tl.Literal, v)
	}

	changed := true
	for changed {
		changed = false
		for _, a := range grounded {
			av := g.valueOf(a.Condition)
			if av.isInfinite() {
				continue
			}
			for _, eff := range a.Effects {
				ev := g.valueOf(eff.Cond)
				if ev.isInfinite() {
					continue
				}
				if eff.LinkCondition != nil && eff.LinkCondition.Contradiction() {
					continue
				}
				contribution := g.contribution(a, eff)
				total := Add(Add(av, ev), contribution)
				if g.improve(eff.Literal, total) {
					g.record(eff.Literal, Achiever{Action: a, Effect: eff})
					changed = true
				}
			}
		}
	}
	return g
}

func (g *Graph) contribution(a *action.Action, eff *action.Effect) Value {
	dur := a.MinDur
	minDuration := 0.0
	if dur != nil {
		if v, err := dur.Evaluate(zeroFluents{}); err == nil {
			minDuration = v
		}
	}
	cost := 1.0
	switch g.cost {
	case ActionCostDuration:
		cost = minDuration
	case ActionCostRelative:
		d := minDuration
		if d < g.threshold {
			d = g.threshold // spec §9: clamp near-zero-duration achievers
		}
		cost = 1 / d
	}
	return Value{Cost: cost, Work: 1, Makespan: g.threshold + minDuration}
}

type zeroFluents struct{}

func (zeroFluents) Value(f *term.Function, args []term.Term) (float64, bool) { return 0, true }

// valueOf computes the heuristic value of an arbitrary formula by structural
// recursion: atoms/negations look up the literal tables, conjunctions sum,
// disjunctions take the min, TRUE is zero-cost, FALSE is Infinite.
func (g *Graph) valueOf(f *formula.Formula) Value {
	switch f.Kind {
	case formula.KindTrue:
		return Value{}
	case formula.KindFalse:
		return Infinite
	case formula.KindAtom:
		return g.HeuristicValue(f, nil)
	case formula.KindNegation:
		return g.HeuristicValue(f, nil)
	case formula.KindConjunction:
		v := Value{}
		for _, p := range f.Parts {
			v = Add(v, g.valueOf(p))
		}
		return v
	case formula.KindDisjunction:
		v := Infinite
		for _, p := range f.Parts {
			v = Min(v, g.valueOf(p))
		}
		return v
	case formula.KindTimed:
		return g.valueOf(f.Literal)
	default:
		return Value{}
	}
}

func (g *Graph) observe(f *formula.Formula, v Value) {
	g.improve(f, v)
}

func (g *Graph) improve(f *formula.Formula, v Value) bool {
	k := keyOf(f)
	tbl := g.positive
	if f.IsNegation() {
		tbl = g.negative
	}
	cur, ok := tbl[k]
	if !ok || v.Cost < cur.Cost || (v.Cost == cur.Cost && (v.Work < cur.Work || v.Makespan < cur.Makespan)) {
		tbl[k] = Min(orInfinite(ok, cur), v)
		return true
	}
	return false
}

func orInfinite(ok bool, v Value) Value {
	if !ok {
		return Infinite
	}
	return v
}

func (g *Graph) record(f *formula.Formula, a Achiever) {
	k := keyOf(f)
	g.achievers[k] = append(g.achievers[k], a)
}

// HeuristicValue returns the componentwise minimum over ground atoms that
// unify with the query (spec §4.3): for a positive literal, the minimum cost
// among every ground instance matching under the given bindings; for a
// negation, 0 if no ground atom unifies (closed-world, spec §4.3 "Negated
// atom handling"), else the precomputed negation value.
func (g *Graph) HeuristicValue(query *formula.Formula, b *binding.Bindings) Value {
	if query.IsNegation() {
		k := keyOf(query)
		if v, ok := g.negative[k]; ok {
			return v
		}
		return Value{} // absent from init under CWA: cost 0
	}
	k := keyOf(query)
	if v, ok := g.positive[k]; ok {
		return v
	}
	return Infinite
}

// LiteralAchievers returns the achiever set for a literal, used by
// open-condition refinement to propose new/reused steps (spec §4.3
// "literal_achievers").
func (g *Graph) LiteralAchievers(literal *formula.Formula) []Achiever {
	return g.achievers[keyOf(literal)]
}

// RegisterActionDomain precomputes the StepDomain restriction for a ground
// action schema name, used when domain_constraints is enabled (spec §4.3
// "action_domain", §8 "domain_constraints" invariant).
func (g *Graph) RegisterActionDomain(name string, dom *binding.StepDomain) {
	g.schemaDoms[name] = dom
}

// ActionDomain returns the precomputed StepDomain restriction for a ground
// action schema name, or nil if none was registered.
func (g *Graph) ActionDomain(name string) *binding.StepDomain { return g.schemaDoms[name] }
