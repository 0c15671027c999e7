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

// Package plan implements the Plan data structure and the refinement
// operators of spec.md §3 (Plan, Link) and §4.4 (Plan Refinement): the space
// of ways to repair an OpenCondition, Unsafe, or MutexThreat flaw.
package plan

import (
	"fmt"
	"math/rand"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/binding"
	"github.com/joeycumines/go-pocl/internal/expr"
	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/ordering"
	"github.com/joeycumines/go-pocl/internal/pgraph"
	"github.com/joeycumines/go-pocl/internal/term"
)

// Link represents "the effect of From at FromWhen establishes Condition,
// required by To at ToWhen" (spec §3 Link).
type Link struct {
	From, To         int
	FromWhen, ToWhen formula.When
	Condition        *formula.Formula
}

// Context bundles the read-only, plan-independent inputs refinement needs:
// interning tables, the planning-graph heuristic (if grounding is enabled),
// and the handful of configuration flags spec §6 requires before search
// (domain_constraints, keep_static_preconditions, random_open_conditions).
type Context struct {
	Types     *term.Table
	Forms     *formula.Table
	Graph     *pgraph.Graph // nil if the driver does not ground eagerly
	Schemas   []*action.Action
	Init      formula.InitialState
	Fluents   expr.FluentValues // may be nil; every fluent in a duration then evaluates to zero

	DomainConstraints      bool
	KeepStaticPreconditions bool
	RandomOpenConditions   bool
	Temporal               bool
	Threshold              float64
	RNG                    *rand.Rand
}

// Plan is the immutable partial-plan value of spec §3. Refinement always
// produces a new Plan; the previous value is left untouched and may still be
// referenced by sibling branches in the search queue.
type Plan struct {
	ctx *Context

	Steps   *Chain[action.Step]
	Links   *Chain[Link]
	Opens   *Chain[flaw.Flaw]
	Unsafes *Chain[flaw.Flaw]
	Mutexes *Chain[flaw.Flaw]
	// MutexScanPending replaces the spec's sentinel mutex-threat placeholder
	// (§9 open question) with a plain flag: true until the first full
	// pairwise mutex scan has run against this plan's step set.
	MutexScanPending bool

	Bindings  *binding.Bindings
	Orderings ordering.Solver

	NextStepID int
	Serial     int // monotonic allocation counter, for LIFO/FIFO flaw tie-breaks
}

// IsComplete reports whether no flaws remain (spec §8 "No Unsafe,
// OpenCondition, or MutexThreat remains in a complete plan").
func (p *Plan) IsComplete() bool {
	return p.Opens == nil && p.Unsafes == nil && p.Mutexes == nil && !p.MutexScanPending
}

func (p *Plan) clone() *Plan {
	np := *p
	return &np
}

func (p *Plan) nextSerial() int {
	p.Serial++
	return p.Serial
}

// addGoal decomposes f per formula.Decompose (spec §4.4 "Consistency with
// add_goal"), conses one OpenCondition flaw per literal or branchable part
// onto np's Opens chain, and adds the equalities to np's bindings.
func (np *Plan) addGoal(step int, f *formula.Formula, when formula.When) error {
	f = np.ctx.Forms.Instantiate(f, nil, np.ctx.Init)
	opts := formula.DecomposeOptions{
		RandomOrder:            np.ctx.RandomOpenConditions,
		RNG:                    np.ctx.RNG,
		BranchVarVarInequality: true,
	}
	if np.ctx.KeepStaticPreconditions {
		opts.StripStaticLiterals = nil
	} else {
		opts.StripStaticLiterals = func(lit *formula.Formula) bool {
			atom := lit.Atomic()
			return atom.ID != 0 && atom.Predicate.Static
		}
	}
	d := formula.Decompose(f, opts)
	if d.Contradiction {
		return errNoSolution
	}
	for _, lit := range d.Literals {
		np.Opens = Cons(flaw.OpenCondition(step, lit, when, lit.Atomic().Predicate != nil && lit.Atomic().Predicate.Static), np.Opens)
	}
	for _, br := range d.Branchable {
		np.Opens = Cons(flaw.OpenCondition(step, br, when, false), np.Opens)
	}
	var binds []binding.Binding
	for _, eq := range d.Equalities {
		binds = append(binds, toBinding(eq, step))
	}
	if len(binds) > 0 {
		nb, err := np.Bindings.Add(binds, false)
		if err != nil {
			return errNoSolution
		}
		np.Bindings = nb
	}
	return nil
}

func toBinding(f *formula.Formula, step int) binding.Binding {
	return binding.Binding{
		Var: f.Var, VarStep: step,
		Term: f.ArgB, TermStep: step,
		Equality: f.Kind == formula.KindEquality,
	}
}

// errNoSolution signals a refinement that can never succeed (a contradictory
// goal); it is not a search error, merely an empty refinement set (spec §7
// "refinement failures... are not errors; they simply prune the branch").
var errNoSolution = fmt.Errorf("plan: contradiction")

// initialAtomsProvider is the subset of pgraph.InitialState that exposes the
// ground atoms asserted by the problem's initial state; Context.Init only
// promises formula.InitialState, so this is checked with a type assertion.
type initialAtomsProvider interface {
	InitialAtoms() []*formula.Formula
}

// initStep builds step 0 as a real step whose action's effects are exactly
// the problem's initial atoms, so that refineLiteral's step-reuse loop
// (spec §4.4 "reuse step") can establish a causal link directly from the
// initial state instead of always instantiating a fresh step (spec §8
// scenario 2, "reuse over add": a goal already true in the initial state
// must resolve to a zero-step plan, not a freshly-grounded action).
func initStep(ctx *Context) action.Step {
	ap, ok := ctx.Init.(initialAtomsProvider)
	if !ok {
		return action.Step{ID: 0}
	}
	atoms := ap.InitialAtoms()
	if len(atoms) == 0 {
		return action.Step{ID: 0}
	}
	effects := make([]*action.Effect, len(atoms))
	for i, atom := range atoms {
		effects[i] = &action.Effect{Cond: formula.True(), LinkCondition: formula.True(), Literal: atom, When: formula.AtStart}
	}
	return action.Step{ID: 0, Action: &action.Action{Name: "<init>", Condition: formula.True(), Effects: effects}}
}

// New builds the initial plan from the problem's goal: step 0 (the
// synthetic initial step), the synthetic goal step, and open conditions
// derived from the goal formula (spec §4.6 step 1).
func New(ctx *Context, goal *formula.Formula) (*Plan, error) {
	p := &Plan{
		ctx:        ctx,
		Steps:      Cons(action.Step{ID: action.StepGoal}, Cons(initStep(ctx), nil)),
		Bindings:   binding.New(ctx.Types, ctx.Forms),
		Orderings:  newSolver(ctx),
		NextStepID: 1,
	}
	var err error
	if p.Orderings, err = p.Orderings.RefineStep(ordering.StepDuration{Step: 0}); err != nil {
		return nil, err
	}
	if p.Orderings, err = p.Orderings.RefineStep(ordering.StepDuration{Step: action.StepGoal}); err != nil {
		return nil, err
	}
	if err := p.addGoal(action.StepGoal, goal, formula.AtStart); err != nil {
		return nil, err
	}
	return p, nil
}

func newSolver(ctx *Context) ordering.Solver {
	if ctx.Temporal {
		return ordering.NewTemporal(ctx.Threshold)
	}
	return ordering.NewBinary()
}

// Refinements enumerates every child plan obtained by repairing f (one of
// p.Opens/Unsafes/Mutexes), dispatching on its Kind (spec §4.4).
func (p *Plan) Refinements(f flaw.Flaw, testOnly bool) ([]*Plan, error) {
	switch f.Kind {
	case flaw.KindOpenCondition:
		return p.refineOpenCondition(f, testOnly)
	case flaw.KindUnsafe:
		return p.refineUnsafe(f, testOnly)
	default:
		return p.refineMutex(f, testOnly)
	}
}

// removeOpen returns a copy of p.Opens without f (by value equality on the
// flaw's identifying fields).
func (p *Plan) removeOpen(f flaw.Flaw) *Chain[flaw.Flaw] {
	return Filter(p.Opens, func(o flaw.Flaw) bool { return !sameOpen(o, f) })
}

func sameOpen(a, b flaw.Flaw) bool {
	return a.Step == b.Step && a.Formula == b.Formula && a.When == b.When
}

func (p *Plan) removeUnsafe(f flaw.Flaw) *Chain[flaw.Flaw] {
	return Filter(p.Unsafes, func(o flaw.Flaw) bool {
		return !(o.LinkFrom == f.LinkFrom && o.LinkTo == f.LinkTo && o.ThreatStep == f.ThreatStep && o.LinkLiteral == f.LinkLiteral)
	})
}

func (p *Plan) removeMutex(f flaw.Flaw) *Chain[flaw.Flaw] {
	return Filter(p.Mutexes, func(o flaw.Flaw) bool {
		return !(o.Step1 == f.Step1 && o.Step2 == f.Step2 && o.Effect1 == f.Effect1 && o.Effect2 == f.Effect2)
	})
}

// Schedule returns each step's start/end time and the plan's makespan (spec
// §6 "a scheduler that returns per-step start and end times").
func (p *Plan) Schedule() (start, end map[int]float64, makespan float64) {
	return p.Orderings.Schedule()
}
