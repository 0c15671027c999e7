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

package plan

import (
	"math"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/binding"
	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/ordering"
	"github.com/joeycumines/go-pocl/internal/term"
)

// refineOpenCondition enumerates the refinements for an OpenCondition flaw
// (spec §4.4): a Disjunction branches one child per disjunct, a branchable
// Inequality commits to the constraint, and an Atom/Negation literal is
// repaired by reusing an existing step's matching effect or by adding a
// fresh step, for every achiever the planning graph (or, lacking one, the
// domain's action schemas) records.
func (p *Plan) refineOpenCondition(f flaw.Flaw, testOnly bool) ([]*Plan, error) {
	switch f.Formula.Kind {
	case formula.KindDisjunction:
		return p.refineDisjunction(f)
	case formula.KindInequality:
		return p.refineBranchInequality(f)
	default:
		return p.refineLiteral(f, testOnly)
	}
}

func (p *Plan) refineDisjunction(f flaw.Flaw) ([]*Plan, error) {
	base := p.withoutOpen(f)
	var out []*Plan
	for _, part := range f.Formula.Parts {
		child := base.clone()
		if err := child.addGoal(f.Step, part, f.When); err == nil {
			out = append(out, child)
		}
	}
	return out, nil
}

func (p *Plan) refineBranchInequality(f flaw.Flaw) ([]*Plan, error) {
	base := p.withoutOpen(f)
	nb, err := base.Bindings.Add([]binding.Binding{toBinding(f.Formula, f.Step)}, false)
	if err != nil {
		return nil, nil
	}
	base.Bindings = nb
	return []*Plan{base}, nil
}

func (p *Plan) withoutOpen(f flaw.Flaw) *Plan {
	np := p.clone()
	np.Opens = p.removeOpen(f)
	return np
}

// refineLiteral is the core causal-link establishment step: find every
// candidate achiever (reusing an existing step, or instantiating a fresh one
// from a schema), and for each, produce the child plan with the new causal
// link, updated bindings/orderings, and any Unsafe flaws it introduces.
func (p *Plan) refineLiteral(f flaw.Flaw, testOnly bool) ([]*Plan, error) {
	var out []*Plan

	for _, s := range p.Steps.Slice() {
		if s.Action == nil || s.ID == f.Step {
			continue
		}
		for _, eff := range s.Action.Effects {
			if child, ok := p.tryLink(f, s.ID, eff, testOnly); ok {
				out = append(out, child)
			}
		}
	}

	if negCWA, handled := p.tryNegationCWA(f); handled {
		out = append(out, negCWA...)
	}

	if p.ctx.Graph != nil {
		for _, ach := range p.ctx.Graph.LiteralAchievers(f.Formula) {
			if child, ok := p.tryNewStep(f, ach.Action, ach.Effect, testOnly); ok {
				out = append(out, child)
			}
		}
		return out, nil
	}

	for _, schema := range p.ctx.Schemas {
		fresh := freshenSchema(p, schema)
		for _, eff := range fresh.Effects {
			if child, ok := p.tryNewStep(f, fresh, eff, testOnly); ok {
				out = append(out, child)
			}
		}
	}

	return out, nil
}

// tryNegationCWA handles a negative open condition under the closed-world
// assumption: if the positive atom is not asserted by the initial state and
// no step's effect can possibly assert it (so it can never become true),
// the negation holds vacuously and the flaw is simply dropped (spec §4.3
// "Negated atom handling", §4.4).
func (p *Plan) tryNegationCWA(f flaw.Flaw) ([]*Plan, bool) {
	if !f.Formula.IsNegation() {
		return nil, false
	}
	if p.ctx.Graph == nil {
		return nil, false
	}
	atom := f.Formula.Atomic()
	if atom.ID == 0 {
		return nil, false // lifted: cannot yet decide under CWA
	}
	v := p.ctx.Graph.HeuristicValue(atom, p.Bindings)
	if math.IsInf(v.Cost, 1) {
		np := p.withoutOpen(f)
		return []*Plan{np}, true
	}
	return nil, false
}

// tryLink attempts to satisfy f by reusing step achieverID's effect as the
// establisher, unifying f's literal with the effect's literal and adding the
// resulting bindings, ordering, and causal link.
//
// In testOnly mode (spec §4.5's reusable_steps/addable_steps counting
// routines) every feasibility check below still runs in full — unification,
// binding consistency, ordering consistency, and the establishing effect's
// own condition/link-condition — but the threat scan in addLink is skipped,
// since a counting caller only ever measures len() of the result.
func (p *Plan) tryLink(f flaw.Flaw, achieverID int, eff *action.Effect, testOnly bool) (*Plan, bool) {
	if eff.Literal.IsNegation() != f.Formula.IsNegation() {
		return nil, false
	}
	binds, ok := binding.Unify(p.ctx.Types, f.Formula, f.Step, eff.Literal, achieverID)
	if !ok {
		return nil, false
	}
	np := p.withoutOpen(f)
	nb, err := np.Bindings.Add(binds, false)
	if err != nil {
		return nil, false
	}
	np.Bindings = nb

	fromPoint := ordering.Point{Step: achieverID, End: eff.When == formula.AtEnd}
	toPoint := ordering.Point{Step: f.Step, End: f.When == formula.AtEnd}
	solver, err := np.Orderings.RefinePoint(fromPoint, toPoint)
	if err != nil {
		return nil, false
	}
	np.Orderings = solver

	// A non-trivial firing condition or link condition on the establishing
	// effect becomes a new open condition on the producing step (spec §4.4
	// open-condition step 2); effect-universal parameters are freshened
	// first so two links through the same effect never alias each other's
	// quantified variables.
	fresh := action.FreshenParams(np.ctx.Types, np.ctx.Forms, eff)
	if fresh.Cond != nil && !fresh.Cond.Tautology() {
		if err := np.addGoal(achieverID, fresh.Cond, eff.When); err != nil {
			return nil, false
		}
	}
	if fresh.LinkCondition != nil && !fresh.LinkCondition.Tautology() {
		if err := np.addGoal(achieverID, fresh.LinkCondition, eff.When); err != nil {
			return nil, false
		}
	}

	if testOnly {
		return np, true
	}

	link := Link{From: achieverID, To: f.Step, FromWhen: eff.When, ToWhen: f.When, Condition: f.Formula}
	np = np.addLink(link)
	return np, true
}

// tryNewStep grounds a fresh step from schema and its effect eff, registers
// it with the plan (steps/orderings/bindings/step-domain), then delegates to
// tryLink to complete the causal link; it also seeds the new step's own
// preconditions as further open conditions (spec §4.4 step 3). testOnly is
// threaded straight through to tryLink.
func (p *Plan) tryNewStep(f flaw.Flaw, schema *action.Action, eff *action.Effect, testOnly bool) (*Plan, bool) {
	if eff.Literal.IsNegation() != f.Formula.IsNegation() {
		return nil, false
	}
	id := p.NextStepID
	step := action.Step{ID: id, Action: schema}

	np := p.clone()
	np.NextStepID = id + 1
	np.Steps = Cons(step, np.Steps)
	np.MutexScanPending = true

	solver, err := np.Orderings.RefineStep(stepDuration(np, id, schema))
	if err != nil {
		return nil, false
	}
	np.Orderings = solver

	if np.ctx.DomainConstraints {
		if sd := schemaStepDomain(np, id, schema); sd != nil {
			np.Bindings = np.Bindings.RegisterStepDomain(sd)
		}
	}

	if err := np.addGoal(id, schema.Condition, formula.AtStart); err != nil {
		return nil, false
	}

	child, ok := np.tryLink(f, id, eff, testOnly)
	if !ok {
		return nil, false
	}
	return child, true
}

func stepDuration(p *Plan, id int, a *action.Action) ordering.StepDuration {
	d := ordering.StepDuration{Step: id, Max: math.Inf(1)}
	fv := p.ctx.Fluents
	if fv == nil {
		fv = zeroFluents{}
	}
	if a.MinDur != nil {
		if v, err := a.MinDur.Evaluate(fv); err == nil {
			d.Min = v
		}
	}
	if a.MaxDur != nil {
		if v, err := a.MaxDur.Evaluate(fv); err == nil {
			d.Max = v
		}
	}
	if p.ctx.Graph != nil {
		g := p.ctx.Graph.HeuristicValue(a.Condition, p.Bindings)
		if !math.IsInf(g.Makespan, 1) {
			d.StartLowerBound = g.Makespan
		}
	}
	return d
}

// zeroFluents stands in for the problem's fluent-value table when none is
// configured: every fluent evaluates to zero, so duration expressions that
// reference undeclared fluents degrade to their additive identity rather
// than failing plan construction outright.
type zeroFluents struct{}

func (zeroFluents) Value(f *term.Function, args []term.Term) (float64, bool) { return 0, true }
