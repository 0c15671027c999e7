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
	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/ordering"
)

// refineUnsafe enumerates the three standard threat-resolution moves (spec
// §4.4 "Unsafe resolution"): promote the threatening step after the link's
// consumer, demote it before the link's producer, or separate by adding the
// binding constraints that keep the threatening effect from ever unifying
// with the link's condition.
//
// In testOnly mode (spec §4.5's counting routines, e.g. unsafe_refinements)
// the real child plans are never assembled: each move's feasibility is
// checked directly against the orderings/bindings solvers, and the
// placeholder entries in the returned slice (the receiver itself, reused)
// exist only so callers can take len() of the result.
func (p *Plan) refineUnsafe(f flaw.Flaw, testOnly bool) ([]*Plan, error) {
	if testOnly {
		var out []*Plan
		if p.canPromote(f) {
			out = append(out, p)
		}
		if p.canDemote(f) {
			out = append(out, p)
		}
		if f.Separable && p.canSeparate(f) {
			out = append(out, p)
		}
		return out, nil
	}

	var out []*Plan

	if child, ok := p.promote(f); ok {
		out = append(out, child)
	}
	if child, ok := p.demote(f); ok {
		out = append(out, child)
	}
	if f.Separable {
		if child, ok := p.separate(f); ok {
			out = append(out, child)
		}
	}

	return out, nil
}

// canPromote reports whether promote(f) would succeed, without building the
// child plan.
func (p *Plan) canPromote(f flaw.Flaw) bool {
	threatEnd := ordering.Point{Step: f.ThreatStep, End: f.ThreatEffect.When == formula.AtEnd}
	toStart := ordering.Point{Step: f.LinkTo}
	_, err := p.Orderings.RefinePoint(toStart, threatEnd)
	return err == nil
}

// canDemote reports whether demote(f) would succeed, without building the
// child plan.
func (p *Plan) canDemote(f flaw.Flaw) bool {
	threatStart := ordering.Point{Step: f.ThreatStep}
	fromEnd := ordering.Point{Step: f.LinkFrom, End: true}
	_, err := p.Orderings.RefinePoint(threatStart, fromEnd)
	return err == nil
}

// canSeparate reports whether separate(f) would succeed, testing against a
// disposable clone so the receiver's bindings are left untouched.
func (p *Plan) canSeparate(f flaw.Flaw) bool {
	sep := formula.SeparatorFromEffect(f.LinkLiteral, f.ThreatEffect.Literal)
	if sep.Tautology() {
		return true
	}
	if sep.Contradiction() {
		return false
	}
	np := p.clone()
	return np.addGoal(f.ThreatStep, sep, formula.AtStart) == nil
}

// promote orders the threatening step after the link's consumer point.
func (p *Plan) promote(f flaw.Flaw) (*Plan, bool) {
	np := p.withoutUnsafe(f)
	threatEnd := ordering.Point{Step: f.ThreatStep, End: f.ThreatEffect.When == formula.AtEnd}
	toStart := ordering.Point{Step: f.LinkTo}
	solver, err := np.Orderings.RefinePoint(toStart, threatEnd)
	if err != nil {
		return nil, false
	}
	np.Orderings = solver
	return np, true
}

// demote orders the threatening step before the link's producer point.
func (p *Plan) demote(f flaw.Flaw) (*Plan, bool) {
	np := p.withoutUnsafe(f)
	threatStart := ordering.Point{Step: f.ThreatStep}
	fromEnd := ordering.Point{Step: f.LinkFrom, End: true}
	solver, err := np.Orderings.RefinePoint(threatStart, fromEnd)
	if err != nil {
		return nil, false
	}
	np.Orderings = solver
	return np, true
}

// separate adds the inequality constraints of separator_from_effect to the
// bindings solver, ruling out the unification that made the effect a threat.
func (p *Plan) separate(f flaw.Flaw) (*Plan, bool) {
	np := p.withoutUnsafe(f)
	sep := formula.SeparatorFromEffect(f.LinkLiteral, f.ThreatEffect.Literal)
	if sep.Tautology() {
		return np, true
	}
	if sep.Contradiction() {
		return nil, false
	}
	if err := np.addGoal(f.ThreatStep, sep, formula.AtStart); err != nil {
		return nil, false
	}
	return np, true
}

func (p *Plan) withoutUnsafe(f flaw.Flaw) *Plan {
	np := p.clone()
	np.Unsafes = p.removeUnsafe(f)
	return np
}
