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
	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/ordering"
)

// refineMutex enumerates the resolutions for a MutexThreat flaw (spec §4.4
// "Mutex resolution"): order one step's effect entirely before the other's,
// in either direction, or separate their effects with a binding constraint
// so they can never collide even if left concurrent.
//
// testOnly mirrors refineUnsafe's counting mode: feasibility is checked
// directly against the solvers and the placeholder entries reused from the
// receiver, without assembling real child plans.
func (p *Plan) refineMutex(f flaw.Flaw, testOnly bool) ([]*Plan, error) {
	if testOnly {
		var out []*Plan
		if p.canOrderMutex(f.Step1, f.Effect1, f.Step2) {
			out = append(out, p)
		}
		if p.canOrderMutex(f.Step2, f.Effect2, f.Step1) {
			out = append(out, p)
		}
		if p.canSeparateMutex(f) {
			out = append(out, p)
		}
		return out, nil
	}

	var out []*Plan

	if child, ok := p.orderMutex(f, f.Step1, f.Effect1, f.Step2); ok {
		out = append(out, child)
	}
	if child, ok := p.orderMutex(f, f.Step2, f.Effect2, f.Step1); ok {
		out = append(out, child)
	}
	if child, ok := p.separateMutex(f); ok {
		out = append(out, child)
	}

	return out, nil
}

// canOrderMutex reports whether orderMutex(f, firstStep, firstEff,
// secondStep) would succeed, without building the child plan.
func (p *Plan) canOrderMutex(firstStep int, firstEff *action.Effect, secondStep int) bool {
	firstPoint := ordering.Point{Step: firstStep, End: firstEff.When == formula.AtEnd}
	secondPoint := ordering.Point{Step: secondStep}
	_, err := p.Orderings.RefinePoint(firstPoint, secondPoint)
	return err == nil
}

// canSeparateMutex reports whether separateMutex(f) would succeed, testing
// against a disposable clone so the receiver's bindings are left untouched.
func (p *Plan) canSeparateMutex(f flaw.Flaw) bool {
	sep := formula.SeparatorFromEffect(f.Effect1.Literal, f.Effect2.Literal)
	if sep.Tautology() {
		return true
	}
	if sep.Contradiction() {
		return false
	}
	np := p.clone()
	return np.addGoal(f.Step1, sep, formula.AtStart) == nil
}

func (p *Plan) orderMutex(f flaw.Flaw, firstStep int, firstEff *action.Effect, secondStep int) (*Plan, bool) {
	np := p.withoutMutex(f)
	firstPoint := ordering.Point{Step: firstStep, End: firstEff.When == formula.AtEnd}
	secondPoint := ordering.Point{Step: secondStep}
	solver, err := np.Orderings.RefinePoint(firstPoint, secondPoint)
	if err != nil {
		return nil, false
	}
	np.Orderings = solver
	return np, true
}

func (p *Plan) separateMutex(f flaw.Flaw) (*Plan, bool) {
	np := p.withoutMutex(f)
	sep := formula.SeparatorFromEffect(f.Effect1.Literal, f.Effect2.Literal)
	if sep.Tautology() {
		return np, true
	}
	if sep.Contradiction() {
		return nil, false
	}
	if err := np.addGoal(f.Step1, sep, formula.AtStart); err != nil {
		return nil, false
	}
	return np, true
}

func (p *Plan) withoutMutex(f flaw.Flaw) *Plan {
	np := p.clone()
	np.Mutexes = p.removeMutex(f)
	return np
}
