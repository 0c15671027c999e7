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
	"github.com/joeycumines/go-pocl/internal/binding"
	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/ordering"
)

// detectThreats scans every step currently in the plan for an effect that
// could negate link's condition and is not provably ordered outside the
// link's span, producing one Unsafe flaw per such (step, effect) pair (spec
// §4.4, "whenever a causal link is added, scan every step whose ordering is
// not already fixed outside the link's span").
func (p *Plan) detectThreats(link Link) []flaw.Flaw {
	var out []flaw.Flaw
	for _, s := range p.Steps.Slice() {
		if s.ID == link.From || s.ID == link.To || s.Action == nil {
			continue
		}
		for _, eff := range s.Action.Effects {
			if !binding.Affects(p.ctx.Types, link.Condition, link.To, eff.Literal, s.ID) {
				continue
			}
			if !p.couldIntervene(link, s.ID, eff.When) {
				continue
			}
			sep := p.separable(link, s.ID, eff)
			out = append(out, flaw.Unsafe(link.From, link.To, link.Condition, s.ID, eff, sep))
		}
	}
	return out
}

// couldIntervene reports whether step could occur between the link's
// producer and consumer under the current orderings (i.e. the threat has not
// already been ruled out by existing ordering constraints).
func (p *Plan) couldIntervene(link Link, step int, when formula.When) bool {
	threatPoint := ordering.Point{Step: step, End: when == formula.AtEnd}
	fromPoint := ordering.Point{Step: link.From, End: link.FromWhen == formula.AtEnd}
	toPoint := ordering.Point{Step: link.To, End: link.ToWhen == formula.AtEnd}
	afterFrom := p.Orderings.PossiblyBefore(fromPoint, threatPoint, ordering.Before) || samePoint(fromPoint, threatPoint)
	beforeTo := p.Orderings.PossiblyBefore(threatPoint, toPoint, ordering.Before) || samePoint(threatPoint, toPoint)
	return afterFrom && beforeTo
}

func samePoint(a, b ordering.Point) bool { return a == b }

// separable reports whether a binding exists that keeps the threatening
// effect's literal from unifying with the link's condition (spec §4.4,
// "Separable... if adding the inequality constraints of
// separator_from_effect is consistent with the bindings solver").
func (p *Plan) separable(link Link, step int, eff *action.Effect) bool {
	sep := formula.SeparatorFromEffect(link.Condition, eff.Literal)
	if sep.Tautology() {
		return true
	}
	if sep.Contradiction() {
		return false
	}
	// sep is a disjunction of inequalities: one consistent disjunct suffices.
	for _, part := range sep.Parts {
		if p.Bindings.ConsistentWith(toBinding(part, step)) {
			return true
		}
	}
	return false
}

// addLink conses a new Link and adds every Unsafe flaw it introduces.
func (p *Plan) addLink(link Link) *Plan {
	p.Links = Cons(link, p.Links)
	for _, t := range p.detectThreats(link) {
		p.Unsafes = Cons(t, p.Unsafes)
	}
	return p
}
