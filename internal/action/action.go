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

// Package action models effects, action schemas/ground actions and plan
// steps (spec.md §3 Effect/Action/Step), plus ground-action instantiation
// against compatible object tuples (spec §4.3 step 1).
package action

import (
	"github.com/joeycumines/go-pocl/internal/expr"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/term"
)

// Effect carries universally quantified parameters, a firing condition, a
// link condition used for threat separation, a single literal and a
// temporal tag (spec §3 Effect).
type Effect struct {
	Parameters    []term.Term
	Cond          *formula.Formula
	LinkCondition *formula.Formula
	Literal       *formula.Formula // Atom or Negation
	When          formula.When     // AtStart or AtEnd
}

// Action is a (possibly durative) action schema or ground instance. Schemas
// carry Parameters; ground actions carry Arguments and a unique ID.
type Action struct {
	Name       string
	Durative   bool
	Parameters []term.Term // schema only
	Arguments  []term.Term // ground only
	Condition  *formula.Formula
	Effects    []*Effect
	MinDur     *expr.Expr
	MaxDur     *expr.Expr

	id int // ground actions only; 0 for schemas
}

var groundCounter int

// Ground instantiates a schema into a concrete ground action by substituting
// args for Parameters, assigning it a fresh, strictly increasing id (spec
// §3, "Ground actions have a unique id assigned from a counter").
func (a *Action) Ground(tbl *formula.Table, args []term.Term, init formula.InitialState) *Action {
	subst := make(formula.Substitution, len(a.Parameters))
	for i, p := range a.Parameters {
		subst[p] = args[i]
	}
	groundCounter++
	g := &Action{
		Name:      a.Name,
		Durative:  a.Durative,
		Arguments: append([]term.Term(nil), args...),
		Condition: tbl.Instantiate(a.Condition, subst, init),
		id:        groundCounter,
	}
	for _, e := range a.Effects {
		g.Effects = append(g.Effects, e.instantiate(tbl, subst, init))
	}
	if a.MinDur != nil {
		g.MinDur = a.MinDur.Instantiate(toExprSubst(subst))
	}
	if a.MaxDur != nil {
		g.MaxDur = a.MaxDur.Instantiate(toExprSubst(subst))
	}
	return g
}

// ID returns the ground action's unique id (0 for schemas).
func (a *Action) ID() int { return a.id }

func toExprSubst(s formula.Substitution) expr.Substitution {
	out := make(expr.Substitution, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (e *Effect) instantiate(tbl *formula.Table, subst formula.Substitution, init formula.InitialState) *Effect {
	return &Effect{
		Parameters:    append([]term.Term(nil), e.Parameters...),
		Cond:          tbl.Instantiate(e.Cond, subst, init),
		LinkCondition: tbl.Instantiate(e.LinkCondition, subst, init),
		Literal:       tbl.Substitute(e.Literal, subst),
		When:          e.When,
	}
}

// FreshenParams allocates brand-new variables for each of an effect's
// universally quantified parameters and returns the effect with the
// corresponding substitution applied, so that two refinements using the same
// effect schema never alias each other's parameter variables (spec §4.4:
// "freshening effect-universal parameters so they do not collide").
func FreshenParams(tbl *term.Table, ftbl *formula.Table, e *Effect) *Effect {
	if len(e.Parameters) == 0 {
		return e
	}
	subst := make(formula.Substitution, len(e.Parameters))
	params := make([]term.Term, len(e.Parameters))
	for i, p := range e.Parameters {
		nv := tbl.FreshVariable(tbl.TypeOf(p))
		subst[p] = nv
		params[i] = nv
	}
	return &Effect{
		Parameters:    params,
		Cond:          ftbl.Substitute(e.Cond, subst),
		LinkCondition: ftbl.Substitute(e.LinkCondition, subst),
		Literal:       ftbl.Substitute(e.Literal, subst),
		When:          e.When,
	}
}

// Step is a step identifier paired with its (ground) action. Id 0 denotes
// the synthetic initial step; StepGoal denotes the synthetic goal step.
type Step struct {
	ID     int
	Action *Action
}

// StepGoal is the sentinel id for the synthetic goal step ("id ∞", spec §3).
const StepGoal = int(^uint(0) >> 1) // max int, stands in for ∞

// IsInitial reports whether s is the synthetic initial step.
func (s Step) IsInitial() bool { return s.ID == 0 }

// IsGoal reports whether s is the synthetic goal step.
func (s Step) IsGoal() bool { return s.ID == StepGoal }

// NoOp reports whether a is a zero-parameter, effect-less action: it can
// never usefully be added by refinement (spec §8, boundary behavior).
func (a *Action) NoOp() bool {
	return len(a.Parameters) == 0 && len(a.Arguments) == 0 && len(a.Effects) == 0
}
