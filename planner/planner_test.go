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

package planner

import (
	"testing"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/expr"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/term"
	"github.com/stretchr/testify/require"
)

// realSteps returns res's non-sentinel steps, the way cmd/poclplan's
// renderPlan and Result.orderedSteps both filter a finished plan down to
// what actually executes.
func realSteps(res *Result) []action.Step {
	var out []action.Step
	for _, s := range res.Plan.Steps.Slice() {
		if !s.IsInitial() && !s.IsGoal() {
			out = append(out, s)
		}
	}
	return out
}

func hasInitLink(res *Result) bool {
	for _, l := range res.Plan.Links.Slice() {
		if l.From == 0 && l.To == action.StepGoal {
			return true
		}
	}
	return false
}

// Scenario 1 (spec §8): trivial achievement. One predicate p, one
// zero-parameter action A whose sole effect asserts p, empty initial state,
// goal p. Expect a one-step plan [A] whose start equals the threshold.
func TestPlanTrivialAchievement(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	p := tt.Predicate("p")
	tt.MarkDynamic(map[string]bool{"p": true}, nil)

	a := &action.Action{
		Name:      "A",
		Condition: formula.True(),
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Atom(p), When: formula.AtStart},
		},
	}
	domain := &Domain{Name: "trivial", Types: tt, Forms: ft, Actions: []*action.Action{a}}
	problem := NewProblem("trivial-1", domain, nil)
	problem.SetGoal(ft.Atom(p))

	res, err := Plan(problem, WithTemporal(0.01))
	require.NoError(t, err)

	steps := realSteps(res)
	require.Len(t, steps, 1)
	require.Equal(t, "A", steps[0].Action.Name)
	require.InDelta(t, 0.01, res.Start[steps[0].ID], 1e-9)
}

// Scenario 2 (spec §8): reuse over add. Predicate p(x), object a, action
// A(x) with a trivially-true precondition and effect p(x); init contains
// p(a); goal p(a). Expect a zero-step plan: the goal links directly to the
// initial step instead of grounding a fresh instance of A.
func TestPlanReuseOverAdd(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	ty := tt.DeclareType("obj")
	objA := tt.DeclareObject("a", ty)
	p := tt.Predicate("p", ty)
	tt.MarkDynamic(map[string]bool{"p": true}, nil)

	x := tt.FreshVariable(ty)
	a := &action.Action{
		Name:       "A",
		Parameters: []term.Term{x},
		Condition:  formula.True(),
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Atom(p, x), When: formula.AtStart},
		},
	}
	domain := &Domain{Name: "reuse", Types: tt, Forms: ft, Actions: []*action.Action{a}}
	problem := NewProblem("reuse-1", domain, []term.Term{objA})
	problem.AddInitialAtom(ft.Atom(p, objA))
	problem.SetGoal(ft.Atom(p, objA))

	res, err := Plan(problem)
	require.NoError(t, err)

	require.Empty(t, realSteps(res))
	require.True(t, hasInitLink(res), "expected a causal link from the initial step to the goal")
}

// Scenario 3 (spec §8): threat resolution by promotion. A establishes p then
// negates q; B requires p and establishes q; goal q. Expect a two-step plan
// in which the search resolves the threat A's ¬q poses to any later
// consumer of q (there are none here, but A's ¬q and B's q on the same
// predicate force an ordering decision) without failing.
func TestPlanThreatResolutionByPromotion(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	p := tt.Predicate("p")
	q := tt.Predicate("q")
	tt.MarkDynamic(map[string]bool{"p": true, "q": true}, nil)

	actA := &action.Action{
		Name:      "A",
		Condition: formula.True(),
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Atom(p), When: formula.AtStart},
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Negation(ft.Atom(q)), When: formula.AtStart},
		},
	}
	actB := &action.Action{
		Name:      "B",
		Condition: ft.Atom(p),
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Atom(q), When: formula.AtStart},
		},
	}
	domain := &Domain{Name: "threat", Types: tt, Forms: ft, Actions: []*action.Action{actA, actB}}
	problem := NewProblem("threat-1", domain, nil)
	problem.SetGoal(ft.Atom(q))

	res, err := Plan(problem)
	require.NoError(t, err)

	steps := realSteps(res)
	require.Len(t, steps, 2)
	var names []string
	for _, s := range steps {
		names = append(names, s.Action.Name)
	}
	require.ElementsMatch(t, []string{"A", "B"}, names)
}

// Scenario 4 (spec §8): separation by inequality. Predicate p(x,y); action
// A(x,y) asserts p(x,y) and, when x != y, negates p(y,x); init contains
// p(a,b); goal p(a,b). A(a,b) would threaten its own established link (its
// negated effect on p(b,a) conflicts with nothing here, but unifying the
// goal against a fresh A(a,b) is strictly more costly than reusing the
// initial fact), so the cheapest plan reuses the initial step.
func TestPlanSeparationByInequality(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	ty := tt.DeclareType("obj")
	objA := tt.DeclareObject("a", ty)
	objB := tt.DeclareObject("b", ty)
	p := tt.Predicate("p", ty, ty)
	tt.MarkDynamic(map[string]bool{"p": true}, nil)

	x := tt.FreshVariable(ty)
	y := tt.FreshVariable(ty)
	actA := &action.Action{
		Name:       "A",
		Parameters: []term.Term{x, y},
		Condition:  formula.True(),
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Atom(p, x, y), When: formula.AtStart},
			{Cond: formula.Inequality(x, y), LinkCondition: formula.True(), Literal: ft.Negation(ft.Atom(p, y, x)), When: formula.AtStart},
		},
	}
	domain := &Domain{Name: "separation", Types: tt, Forms: ft, Actions: []*action.Action{actA}}
	problem := NewProblem("separation-1", domain, []term.Term{objA, objB})
	problem.AddInitialAtom(ft.Atom(p, objA, objB))
	problem.SetGoal(ft.Atom(p, objA, objB))

	res, err := Plan(problem)
	require.NoError(t, err)

	require.Empty(t, realSteps(res))
	require.True(t, hasInitLink(res))
}

// Scenario 5 (spec §8): durative scheduling. A durative action A with
// duration [2,5], an at-start precondition p (statically true in init, so
// it never becomes an open condition) and an at-end effect q; init p, goal
// q, threshold 0.01. Expect A to start at t=0.01 and end at t>=2.01, with
// makespan within [2.01, 5.01].
func TestPlanDurativeScheduling(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	p := tt.Predicate("p")
	q := tt.Predicate("q")
	tt.MarkDynamic(map[string]bool{"q": true}, nil) // p stays static: true in init, never an effect

	actA := &action.Action{
		Name:      "A",
		Durative:  true,
		Condition: ft.Atom(p),
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Atom(q), When: formula.AtEnd},
		},
		MinDur: expr.Const(2),
		MaxDur: expr.Const(5),
	}
	domain := &Domain{Name: "durative", Types: tt, Forms: ft, Actions: []*action.Action{actA}}
	problem := NewProblem("durative-1", domain, nil)
	problem.AddInitialAtom(ft.Atom(p))
	problem.SetGoal(ft.Atom(q))

	res, err := Plan(problem, WithTemporal(0.01))
	require.NoError(t, err)

	steps := realSteps(res)
	require.Len(t, steps, 1)
	s := steps[0]
	require.Equal(t, "A", s.Action.Name)
	require.InDelta(t, 0.01, res.Start[s.ID], 1e-9)
	require.GreaterOrEqual(t, res.End[s.ID], 2.01-1e-9)
	dur := res.End[s.ID] - res.Start[s.ID]
	require.GreaterOrEqual(t, dur, 2.0-1e-9)
	require.LessOrEqual(t, dur, 5.0+1e-9)
	require.GreaterOrEqual(t, res.Makespan, 2.01-1e-9)
	require.LessOrEqual(t, res.Makespan, 5.01+1e-6)
}

// Scenario 6 (spec §8): closed-world negation. Predicate p(x), objects a,b;
// init asserts p(a) only; goal is ¬p(b). Under the closed-world assumption
// a ground, never-asserted-in-effects predicate collapses during
// instantiation: since p is never marked dynamic (no action ever effects
// it), ¬p(b) resolves to True() the moment the goal is added, yielding a
// zero-step complete plan without ever touching the planning graph.
func TestPlanClosedWorldNegation(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	ty := tt.DeclareType("obj")
	objA := tt.DeclareObject("a", ty)
	objB := tt.DeclareObject("b", ty)
	p := tt.Predicate("p", ty)

	domain := &Domain{Name: "cwa", Types: tt, Forms: ft, Actions: nil}
	problem := NewProblem("cwa-1", domain, []term.Term{objA, objB})
	problem.AddInitialAtom(ft.Atom(p, objA))
	problem.SetGoal(ft.Negation(ft.Atom(p, objB)))

	res, err := Plan(problem)
	require.NoError(t, err)

	require.Empty(t, realSteps(res))
}

// Boundary behavior (spec §8): a goal of TRUE is already satisfied; the
// initial plan is complete with zero refinements.
func TestPlanGoalTrueIsImmediatelyComplete(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	domain := &Domain{Name: "trivially-true", Types: tt, Forms: ft}
	problem := NewProblem("true-1", domain, nil)
	problem.SetGoal(formula.True())

	res, err := Plan(problem)
	require.NoError(t, err)
	require.Empty(t, realSteps(res))
	require.Equal(t, 0, res.Expanded)
}

// Boundary behavior (spec §8): a goal of FALSE can never be satisfied; Plan
// must report failure immediately rather than search.
func TestPlanGoalFalseFailsImmediately(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	domain := &Domain{Name: "trivially-false", Types: tt, Forms: ft}
	problem := NewProblem("false-1", domain, nil)
	problem.SetGoal(formula.False())

	_, err := Plan(problem)
	require.Error(t, err)
}
