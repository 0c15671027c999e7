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
	"testing"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/binding"
	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/ordering"
	"github.com/joeycumines/go-pocl/internal/term"
)

// fakeInit is a minimal formula.InitialState that also implements
// initialAtomsProvider when atoms is non-nil, mirroring planner.Problem.
type fakeInit struct {
	atoms map[string]bool
	list  []*formula.Formula
}

func (f *fakeInit) Holds(p *term.Predicate, args []term.Term) bool {
	if f.atoms == nil {
		return false
	}
	return f.atoms[p.Name]
}
func (f *fakeInit) ObjectsOfType(ty term.Type) []term.Term { return nil }
func (f *fakeInit) TypeOf(t term.Term) term.Type           { return term.Object }
func (f *fakeInit) InitialAtoms() []*formula.Formula        { return f.list }

func newCtx(tt *term.Table, ft *formula.Table, schemas []*action.Action, init *fakeInit) *Context {
	return &Context{
		Types:   tt,
		Forms:   ft,
		Schemas: schemas,
		Init:    init,
	}
}

func TestNewSeedsOpenConditionForGroundGoal(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	p := tt.Predicate("p")
	tt.MarkDynamic(map[string]bool{"p": true}, nil)

	ctx := newCtx(tt, ft, nil, &fakeInit{})
	pl, err := New(ctx, ft.Atom(p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Opens.Len() != 1 {
		t.Fatalf("expected exactly one open condition for the goal, got %d", pl.Opens.Len())
	}
	if pl.IsComplete() {
		t.Errorf("a plan with an open condition must not be complete")
	}
	if pl.Opens.Head.Step != action.StepGoal {
		t.Errorf("the seeded open condition should be attached to the goal step, got %d", pl.Opens.Head.Step)
	}
}

func TestNewDecomposesConjunctionIntoMultipleOpens(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	p := tt.Predicate("p")
	q := tt.Predicate("q")
	tt.MarkDynamic(map[string]bool{"p": true, "q": true}, nil)

	ctx := newCtx(tt, ft, nil, &fakeInit{})
	goal := ft.And(ft.Atom(p), ft.Atom(q))
	pl, err := New(ctx, goal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Opens.Len() != 2 {
		t.Fatalf("expected a conjunction to decompose into 2 open conditions, got %d", pl.Opens.Len())
	}
}

// TestRefineLiteralReusesInitFact is spec §8 scenario 2 ("reuse over add"):
// predicate p(x), object a, action A(x) with precondition TRUE and effect
// p(x); init contains p(a); goal p(a). The expected refinement is a
// zero-added-step plan linking directly from the init step.
func TestRefineLiteralReusesInitFact(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	pPred := tt.Predicate("p", term.Object)
	tt.MarkDynamic(map[string]bool{"p": true}, nil)
	a := tt.DeclareObject("a", term.Object)
	v := tt.FreshVariable(term.Object)

	schemaA := &action.Action{
		Name:       "A",
		Parameters: []term.Term{v},
		Condition:  formula.True(),
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Atom(pPred, v), When: formula.AtStart},
		},
	}

	initAtom := ft.Atom(pPred, a)
	init := &fakeInit{atoms: map[string]bool{"p": true}, list: []*formula.Formula{initAtom}}
	ctx := newCtx(tt, ft, []*action.Action{schemaA}, init)

	pl, err := New(ctx, ft.Atom(pPred, a))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pl.Opens.Len() != 1 {
		t.Fatalf("expected one open condition, got %d", pl.Opens.Len())
	}

	children, err := pl.Refinements(pl.Opens.Head, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) == 0 {
		t.Fatalf("expected at least one refinement")
	}

	var foundZeroStep bool
	for _, c := range children {
		if c.Steps.Len() == 2 {
			foundZeroStep = true
			links := c.Links.Slice()
			if len(links) != 1 || links[0].From != 0 || links[0].To != action.StepGoal {
				t.Errorf("the zero-step child should link directly from the init step to the goal, got %+v", links)
			}
		}
	}
	if !foundZeroStep {
		t.Fatalf("expected a zero-added-step refinement reusing the init fact, got %d children with step counts %v", len(children), stepCounts(children))
	}
}

func stepCounts(ps []*Plan) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Steps.Len()
	}
	return out
}

// TestRefineLiteralAddsFreshStepWhenNoReuseExists is spec §8 scenario 1
// ("trivial achievement"): no init facts or existing steps can satisfy the
// goal, so the only refinement grounds a fresh step from the schema.
func TestRefineLiteralAddsFreshStepWhenNoReuseExists(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	pPred := tt.Predicate("p")
	tt.MarkDynamic(map[string]bool{"p": true}, nil)

	schemaA := &action.Action{
		Name:      "A",
		Condition: formula.True(),
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: ft.Atom(pPred), When: formula.AtStart},
		},
	}
	ctx := newCtx(tt, ft, []*action.Action{schemaA}, &fakeInit{})

	pl, err := New(ctx, ft.Atom(pPred))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	children, err := pl.Refinements(pl.Opens.Head, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected exactly one refinement (grounding A), got %d", len(children))
	}
	child := children[0]
	if child.Steps.Len() != 3 {
		t.Fatalf("expected the child to have exactly one added step (init+goal+A), got %d steps", child.Steps.Len())
	}
	// adding a step always leaves a mutex scan pending; only after that scan
	// finds nothing does the plan become complete (spec §4.4 mutex resolution).
	child = child.ScanMutexes()
	if !child.IsComplete() {
		t.Errorf("expected the child to be complete after its mutex scan (A's precondition TRUE needs no further opens), got opens=%v unsafes=%v mutexes=%v pending=%v",
			child.Opens, child.Unsafes, child.Mutexes, child.MutexScanPending)
	}
}

// TestAddLinkDetectsThreatAndRefineUnsafeResolvesIt exercises spec §8
// scenario 3 (threat resolution): a step whose effect negates an established
// causal link's condition, left unordered, must be flagged Unsafe, and
// refineUnsafe must resolve it by demotion; promotion is impossible here
// because the link's consumer is the goal step, which every step precedes.
func TestAddLinkDetectsThreatAndRefineUnsafeResolvesIt(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	pPred := tt.Predicate("p")
	tt.MarkDynamic(map[string]bool{"p": true}, nil)
	atomP := ft.Atom(pPred)
	negP := ft.Negation(atomP)

	ctx := &Context{Types: tt, Forms: ft, Init: &fakeInit{}}

	stepA := action.Step{ID: 1, Action: &action.Action{
		Name: "A",
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: atomP, When: formula.AtStart},
		},
	}}
	stepB := action.Step{ID: 2, Action: &action.Action{
		Name: "B",
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: negP, When: formula.AtStart},
		},
	}}

	pl := &Plan{
		ctx:        ctx,
		Steps:      Cons(action.Step{ID: action.StepGoal}, Cons(stepA, Cons(stepB, Cons(action.Step{ID: 0}, nil)))),
		Bindings:   binding.New(tt, ft),
		Orderings:  ordering.NewBinary(),
		NextStepID: 3,
	}
	var err error
	for _, id := range []int{0, 1, 2, action.StepGoal} {
		pl.Orderings, err = pl.Orderings.RefineStep(ordering.StepDuration{Step: id})
		if err != nil {
			t.Fatalf("unexpected error registering step %d: %v", id, err)
		}
	}

	pl = pl.addLink(Link{From: 1, To: action.StepGoal, FromWhen: formula.AtStart, ToWhen: formula.AtStart, Condition: atomP})
	if pl.Unsafes.Len() != 1 {
		t.Fatalf("expected exactly one Unsafe flaw after addLink, got %d", pl.Unsafes.Len())
	}
	threat := pl.Unsafes.Head
	if threat.ThreatStep != 2 {
		t.Fatalf("expected step B (id 2) to be recorded as the threatening step, got %d", threat.ThreatStep)
	}
	if threat.Separable {
		t.Errorf("a ground ZERO-arity predicate's negation cannot be separated by any binding, expected Separable=false")
	}

	children, err := pl.Refinements(threat, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected demote only (no promote past the goal step, no separate since Separable=false), got %d children", len(children))
	}
	for _, c := range children {
		if c.Unsafes.Len() != 0 {
			t.Errorf("each resolved child should have no remaining Unsafe flaws, got %d", c.Unsafes.Len())
		}
	}
}

func TestScanMutexesDetectsConcurrentConflictingEffects(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	rPred := tt.Predicate("r")
	tt.MarkDynamic(map[string]bool{"r": true}, nil)
	atomR := ft.Atom(rPred)
	negR := ft.Negation(atomR)

	ctx := &Context{Types: tt, Forms: ft, Init: &fakeInit{}}
	stepA := action.Step{ID: 1, Action: &action.Action{
		Name: "A",
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: atomR, When: formula.AtStart},
		},
	}}
	stepB := action.Step{ID: 2, Action: &action.Action{
		Name: "B",
		Effects: []*action.Effect{
			{Cond: formula.True(), LinkCondition: formula.True(), Literal: negR, When: formula.AtStart},
		},
	}}

	pl := &Plan{
		ctx:              ctx,
		Steps:            Cons(action.Step{ID: action.StepGoal}, Cons(stepA, Cons(stepB, Cons(action.Step{ID: 0}, nil)))),
		Bindings:         binding.New(tt, ft),
		Orderings:        ordering.NewBinary(),
		NextStepID:       3,
		MutexScanPending: true,
	}
	var err error
	for _, id := range []int{0, 1, 2, action.StepGoal} {
		pl.Orderings, err = pl.Orderings.RefineStep(ordering.StepDuration{Step: id})
		if err != nil {
			t.Fatalf("unexpected error registering step %d: %v", id, err)
		}
	}

	scanned := pl.ScanMutexes()
	if scanned.MutexScanPending {
		t.Errorf("ScanMutexes should clear MutexScanPending")
	}
	if scanned.Mutexes.Len() != 1 {
		t.Fatalf("expected exactly one mutex threat between A and B's conflicting concurrent effects, got %d", scanned.Mutexes.Len())
	}

	children, err := scanned.Refinements(scanned.Mutexes.Head, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) == 0 {
		t.Fatalf("expected at least one mutex resolution")
	}
	for _, c := range children {
		if c.Mutexes.Len() != 0 {
			t.Errorf("each resolved child should have no remaining mutex flaws, got %d", c.Mutexes.Len())
		}
	}
}

func TestScanMutexesIsNoopWhenNotPending(t *testing.T) {
	tt := term.NewTable()
	ft := formula.NewTable()
	ctx := &Context{Types: tt, Forms: ft, Init: &fakeInit{}}
	pl := &Plan{ctx: ctx, Bindings: binding.New(tt, ft), Orderings: ordering.NewBinary(), MutexScanPending: false}
	if got := pl.ScanMutexes(); got != pl {
		t.Errorf("ScanMutexes should return the same plan unchanged when no scan is pending")
	}
}

func TestRemoveOpenFiltersExactMatch(t *testing.T) {
	f1 := flaw.OpenCondition(1, formula.True(), formula.AtStart, false)
	f2 := flaw.OpenCondition(2, formula.True(), formula.AtStart, false)
	pl := &Plan{Opens: Cons(f1, Cons(f2, nil))}
	remaining := pl.removeOpen(f1)
	if remaining.Len() != 1 || remaining.Head.Step != 2 {
		t.Fatalf("expected only the non-matching open to remain, got %+v", remaining.Slice())
	}
}
