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

package formula

import (
	"testing"

	"github.com/joeycumines/go-pocl/internal/term"
)

type fakeInit struct {
	facts   map[string]bool
	objects map[term.Type][]term.Term
	types   map[term.Term]term.Type
}

func (f *fakeInit) Holds(p *term.Predicate, args []term.Term) bool {
	return f.facts[atomKey(p, args)]
}
func (f *fakeInit) ObjectsOfType(ty term.Type) []term.Term { return f.objects[ty] }
func (f *fakeInit) TypeOf(t term.Term) term.Type           { return f.types[t] }

func setup() (*term.Table, *Table, *term.Predicate) {
	tt := term.NewTable()
	ft := NewTable()
	p := tt.Predicate("p")
	return tt, ft, p
}

func TestAtomInterningByIdentity(t *testing.T) {
	tt, ft, pred := setup()
	a := tt.DeclareObject("a", term.Object)
	f1 := ft.Atom(pred, a)
	f2 := ft.Atom(pred, a)
	if f1 != f2 {
		t.Fatalf("ground atoms with identical predicate/args should be interned to the same pointer")
	}
	if f1.ID == 0 {
		t.Errorf("a ground atom should receive a nonzero ID once interned")
	}
}

func TestLiftedAtomNotInterned(t *testing.T) {
	tt, ft, pred := setup()
	v := tt.FreshVariable(term.Object)
	f1 := ft.Atom(pred, v)
	f2 := ft.Atom(pred, v)
	if f1 == f2 {
		t.Errorf("lifted atoms should not be interned to a shared pointer")
	}
	if f1.ID != 0 {
		t.Errorf("lifted atoms must have ID 0, got %d", f1.ID)
	}
}

func TestNegationRoundTrip(t *testing.T) {
	tt, ft, pred := setup()
	a := tt.DeclareObject("a", term.Object)
	atom := ft.Atom(pred, a)
	neg := ft.Negate(atom)
	if neg.Kind != KindNegation {
		t.Fatalf("Negate(atom) should produce a Negation, got kind %d", neg.Kind)
	}
	back := ft.Negate(neg)
	if back != atom {
		t.Errorf("double negation should return the original interned atom, got %v want %v", back, atom)
	}
}

func TestNegationInterning(t *testing.T) {
	tt, ft, pred := setup()
	a := tt.DeclareObject("a", term.Object)
	atom := ft.Atom(pred, a)
	n1 := ft.Negation(atom)
	n2 := ft.Negation(atom)
	if n1 != n2 {
		t.Errorf("negations of the same ground atom should be interned")
	}
}

func TestAndOrSimplification(t *testing.T) {
	tt, ft, pred := setup()
	a := tt.DeclareObject("a", term.Object)
	atom := ft.Atom(pred, a)

	if ft.And(True(), atom) != atom {
		t.Errorf("And(TRUE, x) should simplify to x")
	}
	if ft.And(False(), atom) != False() {
		t.Errorf("And(FALSE, x) should simplify to FALSE")
	}
	if ft.Or(False(), atom) != atom {
		t.Errorf("Or(FALSE, x) should simplify to x")
	}
	if ft.Or(True(), atom) != True() {
		t.Errorf("Or(TRUE, x) should simplify to TRUE")
	}
	if ft.And() != True() {
		t.Errorf("And() with no parts should be TRUE")
	}
	if ft.Or() != False() {
		t.Errorf("Or() with no parts should be FALSE")
	}
}

func TestDeMorganOnConjunction(t *testing.T) {
	tt, ft, pred := setup()
	a := tt.DeclareObject("a", term.Object)
	b := tt.DeclareObject("b", term.Object)
	p1 := ft.Atom(pred, a)
	p2 := ft.Atom(pred, b)
	conj := ft.And(p1, p2)
	neg := ft.Negate(conj)
	if neg.Kind != KindDisjunction {
		t.Fatalf("Negate(And(p1,p2)) should be a Disjunction, got kind %d", neg.Kind)
	}
	if len(neg.Parts) != 2 {
		t.Fatalf("expected 2 disjuncts, got %d", len(neg.Parts))
	}
}

func TestSubstitute(t *testing.T) {
	tt, ft, pred := setup()
	v := tt.FreshVariable(term.Object)
	a := tt.DeclareObject("a", term.Object)
	lifted := ft.Atom(pred, v)
	ground := ft.Substitute(lifted, Substitution{v: a})
	if ground.ID == 0 {
		t.Fatalf("substituting a ground object for the sole variable should yield a ground (interned) atom")
	}
	if ground.Args[0] != a {
		t.Errorf("substituted atom should carry the bound object")
	}
}

func TestInstantiateStaticPredicateCollapses(t *testing.T) {
	tt, ft, pred := setup()
	a := tt.DeclareObject("a", term.Object)
	init := &fakeInit{facts: map[string]bool{atomKey(pred, []term.Term{a}): true}}

	ground := ft.Atom(pred, a)
	// Static defaults true until MarkDynamic clears it.
	result := ft.Instantiate(ground, nil, init)
	if result != True() {
		t.Errorf("a static atom holding in the initial state should instantiate to TRUE, got %v", result)
	}

	negResult := ft.Instantiate(ft.Negation(ground), nil, init)
	if negResult != False() {
		t.Errorf("negation of a true static atom should instantiate to FALSE")
	}
}

func TestInstantiateDynamicPredicateStaysLiteral(t *testing.T) {
	tt, ft, pred := setup()
	pred.Static = false
	a := tt.DeclareObject("a", term.Object)
	init := &fakeInit{facts: map[string]bool{}}
	ground := ft.Atom(pred, a)
	result := ft.Instantiate(ground, nil, init)
	if result != ground {
		t.Errorf("a dynamic atom should remain a literal after Instantiate, got %v want %v", result, ground)
	}
}

func TestUniversalBaseExpansionAndCaching(t *testing.T) {
	tt, ft, pred := setup()
	pred.Static = false // a static body atom would collapse against init
	ty := tt.DeclareType("thing")
	a := tt.DeclareObject("a", ty)
	b := tt.DeclareObject("b", ty)
	v := tt.FreshVariable(ty)
	body := ft.Atom(pred, v)
	forall := Forall([]term.Term{v}, body)
	init := &fakeInit{
		facts:   map[string]bool{},
		objects: map[term.Type][]term.Term{ty: {a, b}},
		types:   map[term.Term]term.Type{v: ty},
	}
	base1 := ft.UniversalBase(forall, nil, init)
	if base1.Kind != KindConjunction {
		t.Fatalf("universal base over 2 objects should be a conjunction, got kind %d", base1.Kind)
	}
	if len(base1.Parts) != 2 {
		t.Fatalf("expected 2 conjuncts (one per compatible object), got %d", len(base1.Parts))
	}
	base2 := ft.UniversalBase(forall, nil, init)
	if base1 != base2 {
		t.Errorf("UniversalBase should cache and return the identical pointer on a second call")
	}
}

func TestSeparatorFromEffect(t *testing.T) {
	tt := term.NewTable()
	ft := NewTable()
	pred := tt.Predicate("p", term.Object, term.Object)
	x := tt.FreshVariable(term.Object)
	y := tt.FreshVariable(term.Object)
	condLiteral := ft.Atom(pred, x, y)
	effectLiteral := ft.Atom(pred, y, x)
	sep := SeparatorFromEffect(condLiteral, effectLiteral)
	if sep.Kind != KindDisjunction {
		t.Fatalf("separator over a 2-arity predicate should be a disjunction of inequalities, got kind %d", sep.Kind)
	}
	if len(sep.Parts) != 2 {
		t.Fatalf("expected 2 inequality disjuncts, got %d", len(sep.Parts))
	}
	for _, part := range sep.Parts {
		if part.Kind != KindInequality {
			t.Errorf("separator disjuncts must all be inequalities, got kind %d", part.Kind)
		}
	}
}

func TestSeparatorFromEffectDifferentPredicate(t *testing.T) {
	tt, ft, pred := setup()
	other := tt.Predicate("q")
	x := tt.FreshVariable(term.Object)
	y := tt.FreshVariable(term.Object)
	condLiteral := ft.Atom(pred, x)
	effectLiteral := ft.Atom(other, y)
	sep := SeparatorFromEffect(condLiteral, effectLiteral)
	if sep != True() {
		t.Errorf("separator between unrelated predicates should be TRUE (never a threat), got %v", sep)
	}
}
