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

// Package formula implements the tagged formula algebra of spec.md §3/§4
// (TRUE, FALSE, Atom, Negation, Equality/Inequality, Conjunction,
// Disjunction, Exists, Forall, TimedLiteral) with structural interning for
// ground atoms/negations and the substitution/instantiation/universal-base
// operations the planner needs.
package formula

import (
	"fmt"
	"strings"

	"github.com/joeycumines/go-pocl/internal/term"
)

// Kind tags the variant a Formula holds.
type Kind int

const (
	KindTrue Kind = iota
	KindFalse
	KindAtom
	KindNegation
	KindEquality
	KindInequality
	KindConjunction
	KindDisjunction
	KindExists
	KindForall
	KindTimed
)

// When tags the temporal annotation of a TimedLiteral.
type When int

const (
	AtStart When = iota
	OverAll
	AtEnd
)

// Formula is an immutable, reference-counted tagged tree. Atom and Negation
// nodes are interned: two ground atoms over the same predicate and argument
// terms are the same *Formula pointer, so identity comparison works for
// ground literals (spec §3, "Atoms and negations are interned so ground
// instances compare by identity; lifted atoms get id=0").
type Formula struct {
	Kind Kind

	// Atom / Negation
	Predicate *term.Predicate
	Args      []term.Term
	ID        int // 0 for lifted atoms; >0 once ground and interned
	Neg       *Formula

	// Equality / Inequality
	Var, ArgB term.Term

	// Conjunction / Disjunction
	Parts []*Formula

	// Exists / Forall
	Bound []term.Term
	Body  *Formula
	base  *Formula // cached universal base, Forall only

	// TimedLiteral
	Literal *Formula
	At      When

	refs int
}

var (
	sharedTrue  = &Formula{Kind: KindTrue}
	sharedFalse = &Formula{Kind: KindFalse}
)

// True returns the shared TRUE formula.
func True() *Formula { return sharedTrue }

// False returns the shared FALSE formula.
func False() *Formula { return sharedFalse }

// Tautology reports whether f is the TRUE formula.
func (f *Formula) Tautology() bool { return f == sharedTrue }

// Contradiction reports whether f is the FALSE formula.
func (f *Formula) Contradiction() bool { return f == sharedFalse }

// Table interns ground atoms/negations so that identical ground literals
// compare by pointer identity, mirroring vhpop's Atom/Negation tables.
type Table struct {
	atoms map[string]*Formula
	negs  map[string]*Formula
	next  int
}

// NewTable returns an empty interning table.
func NewTable() *Table {
	return &Table{atoms: make(map[string]*Formula), negs: make(map[string]*Formula)}
}

func atomKey(p *term.Predicate, args []term.Term) string {
	var b strings.Builder
	b.WriteString(p.Name)
	for _, a := range args {
		fmt.Fprintf(&b, "|%d", a)
	}
	return b.String()
}

// Atom returns an interned Atom formula. If every argument is ground
// (non-variable) the result is a single canonical pointer with a unique,
// positive ID; lifted atoms (containing a variable) get ID 0 and are not
// interned, since they are not meaningfully comparable by identity.
func (t *Table) Atom(p *term.Predicate, args ...term.Term) *Formula {
	ground := true
	for _, a := range args {
		if a.IsVariable() {
			ground = false
			break
		}
	}
	if !ground {
		return &Formula{Kind: KindAtom, Predicate: p, Args: append([]term.Term(nil), args...)}
	}
	key := atomKey(p, args)
	if f, ok := t.atoms[key]; ok {
		return f
	}
	t.next++
	f := &Formula{Kind: KindAtom, Predicate: p, Args: append([]term.Term(nil), args...), ID: t.next}
	t.atoms[key] = f
	return f
}

// Negation returns the interned negation of a (necessarily Atom) formula.
func (t *Table) Negation(atom *Formula) *Formula {
	if atom.Kind != KindAtom {
		panic(fmt.Errorf("formula: Negation of non-atom kind %d", atom.Kind))
	}
	if atom.ID == 0 {
		return &Formula{Kind: KindNegation, Neg: atom}
	}
	key := atomKey(atom.Predicate, atom.Args)
	if f, ok := t.negs[key]; ok {
		return f
	}
	f := &Formula{Kind: KindNegation, Neg: atom, ID: atom.ID}
	t.negs[key] = f
	return f
}

// Negate returns the logical negation of any formula (pushing negation
// inward for conjunction/disjunction/exists/forall/timed per De Morgan, and
// interning when the result is an atom/negation of a ground literal).
func (t *Table) Negate(f *Formula) *Formula {
	switch f.Kind {
	case KindTrue:
		return sharedFalse
	case KindFalse:
		return sharedTrue
	case KindAtom:
		return t.Negation(f)
	case KindNegation:
		return t.Atom(f.Neg.Predicate, f.Neg.Args...)
	case KindEquality:
		return &Formula{Kind: KindInequality, Var: f.Var, ArgB: f.ArgB}
	case KindInequality:
		return &Formula{Kind: KindEquality, Var: f.Var, ArgB: f.ArgB}
	case KindConjunction:
		parts := make([]*Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = t.Negate(p)
		}
		return t.Or(parts...)
	case KindDisjunction:
		parts := make([]*Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = t.Negate(p)
		}
		return t.And(parts...)
	case KindExists:
		return &Formula{Kind: KindForall, Bound: f.Bound, Body: t.Negate(f.Body)}
	case KindForall:
		return &Formula{Kind: KindExists, Bound: f.Bound, Body: t.Negate(f.Body)}
	case KindTimed:
		return &Formula{Kind: KindTimed, Literal: t.Negate(f.Literal), At: f.At}
	default:
		panic(fmt.Errorf("formula: Negate unknown kind %d", f.Kind))
	}
}

// And builds a (simplified) conjunction: TRUE factors are dropped, a FALSE
// factor collapses to FALSE, a single factor is returned unwrapped.
func (t *Table) And(parts ...*Formula) *Formula {
	var flat []*Formula
	for _, p := range parts {
		if p.Contradiction() {
			return sharedFalse
		}
		if p.Tautology() {
			continue
		}
		if p.Kind == KindConjunction {
			flat = append(flat, p.Parts...)
		} else {
			flat = append(flat, p)
		}
	}
	switch len(flat) {
	case 0:
		return sharedTrue
	case 1:
		return flat[0]
	default:
		return &Formula{Kind: KindConjunction, Parts: flat}
	}
}

// Or builds a (simplified) disjunction, dual to And.
func (t *Table) Or(parts ...*Formula) *Formula {
	var flat []*Formula
	for _, p := range parts {
		if p.Tautology() {
			return sharedTrue
		}
		if p.Contradiction() {
			continue
		}
		if p.Kind == KindDisjunction {
			flat = append(flat, p.Parts...)
		} else {
			flat = append(flat, p)
		}
	}
	switch len(flat) {
	case 0:
		return sharedFalse
	case 1:
		return flat[0]
	default:
		return &Formula{Kind: KindDisjunction, Parts: flat}
	}
}

// Exists builds an existentially quantified formula.
func Exists(bound []term.Term, body *Formula) *Formula {
	if len(bound) == 0 {
		return body
	}
	return &Formula{Kind: KindExists, Bound: bound, Body: body}
}

// Forall builds a universally quantified formula.
func Forall(bound []term.Term, body *Formula) *Formula {
	if len(bound) == 0 {
		return body
	}
	return &Formula{Kind: KindForall, Bound: bound, Body: body}
}

// Timed tags a literal with its temporal annotation (durative actions).
func Timed(lit *Formula, at When) *Formula {
	return &Formula{Kind: KindTimed, Literal: lit, At: at}
}

// Equality builds an equality constraint between two terms.
func Equality(a, b term.Term) *Formula { return &Formula{Kind: KindEquality, Var: a, ArgB: b} }

// Inequality builds an inequality constraint between two terms.
func Inequality(a, b term.Term) *Formula { return &Formula{Kind: KindInequality, Var: a, ArgB: b} }

// Substitution maps a variable -> term; applied recursively.
type Substitution map[term.Term]term.Term

func (s Substitution) resolve(t term.Term) term.Term {
	if t.IsVariable() {
		if r, ok := s[t]; ok {
			return r
		}
	}
	return t
}

// Substitute applies subst to every free term in f, returning a new formula
// (atoms are re-interned through tbl if the result is ground).
func (tbl *Table) Substitute(f *Formula, subst Substitution) *Formula {
	switch f.Kind {
	case KindTrue, KindFalse:
		return f
	case KindAtom:
		args := make([]term.Term, len(f.Args))
		for i, a := range f.Args {
			args[i] = subst.resolve(a)
		}
		return tbl.Atom(f.Predicate, args...)
	case KindNegation:
		return tbl.Negation(tbl.Substitute(f.Neg, subst))
	case KindEquality:
		return Equality(subst.resolve(f.Var), subst.resolve(f.ArgB))
	case KindInequality:
		return Inequality(subst.resolve(f.Var), subst.resolve(f.ArgB))
	case KindConjunction:
		parts := make([]*Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = tbl.Substitute(p, subst)
		}
		return tbl.And(parts...)
	case KindDisjunction:
		parts := make([]*Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = tbl.Substitute(p, subst)
		}
		return tbl.Or(parts...)
	case KindExists:
		return Exists(f.Bound, tbl.Substitute(f.Body, withoutBound(subst, f.Bound)))
	case KindForall:
		return Forall(f.Bound, tbl.Substitute(f.Body, withoutBound(subst, f.Bound)))
	case KindTimed:
		return Timed(tbl.Substitute(f.Literal, subst), f.At)
	default:
		panic(fmt.Errorf("formula: Substitute unknown kind %d", f.Kind))
	}
}

func withoutBound(subst Substitution, bound []term.Term) Substitution {
	out := make(Substitution, len(subst))
	for k, v := range subst {
		out[k] = v
	}
	for _, b := range bound {
		delete(out, b)
	}
	return out
}

// InitialState is the minimal read-only view of the problem's initial atoms
// that Instantiate/UniversalBase need: it answers "does this ground atom
// hold" and enumerates objects compatible with a type, for Forall expansion.
type InitialState interface {
	Holds(p *term.Predicate, args []term.Term) bool
	ObjectsOfType(ty term.Type) []term.Term
	TypeOf(t term.Term) term.Type
}

// Instantiate substitutes subst into f and additionally resolves any
// statically-known atom/negation against the initial state, per spec §3
// ("instantiation against initial state"). Static atoms collapse to
// TRUE/FALSE; dynamic atoms are left as literals for the planner to achieve.
func (tbl *Table) Instantiate(f *Formula, subst Substitution, init InitialState) *Formula {
	switch f.Kind {
	case KindAtom:
		a := tbl.Substitute(f, subst)
		if a.ID != 0 && f.Predicate.Static {
			if init.Holds(a.Predicate, a.Args) {
				return sharedTrue
			}
			return sharedFalse
		}
		return a
	case KindNegation:
		a := tbl.Substitute(f.Neg, subst)
		if a.ID != 0 && a.Predicate.Static {
			if init.Holds(a.Predicate, a.Args) {
				return sharedFalse
			}
			return sharedTrue
		}
		return tbl.Negation(a)
	case KindConjunction:
		parts := make([]*Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = tbl.Instantiate(p, subst, init)
		}
		return tbl.And(parts...)
	case KindDisjunction:
		parts := make([]*Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = tbl.Instantiate(p, subst, init)
		}
		return tbl.Or(parts...)
	case KindExists:
		return Exists(f.Bound, tbl.Instantiate(f.Body, withoutBound(subst, f.Bound), init))
	case KindForall:
		return tbl.UniversalBase(f, subst, init)
	case KindTimed:
		return Timed(tbl.Instantiate(f.Literal, subst, init), f.At)
	default:
		return tbl.Substitute(f, subst)
	}
}

// UniversalBase expands a Forall node into the finite conjunction obtained by
// substituting every compatible object for each bound variable, caching the
// result on the node the first time it is computed (spec §3, "the Forall
// node caches its universal base").
func (tbl *Table) UniversalBase(f *Formula, subst Substitution, init InitialState) *Formula {
	if f.Kind != KindForall {
		panic(fmt.Errorf("formula: UniversalBase of non-forall kind %d", f.Kind))
	}
	if f.base != nil {
		return f.base
	}
	conj := []*Formula{sharedTrue}
	var expand func(i int, cur Substitution)
	expand = func(i int, cur Substitution) {
		if i == len(f.Bound) {
			conj = append(conj, tbl.Instantiate(f.Body, cur, init))
			return
		}
		v := f.Bound[i]
		for _, o := range init.ObjectsOfType(init.TypeOf(v)) {
			next := withoutBound(cur, nil)
			next[v] = o
			expand(i+1, next)
		}
	}
	expand(0, withoutBound(subst, nil))
	f.base = tbl.And(conj...)
	return f.base
}

// SeparatorFromEffect returns a formula that, if true, guarantees this
// formula's literal is not asserted by the given ground effect literal
// (i.e. a disjunction of inequalities over the unifying argument positions),
// used to build threat-separation refinements (spec §4.4).
func SeparatorFromEffect(condLiteral, effectLiteral *Formula) *Formula {
	cl, el := stripNegation(condLiteral), stripNegation(effectLiteral)
	if cl.Predicate != el.Predicate || len(cl.Args) != len(el.Args) {
		return True()
	}
	var disj []*Formula
	for i := range cl.Args {
		disj = append(disj, Inequality(cl.Args[i], el.Args[i]))
	}
	if len(disj) == 0 {
		return False()
	}
	return &Formula{Kind: KindDisjunction, Parts: disj}
}

func stripNegation(f *Formula) *Formula {
	if f.Kind == KindNegation {
		return f.Neg
	}
	return f
}

// IsNegation reports whether f is a Negation node.
func (f *Formula) IsNegation() bool { return f.Kind == KindNegation }

// Atomic returns the underlying Atom of an Atom or Negation formula.
func (f *Formula) Atomic() *Formula {
	if f.Kind == KindNegation {
		return f.Neg
	}
	return f
}
