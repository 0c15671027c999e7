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

// Package binding implements the bindings solver of spec.md §4.1: Varset
// equivalence classes over (variable, step-id) pairs plus optional constant
// bindings, per-class non-codesignation lists, and per-step StepDomain
// argument-tuple restriction.
package binding

import (
	"fmt"

	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/term"
)

// VarRef names a (variable, step-id) pair, the unit the bindings solver
// reasons about (spec §3 Varset).
type VarRef struct {
	Var  term.Term
	Step int
}

// Binding requests equality or inequality between two (term, step) pairs
// (spec §3 Binding).
type Binding struct {
	Var     term.Term
	VarStep int
	Term    term.Term
	TermStep int
	Equality bool
}

// Varset is an equivalence class: an optional constant witness, a
// codesignation list, a non-codesignation list, and the most specific common
// type (spec §3 Varset).
type Varset struct {
	Constant  *term.Term
	Coident    []VarRef
	NonCoident []VarRef
	Type       term.Type
}

func (v *Varset) has(ref VarRef) bool {
	for _, r := range v.Coident {
		if r == ref {
			return true
		}
	}
	return false
}

func (v *Varset) excludes(ref VarRef) bool {
	for _, r := range v.NonCoident {
		if r == ref {
			return true
		}
	}
	return false
}

// StepDomain is the per-step parameter-tuple set of spec §3: the set of
// argument tuples still allowed for a ground-action-schema's step.
type StepDomain struct {
	Step    int
	Params  []term.Term
	Tuples  [][]term.Term
}

// column returns the set of distinct values appearing in column c.
func (d *StepDomain) column(c int) []term.Term {
	seen := make(map[term.Term]bool)
	var out []term.Term
	for _, tup := range d.Tuples {
		if !seen[tup[c]] {
			seen[tup[c]] = true
			out = append(out, tup[c])
		}
	}
	return out
}

func (d *StepDomain) indexOf(v term.Term) int {
	for i, p := range d.Params {
		if p == v {
			return i
		}
	}
	return -1
}

// restrictToConstant removes every tuple whose column c isn't o; reports ok
// = false if that would empty the domain.
func (d *StepDomain) restrictToConstant(c int, o term.Term) (*StepDomain, bool) {
	var tuples [][]term.Term
	for _, tup := range d.Tuples {
		if tup[c] == o {
			tuples = append(tuples, tup)
		}
	}
	if len(tuples) == 0 {
		return nil, false
	}
	return &StepDomain{Step: d.Step, Params: d.Params, Tuples: tuples}, true
}

// restrictToSet removes every tuple whose column c is not in allowed.
func (d *StepDomain) restrictToSet(c int, allowed map[term.Term]bool) (*StepDomain, bool) {
	var tuples [][]term.Term
	for _, tup := range d.Tuples {
		if allowed[tup[c]] {
			tuples = append(tuples, tup)
		}
	}
	if len(tuples) == 0 {
		return nil, false
	}
	return &StepDomain{Step: d.Step, Params: d.Params, Tuples: tuples}, true
}

// excludeConstant removes tuples whose column c equals o.
func (d *StepDomain) excludeConstant(c int, o term.Term) (*StepDomain, bool) {
	var tuples [][]term.Term
	for _, tup := range d.Tuples {
		if tup[c] != o {
			tuples = append(tuples, tup)
		}
	}
	if len(tuples) == 0 {
		return nil, false
	}
	return &StepDomain{Step: d.Step, Params: d.Params, Tuples: tuples}, true
}

// Bindings is an immutable snapshot of the solver's state: varsets and
// step-domains, keyed by a canonical representative VarRef so that unchanged
// classes are shared by reference across snapshots (spec §4.1, §5).
type Bindings struct {
	types  *term.Table
	ftbl   *formula.Table
	vars   map[VarRef]*Varset   // every member ref of every class maps to it
	domains map[int]*StepDomain // by step id
}

// New returns an empty bindings snapshot.
func New(types *term.Table, ftbl *formula.Table) *Bindings {
	return &Bindings{types: types, ftbl: ftbl, vars: map[VarRef]*Varset{}, domains: map[int]*StepDomain{}}
}

// clone performs a shallow copy of the two maps so the receiver's maps can be
// mutated without affecting the parent snapshot; individual *Varset/
// *StepDomain values are shared (copy-on-write) unless actually touched.
func (b *Bindings) clone() *Bindings {
	nb := &Bindings{
		types:   b.types,
		ftbl:    b.ftbl,
		vars:    make(map[VarRef]*Varset, len(b.vars)),
		domains: make(map[int]*StepDomain, len(b.domains)),
	}
	for k, v := range b.vars {
		nb.vars[k] = v
	}
	for k, v := range b.domains {
		nb.domains[k] = v
	}
	return nb
}

// classOf returns the Varset containing ref, or nil.
func (b *Bindings) classOf(ref VarRef) *Varset { return b.vars[ref] }

// Binding resolves term/step to its constant if bound, otherwise returns it
// unchanged (spec §4.1 "binding").
func (b *Bindings) Binding(t term.Term, step int) term.Term {
	if !t.IsVariable() {
		return t
	}
	if vs := b.classOf(VarRef{t, step}); vs != nil && vs.Constant != nil {
		return *vs.Constant
	}
	return t
}

// Domain enumerates the objects still possible for a variable: filtered by
// the step's StepDomain column (if registered) and by non-codesignations
// against already-bound constants (spec §4.1 "domain").
func (b *Bindings) Domain(v term.Term, step int, allObjects []term.Term) []term.Term {
	vs := b.classOf(VarRef{v, step})
	if vs != nil && vs.Constant != nil {
		return []term.Term{*vs.Constant}
	}
	excluded := make(map[term.Term]bool)
	if vs != nil {
		for _, ref := range vs.NonCoident {
			if other := b.classOf(ref); other != nil && other.Constant != nil {
				excluded[*other.Constant] = true
			}
		}
	}
	var domCol []term.Term
	if sd, ok := b.domains[step]; ok {
		if idx := sd.indexOf(v); idx >= 0 {
			domCol = sd.column(idx)
		}
	}
	ty := b.types.TypeOf(v)
	if vs != nil {
		ty = vs.Type
	}
	var out []term.Term
	source := allObjects
	if domCol != nil {
		source = domCol
	}
	for _, o := range source {
		if excluded[o] {
			continue
		}
		if !b.types.Subtype(b.types.TypeOf(o), ty) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// RegisterStepDomain installs the per-step parameter-tuple domain for a
// newly-added step, as required before domain-constrained refinement (spec
// §4.4 step 3, "register its precomputed StepDomain with the bindings
// solver").
func (b *Bindings) RegisterStepDomain(sd *StepDomain) *Bindings {
	nb := b.clone()
	nb.domains[sd.Step] = sd
	return nb
}

// StepDomainOf returns the registered StepDomain for a step, or nil.
func (b *Bindings) StepDomainOf(step int) *StepDomain { return b.domains[step] }

// Unify returns a most-general-unifier binding list making l1@id1 and
// l2@id2 syntactically equal, or ok=false if they can never unify (spec
// §4.1 "unify"): predicates/negation-shape must match, object-vs-object
// terms must be identical, and term types must be compatible.
func Unify(types *term.Table, l1 *formula.Formula, id1 int, l2 *formula.Formula, id2 int) (bindings []Binding, ok bool) {
	a1, neg1 := stripNeg(l1)
	a2, neg2 := stripNeg(l2)
	if neg1 != neg2 || a1.Predicate != a2.Predicate || len(a1.Args) != len(a2.Args) {
		return nil, false
	}
	for i := range a1.Args {
		t1, t2 := a1.Args[i], a2.Args[i]
		switch {
		case !t1.IsVariable() && !t2.IsVariable():
			if t1 != t2 {
				return nil, false
			}
		case t1.IsVariable() && !t2.IsVariable():
			if !types.Subtype(types.TypeOf(t2), types.TypeOf(t1)) {
				return nil, false
			}
			bindings = append(bindings, Binding{Var: t1, VarStep: id1, Term: t2, TermStep: id2, Equality: true})
		case !t1.IsVariable() && t2.IsVariable():
			if !types.Subtype(types.TypeOf(t1), types.TypeOf(t2)) {
				return nil, false
			}
			bindings = append(bindings, Binding{Var: t2, VarStep: id2, Term: t1, TermStep: id1, Equality: true})
		default:
			if _, compat := types.MostSpecific(types.TypeOf(t1), types.TypeOf(t2)); !compat {
				return nil, false
			}
			bindings = append(bindings, Binding{Var: t1, VarStep: id1, Term: t2, TermStep: id2, Equality: true})
		}
	}
	return bindings, true
}

func stripNeg(f *formula.Formula) (*formula.Formula, bool) {
	if f.IsNegation() {
		return f.Neg, true
	}
	return f, false
}

// Affects reports whether one of l1/l2 is a Negation whose Atom unifies with
// the other (spec §4.1 "affects") — the threat-detection predicate.
func Affects(types *term.Table, l1 *formula.Formula, id1 int, l2 *formula.Formula, id2 int) bool {
	a1, n1 := stripNeg(l1)
	a2, n2 := stripNeg(l2)
	if n1 == n2 {
		return false
	}
	_, ok := Unify(types, a1, id1, a2, id2)
	return ok
}

// ErrInconsistent is returned by Add when the requested bindings are
// unsatisfiable; it is not a fatal error, merely a pruned branch (§7).
var ErrInconsistent = fmt.Errorf("binding: inconsistent")

// Add attempts to extend b with the given binding list, returning the new
// snapshot. If testOnly is set, the returned *Bindings is nil and only the
// error is meaningful (spec §4.1
// "add", "test_only=true performs the check without returning a new
// snapshot").
func (b *Bindings) Add(bindings []Binding, testOnly bool) (*Bindings, error) {
	work := append([]Binding(nil), bindings...)
	cur := b
	changed := false
	owned := make(map[*Varset]bool) // classes this call itself allocated; safe to mutate in place
	for len(work) > 0 {
		bd := work[0]
		work = work[1:]
		var nb *Bindings
		var more []Binding
		var err error
		if bd.Equality {
			nb, more, err = cur.addEquality(bd, owned)
		} else {
			nb, more, err = cur.addInequality(bd, owned)
		}
		if err != nil {
			return nil, err
		}
		if nb != cur {
			changed = true
			cur = nb
		}
		work = append(work, more...)
	}
	if testOnly {
		return nil, nil
	}
	if !changed {
		return b, nil
	}
	return cur, nil
}

func (b *Bindings) ensureClass(ref VarRef, owned map[*Varset]bool) (*Bindings, *Varset) {
	if vs := b.classOf(ref); vs != nil {
		return b, vs
	}
	nb := b.clone()
	vs := &Varset{Coident: []VarRef{ref}, Type: b.types.TypeOf(ref.Var)}
	nb.vars[ref] = vs
	owned[vs] = true
	return nb, vs
}

func refOf(t term.Term, step int) (VarRef, bool) {
	if !t.IsVariable() {
		return VarRef{}, false
	}
	return VarRef{t, step}, true
}

func (b *Bindings) addEquality(bd Binding, owned map[*Varset]bool) (*Bindings, []Binding, error) {
	vRef, vIsVar := refOf(bd.Var, bd.VarStep)
	tRef, tIsVar := refOf(bd.Term, bd.TermStep)

	switch {
	case vIsVar && tIsVar:
		return b.unionClasses(vRef, tRef, owned)
	case vIsVar && !tIsVar:
		return b.bindToConstant(vRef, bd.Term, owned)
	case !vIsVar && tIsVar:
		return b.bindToConstant(tRef, bd.Var, owned)
	default:
		if bd.Var != bd.Term {
			return nil, nil, ErrInconsistent
		}
		return b, nil, nil
	}
}

func (b *Bindings) unionClasses(r1, r2 VarRef, owned map[*Varset]bool) (*Bindings, []Binding, error) {
	c1 := b.classOf(r1)
	c2 := b.classOf(r2)
	switch {
	case c1 == nil && c2 == nil:
		nb := b.clone()
		vs := &Varset{Coident: []VarRef{r1, r2}, Type: b.types.TypeOf(r1.Var)}
		if ty, ok := b.types.MostSpecific(vs.Type, b.types.TypeOf(r2.Var)); ok {
			vs.Type = ty
		} else {
			return nil, nil, ErrInconsistent
		}
		nb.vars[r1] = vs
		nb.vars[r2] = vs
		owned[vs] = true
		return nb, nil, nil
	case c1 != nil && c2 == nil:
		return b.extendClass(c1, r2, owned)
	case c1 == nil && c2 != nil:
		return b.extendClass(c2, r1, owned)
	default:
		if c1 == c2 {
			return b, nil, nil
		}
		return b.combine(c1, c2, owned)
	}
}

func (b *Bindings) extendClass(vs *Varset, ref VarRef, owned map[*Varset]bool) (*Bindings, []Binding, error) {
	if vs.excludes(ref) {
		return nil, nil, ErrInconsistent
	}
	if vs.has(ref) {
		return b, nil, nil
	}
	ty, ok := b.types.MostSpecific(vs.Type, b.types.TypeOf(ref.Var))
	if !ok {
		return nil, nil, ErrInconsistent
	}
	var target *Varset
	var nb *Bindings
	if owned[vs] {
		target = vs
		nb = b
	} else {
		target = &Varset{Constant: vs.Constant, Coident: append([]VarRef(nil), vs.Coident...), NonCoident: append([]VarRef(nil), vs.NonCoident...), Type: ty}
		nb = b.clone()
		owned[target] = true
	}
	target.Type = ty
	target.Coident = append(target.Coident, ref)
	for _, r := range target.Coident {
		nb.vars[r] = target
	}
	var more []Binding
	if target.Constant != nil {
		nb2, bs, err := nb.restrictStepDomains(target, *target.Constant)
		if err != nil {
			return nil, nil, err
		}
		nb = nb2
		more = bs
	}
	return nb, more, nil
}

func (b *Bindings) combine(c1, c2 *Varset, owned map[*Varset]bool) (*Bindings, []Binding, error) {
	if c1.Constant != nil && c2.Constant != nil && *c1.Constant != *c2.Constant {
		return nil, nil, ErrInconsistent
	}
	for _, r := range c1.Coident {
		if c2.excludes(r) {
			return nil, nil, ErrInconsistent
		}
	}
	for _, r := range c2.Coident {
		if c1.excludes(r) {
			return nil, nil, ErrInconsistent
		}
	}
	ty, ok := b.types.MostSpecific(c1.Type, c2.Type)
	if !ok {
		return nil, nil, ErrInconsistent
	}
	merged := &Varset{Type: ty}
	merged.Constant = c1.Constant
	if merged.Constant == nil {
		merged.Constant = c2.Constant
	}
	merged.Coident = append(append([]VarRef(nil), c1.Coident...), c2.Coident...)
	merged.NonCoident = append(append([]VarRef(nil), c1.NonCoident...), c2.NonCoident...)
	nb := b.clone()
	owned[merged] = true
	for _, r := range merged.Coident {
		nb.vars[r] = merged
	}
	var more []Binding
	if merged.Constant != nil {
		nb2, bs, err := nb.restrictStepDomains(merged, *merged.Constant)
		if err != nil {
			return nil, nil, err
		}
		nb = nb2
		more = bs
	} else {
		nb2, bs := nb.intersectStepDomains(merged)
		nb = nb2
		more = bs
	}
	return nb, more, nil
}

func (b *Bindings) bindToConstant(ref VarRef, o term.Term, owned map[*Varset]bool) (*Bindings, []Binding, error) {
	vs := b.classOf(ref)
	if vs == nil {
		if !b.types.Subtype(b.types.TypeOf(o), b.types.TypeOf(ref.Var)) {
			return nil, nil, ErrInconsistent
		}
		nb := b.clone()
		newVs := &Varset{Constant: &o, Coident: []VarRef{ref}, Type: b.types.TypeOf(ref.Var)}
		nb.vars[ref] = newVs
		owned[newVs] = true
		nb2, more, err := nb.restrictStepDomains(newVs, o)
		return nb2, more, err
	}
	if vs.Constant != nil {
		if *vs.Constant != o {
			return nil, nil, ErrInconsistent
		}
		return b, nil, nil
	}
	if !b.types.Subtype(b.types.TypeOf(o), vs.Type) {
		return nil, nil, ErrInconsistent
	}
	var target *Varset
	var nb *Bindings
	if owned[vs] {
		target = vs
		nb = b
	} else {
		target = &Varset{Coident: append([]VarRef(nil), vs.Coident...), NonCoident: append([]VarRef(nil), vs.NonCoident...), Type: vs.Type}
		nb = b.clone()
		owned[target] = true
	}
	target.Constant = &o
	for _, r := range target.Coident {
		nb.vars[r] = target
	}
	return nb.restrictStepDomains(target, o)
}

// restrictStepDomains restricts every StepDomain mentioning a member of vs to
// the single constant o, failing if any restriction would empty a domain
// (spec §4.1, "restrict every StepDomain that has one of the class
// variables to that constant").
func (b *Bindings) restrictStepDomains(vs *Varset, o term.Term) (*Bindings, []Binding, error) {
	nb := b
	var more []Binding
	for _, ref := range vs.Coident {
		sd, ok := nb.domains[ref.Step]
		if !ok {
			continue
		}
		idx := sd.indexOf(ref.Var)
		if idx < 0 {
			continue
		}
		nsd, ok := sd.restrictToConstant(idx, o)
		if !ok {
			return nil, nil, ErrInconsistent
		}
		if nb == b {
			nb = b.clone()
		}
		nb.domains[ref.Step] = nsd
		more = append(more, nb.singletonBindings(nsd)...)
	}
	return nb, more, nil
}

// intersectStepDomains restricts every StepDomain mentioning more than one
// member of vs to the intersection of each mentioned column's projection
// (spec §4.1, "restrict each to the intersection of the others' projections").
func (b *Bindings) intersectStepDomains(vs *Varset) (*Bindings, []Binding) {
	nb := b
	var more []Binding
	byStep := make(map[int][]term.Term)
	for _, ref := range vs.Coident {
		byStep[ref.Step] = append(byStep[ref.Step], ref.Var)
	}
	for step, vars := range byStep {
		if len(vars) < 2 {
			continue
		}
		sd, ok := nb.domains[step]
		if !ok {
			continue
		}
		allowed := make(map[term.Term]bool)
		first := true
		for _, v := range vars {
			idx := sd.indexOf(v)
			if idx < 0 {
				continue
			}
			colSet := make(map[term.Term]bool)
			for _, val := range sd.column(idx) {
				colSet[val] = true
			}
			if first {
				allowed = colSet
				first = false
			} else {
				for k := range allowed {
					if !colSet[k] {
						delete(allowed, k)
					}
				}
			}
		}
		if first {
			continue
		}
		for _, v := range vars {
			idx := sd.indexOf(v)
			if idx < 0 {
				continue
			}
			nsd, ok := sd.restrictToSet(idx, allowed)
			if !ok {
				continue
			}
			if nb == b {
				nb = b.clone()
			}
			nb.domains[step] = nsd
			sd = nsd
			more = append(more, nb.singletonBindings(nsd)...)
		}
	}
	return nb, more
}

// singletonBindings scans sd for columns restricted to a single object and
// returns fresh equality bindings for them (spec §4.1, "When StepDomain
// restriction leaves a column with a single object, append a new equality
// binding").
func (b *Bindings) singletonBindings(sd *StepDomain) []Binding {
	var out []Binding
	for c, p := range sd.Params {
		col := sd.column(c)
		if len(col) == 1 {
			out = append(out, Binding{Var: p, VarStep: sd.Step, Term: col[0], TermStep: sd.Step, Equality: true})
		}
	}
	return out
}

func (b *Bindings) addInequality(bd Binding, owned map[*Varset]bool) (*Bindings, []Binding, error) {
	vRef, vIsVar := refOf(bd.Var, bd.VarStep)
	tRef, tIsVar := refOf(bd.Term, bd.TermStep)

	if vIsVar && tIsVar {
		c1 := b.classOf(vRef)
		c2 := b.classOf(tRef)
		if c1 != nil && c2 != nil && c1 == c2 {
			return nil, nil, ErrInconsistent
		}
		nb, vs1 := b.ensureClass(vRef, owned)
		nb, vs2 := nb.ensureClass(tRef, owned)
		nb = nb.addNonCoident(vs1, tRef, owned)
		nb = nb.addNonCoident(vs2, vRef, owned)
		return nb, nil, nil
	}
	if !vIsVar && !tIsVar {
		if bd.Var == bd.Term {
			return nil, nil, ErrInconsistent
		}
		return b, nil, nil
	}
	// inequality against a constant: var != constant
	var varRef VarRef
	var constant term.Term
	if vIsVar {
		varRef, constant = vRef, bd.Term
	} else {
		varRef, constant = tRef, bd.Var
	}
	vs := b.classOf(varRef)
	if vs != nil && vs.Constant != nil {
		if *vs.Constant == constant {
			return nil, nil, ErrInconsistent
		}
		return b, nil, nil
	}
	nb := b
	if sd, ok := nb.domains[varRef.Step]; ok {
		if idx := sd.indexOf(varRef.Var); idx >= 0 {
			nsd, ok := sd.excludeConstant(idx, constant)
			if !ok {
				return nil, nil, ErrInconsistent
			}
			nb = nb.clone()
			nb.domains[varRef.Step] = nsd
			return nb, nb.singletonBindings(nsd), nil
		}
	}
	return nb, nil, nil
}

func (b *Bindings) addNonCoident(vs *Varset, other VarRef, owned map[*Varset]bool) *Bindings {
	if vs.excludes(other) {
		return b
	}
	var target *Varset
	nb := b
	if owned[vs] {
		target = vs
	} else {
		target = &Varset{Constant: vs.Constant, Coident: append([]VarRef(nil), vs.Coident...), NonCoident: append([]VarRef(nil), vs.NonCoident...), Type: vs.Type}
		nb = b.clone()
		owned[target] = true
	}
	target.NonCoident = append(target.NonCoident, other)
	for _, r := range target.Coident {
		nb.vars[r] = target
	}
	return nb
}

// ConsistentWith performs a cheap (non-mutating) check of whether an
// equality/inequality binding would be consistent, without allocating a new
// snapshot (spec §4.1 "consistent_with").
func (b *Bindings) ConsistentWith(bd Binding) bool {
	_, err := b.Add([]Binding{bd}, true)
	return err == nil
}
