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

package main

import (
	"fmt"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/expr"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/term"
	"github.com/joeycumines/go-pocl/planner"
)

// docFile is the on-disk shape cmd/poclplan reads: a domain plus one problem
// instance, in one file. The core never parses this format itself (spec §6,
// "as constructed by an external parser") -- this loader is that parser,
// kept deliberately small and declarative rather than a full PDDL grammar.
type docFile struct {
	Domain  domainDoc  `yaml:"domain"`
	Problem problemDoc `yaml:"problem"`
}

type domainDoc struct {
	Name         string              `yaml:"name"`
	Requirements requirementsDoc     `yaml:"requirements"`
	Types        []typeDoc           `yaml:"types"`
	Predicates   []predicateDoc      `yaml:"predicates"`
	Functions    []predicateDoc      `yaml:"functions"`
	Actions      []actionDoc         `yaml:"actions"`
}

type requirementsDoc struct {
	Typing                   bool `yaml:"typing"`
	Equality                 bool `yaml:"equality"`
	ConditionalEffects       bool `yaml:"conditional_effects"`
	DurativeActions          bool `yaml:"durative_actions"`
	NumericFluents           bool `yaml:"numeric_fluents"`
	UniversalPreconditions   bool `yaml:"universal_preconditions"`
	DisjunctivePreconditions bool `yaml:"disjunctive_preconditions"`
}

type typeDoc struct {
	Name    string   `yaml:"name"`
	Parents []string `yaml:"parents"`
}

type predicateDoc struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
}

type paramDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type actionDoc struct {
	Name       string       `yaml:"name"`
	Durative   bool         `yaml:"durative"`
	Parameters []paramDoc   `yaml:"parameters"`
	MinDur     *float64     `yaml:"min_duration"`
	MaxDur     *float64     `yaml:"max_duration"`
	Condition  *formulaDoc  `yaml:"condition"`
	Effects    []effectDoc  `yaml:"effects"`
}

type effectDoc struct {
	When    string      `yaml:"when"` // "at_start" or "at_end"
	Cond    *formulaDoc `yaml:"condition"`
	Link    *formulaDoc `yaml:"link_condition"`
	Literal formulaDoc  `yaml:"literal"`
}

// formulaDoc is a tagged union over every formula.Kind the loader supports;
// exactly one field should be set per node, the same discipline PDDL's own
// s-expression grammar uses for its connectives.
type formulaDoc struct {
	Atom        *atomDoc      `yaml:"atom"`
	Neg         *atomDoc      `yaml:"neg"`
	And         []formulaDoc  `yaml:"and"`
	Or          []formulaDoc  `yaml:"or"`
	Equal       *eqDoc        `yaml:"equal"`
	NotEqual    *eqDoc        `yaml:"not_equal"`
	Exists      *quantDoc     `yaml:"exists"`
	Forall      *quantDoc     `yaml:"forall"`
	Always      bool          `yaml:"always"` // unconditional true, e.g. an action with no precondition
}

type atomDoc struct {
	Pred string   `yaml:"pred"`
	Args []string `yaml:"args"`
}

type eqDoc struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

type quantDoc struct {
	Bound []paramDoc `yaml:"bound"`
	Body  *formulaDoc `yaml:"body"`
}

type problemDoc struct {
	Name    string       `yaml:"name"`
	Objects []paramDoc   `yaml:"objects"`
	Init    []atomDoc    `yaml:"init"`
	TILs    []tilDoc     `yaml:"timed_initial_literals"`
	Goal    formulaDoc   `yaml:"goal"`
}

type tilDoc struct {
	At      float64 `yaml:"at"`
	Literal atomDoc `yaml:"literal"`
	Negated bool    `yaml:"negated"`
}

// builder threads the interning tables and a name->term/type environment
// through docFile construction, the same "build once, freeze" discipline
// internal/term.Table documents for itself.
type builder struct {
	types   *term.Table
	forms   *formula.Table
	typeOf  map[string]term.Type
	objOf   map[string]term.Term
}

func newBuilder() *builder {
	return &builder{
		types:  term.NewTable(),
		forms:  formula.NewTable(),
		typeOf: make(map[string]term.Type),
		objOf:  make(map[string]term.Term),
	}
}

func (b *builder) resolveType(name string) (term.Type, error) {
	if name == "" {
		return term.Object, nil
	}
	if ty, ok := b.typeOf[name]; ok {
		return ty, nil
	}
	return 0, fmt.Errorf("poclplan: undeclared type %q", name)
}

// buildDomainProblem turns a parsed docFile into the planner.Domain and
// planner.Problem the search driver consumes.
func buildDomainProblem(doc *docFile) (*planner.Domain, *planner.Problem, error) {
	b := newBuilder()

	for _, t := range doc.Domain.Types {
		var parents []term.Type
		for _, p := range t.Parents {
			pt, err := b.resolveType(p)
			if err != nil {
				return nil, nil, err
			}
			parents = append(parents, pt)
		}
		b.typeOf[t.Name] = b.types.DeclareType(t.Name, parents...)
	}

	for _, p := range doc.Domain.Predicates {
		paramTypes, err := b.paramTypes(p.Params)
		if err != nil {
			return nil, nil, err
		}
		b.types.Predicate(p.Name, paramTypes...)
	}
	for _, f := range doc.Domain.Functions {
		paramTypes, err := b.paramTypes(f.Params)
		if err != nil {
			return nil, nil, err
		}
		b.types.Function(f.Name, paramTypes...)
	}

	dom := &planner.Domain{
		Name:  doc.Domain.Name,
		Types: b.types,
		Forms: b.forms,
		Requirements: planner.Requirements{
			Typing:                   doc.Domain.Requirements.Typing,
			Equality:                 doc.Domain.Requirements.Equality,
			ConditionalEffects:       doc.Domain.Requirements.ConditionalEffects,
			DurativeActions:          doc.Domain.Requirements.DurativeActions,
			NumericFluents:           doc.Domain.Requirements.NumericFluents,
			UniversalPreconditions:   doc.Domain.Requirements.UniversalPreconditions,
			DisjunctivePreconditions: doc.Domain.Requirements.DisjunctivePreconditions,
		},
	}

	for _, a := range doc.Domain.Actions {
		act, err := b.buildAction(a)
		if err != nil {
			return nil, nil, fmt.Errorf("poclplan: action %q: %w", a.Name, err)
		}
		dom.Actions = append(dom.Actions, act)
	}

	// A predicate stays static unless some action effect mentions it.
	dynamic := make(map[string]bool)
	for _, act := range dom.Actions {
		for _, eff := range act.Effects {
			dynamic[eff.Literal.Atomic().Predicate.Name] = true
		}
	}
	b.types.MarkDynamic(dynamic, nil)

	objects := make([]term.Term, 0, len(doc.Problem.Objects))
	for _, o := range doc.Problem.Objects {
		ty, err := b.resolveType(o.Type)
		if err != nil {
			return nil, nil, err
		}
		t := b.types.DeclareObject(o.Name, ty)
		b.objOf[o.Name] = t
		objects = append(objects, t)
	}

	problem := planner.NewProblem(doc.Problem.Name, dom, objects)
	for _, a := range doc.Problem.Init {
		atom, err := b.buildAtom(a, nil)
		if err != nil {
			return nil, nil, err
		}
		problem.AddInitialAtom(atom)
	}
	for _, til := range doc.Problem.TILs {
		atom, err := b.buildAtom(til.Literal, nil)
		if err != nil {
			return nil, nil, err
		}
		if til.Negated {
			atom = b.forms.Negation(atom)
		}
		problem.AddTimedInitialLiteral(til.At, atom)
	}
	goal, err := b.buildFormula(doc.Problem.Goal, nil)
	if err != nil {
		return nil, nil, err
	}
	problem.SetGoal(goal)

	return dom, problem, nil
}

func (b *builder) paramTypes(names []string) ([]term.Type, error) {
	out := make([]term.Type, len(names))
	for i, n := range names {
		ty, err := b.resolveType(n)
		if err != nil {
			return nil, err
		}
		out[i] = ty
	}
	return out, nil
}

func (b *builder) buildAction(a actionDoc) (*action.Action, error) {
	scope := make(map[string]term.Term, len(a.Parameters))
	params := make([]term.Term, 0, len(a.Parameters))
	for _, p := range a.Parameters {
		ty, err := b.resolveType(p.Type)
		if err != nil {
			return nil, err
		}
		v := b.types.FreshVariable(ty)
		scope[p.Name] = v
		params = append(params, v)
	}

	cond := formula.True()
	if a.Condition != nil {
		c, err := b.buildFormula(*a.Condition, scope)
		if err != nil {
			return nil, err
		}
		cond = c
	}

	out := &action.Action{
		Name:       a.Name,
		Durative:   a.Durative,
		Parameters: params,
		Condition:  cond,
	}
	if a.MinDur != nil {
		out.MinDur = expr.Const(*a.MinDur)
	}
	if a.MaxDur != nil {
		out.MaxDur = expr.Const(*a.MaxDur)
	}

	for _, e := range a.Effects {
		eff, err := b.buildEffect(e, scope)
		if err != nil {
			return nil, err
		}
		out.Effects = append(out.Effects, eff)
	}
	return out, nil
}

func (b *builder) buildEffect(e effectDoc, scope map[string]term.Term) (*action.Effect, error) {
	when := formula.AtStart
	switch e.When {
	case "", "at_start":
		when = formula.AtStart
	case "at_end":
		when = formula.AtEnd
	default:
		return nil, fmt.Errorf("poclplan: unknown effect timing %q", e.When)
	}

	lit, err := b.buildFormula(e.Literal, scope)
	if err != nil {
		return nil, err
	}
	if lit.Kind != formula.KindAtom && lit.Kind != formula.KindNegation {
		return nil, fmt.Errorf("poclplan: effect literal must be an atom or negation")
	}

	// Cond and LinkCondition must never be left nil: Table.Instantiate and
	// Table.Substitute switch on f.Kind unconditionally.
	out := &action.Effect{Literal: lit, When: when, Cond: formula.True(), LinkCondition: formula.True()}
	if e.Cond != nil {
		c, err := b.buildFormula(*e.Cond, scope)
		if err != nil {
			return nil, err
		}
		out.Cond = c
	}
	if e.Link != nil {
		l, err := b.buildFormula(*e.Link, scope)
		if err != nil {
			return nil, err
		}
		out.LinkCondition = l
	}
	return out, nil
}

// buildFormula recursively compiles a formulaDoc; scope resolves parameter
// names to their already-allocated variables, nil scope means "ground only"
// (used by the problem's init/goal, where every name must be an object).
func (b *builder) buildFormula(f formulaDoc, scope map[string]term.Term) (*formula.Formula, error) {
	switch {
	case f.Always:
		return formula.True(), nil
	case f.Atom != nil:
		return b.buildAtom(*f.Atom, scope)
	case f.Neg != nil:
		atom, err := b.buildAtom(*f.Neg, scope)
		if err != nil {
			return nil, err
		}
		return b.forms.Negation(atom), nil
	case len(f.And) > 0:
		parts := make([]*formula.Formula, len(f.And))
		for i, p := range f.And {
			sub, err := b.buildFormula(p, scope)
			if err != nil {
				return nil, err
			}
			parts[i] = sub
		}
		return b.forms.And(parts...), nil
	case len(f.Or) > 0:
		parts := make([]*formula.Formula, len(f.Or))
		for i, p := range f.Or {
			sub, err := b.buildFormula(p, scope)
			if err != nil {
				return nil, err
			}
			parts[i] = sub
		}
		return b.forms.Or(parts...), nil
	case f.Equal != nil:
		a, err := b.resolveTerm(f.Equal.A, scope)
		if err != nil {
			return nil, err
		}
		c, err := b.resolveTerm(f.Equal.B, scope)
		if err != nil {
			return nil, err
		}
		return formula.Equality(a, c), nil
	case f.NotEqual != nil:
		a, err := b.resolveTerm(f.NotEqual.A, scope)
		if err != nil {
			return nil, err
		}
		c, err := b.resolveTerm(f.NotEqual.B, scope)
		if err != nil {
			return nil, err
		}
		return formula.Inequality(a, c), nil
	case f.Exists != nil:
		return b.buildQuantifier(*f.Exists, scope, false)
	case f.Forall != nil:
		return b.buildQuantifier(*f.Forall, scope, true)
	default:
		return formula.True(), nil
	}
}

func (b *builder) buildQuantifier(q quantDoc, scope map[string]term.Term, universal bool) (*formula.Formula, error) {
	inner := make(map[string]term.Term, len(scope)+len(q.Bound))
	for k, v := range scope {
		inner[k] = v
	}
	bound := make([]term.Term, 0, len(q.Bound))
	for _, p := range q.Bound {
		ty, err := b.resolveType(p.Type)
		if err != nil {
			return nil, err
		}
		v := b.types.FreshVariable(ty)
		inner[p.Name] = v
		bound = append(bound, v)
	}
	if q.Body == nil {
		return nil, fmt.Errorf("poclplan: quantifier missing body")
	}
	body, err := b.buildFormula(*q.Body, inner)
	if err != nil {
		return nil, err
	}
	if universal {
		return formula.Forall(bound, body), nil
	}
	return formula.Exists(bound, body), nil
}

func (b *builder) buildAtom(a atomDoc, scope map[string]term.Term) (*formula.Formula, error) {
	pred := b.types.LookupPredicate(a.Pred)
	if pred == nil {
		return nil, fmt.Errorf("poclplan: undeclared predicate %q", a.Pred)
	}
	args := make([]term.Term, len(a.Args))
	for i, name := range a.Args {
		t, err := b.resolveTerm(name, scope)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}
	return b.forms.Atom(pred, args...), nil
}

func (b *builder) resolveTerm(name string, scope map[string]term.Term) (term.Term, error) {
	if scope != nil {
		if t, ok := scope[name]; ok {
			return t, nil
		}
	}
	if t, ok := b.objOf[name]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("poclplan: undeclared name %q", name)
}
