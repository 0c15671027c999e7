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

// Package planner is the external interface of spec.md §6: Domain/Problem
// assembly, the Config/Option surface controlling search, the Plan entry
// point, and the Tree bridge that compiles a finished plan into an
// executable behavior tree.
package planner

import (
	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/pgraph"
	"github.com/joeycumines/go-pocl/internal/term"
)

// Requirements names the PDDL-style requirement flags a domain declares
// (spec §6); unset fields are simply requirements this domain does not use.
type Requirements struct {
	Typing               bool
	Equality             bool
	ConditionalEffects   bool
	DurativeActions      bool
	NumericFluents       bool
	UniversalPreconditions bool
	DisjunctivePreconditions bool
}

// Domain bundles everything declared by the domain definition: the interning
// tables, requirement flags, and the action schemas available to search.
type Domain struct {
	Name         string
	Requirements Requirements
	Types        *term.Table
	Forms        *formula.Table
	Actions      []*action.Action
}

// Problem bundles a domain instance's objects, initial state, goal, and
// timed-initial literals (spec §6 Problem).
type Problem struct {
	Name   string
	Domain *Domain

	Objects []term.Term

	initAtoms map[string]bool // ground atom key -> true, per predicate+args
	initKeys  []*formula.Formula
	initTILs  []pgraph.TimedLiteral

	Goal *formula.Formula
}

// NewProblem constructs an empty problem against domain; call AddInitialAtom
// / AddTimedInitialLiteral to populate the initial state before calling
// SetGoal and Plan.
func NewProblem(name string, domain *Domain, objects []term.Term) *Problem {
	return &Problem{
		Name:      name,
		Domain:    domain,
		Objects:   objects,
		initAtoms: make(map[string]bool),
	}
}

func initKey(f *formula.Formula) string {
	a := f.Atomic()
	s := a.Predicate.Name
	for _, arg := range a.Args {
		s += "|" + arg.String()
	}
	return s
}

// AddInitialAtom records a ground atom as true in the initial state.
func (p *Problem) AddInitialAtom(atom *formula.Formula) {
	k := initKey(atom)
	if p.initAtoms[k] {
		return
	}
	p.initAtoms[k] = true
	p.initKeys = append(p.initKeys, atom)
}

// AddTimedInitialLiteral records a literal that becomes true only at a fixed
// future time (spec §6, timed-initial literals).
func (p *Problem) AddTimedInitialLiteral(at float64, literal *formula.Formula) {
	p.initTILs = append(p.initTILs, pgraph.TimedLiteral{Time: at, Literal: literal})
}

// SetGoal installs the problem's goal formula.
func (p *Problem) SetGoal(goal *formula.Formula) { p.Goal = goal }

// Holds implements formula.InitialState / pgraph.InitialState.
func (p *Problem) Holds(pred *term.Predicate, args []term.Term) bool {
	f := &formula.Formula{Kind: formula.KindAtom, Predicate: pred, Args: args}
	return p.initAtoms[initKey(f)]
}

// ObjectsOfType implements formula.InitialState / pgraph.InitialState.
func (p *Problem) ObjectsOfType(ty term.Type) []term.Term {
	return p.Domain.Types.ObjectsCompatibleWith(ty)
}

// TypeOf implements formula.InitialState / pgraph.InitialState.
func (p *Problem) TypeOf(t term.Term) term.Type { return p.Domain.Types.TypeOf(t) }

// InitialAtoms implements pgraph.InitialState.
func (p *Problem) InitialAtoms() []*formula.Formula { return p.initKeys }

// TimedInitialLiterals implements pgraph.InitialState.
func (p *Problem) TimedInitialLiterals() []pgraph.TimedLiteral { return p.initTILs }
