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

// Package term interns the small set of identifiers a planning problem is
// built from: types (with a subtype lattice), objects, variables, predicates
// and functions. All tables are populated once, before search starts, and are
// read-only thereafter.
package term

import "fmt"

// Type is an interned type identifier. The zero Type is Object, the
// universal supertype every concrete domain type descends from.
type Type int

// Object is the universal supertype, always present in a fresh Table.
const Object Type = 0

// Term is either an Object (id >= 0) or a Variable (id < 0). Object(0) is a
// valid object; Variable ids are negative and allocated by the owning
// Table's counter per the spec's "fresh-ly allocated" requirement.
type Term int64

// IsVariable reports whether t denotes a variable rather than an object.
func (t Term) IsVariable() bool { return t < 0 }

// ObjectID returns the underlying object id; only meaningful if !IsVariable.
func (t Term) ObjectID() int { return int(t) }

// Table interns types, objects, variables, predicates and functions for one
// domain+problem. It is built once by the external parser (§6) and frozen.
type Table struct {
	typeNames   []string
	typeParents [][]Type // direct supertypes per type; Object has none
	typeEither  map[Type][]Type

	objectNames []string
	objectType  []Type

	varCounter int64
	varType    map[Term]Type

	predicates map[string]*Predicate
	predList   []*Predicate

	functions map[string]*Function
	funcList  []*Function
}

// Predicate is an interned predicate name with its declared parameter types.
type Predicate struct {
	Name       string
	ParamTypes []Type
	id         int
	// Static is true if no action effect mentions this predicate; set during
	// domain preprocessing once all actions are known (spec §3).
	Static bool
}

// Function is an interned function name with declared parameter types.
// "total-time" is reserved by §6 and always present in a fresh Table.
type Function struct {
	Name       string
	ParamTypes []Type
	id         int
	Static     bool
}

// NewTable returns a frozen-after-setup table seeded with Object and the
// reserved total-time function.
func NewTable() *Table {
	t := &Table{
		typeNames:   []string{"object"},
		typeParents: [][]Type{nil},
		typeEither:  make(map[Type][]Type),
		varType:     make(map[Term]Type),
		predicates:  make(map[string]*Predicate),
		functions:   make(map[string]*Function),
	}
	t.Function("total-time")
	return t
}

// DeclareType interns a named type with the given direct supertypes,
// defaulting to Object if none are given.
func (t *Table) DeclareType(name string, parents ...Type) Type {
	if len(parents) == 0 {
		parents = []Type{Object}
	}
	id := Type(len(t.typeNames))
	t.typeNames = append(t.typeNames, name)
	t.typeParents = append(t.typeParents, append([]Type(nil), parents...))
	return id
}

// DeclareEither interns an "either-of" union type over the given base types.
func (t *Table) DeclareEither(name string, members ...Type) Type {
	id := t.DeclareType(name, Object)
	t.typeEither[id] = append([]Type(nil), members...)
	return id
}

// TypeName returns the declared name of ty, or "" if unknown.
func (t *Table) TypeName(ty Type) string {
	if int(ty) < 0 || int(ty) >= len(t.typeNames) {
		return ""
	}
	return t.typeNames[ty]
}

func (t *Table) membersOf(ty Type) []Type {
	if m, ok := t.typeEither[ty]; ok {
		return m
	}
	return []Type{ty}
}

// Subtype reports whether a is a subtype of (or equal to) b, walking the
// lattice of direct supertypes and expanding either-of unions on both sides.
func (t *Table) Subtype(a, b Type) bool {
	for _, bm := range t.membersOf(b) {
		if t.subtypeOfSingle(a, bm) {
			return true
		}
	}
	return false
}

func (t *Table) subtypeOfSingle(a, b Type) bool {
	for _, am := range t.membersOf(a) {
		if am == b {
			continue
		}
		if !t.reaches(am, b) {
			return false
		}
	}
	return true
}

func (t *Table) reaches(from, to Type) bool {
	if from == to {
		return true
	}
	visited := make(map[Type]bool)
	var walk func(Type) bool
	walk = func(cur Type) bool {
		if visited[cur] {
			return false
		}
		visited[cur] = true
		if cur == to {
			return true
		}
		if int(cur) >= len(t.typeParents) {
			return false
		}
		for _, p := range t.typeParents[cur] {
			if walk(p) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

// MostSpecific returns the join of a and b (the most specific type that is a
// supertype of both), or (0, false) if a and b are incompatible.
func (t *Table) MostSpecific(a, b Type) (Type, bool) {
	if t.Subtype(a, b) {
		return a, true
	}
	if t.Subtype(b, a) {
		return b, true
	}
	return 0, false
}

// DeclareObject interns a named object of the given type.
func (t *Table) DeclareObject(name string, ty Type) Term {
	id := Term(len(t.objectNames))
	t.objectNames = append(t.objectNames, name)
	t.objectType = append(t.objectType, ty)
	return id
}

// ObjectName returns the name of an object term.
func (t *Table) ObjectName(o Term) string {
	i := o.ObjectID()
	if i < 0 || i >= len(t.objectNames) {
		return ""
	}
	return t.objectNames[i]
}

// FreshVariable allocates a new variable of the given type with a negative
// id unique within this Table.
func (t *Table) FreshVariable(ty Type) Term {
	t.varCounter++
	v := Term(-t.varCounter)
	t.varType[v] = ty
	return v
}

// TypeOf returns the declared type of any term (object or variable).
func (t *Table) TypeOf(term Term) Type {
	if term.IsVariable() {
		return t.varType[term]
	}
	i := term.ObjectID()
	if i < 0 || i >= len(t.objectType) {
		return Object
	}
	return t.objectType[i]
}

// ObjectsCompatibleWith enumerates every declared object whose type is a
// subtype of ty ("objects compatible with type T", §2).
func (t *Table) ObjectsCompatibleWith(ty Type) []Term {
	var out []Term
	for i, ot := range t.objectType {
		if t.Subtype(ot, ty) {
			out = append(out, Term(i))
		}
	}
	return out
}

// Predicate interns (or returns the existing) predicate by name.
func (t *Table) Predicate(name string, paramTypes ...Type) *Predicate {
	if p, ok := t.predicates[name]; ok {
		return p
	}
	p := &Predicate{Name: name, ParamTypes: paramTypes, id: len(t.predList), Static: true}
	t.predicates[name] = p
	t.predList = append(t.predList, p)
	return p
}

// LookupPredicate returns an already-declared predicate, or nil.
func (t *Table) LookupPredicate(name string) *Predicate { return t.predicates[name] }

// Function interns (or returns the existing) function by name.
func (t *Table) Function(name string, paramTypes ...Type) *Function {
	if f, ok := t.functions[name]; ok {
		return f
	}
	f := &Function{Name: name, ParamTypes: paramTypes, id: len(t.funcList), Static: true}
	t.functions[name] = f
	t.funcList = append(t.funcList, f)
	return f
}

// LookupFunction returns an already-declared function, or nil.
func (t *Table) LookupFunction(name string) *Function { return t.functions[name] }

// MarkDynamic clears the Static flag on every predicate/function named in
// effects, as detected during domain preprocessing (spec §3 "static
// predicate/function").
func (t *Table) MarkDynamic(predicateNames, functionNames map[string]bool) {
	for name := range predicateNames {
		if p, ok := t.predicates[name]; ok {
			p.Static = false
		}
	}
	for name := range functionNames {
		if f, ok := t.functions[name]; ok {
			f.Static = false
		}
	}
}

// String implements fmt.Stringer for debugging; not used by core logic.
func (t Term) String() string {
	if t.IsVariable() {
		return fmt.Sprintf("?v%d", -int64(t))
	}
	return fmt.Sprintf("obj%d", int64(t))
}
