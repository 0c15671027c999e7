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

// Package expr implements the numeric expression algebra of spec.md §3
// (constants, fluents, + - * / min max) with instantiation against a
// substitution and evaluation against a fluent-value map.
package expr

import (
	"fmt"

	"github.com/joeycumines/go-pocl/internal/term"
)

// Op tags an arithmetic expression node.
type Op int

const (
	OpConst Op = iota
	OpFluent
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
)

// Expr is an immutable numeric expression tree.
type Expr struct {
	Op       Op
	Value    float64
	Function *term.Function
	Args     []term.Term // fluent arguments
	L, R     *Expr       // binary ops; Min/Max generalize to N via nested binaries
}

// Const builds a constant-valued expression.
func Const(v float64) *Expr { return &Expr{Op: OpConst, Value: v} }

// Fluent builds a reference to a (possibly applied) function.
func Fluent(f *term.Function, args ...term.Term) *Expr {
	return &Expr{Op: OpFluent, Function: f, Args: args}
}

// Add, Sub, Mul, Div, Min, Max build binary arithmetic expressions.
func Add(l, r *Expr) *Expr { return &Expr{Op: OpAdd, L: l, R: r} }
func Sub(l, r *Expr) *Expr { return &Expr{Op: OpSub, L: l, R: r} }
func Mul(l, r *Expr) *Expr { return &Expr{Op: OpMul, L: l, R: r} }
func Div(l, r *Expr) *Expr { return &Expr{Op: OpDiv, L: l, R: r} }
func Min(l, r *Expr) *Expr { return &Expr{Op: OpMin, L: l, R: r} }
func Max(l, r *Expr) *Expr { return &Expr{Op: OpMax, L: l, R: r} }

// Substitution maps variables to terms, as in package formula.
type Substitution map[term.Term]term.Term

// Instantiate substitutes subst into every fluent argument of e.
func (e *Expr) Instantiate(subst Substitution) *Expr {
	switch e.Op {
	case OpConst:
		return e
	case OpFluent:
		args := make([]term.Term, len(e.Args))
		for i, a := range e.Args {
			if a.IsVariable() {
				if r, ok := subst[a]; ok {
					a = r
				}
			}
			args[i] = a
		}
		return Fluent(e.Function, args...)
	default:
		return &Expr{Op: e.Op, L: e.L.Instantiate(subst), R: e.R.Instantiate(subst)}
	}
}

// FluentValues resolves a ground fluent application to its current numeric
// value; ok is false if the fluent is undefined in the current state (spec
// §7, "Value of a static fluent undefined").
type FluentValues interface {
	Value(f *term.Function, args []term.Term) (value float64, ok bool)
}

// ErrUndefinedFluent is returned by Evaluate when a referenced fluent has no
// value in the given FluentValues (a domain-specification error per §7).
type ErrUndefinedFluent struct{ Function string }

func (e *ErrUndefinedFluent) Error() string {
	return fmt.Sprintf("expr: value of static fluent %q is undefined", e.Function)
}

// ErrDivisionByZero is returned by Evaluate for a zero denominator (§7).
var ErrDivisionByZero = fmt.Errorf("expr: division by zero")

// Evaluate computes e's numeric value against fv, the same way a durative
// action's duration/metric expressions are evaluated.
func (e *Expr) Evaluate(fv FluentValues) (float64, error) {
	switch e.Op {
	case OpConst:
		return e.Value, nil
	case OpFluent:
		v, ok := fv.Value(e.Function, e.Args)
		if !ok {
			return 0, &ErrUndefinedFluent{Function: e.Function.Name}
		}
		return v, nil
	case OpAdd, OpSub, OpMul, OpDiv, OpMin, OpMax:
		l, err := e.L.Evaluate(fv)
		if err != nil {
			return 0, err
		}
		r, err := e.R.Evaluate(fv)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case OpAdd:
			return l + r, nil
		case OpSub:
			return l - r, nil
		case OpMul:
			return l * r, nil
		case OpDiv:
			if r == 0 {
				return 0, ErrDivisionByZero
			}
			return l / r, nil
		case OpMin:
			if l < r {
				return l, nil
			}
			return r, nil
		case OpMax:
			if l > r {
				return l, nil
			}
			return r, nil
		}
	}
	panic(fmt.Errorf("expr: Evaluate unknown op %d", e.Op))
}
