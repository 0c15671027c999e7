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

import "math/rand"

// Decomposed is the result of recursively breaking a goal formula down into
// the pieces the planner's refinement machinery understands (spec §4.4,
// "Consistency with add_goal"): literals that become OpenCondition flaws,
// equality/inequality constraints for the bindings solver, and a
// contradiction flag for an outright-unsatisfiable goal.
type Decomposed struct {
	Literals      []*Formula // Atom or Negation, each becomes an OpenCondition
	Equalities    []*Formula // KindEquality
	Branchable    []*Formula // KindInequality over two variables: optionally an OpenCondition
	Contradiction bool
}

// DecomposeOptions configures Decompose's behavior for the open questions the
// spec leaves ambiguous (random conjunct order, static-literal stripping,
// branch-as-open-condition for variable/variable inequalities).
type DecomposeOptions struct {
	RandomOrder           bool
	RNG                   *rand.Rand
	StripStaticLiterals   func(*Formula) bool // return true to drop a static literal known to hold
	BranchVarVarInequality bool
}

// Decompose walks f recursively per spec §4.4:
//
//	Literal            -> new OpenCondition (unless static + stripping enabled)
//	Conjunction        -> decompose each conjunct, optionally reshuffled
//	Disjunction        -> single OpenCondition (the planner branches on disjuncts later)
//	Equality           -> Binding constraint
//	Inequality(var,var) -> optionally an OpenCondition for branching, else a Binding constraint
//	Exists(body)       -> queue body (bound variables are existentially free, skolemized by caller)
//	Forall             -> caller must have already replaced with UniversalBase before calling
//	FALSE              -> overall failure (Contradiction)
func Decompose(f *Formula, opts DecomposeOptions) Decomposed {
	var d Decomposed
	decompose(f, opts, &d)
	if opts.RandomOrder && opts.RNG != nil {
		opts.RNG.Shuffle(len(d.Literals), func(i, j int) {
			d.Literals[i], d.Literals[j] = d.Literals[j], d.Literals[i]
		})
	}
	return d
}

func decompose(f *Formula, opts DecomposeOptions, d *Decomposed) {
	if d.Contradiction {
		return
	}
	switch f.Kind {
	case KindTrue:
		return
	case KindFalse:
		d.Contradiction = true
		return
	case KindAtom, KindNegation:
		if opts.StripStaticLiterals != nil && opts.StripStaticLiterals(f) {
			return
		}
		d.Literals = append(d.Literals, f)
	case KindConjunction:
		for _, p := range f.Parts {
			decompose(p, opts, d)
			if d.Contradiction {
				return
			}
		}
	case KindDisjunction:
		d.Literals = append(d.Literals, f)
	case KindEquality:
		d.Equalities = append(d.Equalities, f)
	case KindInequality:
		if opts.BranchVarVarInequality && f.Var.IsVariable() && f.ArgB.IsVariable() {
			d.Branchable = append(d.Branchable, f)
		} else {
			d.Equalities = append(d.Equalities, f)
		}
	case KindExists:
		decompose(f.Body, opts, d)
	case KindTimed:
		d.Literals = append(d.Literals, f)
	default:
		// Forall must already be expanded by the caller via UniversalBase.
		d.Literals = append(d.Literals, f)
	}
}
