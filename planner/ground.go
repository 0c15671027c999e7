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
	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/term"
)

// argTuples enumerates every compatible object tuple for schema's declared
// parameters (spec §4.3 step 1, "grounding against compatible object
// tuples"), via a straightforward cross-product over each parameter's type.
func argTuples(problem *Problem, schema *action.Action) [][]term.Term {
	domains := make([][]term.Term, len(schema.Parameters))
	for i, p := range schema.Parameters {
		domains[i] = problem.Domain.Types.ObjectsCompatibleWith(problem.Domain.Types.TypeOf(p))
	}
	var out [][]term.Term
	cur := make([]term.Term, len(domains))
	var recurse func(i int)
	recurse = func(i int) {
		if i == len(domains) {
			out = append(out, append([]term.Term(nil), cur...))
			return
		}
		for _, o := range domains[i] {
			cur[i] = o
			recurse(i + 1)
		}
	}
	if len(domains) > 0 {
		recurse(0)
	}
	return out
}
