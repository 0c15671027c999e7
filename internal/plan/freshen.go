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
	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/binding"
	"github.com/joeycumines/go-pocl/internal/expr"
	"github.com/joeycumines/go-pocl/internal/formula"
	"github.com/joeycumines/go-pocl/internal/term"
)

// freshenSchema returns a copy of schema with every declared parameter
// replaced by a brand-new variable, so that two steps grounded from the same
// schema never alias each other's argument variables (spec §4.4, the
// per-refinement analogue of action.FreshenParams applied to a whole
// action rather than a single effect).
func freshenSchema(p *Plan, schema *action.Action) *action.Action {
	subst := make(formula.Substitution, len(schema.Parameters))
	params := make([]term.Term, len(schema.Parameters))
	for i, param := range schema.Parameters {
		nv := p.ctx.Types.FreshVariable(p.ctx.Types.TypeOf(param))
		subst[param] = nv
		params[i] = nv
	}
	out := &action.Action{
		Name:       schema.Name,
		Durative:   schema.Durative,
		Parameters: params,
		Condition:  p.ctx.Forms.Substitute(schema.Condition, subst),
	}
	for _, eff := range schema.Effects {
		out.Effects = append(out.Effects, &action.Effect{
			Parameters:    append([]term.Term(nil), eff.Parameters...),
			Cond:          p.ctx.Forms.Substitute(eff.Cond, subst),
			LinkCondition: p.ctx.Forms.Substitute(eff.LinkCondition, subst),
			Literal:       p.ctx.Forms.Substitute(eff.Literal, subst),
			When:          eff.When,
		})
	}
	if schema.MinDur != nil {
		out.MinDur = schema.MinDur.Instantiate(toExprSub(subst))
	}
	if schema.MaxDur != nil {
		out.MaxDur = schema.MaxDur.Instantiate(toExprSub(subst))
	}
	return out
}

func toExprSub(s formula.Substitution) expr.Substitution {
	out := make(expr.Substitution, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// schemaStepDomain re-keys the planning graph's precomputed parameter-tuple
// domain for schema.Name onto the freshened parameter variables of this
// particular step, so bindings restriction can act on them directly (spec
// §4.3 "action_domain", §8 "domain_constraints").
func schemaStepDomain(p *Plan, id int, freshened *action.Action) *binding.StepDomain {
	if p.ctx.Graph == nil {
		return nil
	}
	dom := p.ctx.Graph.ActionDomain(freshened.Name)
	if dom == nil {
		return nil
	}
	return &binding.StepDomain{Step: id, Params: append([]term.Term(nil), freshened.Parameters...), Tuples: dom.Tuples}
}
