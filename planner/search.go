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
	"container/heap"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/pgraph"
	"github.com/joeycumines/go-pocl/internal/plan"
)

// Result is what a successful search returns: the finished plan, its
// scheduled step times, and the number of plans the search expanded.
type Result struct {
	Plan     *plan.Plan
	Start    map[int]float64
	End      map[int]float64
	Makespan float64
	Expanded int
}

// ErrSearchExhausted is returned when the queue empties with no complete
// plan found (spec §7, "the goal is unreachable").
var ErrSearchExhausted = fmt.Errorf("planner: no plan found; search space exhausted")

// ErrSearchLimit is returned when a configured search_limit or time_limit is
// hit before a complete plan is found.
var ErrSearchLimit = fmt.Errorf("planner: search limit reached before a plan was found")

// Plan runs the refinement search of spec §4.6 to completion against
// problem, returning the first complete plan the configured search order
// discovers.
func Plan(problem *Problem, opts ...Option) (*Result, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var graph *pgraph.Graph
	if cfg.GroundActions {
		grounded := groundAll(problem)
		graph = pgraph.Build(problem.Domain.Types, grounded, problem, pgraph.Options{ActionCost: cfg.Cost, Threshold: cfg.Threshold})
	}

	ctx := &plan.Context{
		Types:                   problem.Domain.Types,
		Forms:                   problem.Domain.Forms,
		Graph:                   graph,
		Schemas:                 problem.Domain.Actions,
		Init:                    problem,
		DomainConstraints:       cfg.DomainConstraints,
		KeepStaticPreconditions: cfg.KeepStaticPreconditions,
		RandomOpenConditions:    cfg.RandomOpenConditions,
		Temporal:                cfg.Temporal,
		Threshold:               cfg.Threshold,
		RNG:                     cfg.RNG,
	}

	root, err := plan.New(ctx, problem.Goal)
	if err != nil {
		return nil, fmt.Errorf("planner: unsatisfiable goal: %w", err)
	}

	deadline := time.Time{}
	if cfg.TimeLimit > 0 {
		deadline = time.Now().Add(cfg.TimeLimit)
	}

	switch cfg.Algorithm {
	case IterativeDeepeningAStar:
		return idaStarSearch(ctx, cfg, root, deadline)
	case HillClimbing:
		return hillClimbingSearch(ctx, cfg, root, deadline)
	default:
		return bestFirstSearch(ctx, cfg, root, deadline)
	}
}

// bestFirstSearch is the plain weighted-A* driver of spec §4.6: pop the
// lowest-rank plan from a single global queue, expand its selected flaw's
// refinements, and push every finite-rank child back in. This is the
// search_algorithm=A* case (also the fallback for an unrecognised value).
func bestFirstSearch(ctx *plan.Context, cfg *Config, root *plan.Plan, deadline time.Time) (*Result, error) {
	pq := &planQueue{}
	heap.Init(pq)
	heap.Push(pq, &planItem{p: root, rank: rank(ctx, cfg, root)})

	expanded := 0
	for pq.Len() > 0 {
		if cfg.SearchLimit > 0 && expanded >= cfg.SearchLimit {
			return nil, ErrSearchLimit
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, ErrSearchLimit
		}

		item := heap.Pop(pq).(*planItem)
		p := item.p.ScanMutexes()
		if p.IsComplete() {
			start, end, makespan := p.Schedule()
			return &Result{Plan: p, Start: start, End: end, Makespan: makespan, Expanded: expanded}, nil
		}
		expanded++

		f, ok := selectFlaw(ctx, cfg, p)
		if !ok {
			continue
		}
		children, err := p.Refinements(f, false)
		if err != nil {
			continue
		}
		for _, child := range children {
			r := rank(ctx, cfg, child)
			if math.IsInf(r, 1) {
				continue
			}
			heap.Push(pq, &planItem{p: child, rank: r})
		}
	}
	return nil, ErrSearchExhausted
}

// idaStarSearch implements spec §4.6's IDA* mode, grounded directly in the
// original implementation's f_limit/next_f_limit restart loop (plans.cc):
// each outer iteration runs a bounded best-first pass from the initial plan,
// dropping (rather than queueing) any child whose rank exceeds the current
// f-limit while recording the smallest dropped rank as next_f_limit; when a
// pass's queue empties without finding a complete plan, the limit is raised
// to next_f_limit and the whole search restarts from root. The search is
// exhausted once a full pass drops no children at all.
func idaStarSearch(ctx *plan.Context, cfg *Config, root *plan.Plan, deadline time.Time) (*Result, error) {
	fLimit := rank(ctx, cfg, root)
	expanded := 0

	for {
		nextFLimit := math.Inf(1)

		pq := &planQueue{}
		heap.Init(pq)
		heap.Push(pq, &planItem{p: root, rank: rank(ctx, cfg, root)})

		for pq.Len() > 0 {
			if cfg.SearchLimit > 0 && expanded >= cfg.SearchLimit {
				return nil, ErrSearchLimit
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return nil, ErrSearchLimit
			}

			item := heap.Pop(pq).(*planItem)
			p := item.p.ScanMutexes()
			if p.IsComplete() {
				start, end, makespan := p.Schedule()
				return &Result{Plan: p, Start: start, End: end, Makespan: makespan, Expanded: expanded}, nil
			}
			expanded++

			f, ok := selectFlaw(ctx, cfg, p)
			if !ok {
				continue
			}
			children, err := p.Refinements(f, false)
			if err != nil {
				continue
			}
			for _, child := range children {
				r := rank(ctx, cfg, child)
				if math.IsInf(r, 1) {
					continue
				}
				if r > fLimit {
					if r < nextFLimit {
						nextFLimit = r
					}
					continue
				}
				heap.Push(pq, &planItem{p: child, rank: r})
			}
		}

		if math.IsInf(nextFLimit, 1) {
			return nil, ErrSearchExhausted
		}
		fLimit = nextFLimit
	}
}

// hillClimbingSearch implements spec §4.6's hill-climbing mode: a
// depth-first descent that always continues into its best-ranked child
// first, backtracking to the next-best alternative (via an explicit stack)
// only when a branch dead-ends. Unlike bestFirstSearch it never compares
// plans from different branches against each other, so it commits hard to
// locally-good moves instead of paying for a globally-sorted frontier.
func hillClimbingSearch(ctx *plan.Context, cfg *Config, root *plan.Plan, deadline time.Time) (*Result, error) {
	type frame struct {
		p    *plan.Plan
		rank float64
	}

	stack := []frame{{p: root, rank: rank(ctx, cfg, root)}}
	expanded := 0

	for len(stack) > 0 {
		if cfg.SearchLimit > 0 && expanded >= cfg.SearchLimit {
			return nil, ErrSearchLimit
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, ErrSearchLimit
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p := top.p.ScanMutexes()
		if p.IsComplete() {
			start, end, makespan := p.Schedule()
			return &Result{Plan: p, Start: start, End: end, Makespan: makespan, Expanded: expanded}, nil
		}
		expanded++

		f, ok := selectFlaw(ctx, cfg, p)
		if !ok {
			continue
		}
		children, err := p.Refinements(f, false)
		if err != nil {
			continue
		}

		var frontier []frame
		for _, child := range children {
			r := rank(ctx, cfg, child)
			if math.IsInf(r, 1) {
				continue
			}
			frontier = append(frontier, frame{p: child, rank: r})
		}
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].rank < frontier[j].rank })
		// push worst-first so the best-ranked child is the next one popped
		for i := len(frontier) - 1; i >= 0; i-- {
			stack = append(stack, frontier[i])
		}
	}
	return nil, ErrSearchExhausted
}

func groundAll(problem *Problem) []*action.Action {
	var out []*action.Action
	for _, schema := range problem.Domain.Actions {
		for _, args := range argTuples(problem, schema) {
			out = append(out, schema.Ground(problem.Domain.Forms, args, problem))
		}
	}
	return out
}

func selectFlaw(ctx *plan.Context, cfg *Config, p *plan.Plan) (flaw.Flaw, bool) {
	var candidates []flaw.Candidate
	serial := 0
	for _, o := range p.Opens.Slice() {
		serial++
		candidates = append(candidates, candidateFor(ctx, p, o, serial))
	}
	for _, u := range p.Unsafes.Slice() {
		serial++
		candidates = append(candidates, candidateFor(ctx, p, u, serial))
	}
	for _, m := range p.Mutexes.Slice() {
		serial++
		candidates = append(candidates, candidateFor(ctx, p, m, serial))
	}
	if len(candidates) == 0 {
		return flaw.Flaw{}, false
	}
	c, _, ok := cfg.FlawPolicy.Select(candidates, 0)
	return c.Flaw, ok
}

// candidateFor builds the flaw.Candidate the selection policy needs: a
// stable Serial for LIFO/FIFO tie-breaks, a Refinements count computed
// lazily by re-running Refinements in test-only mode (spec §4.5's
// unsafe_refinements/open_cond_refinements/addable_steps/reusable_steps
// counting routines, shared with the real enumerator rather than
// duplicated), and a Rank that, for an OpenCondition with a planning graph
// available, reports its real add-cost/add-work so LeastCost/LeastWork
// criteria actually discriminate (spec §4.5 "heuristic-ranked orders").
func candidateFor(ctx *plan.Context, p *plan.Plan, f flaw.Flaw, serial int) flaw.Candidate {
	return flaw.Candidate{
		Flaw:   f,
		Serial: serial,
		Refinements: func() int {
			children, err := p.Refinements(f, true)
			if err != nil {
				return 0
			}
			return len(children)
		},
		Rank: func() (float64, int) {
			if f.Kind != flaw.KindOpenCondition || ctx.Graph == nil || f.Formula == nil {
				return 0, 0
			}
			v := ctx.Graph.HeuristicValue(f.Formula, p.Bindings)
			return v.Cost, v.Work
		},
	}
}

// rank computes the weighted-A* priority g + w*h for a plan: g is the number
// of real (non-sentinel) steps, h the additive heuristic sum over its open
// conditions (spec §4.6 "weighted A*"). Without a planning graph (pure
// lifted search), h is always 0 and the search degrades to uniform-cost
// breadth by plan size.
func rank(ctx *plan.Context, cfg *Config, p *plan.Plan) float64 {
	g := float64(p.Steps.Len() - 2)
	if g < 0 {
		g = 0
	}
	h := 0.0
	if ctx.Graph != nil {
		for _, o := range p.Opens.Slice() {
			if o.Formula == nil {
				continue
			}
			v := ctx.Graph.HeuristicValue(o.Formula, p.Bindings)
			if math.IsInf(v.Cost, 1) {
				return math.Inf(1)
			}
			h += v.Cost
		}
	}
	return g + cfg.Weight*h
}

type planItem struct {
	p    *plan.Plan
	rank float64
}

type planQueue []*planItem

func (q planQueue) Len() int            { return len(q) }
func (q planQueue) Less(i, j int) bool  { return q[i].rank < q[j].rank }
func (q planQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *planQueue) Push(x interface{}) { *q = append(*q, x.(*planItem)) }
func (q *planQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
