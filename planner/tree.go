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
	"sort"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/joeycumines/go-pocl/internal/action"
)

// Executor runs one ground step's action against the real world, returning
// an error only for conditions the plan itself could not have anticipated;
// a plan-consistent failure should simply report bt.Failure via the Node it
// builds for the corresponding action.
type Executor interface {
	// Node returns the behavior tree leaf that executes step.
	Node(step action.Step) bt.Node
}

// Tree compiles a finished Result into an executable behavior tree: steps
// run in schedule order inside a Memorize(Sequence) so that a step which has
// already reported bt.Success is not re-ticked (the teacher's go-behaviortree
// idiom, pabt.go's p.bt using bt.Memorize(bt.Selector) for its action
// alternatives; here the whole plan is one fixed sequence, since by the time
// Tree is called POCL's search has already committed to a single total
// ordering via Schedule).
func (r *Result) Tree(exec Executor) bt.Node {
	steps := r.orderedSteps()
	nodes := make([]bt.Node, 0, len(steps))
	for _, s := range steps {
		nodes = append(nodes, exec.Node(s))
	}
	return bt.New(bt.Memorize(bt.Sequence), nodes...)
}

// orderedSteps returns every real (non-sentinel) step of the plan, ordered
// by its scheduled start time (spec §6, "a scheduler that returns per-step
// start and end times" feeding execution order).
func (r *Result) orderedSteps() []action.Step {
	var steps []action.Step
	for _, s := range r.Plan.Steps.Slice() {
		if s.IsInitial() || s.IsGoal() {
			continue
		}
		steps = append(steps, s)
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return r.Start[steps[i].ID] < r.Start[steps[j].ID]
	})
	return steps
}
