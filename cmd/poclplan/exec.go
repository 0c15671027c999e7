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
	"io"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/term"
	"github.com/joeycumines/go-pocl/planner"
)

// dryRunExecutor satisfies planner.Executor by printing each step as it
// ticks rather than driving real effectors; it's the --execute flag's way
// of exercising the plan's behavior tree (planner.Result.Tree) without a
// real robot or simulator behind it.
type dryRunExecutor struct {
	w     io.Writer
	types *term.Table
}

// Node returns a leaf that reports the step and immediately succeeds,
// matching the teacher's own leaf convention (util.go's bt.New(func(...)
// (bt.Status, error))) of a one-shot non-Running tick.
func (e dryRunExecutor) Node(step action.Step) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		args := make([]string, len(step.Action.Arguments))
		for i, a := range step.Action.Arguments {
			args[i] = e.types.ObjectName(a)
		}
		line := fmt.Sprintf("(%s", step.Action.Name)
		for _, a := range args {
			line += " " + a
		}
		line += ")"
		fmt.Fprintln(e.w, line)
		return bt.Success, nil
	})
}

// executePlan compiles res into a behavior tree via dryRunExecutor and ticks
// it to completion, the way go-behaviortree's own examples drive a Node:
// Tick() in a loop until it stops reporting bt.Running.
func executePlan(w io.Writer, types *term.Table, res *planner.Result) error {
	tree := res.Tree(dryRunExecutor{w: w, types: types})
	for {
		status, err := tree.Tick()
		if err != nil {
			return fmt.Errorf("poclplan: executing plan: %w", err)
		}
		if status != bt.Running {
			if status != bt.Success {
				return fmt.Errorf("poclplan: plan execution reported %v", status)
			}
			return nil
		}
	}
}
