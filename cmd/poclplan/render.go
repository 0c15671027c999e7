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
	"sort"

	"github.com/joeycumines/go-pocl/internal/action"
	"github.com/joeycumines/go-pocl/internal/term"
	"github.com/joeycumines/go-pocl/planner"
)

// renderPlan writes res in the textual form spec §6 names: steps in
// start-time order as "t: (action args)", with a trailing "[duration]" for
// durative actions.
func renderPlan(w io.Writer, types *term.Table, res *planner.Result) {
	var steps []action.Step
	for _, s := range res.Plan.Steps.Slice() {
		if !s.IsInitial() && !s.IsGoal() {
			steps = append(steps, s)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return res.Start[steps[i].ID] < res.Start[steps[j].ID]
	})

	for _, s := range steps {
		args := make([]string, len(s.Action.Arguments))
		for i, a := range s.Action.Arguments {
			args[i] = types.ObjectName(a)
		}
		line := fmt.Sprintf("%.3f: (%s", res.Start[s.ID], s.Action.Name)
		for _, a := range args {
			line += " " + a
		}
		line += ")"
		if s.Action.Durative {
			line += fmt.Sprintf(" [%.3f]", res.End[s.ID]-res.Start[s.ID])
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "; makespan %.3f, expanded %d plans\n", res.Makespan, res.Expanded)
}
