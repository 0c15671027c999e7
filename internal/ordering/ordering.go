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

// Package ordering implements the two interchangeable orderings solvers of
// spec.md §4.2: a boolean transitive-closure matrix (BinaryOrderings) and a
// temporal simple-temporal-network (TemporalOrderings). Propagation loops
// follow the adjacency-matrix relaxation style of katalvlaran/lvlath's
// graph/matrix and dijkstra packages (explicit 2D slices, sentinel
// infinities, row/column relaxation), per SPEC_FULL.md §B / DESIGN.md.
package ordering

// Point identifies a step's start or end instant; a step with a single
// instantaneous event uses the same id for both.
type Point struct {
	Step int
	End  bool // false = start, true = end
}

// DefaultThreshold is the minimum temporal separation between two events
// (spec §4.2/§5).
const DefaultThreshold = 0.01

// InitStep and GoalStep are the sentinel step ids of spec §3: id 0 is
// "before all", the goal step is "after all".
const InitStep = 0

// GoalStep stands in for the spec's "id ∞".
var GoalStep = int(^uint(0) >> 1)

// Ordering requests "producer-point before consumer-point".
type Ordering struct {
	From, To Point
}

// StepDuration supplies a newly added step's duration bounds for the
// temporal network; non-durative steps use Min==Max==0.
type StepDuration struct {
	Step             int
	Min, Max         float64 // Max == +Inf if unbounded
	StartLowerBound  float64 // informed lower bound from the planning graph, 0 if unknown
	EndLowerBound    float64
}

// Solver is the shared contract both BinaryOrderings and TemporalOrderings
// satisfy (spec §4.2).
type Solver interface {
	// PossiblyBefore reports whether p1 could occur no later than p2 given
	// the tie-break rel for simultaneous points.
	PossiblyBefore(p1, p2 Point, rel Rel) bool
	// PossiblyConcurrent reports, for two steps, which pairings of their
	// start/end points are simultaneously feasible.
	PossiblyConcurrent(id1, id2 int) (ss, se, es, ee bool)
	// Schedule assigns each step its earliest feasible time stamp and
	// returns the overall makespan.
	Schedule() (start, end map[int]float64, makespan float64)
	// RefinePoint adds a single "from before to" ordering and returns the
	// new snapshot, or an error if it would create a cycle.
	RefinePoint(from, to Point) (Solver, error)
	// RefineStep registers a newly added step (with its duration bounds, if
	// any) and returns the new snapshot.
	RefineStep(d StepDuration) (Solver, error)
}

// Rel tie-breaks comparisons between points that may coincide (spec §4.2).
type Rel int

const (
	Before Rel = iota
	At
	After
)
