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

package ordering

import "math"

// Temporal maintains an all-pairs shortest-paths matrix distance[a][b] over
// time points (spec §4.2 "TemporalOrderings"). Node 0 is a reference origin
// (time zero); each step id>0 contributes two nodes, START = 2*id-1 and
// END = 2*id. distance[a][b] is an upper bound on t_b - t_a; tightening a
// bound runs a Floyd-Warshall-style relaxation, the way lvlath's
// graph/matrix package propagates an adjacency matrix (explicit 2D slice,
// math.Inf sentinel, triple-nested relaxation loop).
type Temporal struct {
	threshold float64
	n         int // number of nodes currently allocated (including node 0)
	dist      [][]float64
	durations map[int]StepDuration
}

const origin = 0

func nodeOf(p Point) int {
	if p.End {
		return 2 * p.Step
	}
	return 2*p.Step - 1
}

// NewTemporal returns an empty temporal network with the given minimum
// separation threshold (spec default 0.01).
func NewTemporal(threshold float64) *Temporal {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	t := &Temporal{threshold: threshold, n: 1, dist: [][]float64{{0}}, durations: map[int]StepDuration{}}
	return t
}

func (t *Temporal) clone() *Temporal {
	nt := &Temporal{threshold: t.threshold, n: t.n, durations: make(map[int]StepDuration, len(t.durations))}
	nt.dist = make([][]float64, len(t.dist))
	for i, row := range t.dist {
		nt.dist[i] = append([]float64(nil), row...)
	}
	for k, v := range t.durations {
		nt.durations[k] = v
	}
	return nt
}

func (t *Temporal) ensureCapacity(n int) {
	if n <= t.n {
		return
	}
	for i := range t.dist {
		for len(t.dist[i]) < n {
			t.dist[i] = append(t.dist[i], math.Inf(1))
		}
	}
	for len(t.dist) < n {
		row := make([]float64, n)
		for i := range row {
			row[i] = math.Inf(1)
		}
		row[len(t.dist)] = 0
		t.dist = append(t.dist, row)
	}
	t.n = n
}

// errCycleTemporal mirrors errCycle for the temporal implementation.
var errCycleTemporal = &cycleError{}

// tighten applies the constraint t_b - t_a <= d (i.e. b occurs at most d
// after a) and propagates it via Floyd-Warshall, failing if any
// distance[x][x] becomes negative (spec §4.2).
func (t *Temporal) tighten(a, b int, d float64) error {
	n := t.n
	if a >= n || b >= n {
		panic("ordering: tighten on out-of-range node")
	}
	if d >= t.dist[a][b] {
		return nil
	}
	t.dist[a][b] = d
	// full reclosure: re-run Floyd-Warshall so the new edge propagates
	// through every path, regardless of insertion order
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if t.dist[i][k] == math.Inf(1) {
				continue
			}
			for j := 0; j < n; j++ {
				if t.dist[k][j] == math.Inf(1) {
					continue
				}
				if cand := t.dist[i][k] + t.dist[k][j]; cand < t.dist[i][j] {
					t.dist[i][j] = cand
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		if t.dist[i][i] < 0 {
			return errCycleTemporal
		}
	}
	return nil
}

// AddStep installs a new step's two time points and the edges implied by its
// action's duration (min <= end-start <= max) and the global threshold
// (threshold <= start, relative to the previous high-water mark being
// irrelevant here since start is measured from the origin), plus, if
// available, an informed lower bound from the planning graph heuristic
// (spec §4.2 "Temporal durations").
func (t *Temporal) AddStep(d StepDuration) (*Temporal, error) {
	nt := t.clone()
	nt.durations[d.Step] = d
	s, e := nodeOf(Point{Step: d.Step}), nodeOf(Point{Step: d.Step, End: true})
	n := e + 1
	if n < s+1 {
		n = s + 1
	}
	nt.ensureCapacity(n)
	// start - origin >= threshold  <=>  dist[start][origin] <= -threshold
	if err := nt.tighten(s, origin, -nt.threshold); err != nil {
		return nil, err
	}
	// end - start >= min  <=>  dist[end][start] <= -min
	if err := nt.tighten(e, s, -d.Min); err != nil {
		return nil, err
	}
	if !math.IsInf(d.Max, 1) {
		// end - start <= max  <=>  dist[start][end] <= max... wait this is already <=; encode directly
		if err := nt.tighten(s, e, d.Max); err != nil {
			return nil, err
		}
	}
	if d.StartLowerBound > 0 {
		if err := nt.tighten(s, origin, -d.StartLowerBound); err != nil {
			return nil, err
		}
	}
	if d.EndLowerBound > 0 {
		if err := nt.tighten(e, origin, -d.EndLowerBound); err != nil {
			return nil, err
		}
	}
	return nt, nil
}

// RefineStep implements Solver.
func (t *Temporal) RefineStep(d StepDuration) (Solver, error) {
	nt, err := t.AddStep(d)
	if err != nil {
		return nil, err
	}
	return nt, nil
}

// RefinePoint implements Solver.
func (t *Temporal) RefinePoint(from, to Point) (Solver, error) {
	nt, err := t.Refine(Ordering{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return nt, nil
}

// Refine adds a single "from before to" ordering constraint (with the
// threshold as the minimum separation) and returns the new snapshot.
func (t *Temporal) Refine(o Ordering) (*Temporal, error) {
	nt := t.clone()
	a, b := nodeOf(o.From), nodeOf(o.To)
	n := a + 1
	if b+1 > n {
		n = b + 1
	}
	nt.ensureCapacity(n)
	if err := nt.tighten(b, a, -nt.threshold); err != nil {
		return nil, err
	}
	return nt, nil
}

// PossiblyBefore reports whether p1 could occur no later than p2: true
// unless the network proves p2 strictly precedes p1 by at least threshold.
func (t *Temporal) PossiblyBefore(p1, p2 Point, rel Rel) bool {
	a, b := nodeOf(p1), nodeOf(p2)
	if a >= t.n || b >= t.n {
		return true
	}
	switch rel {
	case Before:
		return t.dist[b][a] > -t.threshold
	case After:
		return t.dist[b][a] > -t.threshold
	default: // At
		return t.dist[b][a] >= 0
	}
}

// PossiblyConcurrent reports, for two steps, which pairings of their
// start/end points are simultaneously feasible (neither network-implied to
// precede the other by at least threshold).
func (t *Temporal) PossiblyConcurrent(id1, id2 int) (ss, se, es, ee bool) {
	check := func(s1, s2 Point) bool {
		return t.PossiblyBefore(s1, s2, At) && t.PossiblyBefore(s2, s1, At)
	}
	ss = check(Point{Step: id1}, Point{Step: id2})
	se = check(Point{Step: id1}, Point{Step: id2, End: true})
	es = check(Point{Step: id1, End: true}, Point{Step: id2})
	ee = check(Point{Step: id1, End: true}, Point{Step: id2, End: true})
	return
}

// Schedule assigns each step its earliest feasible time stamp: the start
// node's distance to the origin gives the minimal start time, likewise for
// the end node, and makespan is the largest end time across all steps
// (spec §4.2 "schedule").
func (t *Temporal) Schedule() (start, end map[int]float64, makespan float64) {
	start = map[int]float64{}
	end = map[int]float64{}
	for id, d := range t.durations {
		s, e := nodeOf(Point{Step: id}), nodeOf(Point{Step: id, End: true})
		st := 0.0
		if s < t.n && t.dist[s][origin] < 0 {
			st = -t.dist[s][origin]
		}
		en := st + d.Min
		if e < t.n && t.dist[e][origin] < 0 && -t.dist[e][origin] > en {
			en = -t.dist[e][origin]
		}
		start[id] = st
		end[id] = en
		if en > makespan {
			makespan = en
		}
	}
	return
}
