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

import (
	"math"
	"testing"
)

func TestTemporalDurationScheduling(t *testing.T) {
	temp := NewTemporal(DefaultThreshold)
	nt, err := temp.AddStep(StepDuration{Step: 1, Min: 2, Max: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start, end, makespan := nt.Schedule()
	if start[1] < DefaultThreshold-1e-9 {
		t.Errorf("step should start no earlier than the threshold, got %v", start[1])
	}
	if end[1] < start[1]+2-1e-9 {
		t.Errorf("end should be at least min-duration after start, got start=%v end=%v", start[1], end[1])
	}
	if makespan != end[1] {
		t.Errorf("makespan should equal the single step's end time, got %v want %v", makespan, end[1])
	}
	// spec §8 scenario 5: A starts at t=0.01, ends at t >= 2.01, makespan in [2.01, 5.01].
	if math.Abs(start[1]-0.01) > 1e-9 {
		t.Errorf("expected start == threshold (0.01), got %v", start[1])
	}
	if end[1] < 2.01-1e-9 || end[1] > 5.01+1e-9 {
		t.Errorf("expected end in [2.01, 5.01], got %v", end[1])
	}
}

func TestTemporalMaxDurationEnforced(t *testing.T) {
	temp := NewTemporal(DefaultThreshold)
	nt, err := temp.AddStep(StepDuration{Step: 1, Min: 5, Max: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the step's duration is fixed at 5, so ordering its end before its start
	// (by at least the threshold) is infeasible and must be rejected.
	if _, err := nt.Refine(Ordering{From: Point{Step: 1, End: true}, To: Point{Step: 1}}); err == nil {
		t.Fatalf("ordering a fixed-duration step's end before its own start must fail")
	}
}

func TestTemporalCycleRejected(t *testing.T) {
	temp := NewTemporal(DefaultThreshold)
	nt, err := temp.AddStep(StepDuration{Step: 1, Max: math.Inf(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nt, err = nt.AddStep(StepDuration{Step: 2, Max: math.Inf(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nt2, err := nt.Refine(Ordering{From: Point{Step: 1}, To: Point{Step: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := nt2.Refine(Ordering{From: Point{Step: 2}, To: Point{Step: 1}}); err == nil {
		t.Fatalf("ordering step 2 before step 1 after 1 before 2 must fail (cycle)")
	}
}

func TestTemporalPossiblyConcurrent(t *testing.T) {
	temp := NewTemporal(DefaultThreshold)
	nt, err := temp.AddStep(StepDuration{Step: 1, Max: math.Inf(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nt, err = nt.AddStep(StepDuration{Step: 2, Max: math.Inf(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ss, _, _, _ := nt.PossiblyConcurrent(1, 2)
	if !ss {
		t.Errorf("two freshly-added unordered steps should be possibly-concurrent at their starts")
	}
	nt2, err := nt.Refine(Ordering{From: Point{Step: 1, End: true}, To: Point{Step: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ss2, _, _, _ := nt2.PossiblyConcurrent(1, 2)
	if ss2 {
		t.Errorf("once step 1 ends before step 2 starts, their starts should no longer be possibly-concurrent")
	}
}

func TestTemporalRefineIdempotent(t *testing.T) {
	temp := NewTemporal(DefaultThreshold)
	nt, err := temp.AddStep(StepDuration{Step: 1, Max: math.Inf(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nt, err = nt.AddStep(StepDuration{Step: 2, Max: math.Inf(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nt1, err := nt.Refine(Ordering{From: Point{Step: 1}, To: Point{Step: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start1, end1, _ := nt1.Schedule()
	nt2, err := nt1.Refine(Ordering{From: Point{Step: 1}, To: Point{Step: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start2, end2, _ := nt2.Schedule()
	if start1[1] != start2[1] || end1[2] != end2[2] {
		t.Errorf("re-adding an already-implied temporal ordering should not change the schedule")
	}
}
