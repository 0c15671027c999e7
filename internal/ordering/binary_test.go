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

import "testing"

func TestBinaryTransitiveClosure(t *testing.T) {
	b := NewBinary().AddStep(1).AddStep(2).AddStep(3)
	b, err := b.Refine(1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err = b.Refine(2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.isBefore(1, 3) {
		t.Errorf("transitive closure should imply 1 before 3")
	}
}

func TestBinaryRefineCycleRejected(t *testing.T) {
	b := NewBinary().AddStep(1).AddStep(2)
	b, err := b.Refine(1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.Refine(2, 1); err == nil {
		t.Fatalf("refining a cycle (2 before 1 when 1 before 2 already holds) must fail")
	}
}

func TestBinaryRefineIdempotent(t *testing.T) {
	b := NewBinary().AddStep(1).AddStep(2)
	b1, err := b.Refine(1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, err := b1.Refine(1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b1 != b2 {
		t.Errorf("refining an already-implied ordering should return the same snapshot (spec §8 round-trip)")
	}
}

func TestBinarySentinelSteps(t *testing.T) {
	b := NewBinary().AddStep(1)
	if !b.isBefore(InitStep, 1) {
		t.Errorf("init step should be before every other step")
	}
	if !b.isBefore(1, GoalStep) {
		t.Errorf("every step should be before the goal step")
	}
}

func TestBinaryPossiblyConcurrentUnordered(t *testing.T) {
	b := NewBinary().AddStep(1).AddStep(2)
	ss, se, es, ee := b.PossiblyConcurrent(1, 2)
	if !ss || !se || !es || !ee {
		t.Errorf("two unordered steps should be possibly-concurrent on every pairing")
	}
	b2, err := b.Refine(1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ss, _, _, _ = b2.PossiblyConcurrent(1, 2)
	if ss {
		t.Errorf("once 1 is ordered before 2, they should no longer be possibly-concurrent")
	}
}
