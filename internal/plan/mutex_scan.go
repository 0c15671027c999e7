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
	"github.com/joeycumines/go-pocl/internal/binding"
	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/formula"
)

// ScanMutexes performs the full pairwise mutex-threat scan (spec §4.4
// "Mutex threats": two steps each with an effect that could assert and
// negate the same ground atom, and whose start/end points the orderings
// solver cannot already rule out as concurrent). It replaces the sentinel
// mutex-threat placeholder the spec leaves open (§9) with a plain
// MutexScanPending flag: true until this method has run once against the
// plan's current step set, after which only steps added since the last scan
// need checking (callers re-set it whenever a refinement adds a step).
func (p *Plan) ScanMutexes() *Plan {
	if !p.MutexScanPending {
		return p
	}
	np := p.clone()
	np.MutexScanPending = false

	steps := np.Steps.Slice()
	for i, s1 := range steps {
		if s1.Action == nil {
			continue
		}
		for _, j := range steps[i+1:] {
			if j.Action == nil {
				continue
			}
			for _, e1 := range s1.Action.Effects {
				for _, e2 := range j.Action.Effects {
					if !binding.Affects(np.ctx.Types, e1.Literal, s1.ID, e2.Literal, j.ID) {
						continue
					}
					ss, se, es, ee := np.Orderings.PossiblyConcurrent(s1.ID, j.ID)
					if !concurrentFor(e1.When, e2.When, ss, se, es, ee) {
						continue
					}
					np.Mutexes = Cons(flaw.MutexThreat(s1.ID, e1, j.ID, e2), np.Mutexes)
				}
			}
		}
	}
	return np
}

func concurrentFor(w1, w2 formula.When, ss, se, es, ee bool) bool {
	e1, e2 := w1 == formula.AtEnd, w2 == formula.AtEnd
	switch {
	case !e1 && !e2:
		return ss
	case !e1 && e2:
		return se
	case e1 && !e2:
		return es
	default:
		return ee
	}
}
