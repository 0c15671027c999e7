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
	"fmt"
	"math/rand"
	"time"

	"github.com/joeycumines/go-pocl/internal/flaw"
	"github.com/joeycumines/go-pocl/internal/pgraph"
)

// SearchAlgorithm selects the top-level search strategy (spec §4.6).
type SearchAlgorithm int

const (
	BestFirst SearchAlgorithm = iota
	IterativeDeepeningAStar
	HillClimbing
)

// Option configures a Config, mirroring the functional-options pattern used
// throughout this codebase (pabt.Option's "Option func(c *config) error").
type Option func(c *Config) error

// Config collects every search-tuning knob spec §6 names.
type Config struct {
	Algorithm SearchAlgorithm
	Cost      pgraph.ActionCost
	Weight    float64 // weighted-A* weight on the heuristic term; 1.0 = admissible

	FlawPolicy *flaw.Policy

	SearchLimit int // max plans expanded before search gives up; 0 = unlimited
	TimeLimit   time.Duration

	RandomOpenConditions    bool
	GroundActions           bool
	DomainConstraints       bool
	KeepStaticPreconditions bool
	Temporal                bool
	Threshold               float64

	RNG *rand.Rand
}

// DefaultConfig returns the baseline configuration: best-first search,
// unit action cost, an admissible weight, and the default flaw-selection
// policy: non-separable threats (LIFO), then mutex threats (LIFO), then
// static open conditions (LIFO), then open conditions by least additive
// cost, then separable threats (LIFO).
func DefaultConfig() *Config {
	return &Config{
		Algorithm:  BestFirst,
		Cost:       pgraph.ActionCostUnit,
		Weight:     1.0,
		FlawPolicy: defaultPolicy(),
		Threshold:  0.01,
	}
}

func defaultPolicy() *flaw.Policy {
	return &flaw.Policy{
		Criteria: []flaw.Criterion{
			{Classes: []flaw.Class{flaw.ClassNonSeparableThreat}, TieBreak: flaw.LIFO},
			{Classes: []flaw.Class{flaw.ClassMutex}, TieBreak: flaw.LIFO},
			{Classes: []flaw.Class{flaw.ClassStaticOpen}, TieBreak: flaw.LIFO},
			{Classes: []flaw.Class{flaw.ClassOpen}, TieBreak: flaw.LeastCost, Heuristic: flaw.RankAdditive},
			{Classes: []flaw.Class{flaw.ClassSeparableThreat}, TieBreak: flaw.LIFO},
		},
	}
}

// WithAlgorithm selects the search algorithm.
func WithAlgorithm(a SearchAlgorithm) Option {
	return func(c *Config) error { c.Algorithm = a; return nil }
}

// WithActionCost selects the action-cost mode the planning-graph heuristic
// uses (spec §4.3 "Action-cost modes").
func WithActionCost(mode pgraph.ActionCost) Option {
	return func(c *Config) error { c.Cost = mode; return nil }
}

// WithWeight sets the weighted-A* weight; must be >= 1.
func WithWeight(w float64) Option {
	return func(c *Config) error {
		if w < 1 {
			return fmt.Errorf("planner: weight must be >= 1, got %v", w)
		}
		c.Weight = w
		return nil
	}
}

// WithFlawPolicy overrides the default flaw-selection policy (spec §4.5).
func WithFlawPolicy(p *flaw.Policy) Option {
	return func(c *Config) error {
		if p == nil {
			return fmt.Errorf("planner: nil flaw policy")
		}
		c.FlawPolicy = p
		return nil
	}
}

// WithSearchLimit bounds the number of plans expanded before search gives up
// (spec §4.6 "search_limits").
func WithSearchLimit(n int) Option {
	return func(c *Config) error { c.SearchLimit = n; return nil }
}

// WithTimeLimit bounds wall-clock search time.
func WithTimeLimit(d time.Duration) Option {
	return func(c *Config) error { c.TimeLimit = d; return nil }
}

// WithRandomOpenConditions shuffles the order open conditions are queued in
// (spec §4.4, an explicit Open Question this planner resolves by threading a
// *rand.Rand through decomposition).
func WithRandomOpenConditions(rng *rand.Rand) Option {
	return func(c *Config) error {
		c.RandomOpenConditions = true
		c.RNG = rng
		return nil
	}
}

// WithGroundActions enables eager grounding via the planning-graph heuristic
// instead of pure lifted refinement (spec §4.3).
func WithGroundActions(b bool) Option {
	return func(c *Config) error { c.GroundActions = b; return nil }
}

// WithDomainConstraints enables StepDomain precomputation and restriction
// (spec §8 "domain_constraints" invariant).
func WithDomainConstraints(b bool) Option {
	return func(c *Config) error { c.DomainConstraints = b; return nil }
}

// WithKeepStaticPreconditions disables stripping of statically-satisfied
// preconditions from decomposition (useful for explainability/debugging).
func WithKeepStaticPreconditions(b bool) Option {
	return func(c *Config) error { c.KeepStaticPreconditions = b; return nil }
}

// WithTemporal selects the temporal (simple-temporal-network) orderings
// solver instead of the binary transitive-closure one (spec §4.2).
func WithTemporal(threshold float64) Option {
	return func(c *Config) error {
		c.Temporal = true
		if threshold > 0 {
			c.Threshold = threshold
		}
		return nil
	}
}
