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

// Command poclplan loads a domain+problem file and runs the refinement
// search of the planner package, printing the resulting plan or a
// diagnostic. It is an external collaborator, not core scope (spec §1):
// parsing, flag handling, and output formatting all live here, never in the
// internal packages the core search is built from.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeycumines/go-pocl/internal/pgraph"
	"github.com/joeycumines/go-pocl/planner"
)

// runConfig collects the CLI flags that map onto planner.Option; a
// --config file supplies the same fields as YAML and is applied after the
// flags: each non-zero value in the file replaces the flag's value, and a
// true boolean in the file switches that setting on. Flags do not override
// values set in the file.
type runConfig struct {
	algorithm         string
	cost              string
	weight            float64
	searchLimit       int
	timeLimit         time.Duration
	groundActions     bool
	domainConstraints bool
	temporal          bool
	threshold         float64
	verbosity         int
	execute           bool
}

type fileConfig struct {
	SearchAlgorithm   string  `yaml:"search_algorithm"`
	ActionCost        string  `yaml:"action_cost"`
	Weight            float64 `yaml:"weight"`
	SearchLimit       int     `yaml:"search_limit"`
	TimeLimitSeconds  float64 `yaml:"time_limit_seconds"`
	GroundActions     bool    `yaml:"ground_actions"`
	DomainConstraints bool    `yaml:"domain_constraints"`
	Temporal          bool    `yaml:"temporal"`
	Threshold         float64 `yaml:"threshold"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		rc      runConfig
	)

	cmd := &cobra.Command{
		Use:   "poclplan <domain-problem.yaml>",
		Short: "Run POCL refinement search over a domain+problem file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], cfgFile, rc)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "optional YAML file of search settings")
	cmd.Flags().StringVar(&rc.algorithm, "algorithm", "a-star", "search algorithm: a-star|ida-star|hill-climbing")
	cmd.Flags().StringVar(&rc.cost, "action-cost", "unit", "action cost mode: unit|duration|relative")
	cmd.Flags().Float64Var(&rc.weight, "weight", 1.0, "weighted-A* weight (>= 1)")
	cmd.Flags().IntVar(&rc.searchLimit, "search-limit", 0, "max plans expanded before giving up (0 = unlimited)")
	cmd.Flags().DurationVar(&rc.timeLimit, "time-limit", 0, "wall-clock search time limit (0 = unlimited)")
	cmd.Flags().BoolVar(&rc.groundActions, "ground-actions", false, "ground every action and build the planning-graph heuristic")
	cmd.Flags().BoolVar(&rc.domainConstraints, "domain-constraints", false, "restrict step domains to planning-graph-reachable tuples")
	cmd.Flags().BoolVar(&rc.temporal, "temporal", false, "use the temporal (STN) orderings solver instead of binary")
	cmd.Flags().Float64Var(&rc.threshold, "threshold", 0.01, "minimum separation/denominator for temporal and relative-cost math")
	cmd.Flags().BoolVar(&rc.execute, "execute", false, "compile the plan to a behavior tree and tick it to completion instead of just printing it")

	return cmd
}

func run(path, cfgFile string, rc runConfig) error {
	doc, err := loadDoc(path)
	if err != nil {
		return err
	}
	dom, problem, err := buildDomainProblem(doc)
	if err != nil {
		return err
	}

	if cfgFile != "" {
		if err := applyFileConfig(cfgFile, &rc); err != nil {
			return err
		}
	}

	opts, err := rc.toOptions()
	if err != nil {
		return err
	}

	res, err := planner.Plan(problem, opts...)
	if err != nil {
		switch err {
		case planner.ErrSearchExhausted:
			fmt.Println("problem has no solution")
			os.Exit(2)
		case planner.ErrSearchLimit:
			fmt.Println("search limit reached before a plan was found")
			os.Exit(3)
		}
		return err
	}

	renderPlan(os.Stdout, dom.Types, res)

	if rc.execute {
		return executePlan(os.Stdout, dom.Types, res)
	}
	return nil
}

func loadDoc(path string) (*docFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("poclplan: reading %s: %w", path, err)
	}
	var doc docFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("poclplan: parsing %s: %w", path, err)
	}
	return &doc, nil
}

func applyFileConfig(path string, rc *runConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("poclplan: reading config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("poclplan: parsing config %s: %w", path, err)
	}
	if fc.SearchAlgorithm != "" {
		rc.algorithm = fc.SearchAlgorithm
	}
	if fc.ActionCost != "" {
		rc.cost = fc.ActionCost
	}
	if fc.Weight != 0 {
		rc.weight = fc.Weight
	}
	if fc.SearchLimit != 0 {
		rc.searchLimit = fc.SearchLimit
	}
	if fc.TimeLimitSeconds != 0 {
		rc.timeLimit = time.Duration(fc.TimeLimitSeconds * float64(time.Second))
	}
	rc.groundActions = rc.groundActions || fc.GroundActions
	rc.domainConstraints = rc.domainConstraints || fc.DomainConstraints
	rc.temporal = rc.temporal || fc.Temporal
	if fc.Threshold != 0 {
		rc.threshold = fc.Threshold
	}
	return nil
}

func (rc runConfig) toOptions() ([]planner.Option, error) {
	var cost pgraph.ActionCost
	switch rc.cost {
	case "", "unit":
		cost = pgraph.ActionCostUnit
	case "duration":
		cost = pgraph.ActionCostDuration
	case "relative":
		cost = pgraph.ActionCostRelative
	default:
		return nil, fmt.Errorf("poclplan: unknown action-cost mode %q", rc.cost)
	}

	var algorithm planner.SearchAlgorithm
	switch rc.algorithm {
	case "", "a-star", "astar":
		algorithm = planner.BestFirst
	case "ida-star", "idastar":
		algorithm = planner.IterativeDeepeningAStar
	case "hill-climbing", "hillclimbing", "hc":
		algorithm = planner.HillClimbing
	default:
		return nil, fmt.Errorf("poclplan: unknown search algorithm %q", rc.algorithm)
	}

	opts := []planner.Option{
		planner.WithAlgorithm(algorithm),
		planner.WithActionCost(cost),
		planner.WithWeight(rc.weight),
		planner.WithSearchLimit(rc.searchLimit),
		planner.WithTimeLimit(rc.timeLimit),
		planner.WithGroundActions(rc.groundActions || rc.domainConstraints),
		planner.WithDomainConstraints(rc.domainConstraints),
	}
	if rc.temporal {
		opts = append(opts, planner.WithTemporal(rc.threshold))
	}
	return opts, nil
}
