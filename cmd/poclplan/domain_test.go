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
	"testing"

	"gopkg.in/yaml.v3"
)

const sampleYAML = `
domain:
  name: blocks
  requirements: {typing: true}
  types:
    - {name: block}
  predicates:
    - {name: on, params: [block, block]}
    - {name: clear, params: [block]}
    - {name: holding, params: [block]}
    - {name: empty-hand, params: []}
  actions:
    - name: unstack
      parameters:
        - {name: "?x", type: block}
        - {name: "?y", type: block}
      condition:
        and:
          - atom: {pred: on, args: ["?x", "?y"]}
          - atom: {pred: clear, args: ["?x"]}
          - atom: {pred: empty-hand, args: []}
      effects:
        - literal: {atom: {pred: holding, args: ["?x"]}}
        - literal: {atom: {pred: clear, args: ["?y"]}}
        - literal: {neg: {pred: on, args: ["?x", "?y"]}}
        - literal: {neg: {pred: clear, args: ["?x"]}}
        - literal: {neg: {pred: empty-hand, args: []}}
problem:
  name: blocks-1
  objects:
    - {name: a, type: block}
    - {name: b, type: block}
  init:
    - {pred: on, args: [a, b]}
    - {pred: clear, args: [a]}
    - {pred: empty-hand, args: []}
  goal:
    atom: {pred: holding, args: [a]}
`

func TestBuildDomainProblem(t *testing.T) {
	var doc docFile
	if err := yaml.Unmarshal([]byte(sampleYAML), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	dom, problem, err := buildDomainProblem(&doc)
	if err != nil {
		t.Fatalf("buildDomainProblem: %v", err)
	}

	if dom.Name != "blocks" {
		t.Errorf("domain name = %q, want blocks", dom.Name)
	}
	if len(dom.Actions) != 1 {
		t.Fatalf("len(Actions) = %d, want 1", len(dom.Actions))
	}
	unstack := dom.Actions[0]
	if unstack.Name != "unstack" {
		t.Errorf("action name = %q, want unstack", unstack.Name)
	}
	if len(unstack.Parameters) != 2 {
		t.Fatalf("len(Parameters) = %d, want 2", len(unstack.Parameters))
	}
	if len(unstack.Effects) != 5 {
		t.Fatalf("len(Effects) = %d, want 5", len(unstack.Effects))
	}

	if problem.Goal == nil {
		t.Fatal("problem.Goal is nil")
	}
	if len(problem.InitialAtoms()) != 3 {
		t.Fatalf("len(InitialAtoms()) = %d, want 3", len(problem.InitialAtoms()))
	}
}

func TestBuildDomainProblemUndeclaredPredicate(t *testing.T) {
	var doc docFile
	const bad = `
domain:
  name: d
problem:
  name: p
  init:
    - {pred: nope, args: []}
  goal: {always: true}
`
	if err := yaml.Unmarshal([]byte(bad), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, _, err := buildDomainProblem(&doc); err == nil {
		t.Fatal("expected error for undeclared predicate, got nil")
	}
}
