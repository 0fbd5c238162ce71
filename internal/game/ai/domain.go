// Package ai chooses actions for NPCs. A Hierarchical Task Network (HTN)
// domain decomposes the root task "behave" into operators through ordered
// methods whose preconditions are Lua hooks; each operator names an action
// and a target token. The Chooser turns the plan into an executor request.
package ai

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/actioncore/internal/game/ruleset"
)

// RootTask is where every plan starts.
const RootTask = "behave"

// PassAction is the operator action that deliberately does nothing.
const PassAction = "pass"

// Task is an abstract goal that can be decomposed by methods.
type Task struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Method decomposes a task into an ordered list of subtasks or operator IDs.
//
// Precondition: Precondition is a Lua function name; empty means always applicable.
type Method struct {
	TaskID       string   `yaml:"task"`
	ID           string   `yaml:"id"`
	Precondition string   `yaml:"precondition"`
	Subtasks     []string `yaml:"subtasks"`
}

// Operator is a primitive step naming an action template and how to pick its target.
type Operator struct {
	ID string `yaml:"id"`
	// Action is an action template ID, or PassAction.
	Action string `yaml:"action"`
	// Target is a token understood by WorldState.ResolveTarget; empty derives
	// the target from the action's targeting rule.
	Target string `yaml:"target"`
}

// Domain holds the full HTN domain loaded from a YAML file.
//
// Invariant: all Task, Method, and Operator IDs are unique within their slice.
type Domain struct {
	ID          string      `yaml:"id"`
	Description string      `yaml:"description"`
	Tasks       []*Task     `yaml:"tasks"`
	Methods     []*Method   `yaml:"methods"`
	Operators   []*Operator `yaml:"operators"`
}

// Validate checks required fields, uniqueness, and cross-references.
//
// Postcondition: nil return guarantees a "behave" task exists, every method
// references a known task and decomposes into known tasks or operators, and
// every operator names an action.
func (d *Domain) Validate() error {
	if d.ID == "" {
		return errors.New("ai.Domain: ID must not be empty")
	}
	var errs []error
	tasks := make(map[string]bool, len(d.Tasks))
	for _, t := range d.Tasks {
		switch {
		case t.ID == "":
			errs = append(errs, fmt.Errorf("ai.Domain %q: task has empty ID", d.ID))
		case tasks[t.ID]:
			errs = append(errs, fmt.Errorf("ai.Domain %q: duplicate task ID %q", d.ID, t.ID))
		}
		tasks[t.ID] = true
	}
	if !tasks[RootTask] {
		errs = append(errs, fmt.Errorf("ai.Domain %q: missing root task %q", d.ID, RootTask))
	}
	ops := make(map[string]bool, len(d.Operators))
	for _, op := range d.Operators {
		switch {
		case op.ID == "" || op.Action == "":
			errs = append(errs, fmt.Errorf("ai.Domain %q: operator missing ID or Action", d.ID))
		case ops[op.ID]:
			errs = append(errs, fmt.Errorf("ai.Domain %q: duplicate operator ID %q", d.ID, op.ID))
		case tasks[op.ID]:
			errs = append(errs, fmt.Errorf("ai.Domain %q: operator %q shadows a task", d.ID, op.ID))
		}
		ops[op.ID] = true
	}
	methods := make(map[string]bool, len(d.Methods))
	for _, m := range d.Methods {
		if m.TaskID == "" || m.ID == "" {
			errs = append(errs, fmt.Errorf("ai.Domain %q: method missing TaskID or ID", d.ID))
			continue
		}
		if methods[m.ID] {
			errs = append(errs, fmt.Errorf("ai.Domain %q: duplicate method ID %q", d.ID, m.ID))
		}
		methods[m.ID] = true
		if !tasks[m.TaskID] {
			errs = append(errs, fmt.Errorf("ai.Domain %q method %q: TaskID %q references unknown task", d.ID, m.ID, m.TaskID))
		}
		if len(m.Subtasks) == 0 {
			errs = append(errs, fmt.Errorf("ai.Domain %q method %q: subtasks must not be empty", d.ID, m.ID))
		}
		for _, sub := range m.Subtasks {
			if !tasks[sub] && !ops[sub] {
				errs = append(errs, fmt.Errorf("ai.Domain %q method %q: subtask %q is neither a task nor an operator", d.ID, m.ID, sub))
			}
		}
	}
	return errors.Join(errs...)
}

// OperatorByID returns the operator with the given ID, or false if not found.
func (d *Domain) OperatorByID(id string) (*Operator, bool) {
	for _, op := range d.Operators {
		if op.ID == id {
			return op, true
		}
	}
	return nil, false
}

// MethodsForTask returns all methods that decompose taskID, in declaration order.
func (d *Domain) MethodsForTask(taskID string) []*Method {
	var out []*Method
	for _, m := range d.Methods {
		if m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out
}

// Actions returns the distinct action IDs the domain's operators name, excluding PassAction.
func (d *Domain) Actions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range d.Operators {
		if op.Action != PassAction && !seen[op.Action] {
			seen[op.Action] = true
			out = append(out, op.Action)
		}
	}
	return out
}

type yamlDomainFile struct {
	Domain *Domain `yaml:"domain"`
}

// LoadDomains reads all YAML files from dir and returns parsed Domains.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns an error if any file fails to parse or validate.
func LoadDomains(dir string) ([]*Domain, error) {
	paths, err := ruleset.YAMLFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("ai.LoadDomains: %w", err)
	}
	var domains []*Domain
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ai.LoadDomains: reading %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		var f yamlDomainFile
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ai.LoadDomains: parsing %s: %w", path, err)
		}
		if f.Domain == nil {
			return nil, fmt.Errorf("ai.LoadDomains: %s missing top-level 'domain' key", path)
		}
		if err := f.Domain.Validate(); err != nil {
			return nil, fmt.Errorf("ai.LoadDomains: %s: %w", path, err)
		}
		domains = append(domains, f.Domain)
	}
	return domains, nil
}
