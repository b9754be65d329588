// Package filter selects workflows with boolean expressions.
//
// An expression is evaluated against the workflow's top-level JSON object,
// so every field the server returns is a variable:
//
//	active && len(nodes) > 3
//	name startsWith "Sync"
//	"prod" in map(tags, .name)
//
// Fields absent from a workflow evaluate to nil, and an expression that
// evaluates to nil does not match.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dshills/n8nctl/pkg/n8n"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var (
	ErrInvalidExpression = errors.New("invalid filter expression")
	ErrNotBoolean        = errors.New("filter expression must evaluate to a boolean")
	ErrInvalidWorkflow   = errors.New("workflow cannot be filtered")
)

// Filter is a compiled selection expression. A nil Filter matches everything.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile compiles src. An empty or blank source returns a nil Filter.
func Compile(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}

	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	// Results typed from workflow fields are unknown until run time.
	switch kind := program.Node().Type().Kind(); kind {
	case reflect.Bool, reflect.Interface:
	default:
		return nil, fmt.Errorf("%w: %q returns %s", ErrNotBoolean, src, kind)
	}
	return &Filter{source: src, program: program}, nil
}

// String returns the expression source.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match reports whether wf satisfies the expression.
func (f *Filter) Match(wf n8n.Workflow) (bool, error) {
	if f == nil {
		return true, nil
	}

	env, err := environment(wf)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate %q for %q: %w", f.source, wf.Name, err)
	}
	switch v := out.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("%w: %q returned %T", ErrNotBoolean, f.source, out)
	}
}

// Select returns the workflows matching f, preserving order.
func (f *Filter) Select(workflows []n8n.Workflow) ([]n8n.Workflow, error) {
	if f == nil {
		return workflows, nil
	}

	selected := make([]n8n.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		ok, err := f.Match(wf)
		if err != nil {
			return nil, err
		}
		if ok {
			selected = append(selected, wf)
		}
	}
	return selected, nil
}

// environment exposes the workflow's top-level fields. Raw must be a JSON
// object; an empty Raw leaves only the parsed id and name.
func environment(wf n8n.Workflow) (map[string]any, error) {
	var env map[string]any
	if len(wf.Raw) > 0 {
		if err := json.Unmarshal(wf.Raw, &env); err != nil {
			return nil, fmt.Errorf("%w: workflow %q is not a JSON object: %v", ErrInvalidWorkflow, wf.Name, err)
		}
	}
	if env == nil {
		env = map[string]any{}
	}
	if _, ok := env["id"]; !ok {
		env["id"] = wf.ID
	}
	if _, ok := env["name"]; !ok {
		env["name"] = wf.Name
	}
	return env, nil
}
