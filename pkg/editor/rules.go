package editor

import (
	"fmt"
	"regexp"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

// NamePattern constrains action and parameter names.
const NamePattern = `^[a-zA-Z0-9_-]{1,64}$`

// ActionRules validates actions before they are sent to the service.
type ActionRules struct {
	Name  *regexp.Regexp
	Types []content.ParameterType
}

// DefaultActionRules mirror the Action schema the service publishes.
func DefaultActionRules() ActionRules {
	return ActionRules{
		Name:  regexp.MustCompile(NamePattern),
		Types: []content.ParameterType{content.ParameterNumber, content.ParameterString, content.ParameterBoolean},
	}
}

// RulesFromSchema reads the name pattern and parameter types out of the
// JSON Schema served at /action.json. Missing pieces keep their defaults.
func RulesFromSchema(doc map[string]any) (ActionRules, error) {
	rules := DefaultActionRules()
	if p, ok := lookup(doc, "properties", "name", "pattern").(string); ok {
		re, err := regexp.Compile(p)
		if err != nil {
			return rules, fmt.Errorf("action name pattern: %w", err)
		}
		rules.Name = re
	}
	if enum, ok := lookup(doc, "definitions", "Parameter", "properties", "type", "enum").([]any); ok {
		rules.Types = rules.Types[:0]
		for _, v := range enum {
			if s, ok := v.(string); ok {
				rules.Types = append(rules.Types, content.ParameterType(s))
			}
		}
	}
	return rules, nil
}

func lookup(doc map[string]any, path ...string) any {
	var cur any = doc
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

// Validate checks every action and parameter, keyed like service locations
// (actions.0.name, actions.0.parameters.1.type). Empty parameter types are
// set to string.
func (r ActionRules) Validate(actions []content.Action) Errors {
	errs := Errors{}
	for i := range actions {
		a := &actions[i]
		if !r.Name.MatchString(a.Name) {
			errs[fmt.Sprintf("actions.%d.name", i)] = fmt.Sprintf("must match %s", r.Name)
		}
		for j := range a.Parameters {
			p := &a.Parameters[j]
			if !r.Name.MatchString(p.Name) {
				errs[fmt.Sprintf("actions.%d.parameters.%d.name", i, j)] = fmt.Sprintf("must match %s", r.Name)
			}
			if p.Type == "" {
				p.Type = content.ParameterString
			}
			if !r.allowed(p.Type) {
				errs[fmt.Sprintf("actions.%d.parameters.%d.type", i, j)] = fmt.Sprintf("must be one of %v", r.Types)
			}
		}
	}
	return errs
}

func (r ActionRules) allowed(t content.ParameterType) bool {
	for _, allowed := range r.Types {
		if t == allowed {
			return true
		}
	}
	return false
}
