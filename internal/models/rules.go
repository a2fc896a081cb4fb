package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Rule names understood by the linter and the test generator.
const (
	RuleLinesPerCell           = "lines_per_cell"
	RuleCellsPerNotebook       = "cells_per_notebook"
	RuleFunctionDefinitions    = "function_definitions"
	RuleClassDefinitions       = "class_definitions"
	RuleKernelspecRequirements = "kernelspec_requirements"
	RuleMagicsAllowlist        = "magics_allowlist"
	RuleMagicsDenylist         = "magics_denylist"
	RuleCellCoverage           = "cell_coverage"
)

// RuleSet is a flat mapping of rule name to threshold or requirement value.
// Values arrive from JSON notebook metadata, YAML config and CLI flags, so the
// typed accessors accept every numeric representation those decoders produce.
type RuleSet map[string]any

// Has reports whether the rule is present.
func (r RuleSet) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Merge returns a new RuleSet with over applied on top of r.
// Entries in over always win.
func (r RuleSet) Merge(over RuleSet) RuleSet {
	merged := make(RuleSet, len(r)+len(over))
	for k, v := range r {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}

// Without returns a copy of r with the named rules removed.
func (r RuleSet) Without(names []string) RuleSet {
	out := r.Merge(nil)
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// Names returns the rule names in ascending order.
func (r RuleSet) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Int returns the rule value as an integer.
func (r RuleSet) Int(name string) (int, error) {
	f, err := r.Float(name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("rule %s: expected an integer, got %v", name, f)
	}
	return int(f), nil
}

// Float returns the rule value as a finite float.
func (r RuleSet) Float(name string) (float64, error) {
	v, ok := r[name]
	if !ok {
		return 0, fmt.Errorf("rule %s is not set", name)
	}
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("rule %s: invalid number %q: %w", name, n, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("rule %s: expected a number, got %T", name, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("rule %s: expected a finite number, got %v", name, v)
	}
	return f, nil
}

// StringList returns the rule value as a list of strings.
// A comma-separated string is accepted as well (CLI form).
func (r RuleSet) StringList(name string) ([]string, error) {
	v, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("rule %s is not set", name)
	}
	switch l := v.(type) {
	case []string:
		return l, nil
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("rule %s: expected strings, got %T", name, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(l, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("rule %s: expected a list of strings, got %T", name, v)
	}
}

// StringMap returns the rule value as a string-to-string mapping.
// A "k=v,k2=v2" string is accepted as well (CLI form).
func (r RuleSet) StringMap(name string) (map[string]string, error) {
	v, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("rule %s is not set", name)
	}
	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("rule %s: value for %q must be a string, got %T", name, k, item)
			}
			out[k] = s
		}
		return out, nil
	case string:
		out := make(map[string]string)
		for _, part := range strings.Split(m, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			k, val, found := strings.Cut(part, "=")
			if !found {
				return nil, fmt.Errorf("rule %s: expected key=value, got %q", name, part)
			}
			out[strings.TrimSpace(k)] = strings.TrimSpace(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("rule %s: expected a mapping, got %T", name, v)
	}
}
