// Package filter selects webhook payloads with small path predicates such as
// "action=opened" or "workflow_run.conclusion=~^fail".
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Operator string

const (
	OpExists   Operator = "exists"
	OpEqual    Operator = "eq"
	OpNotEqual Operator = "ne"
	OpRegex    Operator = "regex"
)

type Predicate struct {
	Path     string
	Operator Operator
	Value    string

	re *regexp.Regexp
}

func (p Predicate) String() string {
	switch p.Operator {
	case OpExists:
		return p.Path + " exists"
	case OpNotEqual:
		return p.Path + "!=" + p.Value
	case OpRegex:
		return p.Path + "=~" + p.Value
	default:
		return p.Path + "=" + p.Value
	}
}

// Parse reads one of "path=value", "path!=value", "path=~regex" or
// "path exists".
func Parse(input string) (Predicate, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Predicate{}, fmt.Errorf("predicate cannot be empty")
	}

	if idx := strings.Index(trimmed, "="); idx >= 0 {
		op := OpEqual
		pathEnd := idx
		if idx > 0 && trimmed[idx-1] == '!' {
			op = OpNotEqual
			pathEnd = idx - 1
		}
		path := strings.TrimSpace(trimmed[:pathEnd])
		value := strings.TrimSpace(trimmed[idx+1:])
		if path == "" {
			return Predicate{}, fmt.Errorf("missing path before '='")
		}
		if op == OpEqual && strings.HasPrefix(value, "~") {
			pattern := strings.TrimSpace(value[1:])
			if pattern == "" {
				return Predicate{}, fmt.Errorf("missing regex pattern after '=~'")
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return Predicate{}, fmt.Errorf("invalid regex %q: %w", pattern, err)
			}
			return Predicate{Path: path, Operator: OpRegex, Value: pattern, re: re}, nil
		}
		if value == "" {
			return Predicate{}, fmt.Errorf("missing value after '='")
		}
		return Predicate{Path: path, Operator: op, Value: value}, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 2 || fields[1] != "exists" {
		return Predicate{}, fmt.Errorf("expected 'path=value', 'path!=value', 'path=~regex', or 'path exists'")
	}
	return Predicate{Path: fields[0], Operator: OpExists}, nil
}

func ParseAll(inputs []string) ([]Predicate, error) {
	predicates := make([]Predicate, 0, len(inputs))
	for _, input := range inputs {
		p, err := Parse(input)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", input, err)
		}
		predicates = append(predicates, p)
	}
	return predicates, nil
}

// Match evaluates the predicate against a JSON document.
func (p Predicate) Match(data []byte) (bool, error) {
	doc, err := decode(data)
	if err != nil {
		return false, err
	}
	return p.matchDoc(doc), nil
}

// MatchAll reports whether every predicate holds for data. An empty set
// matches everything.
func MatchAll(data []byte, predicates []Predicate) (bool, error) {
	if len(predicates) == 0 {
		return true, nil
	}
	doc, err := decode(data)
	if err != nil {
		return false, err
	}
	for _, p := range predicates {
		if !p.matchDoc(doc) {
			return false, nil
		}
	}
	return true, nil
}

func decode(data []byte) (interface{}, error) {
	var doc interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p Predicate) matchDoc(doc interface{}) bool {
	value, ok := valueAtPath(doc, p.Path)
	switch p.Operator {
	case OpExists:
		return ok
	case OpEqual:
		if !ok {
			return false
		}
		str, ok := stringifyScalar(value)
		return ok && str == p.Value
	case OpNotEqual:
		if !ok {
			return true
		}
		str, ok := stringifyScalar(value)
		return !ok || str != p.Value
	case OpRegex:
		if !ok || p.re == nil {
			return false
		}
		str, ok := stringifyScalar(value)
		return ok && p.re.MatchString(str)
	default:
		return false
	}
}

func valueAtPath(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}

	current := doc
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			child, ok := node[part]
			if !ok {
				return nil, false
			}
			current = child
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

func stringifyScalar(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "null", true
	default:
		return "", false
	}
}
