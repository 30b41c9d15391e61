package loader

import (
	"strconv"
	"strings"
)

// ValueKind tags a normalized field value.
type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueScalar
	ValueList
)

// Value is the closed set of shapes a loosely-typed source field collapses
// into: a single scalar, a list of scalars, or absent. Downstream code
// switches on Kind instead of re-inspecting raw JSON types.
type Value struct {
	Kind   ValueKind
	Scalar string
	List   []string
}

// String flattens the value to a single display string.
func (v Value) String() string {
	switch v.Kind {
	case ValueScalar:
		return v.Scalar
	case ValueList:
		return strings.Join(v.List, ", ")
	default:
		return ""
	}
}

// Strings flattens the value to a list of scalars.
func (v Value) Strings() []string {
	switch v.Kind {
	case ValueScalar:
		return []string{v.Scalar}
	case ValueList:
		return v.List
	default:
		return nil
	}
}

// toValue collapses an arbitrary decoded JSON value. Objects reduce to
// their first identifying property; arrays reduce element-wise.
func toValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Value{}
		}
		return Value{Kind: ValueScalar, Scalar: s}
	case float64:
		return Value{Kind: ValueScalar, Scalar: strconv.FormatFloat(v, 'f', -1, 64)}
	case bool:
		return Value{Kind: ValueScalar, Scalar: strconv.FormatBool(v)}
	case map[string]any:
		for _, key := range []string{"name", "title", "value", "label", "id"} {
			if inner, ok := v[key]; ok {
				if val := toValue(inner); val.Kind == ValueScalar {
					return val
				}
			}
		}
		return Value{}
	case []any:
		var list []string
		for _, item := range v {
			if val := toValue(item); val.Kind == ValueScalar {
				list = append(list, val.Scalar)
			}
		}
		if len(list) == 0 {
			return Value{}
		}
		if len(list) == 1 {
			return Value{Kind: ValueScalar, Scalar: list[0]}
		}
		return Value{Kind: ValueList, List: list}
	default:
		return Value{}
	}
}
