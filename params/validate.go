package params

import (
	"fmt"

	"github.com/kimlab/isicore/isierr"
)

// validatePartial checks a partial update against a group's schema: each
// present key must have the right dynamic type and, if bounded or
// enumerated, must satisfy its bound/enum. Unknown keys are rejected so
// typos do not silently become dead config (spec §4.1: "validates partial
// against the group schema").
func validatePartial(component, group string, partial map[string]interface{}) error {
	fields, err := fieldsFor(group)
	if err != nil {
		return err
	}
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	for k, v := range partial {
		f, ok := byName[k]
		if !ok {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: k, Value: v, Reason: "unrecognised key"}
		}
		if err := validateValue(component, group, f, v); err != nil {
			return err
		}
	}
	return nil
}

// validateComplete checks that every required key in a group's schema is
// present and valid in a full snapshot, returning MissingParameter for the
// first absent required key.
func validateComplete(component, group string, snapshot map[string]interface{}) error {
	fields, err := fieldsFor(group)
	if err != nil {
		return err
	}
	for _, f := range fields {
		v, ok := snapshot[f.Name]
		if !ok {
			if f.Required {
				return &isierr.MissingParameter{Component: component, Group: group, Key: f.Name}
			}
			continue
		}
		if err := validateValue(component, group, f, v); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(component, group string, f Field, v interface{}) error {
	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: "expected string"}
		}
		if len(f.OneOf) > 0 && !contains(f.OneOf, s) {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: fmt.Sprintf("must be one of %v", f.OneOf)}
		}
	case KindInt:
		i, ok := asFloat(v)
		if !ok {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: "expected integer"}
		}
		if f.HasBounds && (i < f.Min || i > f.Max) {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: fmt.Sprintf("out of bound [%v,%v]", f.Min, f.Max)}
		}
	case KindFloat:
		fl, ok := asFloat(v)
		if !ok {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: "expected number"}
		}
		if f.HasBounds && (fl < f.Min || fl > f.Max) {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: fmt.Sprintf("out of bound [%v,%v]", f.Min, f.Max)}
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: "expected bool"}
		}
	case KindStringSlice:
		ss, ok := v.([]string)
		if !ok {
			return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: "expected []string"}
		}
		if len(f.OneOf) > 0 {
			for _, s := range ss {
				if !contains(f.OneOf, s) {
					return &isierr.InvalidParameter{Component: component, Group: group, Key: f.Name, Value: v, Reason: fmt.Sprintf("%q must be one of %v", s, f.OneOf)}
				}
			}
		}
	}
	return nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(set []string, s string) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}
