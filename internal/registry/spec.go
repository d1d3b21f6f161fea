package registry

import (
	"fmt"
	"strconv"

	"github.com/triage-ai/deskgate/internal/protocol"
	"github.com/triage-ai/deskgate/internal/safety"
)

// ArgType is the declared wire type of an argument.
type ArgType int

const (
	TypeInt ArgType = iota + 1
	TypeFloat
	TypeString
	TypeEnum
)

func (t ArgType) String() string {
	switch t {
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "number"
	case TypeString, TypeEnum:
		return "string"
	default:
		return "unknown"
	}
}

// ArgumentSpec declares one argument's contract. Binding is strict: a value
// of the wrong JSON type is rejected, never coerced. Supplying a coordinate
// as the string "100" is an error, not a click at x=100.
type ArgumentSpec struct {
	Name     string
	Type     ArgType
	Required bool

	// Sensitive arguments are free-form text that reaches an input channel;
	// they go through the safety validator with the given hint.
	Sensitive bool
	Hint      safety.Hint

	Min, Max *float64 // numeric bounds, inclusive
	Enum     []string // allowed values for TypeEnum
	Default  any      // applied when an optional argument is absent
}

func limit(v float64) *float64 { return &v }

// BindError reports a binding failure with the offending field.
type BindError struct {
	Field   string
	Message string
}

func (e *BindError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("argument %q: %s", e.Field, e.Message)
}

// Args holds bound, typed argument values: int64, float64, or string.
type Args map[string]any

// Has reports whether the argument was provided or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Int returns a bound integer argument.
func (a Args) Int(name string) int {
	v, _ := a[name].(int64)
	return int(v)
}

// Float returns a bound float argument.
func (a Args) Float(name string) float64 {
	v, _ := a[name].(float64)
	return v
}

// String returns a bound string argument.
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Bind validates raw decoded arguments against the specs and produces typed
// values. Unknown fields are rejected, not dropped. Numbers arrive as
// json.Number from the protocol codec, which is what lets integer binding
// reject both "100" (string) and 100.5 (non-integral).
func Bind(specs []ArgumentSpec, raw map[string]any) (Args, *BindError) {
	for name := range raw {
		if specFor(specs, name) == nil {
			return nil, &BindError{Field: name, Message: "unknown argument"}
		}
	}

	bound := make(Args, len(specs))
	for i := range specs {
		spec := &specs[i]
		value, present := raw[spec.Name]
		if !present || value == nil {
			if spec.Required {
				return nil, &BindError{Field: spec.Name, Message: "required argument missing"}
			}
			if spec.Default != nil {
				bound[spec.Name] = spec.Default
			}
			continue
		}

		typed, err := bindValue(spec, value)
		if err != nil {
			return nil, err
		}
		bound[spec.Name] = typed
	}
	return bound, nil
}

func specFor(specs []ArgumentSpec, name string) *ArgumentSpec {
	for i := range specs {
		if specs[i].Name == name {
			return &specs[i]
		}
	}
	return nil
}

func bindValue(spec *ArgumentSpec, value any) (any, *BindError) {
	switch spec.Type {
	case TypeInt:
		num, ok := value.(protocol.Number)
		if !ok {
			return nil, &BindError{Field: spec.Name, Message: fmt.Sprintf("must be an integer, got %s", jsonTypeName(value))}
		}
		n, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil {
			return nil, &BindError{Field: spec.Name, Message: "must be an integer"}
		}
		if err := checkBounds(spec, float64(n)); err != nil {
			return nil, err
		}
		return n, nil

	case TypeFloat:
		num, ok := value.(protocol.Number)
		if !ok {
			return nil, &BindError{Field: spec.Name, Message: fmt.Sprintf("must be a number, got %s", jsonTypeName(value))}
		}
		f, err := strconv.ParseFloat(num.String(), 64)
		if err != nil {
			return nil, &BindError{Field: spec.Name, Message: "must be a number"}
		}
		if err := checkBounds(spec, f); err != nil {
			return nil, err
		}
		return f, nil

	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, &BindError{Field: spec.Name, Message: fmt.Sprintf("must be a string, got %s", jsonTypeName(value))}
		}
		return s, nil

	case TypeEnum:
		s, ok := value.(string)
		if !ok {
			return nil, &BindError{Field: spec.Name, Message: fmt.Sprintf("must be a string, got %s", jsonTypeName(value))}
		}
		for _, allowed := range spec.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, &BindError{Field: spec.Name, Message: fmt.Sprintf("must be one of %v", spec.Enum)}

	default:
		return nil, &BindError{Field: spec.Name, Message: "unsupported argument type"}
	}
}

func checkBounds(spec *ArgumentSpec, v float64) *BindError {
	if spec.Min != nil && v < *spec.Min {
		return &BindError{Field: spec.Name, Message: fmt.Sprintf("must be >= %v", *spec.Min)}
	}
	if spec.Max != nil && v > *spec.Max {
		return &BindError{Field: spec.Name, Message: fmt.Sprintf("must be <= %v", *spec.Max)}
	}
	return nil
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case protocol.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "null"
	}
}
