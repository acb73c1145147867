package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/winlife/gamelytics/internal/schema"
)

// ErrKind classifies a validation failure.
type ErrKind int

const (
	// ErrUnexpectedProperties: a schema exists but declares no attributes,
	// yet values were received.
	ErrUnexpectedProperties ErrKind = iota
	// ErrUnknownProperty: a received key is not declared in the schema.
	ErrUnknownProperty
	// ErrMissingRequiredValue: a required key was received with a null value.
	ErrMissingRequiredValue
	// ErrTypeMismatch: a received value does not match its declared type.
	ErrTypeMismatch
	// ErrMissingRequiredKey: a required key is absent from the payload.
	ErrMissingRequiredKey
	// ErrBadDescriptor: the schema declares a type this system does not know.
	ErrBadDescriptor
)

// ValidationError carries the failure kind and the offending field so callers
// can route on the kind and format the message at the boundary.
type ValidationError struct {
	Kind     ErrKind
	Field    string
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ErrUnexpectedProperties:
		return "schema declares no attributes but values were received"
	case ErrUnknownProperty:
		return fmt.Sprintf("unexpected property: %s", e.Field)
	case ErrMissingRequiredValue:
		return fmt.Sprintf("required property %s has null value", e.Field)
	case ErrTypeMismatch:
		return fmt.Sprintf("property %s has incorrect type: expected %s, got %s", e.Field, e.Expected, e.Actual)
	case ErrMissingRequiredKey:
		return fmt.Sprintf("missing required property: %s", e.Field)
	case ErrBadDescriptor:
		return fmt.Sprintf("property %s declared with unknown type %q", e.Field, e.Expected)
	}
	return "validation failed"
}

// Validate checks a flat property map against a schema document and returns
// the first failure, or nil when the map conforms. Keys are visited in sorted
// order so the reported failure is stable for a given (props, doc) pair.
//
// An empty document accepts only an empty map; absence of a document entirely
// is an accept-anything policy decided by the caller, not here.
func Validate(props map[string]any, doc schema.Doc) *ValidationError {
	errs := validate(props, doc, true)
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// ValidateAll is Validate without the fail-fast cutoff: every violation in the
// payload is reported, one entry per offending key.
func ValidateAll(props map[string]any, doc schema.Doc) []*ValidationError {
	return validate(props, doc, false)
}

func validate(props map[string]any, doc schema.Doc, failFast bool) []*ValidationError {
	var errs []*ValidationError
	if doc.Empty() {
		if len(props) > 0 {
			errs = append(errs, &ValidationError{Kind: ErrUnexpectedProperties})
		}
		return errs
	}

	for _, name := range sortedKeys(props) {
		desc, declared := doc[name]
		if !declared {
			errs = append(errs, &ValidationError{Kind: ErrUnknownProperty, Field: name})
			if failFast {
				return errs
			}
			continue
		}
		value := props[name]
		if value == nil {
			if desc.Required {
				errs = append(errs, &ValidationError{Kind: ErrMissingRequiredValue, Field: name})
				if failFast {
					return errs
				}
			}
			continue
		}
		if !schema.KnownType(desc.Type) {
			errs = append(errs, &ValidationError{Kind: ErrBadDescriptor, Field: name, Expected: desc.Type})
			if failFast {
				return errs
			}
			continue
		}
		if !typeMatches(desc.Type, value) {
			errs = append(errs, &ValidationError{
				Kind:     ErrTypeMismatch,
				Field:    name,
				Expected: desc.Type,
				Actual:   typeName(value),
			})
			if failFast {
				return errs
			}
		}
	}

	// Second pass: every declared required key must be present at all.
	for _, name := range sortedKeys(doc) {
		if !doc[name].Required {
			continue
		}
		if _, present := props[name]; !present {
			errs = append(errs, &ValidationError{Kind: ErrMissingRequiredKey, Field: name})
			if failFast {
				return errs
			}
		}
	}
	return errs
}

// typeMatches checks a runtime value against a declared primitive. Values
// arrive from JSON decoding, so numbers are float64 or json.Number; a whole
// number like 5 therefore satisfies float/double as well as integer — the
// wire format cannot distinguish 5 from 5.0, so float fields accept both.
func typeMatches(declared string, v any) bool {
	switch declared {
	case schema.TypeString:
		_, ok := v.(string)
		return ok
	case schema.TypeBoolean:
		_, ok := v.(bool)
		return ok
	case schema.TypeInteger:
		switch n := v.(type) {
		case float64:
			return n == math.Trunc(n)
		case int, int32, int64:
			return true
		case json.Number:
			_, err := strconv.ParseInt(string(n), 10, 64)
			return err == nil
		}
		return false
	case schema.TypeFloat, schema.TypeDouble:
		switch n := v.(type) {
		case float64, float32:
			return true
		case json.Number:
			_, err := strconv.ParseFloat(string(n), 64)
			return err == nil
		}
		return false
	}
	return false
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
