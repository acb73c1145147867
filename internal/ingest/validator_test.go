package ingest

import (
	"strings"
	"testing"

	"github.com/winlife/gamelytics/internal/schema"
)

func levelSchema(t *testing.T) schema.Doc {
	t.Helper()
	doc, err := schema.Parse([]byte(`{"level": {"type":"integer","required":true}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestValidateAcceptsConformingMap(t *testing.T) {
	if err := Validate(map[string]any{"level": float64(5)}, levelSchema(t)); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestValidateTypeMismatchNamesField(t *testing.T) {
	err := Validate(map[string]any{"level": "five"}, levelSchema(t))
	if err == nil || err.Kind != ErrTypeMismatch || err.Field != "level" {
		t.Fatalf("expected type mismatch on level, got %v", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "level") {
		t.Fatalf("message should mention the field: %q", msg)
	}
}

func TestValidateMissingRequiredKey(t *testing.T) {
	err := Validate(map[string]any{}, levelSchema(t))
	if err == nil || err.Kind != ErrMissingRequiredKey || err.Field != "level" {
		t.Fatalf("expected missing required key, got %v", err)
	}
}

func TestValidateRequiredNullValue(t *testing.T) {
	err := Validate(map[string]any{"level": nil}, levelSchema(t))
	if err == nil || err.Kind != ErrMissingRequiredValue || err.Field != "level" {
		t.Fatalf("expected missing required value, got %v", err)
	}
}

func TestValidateUnknownProperty(t *testing.T) {
	err := Validate(map[string]any{"level": float64(1), "zzz": "x"}, levelSchema(t))
	if err == nil || err.Kind != ErrUnknownProperty || err.Field != "zzz" {
		t.Fatalf("expected unknown property zzz, got %v", err)
	}
}

func TestValidateEmptySchemaPolicy(t *testing.T) {
	if err := Validate(nil, schema.Doc{}); err != nil {
		t.Fatalf("empty schema + no props must pass: %v", err)
	}
	if err := Validate(map[string]any{}, schema.Doc{}); err != nil {
		t.Fatalf("empty schema + empty props must pass: %v", err)
	}
	err := Validate(map[string]any{"a": 1}, schema.Doc{})
	if err == nil || err.Kind != ErrUnexpectedProperties {
		t.Fatalf("empty schema + props must fail, got %v", err)
	}
}

func TestValidateTypeLadder(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"name":"string","count":"integer","ratio":"float","speed":"double","on":"boolean"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ok := map[string]any{
		"name":  "alice",
		"count": float64(7), // whole JSON number
		"ratio": 0.5,
		"speed": 1.25,
		"on":    true,
	}
	if verr := Validate(ok, doc); verr != nil {
		t.Fatalf("unexpected: %v", verr)
	}

	// Whole JSON numbers satisfy float fields too: 5 and 5.0 are the same
	// value on the wire.
	if verr := Validate(map[string]any{"ratio": float64(5)}, doc); verr != nil {
		t.Fatalf("whole number on float field: %v", verr)
	}

	cases := map[string]any{
		"name":  true,
		"count": 1.5,
		"ratio": "fast",
		"on":    "yes",
	}
	for field, bad := range cases {
		props := map[string]any{field: bad}
		verr := Validate(props, doc)
		if verr == nil || verr.Kind != ErrTypeMismatch || verr.Field != field {
			t.Fatalf("field %s: expected type mismatch, got %v", field, verr)
		}
	}
}

func TestValidateUnknownDeclaredType(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"tags":"array"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	verr := Validate(map[string]any{"tags": "a,b"}, doc)
	if verr == nil || verr.Kind != ErrBadDescriptor || verr.Field != "tags" {
		t.Fatalf("expected bad descriptor, got %v", verr)
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"a":"integer","b":"integer"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Both values are wrong; the reported field must be stable across runs.
	props := map[string]any{"b": "x", "a": "y"}
	first := Validate(props, doc)
	for i := 0; i < 50; i++ {
		again := Validate(props, doc)
		if again == nil || again.Field != first.Field || again.Kind != first.Kind {
			t.Fatalf("validation not deterministic: %v vs %v", first, again)
		}
	}
	if first.Field != "a" {
		t.Fatalf("sorted order should report a first, got %s", first.Field)
	}
}

func TestValidateAllReportsEveryViolation(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"a":{"type":"integer","required":true},"b":"string"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	errs := ValidateAll(map[string]any{"b": 1.0, "c": "x"}, doc)
	if len(errs) != 3 { // b mismatch, c unknown, a missing
		t.Fatalf("expected 3 violations, got %d: %v", len(errs), errs)
	}
}
