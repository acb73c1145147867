package analysis

import "testing"

func TestShapeZipsAliases(t *testing.T) {
	cq := mustCompile(t, baseQuery())
	rows := [][]any{
		{"2024-01-01", int64(10)},
		{"2024-01-02", int64(3)},
	}
	out, err := Shape(cq, rows)
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("rows %d", len(out))
	}
	if out[0]["time_day"] != "2024-01-01" || out[0]["eventCount"] != int64(10) {
		t.Fatalf("unexpected record: %v", out[0])
	}
}

func TestShapeWidthMismatchIsInternal(t *testing.T) {
	cq := mustCompile(t, baseQuery())
	_, err := Shape(cq, [][]any{{"2024-01-01"}})
	if err == nil || err.Kind != ErrInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	if err.IsClientError() {
		t.Fatalf("width mismatch is not the caller's fault")
	}
}

func TestShapeDerivesAverageCountPerUser(t *testing.T) {
	q := baseQuery()
	q.CalculationAttributes = []string{"averageCountPerUser"}
	cq := mustCompile(t, q)
	rows := [][]any{
		{"2024-01-01", int64(10), int64(4)},
		{"2024-01-02", int64(5), int64(0)}, // no users: average must be 0
	}
	out, err := Shape(cq, rows)
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if avg := out[0]["averageCountPerUser"]; avg != 2.5 {
		t.Fatalf("avg %v, want 2.5", avg)
	}
	if avg := out[1]["averageCountPerUser"]; avg != 0.0 {
		t.Fatalf("zero users must yield 0, got %v", avg)
	}
}

func TestShapeNormalizesDriverScalars(t *testing.T) {
	cq := mustCompile(t, baseQuery())
	n := int64(7)
	rows := [][]any{{[]byte("2024-01-01"), &n}}
	out, err := Shape(cq, rows)
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if out[0]["time_day"] != "2024-01-01" || out[0]["eventCount"] != int64(7) {
		t.Fatalf("normalization failed: %v", out[0])
	}
}
