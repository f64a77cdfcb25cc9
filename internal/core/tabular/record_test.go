package tabular

import (
	"reflect"
	"testing"
)

func TestRecordClone(t *testing.T) {
	r := Record{"route_id": "LAX-NRT", "miles": int64(85000)}
	c := r.Clone()
	c["miles"] = int64(90000)
	if r["miles"].(int64) != 85000 {
		t.Fatalf("clone should not alias the original")
	}
}

func TestRecordColumnsSorted(t *testing.T) {
	r := Record{"b": 1, "a": 2, "c": 3}
	if got := r.Columns(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Columns = %v", got)
	}
}

func TestIsNull(t *testing.T) {
	if !IsNull(nil) {
		t.Fatalf("nil is null")
	}
	if !IsNull((*string)(nil)) {
		t.Fatalf("typed-nil *string is null")
	}
	s := "x"
	if IsNull(&s) {
		t.Fatalf("non-nil pointer is not null")
	}
	if IsNull("") || IsNull(int64(0)) || IsNull(false) {
		t.Fatalf("zero values are not null")
	}
}

func TestBatchColumnsUnion(t *testing.T) {
	b := Batch{
		{"a": 1, "b": 2},
		{"b": 3, "c": 4},
	}
	if got := b.Columns(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Columns = %v", got)
	}
}

func TestAllNullColumns(t *testing.T) {
	b := Batch{
		{"route_id": "a", "notes": nil, "taxes": nil},
		{"route_id": "b", "notes": nil, "taxes": 12.5},
	}
	if got := b.AllNullColumns(); !reflect.DeepEqual(got, []string{"notes"}) {
		t.Fatalf("AllNullColumns = %v", got)
	}

	// column missing from one record still counts as null there
	b = Batch{
		{"route_id": "a", "notes": nil},
		{"route_id": "b"},
	}
	if got := b.AllNullColumns(); !reflect.DeepEqual(got, []string{"notes"}) {
		t.Fatalf("AllNullColumns with missing = %v", got)
	}

	if got := (Batch{}).AllNullColumns(); got != nil {
		t.Fatalf("empty batch has no columns, got %v", got)
	}
}

func TestWidenAllNull(t *testing.T) {
	b := Batch{
		{"route_id": "a", "notes": nil},
		{"route_id": "b", "notes": nil},
	}
	cols := b.WidenAllNull()
	if !reflect.DeepEqual(cols, []string{"notes"}) {
		t.Fatalf("WidenAllNull = %v", cols)
	}
	for _, r := range b {
		v, ok := r["notes"].(*string)
		if !ok || v != nil {
			t.Fatalf("widened cell should be typed-nil *string, got %#v", r["notes"])
		}
		if !IsNull(r["notes"]) {
			t.Fatalf("widened cell must still read as null")
		}
	}
	// non-null columns untouched
	if b[0]["route_id"].(string) != "a" {
		t.Fatalf("unrelated column mutated")
	}
}
