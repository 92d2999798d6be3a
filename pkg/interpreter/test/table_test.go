package interpreter_test

import (
	"errors"
	"math"
	"testing"

	"lunette/pkg/interpreter"
)

func set(t *testing.T, tbl *interpreter.Table, k, v interpreter.Value) {
	t.Helper()
	if err := tbl.Set(k, v); err != nil {
		t.Fatalf("Set(%v, %v): %v", k, v, err)
	}
}

func keys(t *testing.T, tbl *interpreter.Table) []interpreter.Value {
	t.Helper()
	var out []interpreter.Value
	var k interpreter.Value
	for {
		next, _, err := tbl.Next(k)
		if err != nil {
			t.Fatalf("Next(%v): %v", k, err)
		}
		if next == nil {
			return out
		}
		out = append(out, next)
		k = next
	}
}

func TestTableGetSet(t *testing.T) {
	tbl := interpreter.NewTable(0, 0)
	set(t, tbl, "a", 1)
	set(t, tbl, 2, "two")
	set(t, tbl, true, "yes")
	set(t, tbl, 1.5, "frac")

	tests := []struct {
		key      interpreter.Value
		expected interpreter.Value
	}{
		{"a", 1.0},
		{2.0, "two"},
		{2, "two"},
		{true, "yes"},
		{1.5, "frac"},
		{"missing", nil},
		{nil, nil},
		{math.NaN(), nil},
	}
	for _, test := range tests {
		if got := tbl.Get(test.key); !interpreter.RawEquals(got, test.expected) {
			t.Errorf("Get(%v): expected %v, got %v", test.key, test.expected, got)
		}
	}
}

func TestTableBadKeys(t *testing.T) {
	tbl := interpreter.NewTable(0, 0)
	if err := tbl.Set(nil, 1); !errors.Is(err, interpreter.ErrNilIndex) {
		t.Errorf("expected ErrNilIndex, got %v", err)
	}
	if err := tbl.Set(math.NaN(), 1); !errors.Is(err, interpreter.ErrNaNIndex) {
		t.Errorf("expected ErrNaNIndex, got %v", err)
	}
}

func TestTableLength(t *testing.T) {
	tbl := interpreter.NewTable(0, 0)
	set(t, tbl, 3, "c")
	set(t, tbl, 2, "b")
	if tbl.Len() != 0 {
		t.Errorf("expected length 0 without t[1], got %d", tbl.Len())
	}
	set(t, tbl, 1, "a")
	if tbl.Len() != 3 {
		t.Errorf("expected pending keys to join the sequence, got length %d", tbl.Len())
	}

	set(t, tbl, 3, nil)
	if tbl.Len() != 2 {
		t.Errorf("expected length 2 after removing the last item, got %d", tbl.Len())
	}
	set(t, tbl, 1, nil)
	if tbl.Len() != 2 || tbl.Get(2) != "b" {
		t.Errorf("removing t[1] should leave a border at 2, got %d", tbl.Len())
	}
}

func TestTableTraversalOrder(t *testing.T) {
	tbl := interpreter.NewTable(0, 0)
	set(t, tbl, 1, "x")
	set(t, tbl, 2, "y")
	set(t, tbl, "b", 1)
	set(t, tbl, "a", 2)
	set(t, tbl, 10, 3)

	got := keys(t, tbl)
	want := []interpreter.Value{1.0, 2.0, "b", "a", 10.0}
	if len(got) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, got)
	}
	for i := range want {
		if !interpreter.RawEquals(got[i], want[i]) {
			t.Errorf("expected keys %v, got %v", want, got)
			break
		}
	}
}

func TestTableClearDuringTraversal(t *testing.T) {
	tbl := interpreter.NewTable(0, 0)
	for i := 1; i <= 3; i++ {
		set(t, tbl, i, i)
	}
	for _, k := range []string{"p", "q", "r"} {
		set(t, tbl, k, k)
	}

	seen := 0
	var k interpreter.Value
	for {
		next, _, err := tbl.Next(k)
		if err != nil {
			t.Fatalf("Next(%v): %v", k, err)
		}
		if next == nil {
			break
		}
		seen++
		set(t, tbl, next, nil)
		k = next
	}
	if seen != 6 {
		t.Errorf("expected to visit 6 entries, visited %d", seen)
	}
	if len(keys(t, tbl)) != 0 {
		t.Errorf("table not empty after clearing")
	}
}

func TestTableNextInvalidKey(t *testing.T) {
	tbl := interpreter.NewTable(0, 0)
	set(t, tbl, "a", 1)
	if _, _, err := tbl.Next("zzz"); err == nil {
		t.Error("expected an error for a key that is not in the table")
	}
}

func TestTableReuseAfterDelete(t *testing.T) {
	tbl := interpreter.NewTable(0, 0)
	for i := 0; i < 100; i++ {
		set(t, tbl, float64(i)+0.5, i)
	}
	for i := 0; i < 90; i++ {
		set(t, tbl, float64(i)+0.5, nil)
	}
	for i := 0; i < 50; i++ {
		set(t, tbl, float64(i)+0.25, i)
	}
	if got := len(keys(t, tbl)); got != 60 {
		t.Errorf("expected 60 entries, got %d", got)
	}
	if tbl.Get(95.5) != 95.0 || tbl.Get(10.25) != 10.0 || tbl.Get(10.5) != nil {
		t.Error("entries lost after compaction")
	}
}

func TestTableFunctionKeys(t *testing.T) {
	f := interpreter.HostFunction(func(args ...interpreter.Value) ([]interpreter.Value, error) { return nil, nil })
	tbl := interpreter.NewTable(0, 0)
	set(t, tbl, f, "fn")
	if tbl.Get(f) != "fn" {
		t.Error("host function key not found")
	}
	tbl2 := interpreter.NewTable(0, 0)
	set(t, tbl, tbl2, "tbl")
	if tbl.Get(tbl2) != "tbl" || tbl.Get(interpreter.NewTable(0, 0)) != nil {
		t.Error("tables must be keyed by identity")
	}
}
