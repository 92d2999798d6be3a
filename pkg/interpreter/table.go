package interpreter

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

var (
	ErrNilIndex = errors.New("table index is nil")
	ErrNaNIndex = errors.New("table index is NaN")
)

// Table is the language's associative array. Positive integer keys that
// form a sequence from 1 live in the array part, everything else in an
// insertion-ordered hash part so that Next is deterministic.
type Table struct {
	array []Value
	keys  []Value     // hash keys in insertion order
	vals  []Value     // hash values, nil marks a removed entry
	index map[any]int // normalized key -> slot in keys/vals
	dead  int         // removed slots
}

// NewTable creates a table with capacity hints for both parts
func NewTable(narray, nhash int) *Table {
	return &Table{
		array: make([]Value, 0, narray),
		index: make(map[any]int, nhash),
	}
}

// arrayIndex returns the 1-based position of key when it is a positive integer
func arrayIndex(key Value) (int, bool) {
	f, ok := key.(float64)
	if !ok || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}

	return int(f), true
}

// hashKey maps key to a comparable Go map key
func hashKey(key Value) (any, error) {
	switch k := key.(type) {
	case nil:
		return nil, ErrNilIndex
	case float64:
		if math.IsNaN(k) {
			return nil, ErrNaNIndex
		}
		return k, nil
	case HostFunction:
		return funcPointer(k), nil
	case bool, string, *Table, *Closure:
		return k, nil
	default:
		if !reflect.TypeOf(k).Comparable() {
			return nil, fmt.Errorf("table index is a %T", k)
		}
		return k, nil
	}
}

// Get returns t[key], or nil when absent
func (t *Table) Get(key Value) Value {
	key = normalize(key)
	if i, ok := arrayIndex(key); ok && i <= len(t.array) {
		return t.array[i-1]
	}
	hk, err := hashKey(key)
	if err != nil {
		return nil
	}
	if slot, ok := t.index[hk]; ok {
		return t.vals[slot]
	}

	return nil
}

// Set assigns t[key] = val. Assigning nil removes the entry.
func (t *Table) Set(key, val Value) error {
	key, val = normalize(key), normalize(val)
	if i, ok := arrayIndex(key); ok {
		switch {
		case i <= len(t.array):
			t.array[i-1] = val
			if i == len(t.array) && val == nil {
				t.trimArray()
			}
			return nil
		case i == len(t.array)+1 && val != nil:
			t.array = append(t.array, val)
			t.removeHash(key)
			t.migrate()
			return nil
		}
	}

	hk, err := hashKey(key)
	if err != nil {
		return err
	}
	if val == nil {
		t.removeHash(key)
		return nil
	}
	if slot, ok := t.index[hk]; ok {
		if t.vals[slot] == nil {
			t.dead--
		}
		t.vals[slot] = val
		return nil
	}
	if t.dead > 0 && t.dead >= len(t.keys)/2 {
		t.compact()
	}
	t.index[hk] = len(t.keys)
	t.keys = append(t.keys, key)
	t.vals = append(t.vals, val)

	return nil
}

func (t *Table) removeHash(key Value) {
	hk, err := hashKey(key)
	if err != nil {
		return
	}
	if slot, ok := t.index[hk]; ok && t.vals[slot] != nil {
		t.vals[slot] = nil
		t.dead++
	}
}

// migrate moves the keys following the array part out of the hash part
func (t *Table) migrate() {
	for len(t.keys)-t.dead > 0 {
		next := float64(len(t.array) + 1)
		slot, ok := t.index[next]
		if !ok || t.vals[slot] == nil {
			return
		}
		t.array = append(t.array, t.vals[slot])
		t.vals[slot] = nil
		t.dead++
	}
}

func (t *Table) trimArray() {
	n := len(t.array)
	for n > 0 && t.array[n-1] == nil {
		n--
	}
	t.array = t.array[:n]
}

// compact drops removed slots from the hash part
func (t *Table) compact() {
	keys := make([]Value, 0, len(t.keys)-t.dead)
	vals := make([]Value, 0, len(t.keys)-t.dead)
	index := make(map[any]int, len(t.keys)-t.dead)
	for i, v := range t.vals {
		if v == nil {
			continue
		}
		hk, _ := hashKey(t.keys[i])
		index[hk] = len(keys)
		keys = append(keys, t.keys[i])
		vals = append(vals, v)
	}
	t.keys, t.vals, t.index, t.dead = keys, vals, index, 0
}

// Len returns a border of the table: an index n where t[n] is not nil and
// t[n+1] is nil, or 0 when t[1] is nil. The array part never ends in nil.
func (t *Table) Len() int {
	return len(t.array)
}

// Next returns the entry following key in traversal order; a nil key
// starts the traversal and a nil returned key ends it.
func (t *Table) Next(key Value) (Value, Value, error) {
	key = normalize(key)
	start := 0
	if key != nil {
		i, isArray := arrayIndex(key)
		hk, err := hashKey(key)
		if err != nil {
			return nil, nil, err
		}
		slot, inHash := t.index[hk]
		switch {
		case isArray && i <= len(t.array):
			start = i
		case inHash:
			start = len(t.array) + slot + 1
		case isArray:
			// cleared from the array part during the traversal
			start = len(t.array)
		default:
			return nil, nil, errors.New("invalid key to 'next'")
		}
	}

	for i := start; i < len(t.array); i++ {
		if t.array[i] != nil {
			return float64(i + 1), t.array[i], nil
		}
	}
	for slot := max(start-len(t.array), 0); slot < len(t.keys); slot++ {
		if t.vals[slot] != nil {
			return t.keys[slot], t.vals[slot], nil
		}
	}

	return nil, nil, nil
}
