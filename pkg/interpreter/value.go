package interpreter

import (
	"fmt"
	"math"
	"reflect"

	"lunette/pkg/number"
)

// Value is any script value: nil, bool, float64, string, *Table, *Closure
// or HostFunction. Other host values pass through as opaque userdata.
type Value = any

// HostFunction is a function provided by the host. Scripts call host
// functions and closures the same way.
type HostFunction func(args ...Value) ([]Value, error)

// TypeName returns the script-visible type name of v
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case *Table:
		return "table"
	case *Closure, HostFunction, func(...Value) ([]Value, error):
		return "function"
	default:
		return "userdata"
	}
}

// Truthy reports whether v counts as true in a condition
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	default:
		return true
	}
}

// normalize maps host numbers to float64 and plain function literals to
// HostFunction so that the engine sees a single representation.
func normalize(v Value) Value {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case func(...Value) ([]Value, error):
		return HostFunction(x)
	default:
		return v
	}
}

func normalizeAll(vs []Value) []Value {
	for i, v := range vs {
		vs[i] = normalize(v)
	}

	return vs
}

// ToNumber converts v to a number, accepting numeric strings
func ToNumber(v Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		return number.Parse(x)
	default:
		return 0, false
	}
}

// ToString converts strings and numbers to a string, as concatenation does
func ToString(v Value) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return number.Format(x), true
	default:
		return "", false
	}
}

// RawEquals compares two values without coercion
func RawEquals(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *Table:
		y, ok := b.(*Table)
		return ok && x == y
	case *Closure:
		y, ok := b.(*Closure)
		return ok && x == y
	case HostFunction:
		y, ok := b.(HostFunction)
		return ok && funcPointer(x) == funcPointer(y)
	default:
		ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
		if ta != tb || !ta.Comparable() {
			return false
		}
		return a == b
	}
}

// funcPointer identifies a host function. Closures created from the same
// function literal share a code pointer and compare equal.
func funcPointer(f HostFunction) uintptr {
	return reflect.ValueOf(f).Pointer()
}

func lessThan(a, b Value) (bool, error) {
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			return x < y, nil
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return x < y, nil
		}
	}

	return false, compareError(a, b)
}

func lessEqual(a, b Value) (bool, error) {
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			return x <= y, nil
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return x <= y, nil
		}
	}

	return false, compareError(a, b)
}

func compareError(a, b Value) error {
	ta, tb := TypeName(a), TypeName(b)
	if ta == tb {
		return fmt.Errorf("attempt to compare two %s values", ta)
	}

	return fmt.Errorf("attempt to compare %s with %s", ta, tb)
}

func arith(op op, x, y float64) float64 {
	switch op {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	case opMul:
		return x * y
	case opDiv:
		return x / y
	case opMod:
		return x - math.Floor(x/y)*y
	case opPow:
		return math.Pow(x, y)
	default:
		return math.NaN()
	}
}
