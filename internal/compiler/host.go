package compiler

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"lunette/pkg/interpreter"
)

// HostGlobals returns the small set of host functions the driver exposes
// to scripts. print writes to w.
func HostGlobals(w io.Writer) map[string]interpreter.Value {
	return map[string]interpreter.Value{
		"print": interpreter.HostFunction(func(args ...interpreter.Value) ([]interpreter.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = interpreter.ToDisplay(a)
			}
			_, err := fmt.Fprintln(w, strings.Join(parts, "\t"))
			return nil, err
		}),
		"type": interpreter.HostFunction(func(args ...interpreter.Value) ([]interpreter.Value, error) {
			if len(args) == 0 {
				return nil, errors.New("bad argument #1 to 'type' (value expected)")
			}
			return []interpreter.Value{interpreter.TypeName(args[0])}, nil
		}),
		"tostring": interpreter.HostFunction(func(args ...interpreter.Value) ([]interpreter.Value, error) {
			return []interpreter.Value{interpreter.ToDisplay(arg(args, 0))}, nil
		}),
		"tonumber": interpreter.HostFunction(func(args ...interpreter.Value) ([]interpreter.Value, error) {
			if n, ok := interpreter.ToNumber(arg(args, 0)); ok {
				return []interpreter.Value{n}, nil
			}
			return []interpreter.Value{nil}, nil
		}),
		"next":   interpreter.HostFunction(next),
		"pairs":  interpreter.HostFunction(pairs),
		"ipairs": interpreter.HostFunction(ipairs),
	}
}

func arg(args []interpreter.Value, n int) interpreter.Value {
	if n < len(args) {
		return args[n]
	}

	return nil
}

func tableArg(name string, args []interpreter.Value) (*interpreter.Table, error) {
	t, ok := arg(args, 0).(*interpreter.Table)
	if !ok {
		return nil, fmt.Errorf("bad argument #1 to '%s' (table expected, got %s)", name, interpreter.TypeName(arg(args, 0)))
	}

	return t, nil
}

func next(args ...interpreter.Value) ([]interpreter.Value, error) {
	t, err := tableArg("next", args)
	if err != nil {
		return nil, err
	}
	k, v, err := t.Next(arg(args, 1))
	if err != nil {
		return nil, err
	}
	if k == nil {
		return []interpreter.Value{nil}, nil
	}

	return []interpreter.Value{k, v}, nil
}

func pairs(args ...interpreter.Value) ([]interpreter.Value, error) {
	t, err := tableArg("pairs", args)
	if err != nil {
		return nil, err
	}

	return []interpreter.Value{interpreter.HostFunction(next), t, nil}, nil
}

func ipairs(args ...interpreter.Value) ([]interpreter.Value, error) {
	t, err := tableArg("ipairs", args)
	if err != nil {
		return nil, err
	}
	iter := func(args ...interpreter.Value) ([]interpreter.Value, error) {
		i, _ := interpreter.ToNumber(arg(args, 1))
		v := t.Get(i + 1)
		if v == nil {
			return []interpreter.Value{nil}, nil
		}
		return []interpreter.Value{i + 1, v}, nil
	}

	return []interpreter.Value{interpreter.HostFunction(iter), t, float64(0)}, nil
}

// ToValue converts configuration data to script values: TOML tables
// become tables, arrays become sequences.
func ToValue(v any) interpreter.Value {
	switch x := v.(type) {
	case map[string]any:
		t := interpreter.NewTable(0, len(x))
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_ = t.Set(k, ToValue(x[k]))
		}
		return t
	case []any:
		t := interpreter.NewTable(len(x), 0)
		for i, e := range x {
			_ = t.Set(float64(i+1), ToValue(e))
		}
		return t
	case int64:
		return float64(x)
	default:
		return v
	}
}
