// Package stack provides the bookkeeping stacks used during code
// generation: active local variables and enclosing blocks.
package stack

type Stack[T any] struct {
	a []T
}

// NewStack creates a stack holding elm, last element on top
func NewStack[T any](elm ...T) *Stack[T] {
	return &Stack[T]{a: append(make([]T, 0, max(len(elm), 8)), elm...)}
}

// Push adds an element to the top of the stack
func (s *Stack[T]) Push(elm T) {
	s.a = append(s.a, elm)
}

// Pop removes and returns the top element, or the zero value when empty
func (s *Stack[T]) Pop() T {
	var zero T
	if len(s.a) == 0 {
		return zero
	}

	elm := s.a[len(s.a)-1]
	s.a[len(s.a)-1] = zero
	s.a = s.a[:len(s.a)-1]

	return elm
}

// At returns the i-th element counted from the bottom
func (s *Stack[T]) At(i int) T {
	return s.a[i]
}

// Truncate drops elements from the top until n remain
func (s *Stack[T]) Truncate(n int) {
	if n >= len(s.a) {
		return
	}
	clear(s.a[n:])
	s.a = s.a[:n]
}

func (s *Stack[T]) Size() int {
	return len(s.a)
}
