package content

// Result is the outcome of parsing untrusted content: either a valid value
// or the reason it was rejected.
type Result[T any] struct {
	value  T
	reason string
	ok     bool
}

// Valid wraps a value that passed validation.
func Valid[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Invalid records why content was rejected.
func Invalid[T any](reason string) Result[T] {
	return Result[T]{reason: reason}
}

func (r Result[T]) OK() bool       { return r.ok }
func (r Result[T]) Value() T       { return r.value }
func (r Result[T]) Reason() string { return r.reason }
