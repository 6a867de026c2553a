// Package stdx has small helpers for startup wiring where an error is fatal.
package stdx

// Must0 panics when err is non-nil.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, or panics when err is non-nil.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Coalesce returns the first value that is not the zero value of T.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
