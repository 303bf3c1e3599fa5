// Package pointer provides helpers for building pointers to values, used
// for optional fields in API request payloads.
package pointer

// To returns a pointer to the given value.
func To[T any](v T) *T {
	return &v
}
