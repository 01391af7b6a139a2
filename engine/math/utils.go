package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// CeilDiv returns a / b rounded up. b must be positive.
func CeilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

// ExclusivePrefixSum returns out where out[i] is the sum of values[0..i).
func ExclusivePrefixSum[T constraints.Integer | constraints.Float](values []T) []T {
	out := make([]T, len(values))
	var sum T
	for i, v := range values {
		out[i] = sum
		sum += v
	}
	return out
}

// Sum returns the total of all values.
func Sum[T constraints.Integer | constraints.Float](values []T) T {
	var sum T
	for _, v := range values {
		sum += v
	}
	return sum
}
