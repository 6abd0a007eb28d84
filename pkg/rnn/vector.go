package rnn

// Dot returns the inner product of a and b
func Dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// VectorEqual reports whether a and b hold exactly the same values
func VectorEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Sum returns the sum of the elements of a vector
func Sum(vector []float64) float64 {
	s := 0.0
	for _, v := range vector {
		s += v
	}
	return s
}
