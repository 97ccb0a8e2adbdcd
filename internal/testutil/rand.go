package testutil

// FixedRand always draws the same value, reduced modulo n.
type FixedRand struct {
	N int64
}

// Int64N returns N mod n, or 0 when n <= 0.
func (r FixedRand) Int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}
	v := r.N % n
	if v < 0 {
		v += n
	}
	return v
}
