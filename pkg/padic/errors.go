package padic

import "errors"

var (
	// ErrNotPrime is returned when a field is requested for a composite or trivial base.
	ErrNotPrime = errors.New("padic: not a prime")
	// ErrPrecisionOverflow means p^k (or a product of moduli) does not fit in 64 bits.
	ErrPrecisionOverflow = errors.New("padic: modulus overflows uint64")
	// ErrNonCoprime is returned by CRT when two moduli share a factor.
	ErrNonCoprime = errors.New("padic: moduli are not pairwise coprime")
	// ErrLengthMismatch is returned by CRT for unpaired inputs.
	ErrLengthMismatch = errors.New("padic: residues and moduli differ in length")
)
