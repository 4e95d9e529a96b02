// Package padic implements the small amount of p-adic arithmetic the engine
// needs: valuations and norms of residues modulo p^k, overflow-safe modular
// arithmetic, integer polynomials with their Mahler expansion, and the
// Chinese Remainder Theorem.
//
// Residues are plain uint64 values. A residue is always interpreted together
// with a prime p and a precision k, and every function that could lose
// information past p^k takes the precision explicitly.
package padic

import (
	"fmt"
	"math"
	"math/bits"
)

// IsPrime reports whether n is prime. Primes used as fields are small, so
// trial division is sufficient.
func IsPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint64(3); d <= n/d; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// Pow returns p^k, failing with ErrPrecisionOverflow when the result does not
// fit in a uint64.
func Pow(p uint64, k int) (uint64, error) {
	if k < 0 {
		return 0, fmt.Errorf("padic: negative exponent %d", k)
	}
	result := uint64(1)
	for i := 0; i < k; i++ {
		hi, lo := bits.Mul64(result, p)
		if hi != 0 {
			return 0, fmt.Errorf("padic: %d^%d: %w", p, k, ErrPrecisionOverflow)
		}
		result = lo
	}
	return result, nil
}

// MustPow is Pow for callers that already validated the precision.
func MustPow(p uint64, k int) uint64 {
	v, err := Pow(p, k)
	if err != nil {
		panic(err)
	}
	return v
}

// MaxPrecision returns the largest k such that p^k fits in a uint64.
func MaxPrecision(p uint64) int {
	if p < 2 {
		return 0
	}
	k := 0
	acc := uint64(1)
	for {
		hi, lo := bits.Mul64(acc, p)
		if hi != 0 {
			return k
		}
		acc = lo
		k++
	}
}

// Valuation returns v_p(x) for a residue known modulo p^precision. Zero is
// indistinguishable from any multiple of p^precision, so it reads as the
// precision itself rather than infinity.
func Valuation(x, p uint64, precision int) int {
	if x == 0 {
		return precision
	}
	v := 0
	for v < precision && x%p == 0 {
		x /= p
		v++
	}
	return v
}

// Norm returns |x|_p = p^(-v_p(x)), with zero mapped to 0.
func Norm(x, p uint64, precision int) float64 {
	if x == 0 {
		return 0
	}
	v := Valuation(x, p, precision)
	if v >= precision && x%MustPow(p, precision) == 0 {
		return 0
	}
	return math.Pow(float64(p), -float64(v))
}

// AddMod returns (a+b) mod m for a, b < m.
func AddMod(a, b, m uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 || s >= m {
		s -= m
	}
	return s
}

// SubMod returns (a-b) mod m for a, b < m.
func SubMod(a, b, m uint64) uint64 {
	if a >= b {
		return a - b
	}
	return m - (b - a)
}

// MulMod returns (a*b) mod m without intermediate overflow.
func MulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a%m, b%m)
	_, rem := bits.Div64(hi, lo, m)
	return rem
}
