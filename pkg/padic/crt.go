package padic

import (
	"fmt"
	"math/big"
	"math/bits"
)

// CRT reconstructs the unique residue x modulo M = prod(moduli) with
// x ≡ residues[i] (mod moduli[i]). It returns x and M.
func CRT(residues, moduli []uint64) (uint64, uint64, error) {
	if len(residues) != len(moduli) {
		return 0, 0, ErrLengthMismatch
	}
	if len(moduli) == 0 {
		return 0, 1, nil
	}

	total := uint64(1)
	for i, m := range moduli {
		if m == 0 {
			return 0, 0, fmt.Errorf("padic: zero modulus at %d", i)
		}
		for j := i + 1; j < len(moduli); j++ {
			if gcd(m, moduli[j]) != 1 {
				return 0, 0, fmt.Errorf("padic: %d and %d: %w", m, moduli[j], ErrNonCoprime)
			}
		}
		hi, lo := bits.Mul64(total, m)
		if hi != 0 {
			return 0, 0, fmt.Errorf("padic: product of moduli: %w", ErrPrecisionOverflow)
		}
		total = lo
	}

	M := new(big.Int).SetUint64(total)
	x := new(big.Int)
	for i, m := range moduli {
		if m == 1 {
			continue
		}
		n := new(big.Int).SetUint64(m)
		partial := new(big.Int).Div(M, n)
		inv := new(big.Int).ModInverse(partial, n)
		term := new(big.Int).SetUint64(residues[i] % m)
		term.Mul(term, partial)
		term.Mul(term, inv)
		x.Add(x, term)
	}
	x.Mod(x, M)
	return x.Uint64(), total, nil
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
