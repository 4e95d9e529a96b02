package padic

// Poly is an integer polynomial reduced modulo Mod. Coeffs are stored in
// ascending order, Coeffs[i] multiplying x^i.
type Poly struct {
	Coeffs []uint64 `json:"coeffs"`
	Mod    uint64   `json:"mod"`
}

// FromRoots builds the monic polynomial prod(x - r) modulo mod. With no roots
// it is the constant 1.
func FromRoots(roots []uint64, mod uint64) Poly {
	coeffs := []uint64{1 % mod}
	for _, r := range roots {
		r %= mod
		next := make([]uint64, len(coeffs)+1)
		for i, c := range coeffs {
			// x * c x^i
			next[i+1] = AddMod(next[i+1], c, mod)
			// -r * c x^i
			next[i] = SubMod(next[i], MulMod(r, c, mod), mod)
		}
		coeffs = next
	}
	return Poly{Coeffs: coeffs, Mod: mod}
}

// Degree returns the index of the highest non-zero coefficient, or -1 for
// the zero polynomial.
func (p Poly) Degree() int {
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		if p.Coeffs[i] != 0 {
			return i
		}
	}
	return -1
}

// Eval evaluates the polynomial at x using Horner's rule.
func (p Poly) Eval(x uint64) uint64 {
	if p.Mod == 0 {
		return 0
	}
	x %= p.Mod
	acc := uint64(0)
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		acc = AddMod(MulMod(acc, x, p.Mod), p.Coeffs[i], p.Mod)
	}
	return acc
}

// Mahler returns the Mahler coefficients a_n = Δ^n P(0) for n = 0..deg,
// computed as iterated forward differences of P(0), P(1), ..., P(deg).
func (p Poly) Mahler() []uint64 {
	deg := p.Degree()
	if deg < 0 {
		return nil
	}
	values := make([]uint64, deg+1)
	for i := range values {
		values[i] = p.Eval(uint64(i))
	}
	out := make([]uint64, deg+1)
	out[0] = values[0]
	for n := 1; n <= deg; n++ {
		for i := 0; i+n <= deg; i++ {
			values[i] = SubMod(values[i+1], values[i], p.Mod)
		}
		out[n] = values[0]
	}
	return out
}

// NewtonSlope fits a least-squares line through the points (n, v_p(a_n)) of
// the Mahler coefficients and returns its slope. Coefficients that vanish at
// the working precision are skipped. A positive slope means the expansion
// decays p-adically.
func NewtonSlope(mahler []uint64, prime uint64, precision int) float64 {
	var xs, ys []float64
	for n, a := range mahler {
		v := Valuation(a, prime, precision)
		if v >= precision {
			continue
		}
		xs = append(xs, float64(n))
		ys = append(ys, float64(v))
	}
	if len(xs) < 2 {
		return 0
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(len(xs))
	my /= float64(len(ys))
	var num, den float64
	for i := range xs {
		num += (xs[i] - mx) * (ys[i] - my)
		den += (xs[i] - mx) * (xs[i] - mx)
	}
	if den == 0 {
		return 0
	}
	return num / den
}
