package stark

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// evaluationFrame holds the trace openings the constraints read at one
// point: the current row and the row one trace step ahead.
type evaluationFrame struct {
	aCur, bCur   fr.Element
	aNext, bNext fr.Element
}

// evalConstraints evaluates the combined constraint polynomial at x from an
// evaluation frame. The five constraints are weighted by increasing powers
// of alpha and divided by their vanishing polynomials:
//
//	transition a' - b        on all rows but the last
//	transition b' - a - b    on all rows but the last
//	boundary   a - in0       on the first row
//	boundary   b - in1       on the first row
//	boundary   b - result    on the last row
//
// The second return value is false when x lies on the trace domain, where
// the divisors vanish. Honest provers evaluate on a coset and honest
// out of domain points avoid the trace domain except with negligible
// probability, so a vanishing divisor marks the proof invalid.
func evalConstraints(vk *VerifyingKey, f *evaluationFrame, x fr.Element, alpha fr.Element, publicInputs []fr.Element) (fr.Element, bool) {
	var xn fr.Element
	xn.Set(&x)
	for i := uint64(1); i < vk.TraceLength; i <<= 1 {
		xn.Square(&xn)
	}

	// divisor denominators: x^n - 1, x - 1, x - g^(n-1)
	var one, zh, dFirst, dLast fr.Element
	one.SetOne()
	zh.Sub(&xn, &one)
	dFirst.Sub(&x, &one)
	dLast.Sub(&x, &vk.lastRow)
	if zh.IsZero() || dFirst.IsZero() || dLast.IsZero() {
		return fr.Element{}, false
	}

	batch := []fr.Element{zh, dFirst, dLast}
	batch = fr.BatchInvert(batch)

	// transitions vanish everywhere on the trace domain except the last
	// row, so their divisor is (x^n - 1)/(x - g^(n-1))
	var transInv fr.Element
	transInv.Mul(&dLast, &batch[0])

	var c [nbConstraints]fr.Element
	c[0].Sub(&f.aNext, &f.bCur).Mul(&c[0], &transInv)
	c[1].Add(&f.aCur, &f.bCur).Sub(&f.bNext, &c[1]).Mul(&c[1], &transInv)
	c[2].Sub(&f.aCur, &publicInputs[0]).Mul(&c[2], &batch[1])
	c[3].Sub(&f.bCur, &publicInputs[1]).Mul(&c[3], &batch[1])
	c[4].Sub(&f.bCur, &publicInputs[2]).Mul(&c[4], &batch[2])

	var acc, coeff fr.Element
	acc.Set(&c[0])
	coeff.Set(&alpha)
	for i := 1; i < nbConstraints; i++ {
		var t fr.Element
		t.Mul(&coeff, &c[i])
		acc.Add(&acc, &t)
		coeff.Mul(&coeff, &alpha)
	}
	return acc, true
}
