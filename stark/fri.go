package stark

import (
	"bytes"
	"hash"
	"math/big"

	"github.com/consensys/gnark-crypto/accumulator/merkletree"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
)

// friFold applies one FRI folding step at y:
//
//	f'(y^2) = (f(y) + f(-y))/2 + alpha * (f(y) - f(-y))/(2y)
//
// y is never zero on a multiplicative coset.
func friFold(lo, hi, alpha, y fr.Element) fr.Element {
	var sum, diff, twoInv, t fr.Element
	twoInv.SetUint64(2).Inverse(&twoInv)
	sum.Add(&lo, &hi).Mul(&sum, &twoInv)
	diff.Sub(&lo, &hi)
	t.Double(&y).Inverse(&t)
	diff.Mul(&diff, &t).Mul(&diff, &alpha)
	return *sum.Add(&sum, &diff)
}

// evalRemainder evaluates the FRI remainder polynomial at x by Horner's
// rule. Coefficients are ordered from the constant term up.
func evalRemainder(coeffs []fr.Element, x fr.Element) fr.Element {
	var res fr.Element
	for i := len(coeffs) - 1; i >= 0; i-- {
		res.Mul(&res, &x).Add(&res, &coeffs[i])
	}
	return res
}

// layerPoint returns the evaluation point at the given index of FRI layer
// level: offset^(2^level) * (gen^(2^level))^index.
func layerPoint(vk *VerifyingKey, level int, index uint64) fr.Element {
	var off, g fr.Element
	off.Set(&vk.offset)
	g.Set(&vk.gen)
	for i := 0; i < level; i++ {
		off.Square(&off)
		g.Square(&g)
	}
	var e big.Int
	e.SetUint64(index)
	g.Exp(g, &e)
	return *off.Mul(&off, &g)
}

// verifyOpening checks a Merkle inclusion proof whose head element must
// match the claimed leaf bytes.
func verifyOpening(h hash.Hash, root []byte, leaf []byte, proofSet [][]byte, index, numLeaves uint64) bool {
	if len(proofSet) == 0 || !bytes.Equal(proofSet[0], leaf) {
		return false
	}
	h.Reset()
	return merkletree.VerifyProof(h, root, proofSet, index, numLeaves)
}

// parseScalars decodes a slice of 32 byte big endian scalars.
func parseScalars(vals [][]byte) ([]fr.Element, error) {
	res := make([]fr.Element, len(vals))
	for i, v := range vals {
		s, err := kernel.UnmarshalScalar(v)
		if err != nil {
			return nil, err
		}
		res[i] = s
	}
	return res, nil
}
