package groth16

import (
	"errors"
	"hash"
	"math/big"
	"strconv"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	fiatshamir "github.com/consensys/gnark-crypto/fiat-shamir"

	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
	"github.com/draxxycodes/Universal-ZKV-sub001/logger"
)

// Verify checks the Groth16 pairing identity
//
//	e(A, B) = e(alpha, beta) * e(vk_x, gamma) * e(C, delta)
//
// evaluated as a single combined pairing check with A negated. A failed
// identity is the expected outcome for an invalid proof and yields
// (false, nil), not an error.
func Verify(proof *Proof, vk *VerifyingKey, publicWitness []fr.Element) (bool, error) {
	log := logger.Logger().With().Str("curve", "bn254").Str("backend", "groth16").Logger()
	start := time.Now()

	if len(publicWitness)+1 != len(vk.G1.K) {
		return false, kernel.ErrInvalidPublicInputLength
	}

	kSumAff, err := foldPublicWitness(vk, publicWitness)
	if err != nil {
		return false, err
	}

	var aNeg curve.G1Affine
	aNeg.Neg(&proof.Ar)

	// e(-A, B) * e(alpha, beta) * e(vk_x, gamma) * e(C, delta) == 1
	valid, err := curve.PairingCheck(
		[]curve.G1Affine{aNeg, vk.G1.Alpha, kSumAff, proof.Krs},
		[]curve.G2Affine{proof.Bs, vk.G2.Beta, vk.G2.Gamma, vk.G2.Delta},
	)
	if err != nil {
		return false, err
	}

	log.Debug().Dur("took", time.Since(start)).Bool("valid", valid).Msg("verifier done")
	return valid, nil
}

// BatchVerify checks n proofs against one verifying key and returns one
// boolean per proof, in input order. All pairing identities are first folded
// into a single multi pairing of n+3 pairs using deterministic transcript
// derived coefficients; only when the folded check fails does it fall back to
// per proof verification to locate the failures.
func BatchVerify(proofs []*Proof, vk *VerifyingKey, publicWitnesses [][]fr.Element, hFn func() hash.Hash) ([]bool, error) {
	log := logger.Logger().With().Str("curve", "bn254").Str("backend", "groth16").Logger()
	start := time.Now()

	if len(proofs) != len(publicWitnesses) {
		return nil, errors.New("proof and public input counts differ")
	}
	for i := range publicWitnesses {
		if len(publicWitnesses[i])+1 != len(vk.G1.K) {
			return nil, kernel.ErrInvalidPublicInputLength
		}
	}

	n := len(proofs)
	results := make([]bool, n)
	if n == 0 {
		return results, nil
	}

	r, err := deriveBatchCoefficients(proofs, publicWitnesses, hFn)
	if err != nil {
		return nil, err
	}

	// fold the per proof terms that share a G2 point:
	//   sum_i r_i * alpha pairs with beta
	//   sum_i r_i * vk_x_i pairs with gamma
	//   sum_i r_i * C_i pairs with delta
	// the e(A_i, B_i) terms keep one pair each, scaled through A.
	var (
		g1Pairs = make([]curve.G1Affine, 0, n+3)
		g2Pairs = make([]curve.G2Affine, 0, n+3)
		rSum    fr.Element
		kFold   curve.G1Jac
		cFold   curve.G1Jac
		bi      big.Int
	)
	for i := 0; i < n; i++ {
		var scaledANeg curve.G1Affine
		scaledANeg.Neg(&proofs[i].Ar)
		scaledANeg.ScalarMultiplication(&scaledANeg, r[i].BigInt(&bi))
		g1Pairs = append(g1Pairs, scaledANeg)
		g2Pairs = append(g2Pairs, proofs[i].Bs)

		kSumAff, err := foldPublicWitness(vk, publicWitnesses[i])
		if err != nil {
			return nil, err
		}
		var t curve.G1Jac
		t.FromAffine(&kSumAff)
		t.ScalarMultiplication(&t, r[i].BigInt(&bi))
		kFold.AddAssign(&t)

		t.FromAffine(&proofs[i].Krs)
		t.ScalarMultiplication(&t, r[i].BigInt(&bi))
		cFold.AddAssign(&t)

		rSum.Add(&rSum, &r[i])
	}

	var alphaSum curve.G1Affine
	alphaSum.ScalarMultiplication(&vk.G1.Alpha, rSum.BigInt(&bi))
	var kFoldAff, cFoldAff curve.G1Affine
	kFoldAff.FromJacobian(&kFold)
	cFoldAff.FromJacobian(&cFold)

	g1Pairs = append(g1Pairs, alphaSum, kFoldAff, cFoldAff)
	g2Pairs = append(g2Pairs, vk.G2.Beta, vk.G2.Gamma, vk.G2.Delta)

	valid, err := curve.PairingCheck(g1Pairs, g2Pairs)
	if err != nil {
		return nil, err
	}
	if valid {
		for i := range results {
			results[i] = true
		}
		log.Debug().Dur("took", time.Since(start)).Int("n", n).Msg("batch verifier done")
		return results, nil
	}

	// at least one proof is invalid, locate it
	for i := 0; i < n; i++ {
		ok, err := Verify(proofs[i], vk, publicWitnesses[i])
		if err != nil {
			return nil, err
		}
		results[i] = ok
	}
	log.Debug().Dur("took", time.Since(start)).Int("n", n).Msg("batch verifier done (fallback)")
	return results, nil
}

// foldPublicWitness computes vk_x = K[0] + sum_i input_i * K[i+1].
func foldPublicWitness(vk *VerifyingKey, publicWitness []fr.Element) (curve.G1Affine, error) {
	var kSum curve.G1Jac
	kSum.FromAffine(&vk.G1.K[0])
	if len(publicWitness) > 0 {
		var msm curve.G1Jac
		if _, err := msm.MultiExp(vk.G1.K[1:], publicWitness, ecc.MultiExpConfig{}); err != nil {
			return curve.G1Affine{}, err
		}
		kSum.AddAssign(&msm)
	}
	var kSumAff curve.G1Affine
	kSumAff.FromJacobian(&kSum)
	return kSumAff, nil
}

// deriveBatchCoefficients squeezes one folding coefficient per proof out of a
// transcript binding every proof and its public inputs, so the folded check is
// deterministic and replayable.
func deriveBatchCoefficients(proofs []*Proof, publicWitnesses [][]fr.Element, hFn func() hash.Hash) ([]fr.Element, error) {
	names := make([]string, len(proofs))
	for i := range names {
		names[i] = "r." + strconv.Itoa(i)
	}
	// one challenge per proof, each bound to that proof's bytes and inputs,
	// chained by the transcript
	fs := fiatshamir.NewTranscript(hFn(), names...)
	coeffs := make([]fr.Element, len(proofs))
	for i := range proofs {
		if err := fs.Bind(names[i], proofs[i].Marshal()); err != nil {
			return nil, err
		}
		for _, w := range publicWitnesses[i] {
			wb := w.Bytes()
			if err := fs.Bind(names[i], wb[:]); err != nil {
				return nil, err
			}
		}
		b, err := fs.ComputeChallenge(names[i])
		if err != nil {
			return nil, err
		}
		coeffs[i].SetBytes(b)
		if coeffs[i].IsZero() {
			coeffs[i].SetOne()
		}
	}
	return coeffs, nil
}
