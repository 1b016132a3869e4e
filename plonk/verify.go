package plonk

import (
	"math/big"
	"time"

	curve "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	fiatshamir "github.com/consensys/gnark-crypto/fiat-shamir"

	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
	"github.com/draxxycodes/Universal-ZKV-sub001/logger"
)

// Verify checks a PLONK proof against a verifying key and public inputs.
//
// The challenges are re-derived from the transcript in the order the prover
// produced them, then a single algebraic identity at zeta ties the gate
// constraints, the permutation argument and the quotient decomposition
// together; the claimed evaluations feeding that identity are attested by the
// KZG openings. A failed identity or opening is the expected outcome for an
// invalid proof and yields (false, nil).
func Verify(proof *Proof, vk *VerifyingKey, publicWitness []fr.Element, opts ...backend.VerifierOption) (bool, error) {
	log := logger.Logger().With().Str("curve", "bn254").Str("backend", "plonk").Logger()
	start := time.Now()
	cfg, err := backend.NewVerifierConfig(opts...)
	if err != nil {
		return false, err
	}

	if uint64(len(publicWitness)) != vk.NbPublicVariables {
		return false, kernel.ErrInvalidPublicInputLength
	}

	// transcript to derive the challenges, in the order the prover bound them
	fs := fiatshamir.NewTranscript(cfg.ChallengeHash(), "gamma", "beta", "alpha", "zeta")

	// derive gamma from the public data and Comm(l), Comm(r), Comm(o)
	if err := bindPublicData(fs, "gamma", vk, publicWitness); err != nil {
		return false, err
	}
	gamma, err := deriveRandomness(fs, "gamma", &proof.LRO[0], &proof.LRO[1], &proof.LRO[2])
	if err != nil {
		return false, err
	}
	beta, err := deriveRandomness(fs, "beta")
	if err != nil {
		return false, err
	}

	// derive alpha from Comm(Z)
	alpha, err := deriveRandomness(fs, "alpha", &proof.Z)
	if err != nil {
		return false, err
	}

	// derive zeta, the point of evaluation, from Comm(h1), Comm(h2), Comm(h3)
	zeta, err := deriveRandomness(fs, "zeta", &proof.H[0], &proof.H[1], &proof.H[2])
	if err != nil {
		return false, err
	}

	cv := proof.BatchedProof.ClaimedValues
	l, r, o := cv[0], cv[1], cv[2]
	ql, qr, qm, qo, qk := cv[3], cv[4], cv[5], cv[6], cv[7]
	s1, s2, s3 := cv[8], cv[9], cv[10]
	h1, h2, h3 := cv[11], cv[12], cv[13]
	z := cv[14]
	zshift := proof.ZShiftedOpening.ClaimedValue

	// evaluation of zhZeta=ζⁿ-1
	var zetaPowerN, zhZeta fr.Element
	var bExpo big.Int
	one := fr.One()
	bExpo.SetUint64(vk.Size)
	zetaPowerN.Exp(zeta, &bExpo)
	zhZeta.Sub(&zetaPowerN, &one)

	pi := computePublicInputContribution(vk, publicWitness, zeta, zhZeta)

	var lhs, t1, t2, t3, tmp, tmp2 fr.Element

	// gate constraint: ql*l + qr*r + qm*l*r + qo*o + qk + PI
	t1.Mul(&l, &ql)
	tmp.Mul(&r, &qr)
	t1.Add(&t1, &tmp)
	tmp.Mul(&qm, &l).Mul(&tmp, &r)
	t1.Add(&t1, &tmp)
	tmp.Mul(&o, &qo)
	t1.Add(&tmp, &t1)
	t1.Add(&t1, &qk)
	t1.Add(&t1, &pi)

	// permutation argument: z(μζ)*(l+β*s1+γ)*(r+β*s2+γ)*(o+β*s3+γ)
	//                     - z(ζ)*(l+β*ζ+γ)*(r+β*k1*ζ+γ)*(o+β*k2*ζ+γ)
	t2.Mul(&beta, &s1).Add(&t2, &l).Add(&t2, &gamma)
	tmp.Mul(&beta, &s2).Add(&tmp, &r).Add(&tmp, &gamma)
	t2.Mul(&tmp, &t2)
	tmp.Mul(&beta, &s3).Add(&tmp, &o).Add(&tmp, &gamma)
	t2.Mul(&tmp, &t2).Mul(&t2, &zshift)

	tmp.Mul(&beta, &zeta).Add(&tmp, &l).Add(&tmp, &gamma)
	tmp2.Mul(&vk.K1, &zeta).Mul(&tmp2, &beta).Add(&tmp2, &r).Add(&tmp2, &gamma)
	tmp.Mul(&tmp, &tmp2)
	tmp2.Mul(&vk.K2, &zeta).Mul(&tmp2, &beta).Add(&tmp2, &o).Add(&tmp2, &gamma)
	tmp.Mul(&tmp2, &tmp).Mul(&tmp, &z)

	t2.Sub(&t2, &tmp)

	// L1(ζ)*(z(ζ)-1)
	tmp.Sub(&zeta, &one).Inverse(&tmp).Mul(&tmp, &vk.SizeInv)
	t3.Mul(&zhZeta, &tmp)
	tmp.Sub(&z, &one)
	t3.Mul(&tmp, &t3)

	// lhs = t1 + α*t2 + α²*t3
	lhs.Set(&t3).Mul(&lhs, &alpha).Add(&lhs, &t2).Mul(&lhs, &alpha).Add(&lhs, &t1)

	// rhs = (h1 + ζⁿ⁺²*h2 + ζ²⁽ⁿ⁺²⁾*h3)*(ζⁿ-1)
	var rhs fr.Element
	bExpo.SetUint64(vk.Size + 2)
	tmp.Exp(zeta, &bExpo)
	rhs.Mul(&h3, &tmp).
		Add(&rhs, &h2).
		Mul(&rhs, &tmp).
		Add(&rhs, &h1)
	rhs.Mul(&rhs, &zhZeta)

	if !rhs.Equal(&lhs) {
		log.Debug().Dur("took", time.Since(start)).Msg("algebraic relation does not hold")
		return false, nil
	}

	// verify the openings attesting the claimed evaluations, order matching
	// the claimed values
	digests := []kzg.Digest{
		proof.LRO[0], proof.LRO[1], proof.LRO[2],
		vk.Ql, vk.Qr, vk.Qm, vk.Qo, vk.Qk,
		vk.S[0], vk.S[1], vk.S[2],
		proof.H[0], proof.H[1], proof.H[2],
		proof.Z,
	}
	if err := kzg.BatchVerifySinglePoint(digests, &proof.BatchedProof, zeta, cfg.KZGFoldingHash(), vk.Kzg); err != nil {
		log.Debug().Dur("took", time.Since(start)).Msg("batched opening does not verify")
		return false, nil
	}

	var zetaShifted fr.Element
	zetaShifted.Mul(&zeta, &vk.Generator)
	if err := kzg.Verify(&proof.Z, &proof.ZShiftedOpening, zetaShifted, vk.Kzg); err != nil {
		log.Debug().Dur("took", time.Since(start)).Msg("shifted opening does not verify")
		return false, nil
	}

	log.Debug().Dur("took", time.Since(start)).Msg("verifier done")
	return true, nil
}

// computePublicInputContribution returns PI(ζ) = ∑_{i<n} wᵢ*Lᵢ(ζ) with
// Lᵢ(ζ) = (ωⁱ/n)*(ζⁿ-1)/(ζ-ωⁱ).
func computePublicInputContribution(vk *VerifyingKey, publicWitness []fr.Element, zeta, zhZeta fr.Element) fr.Element {
	var pi, accw, xiLi fr.Element
	if len(publicWitness) == 0 {
		return pi
	}

	// [ζ-1, ζ-ω, ζ-ω², ..]
	dens := make([]fr.Element, len(publicWitness))
	accw.SetOne()
	for i := 0; i < len(publicWitness); i++ {
		dens[i].Sub(&zeta, &accw)
		accw.Mul(&accw, &vk.Generator)
	}
	invDens := fr.BatchInvert(dens)

	accw.SetOne()
	for i := 0; i < len(publicWitness); i++ {
		xiLi.Mul(&zhZeta, &invDens[i]).
			Mul(&xiLi, &vk.SizeInv).
			Mul(&xiLi, &accw).
			Mul(&xiLi, &publicWitness[i])
		accw.Mul(&accw, &vk.Generator)
		pi.Add(&pi, &xiLi)
	}
	return pi
}

func bindPublicData(fs *fiatshamir.Transcript, challenge string, vk *VerifyingKey, publicInputs []fr.Element) error {
	// permutation
	for i := range vk.S {
		if err := fs.Bind(challenge, vk.S[i].Marshal()); err != nil {
			return err
		}
	}

	// coefficients
	for _, d := range []*kzg.Digest{&vk.Ql, &vk.Qr, &vk.Qm, &vk.Qo, &vk.Qk} {
		if err := fs.Bind(challenge, d.Marshal()); err != nil {
			return err
		}
	}

	// public inputs
	for i := 0; i < len(publicInputs); i++ {
		if err := fs.Bind(challenge, publicInputs[i].Marshal()); err != nil {
			return err
		}
	}

	return nil
}

func deriveRandomness(fs *fiatshamir.Transcript, challenge string, points ...*curve.G1Affine) (fr.Element, error) {
	var buf [curve.SizeOfG1AffineUncompressed]byte
	var r fr.Element

	for _, p := range points {
		buf = p.RawBytes()
		if err := fs.Bind(challenge, buf[:]); err != nil {
			return r, err
		}
	}

	b, err := fs.ComputeChallenge(challenge)
	if err != nil {
		return r, err
	}
	r.SetBytes(b)
	return r, nil
}
