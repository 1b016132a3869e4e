// Package backend enumerates the proof systems implemented in uzkv and
// carries the verifier configuration options shared by all of them.
package backend

import (
	"errors"
	"hash"
	"runtime"

	"golang.org/x/crypto/sha3"
)

// ProofSystem represents a unique ID for a proof system. The numeric value
// doubles as the wire tag used by registered verification keys and by the
// universal proof envelope.
type ProofSystem uint8

const (
	GROTH16 ProofSystem = iota
	PLONK
	STARK
)

// UNKNOWN is returned when a wire tag does not map to an implemented system.
const UNKNOWN ProofSystem = 0xff

// ErrUnknownProofSystem is returned when a wire tag does not correspond to an
// implemented proof system.
var ErrUnknownProofSystem = errors.New("unknown proof system")

// Implemented return the list of proof systems implemented in uzkv
func Implemented() []ProofSystem {
	return []ProofSystem{GROTH16, PLONK, STARK}
}

// String returns the string representation of a proof system
func (id ProofSystem) String() string {
	switch id {
	case GROTH16:
		return "groth16"
	case PLONK:
		return "plonk"
	case STARK:
		return "stark"
	default:
		return "unknown"
	}
}

// ProofSystemFromTag maps a wire tag to a proof system.
func ProofSystemFromTag(tag uint8) (ProofSystem, error) {
	switch ProofSystem(tag) {
	case GROTH16, PLONK, STARK:
		return ProofSystem(tag), nil
	default:
		return UNKNOWN, ErrUnknownProofSystem
	}
}

// VerifierOption defines option for altering the behavior of the verifier. See
// the descriptions of functions returning instances of this type for
// implemented options.
type VerifierOption func(*VerifierConfig) error

// VerifierConfig is the configuration for the verifier with the options applied.
//
// Hash functions are provided as constructors so that concurrent batch
// verification never shares hasher state across goroutines.
type VerifierConfig struct {
	ChallengeHash   func() hash.Hash
	KZGFoldingHash  func() hash.Hash
	BatchSizeLimit  int
	MaxPublicInputs int
	Parallelism     int
}

// NewVerifierConfig returns a default [VerifierConfig] with given verifier
// options applied.
func NewVerifierConfig(opts ...VerifierOption) (VerifierConfig, error) {
	opt := VerifierConfig{
		// the registered systems derive their non-interactive challenges
		// from Keccak-256 transcripts
		ChallengeHash:   sha3.NewLegacyKeccak256,
		KZGFoldingHash:  sha3.NewLegacyKeccak256,
		BatchSizeLimit:  32,
		MaxPublicInputs: 256,
		Parallelism:     runtime.NumCPU(),
	}
	for _, option := range opts {
		if err := option(&opt); err != nil {
			return VerifierConfig{}, err
		}
	}
	return opt, nil
}

// WithChallengeHashFunction sets the hash function used for computing
// non-interactive challenges in Fiat-Shamir heuristic. If not set then by
// default Keccak-256 is used. Used mainly for compatibility between different
// systems.
func WithChallengeHashFunction(h func() hash.Hash) VerifierOption {
	return func(cfg *VerifierConfig) error {
		cfg.ChallengeHash = h
		return nil
	}
}

// WithKZGFoldingHashFunction sets the hash function used for computing the
// challenge when folding the KZG opening proofs. If not set then by default
// Keccak-256 is used.
func WithKZGFoldingHashFunction(h func() hash.Hash) VerifierOption {
	return func(cfg *VerifierConfig) error {
		cfg.KZGFoldingHash = h
		return nil
	}
}

// WithBatchSizeLimit bounds the number of proofs accepted by a single batch
// verification call.
func WithBatchSizeLimit(n int) VerifierOption {
	return func(cfg *VerifierConfig) error {
		if n <= 0 {
			return errors.New("batch size limit must be positive")
		}
		cfg.BatchSizeLimit = n
		return nil
	}
}

// WithMaxPublicInputs bounds the declared public input count accepted at
// verification key registration.
func WithMaxPublicInputs(n int) VerifierOption {
	return func(cfg *VerifierConfig) error {
		if n <= 0 {
			return errors.New("public input ceiling must be positive")
		}
		cfg.MaxPublicInputs = n
		return nil
	}
}

// WithParallelism sets the number of worker goroutines used by batch
// verification. Defaults to runtime.NumCPU().
func WithParallelism(n int) VerifierOption {
	return func(cfg *VerifierConfig) error {
		if n <= 0 {
			return errors.New("parallelism must be positive")
		}
		cfg.Parallelism = n
		return nil
	}
}
