package uzkv

import (
	"errors"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/sync/errgroup"

	"github.com/draxxycodes/Universal-ZKV-sub001/backend"
	"github.com/draxxycodes/Universal-ZKV-sub001/groth16"
	"github.com/draxxycodes/Universal-ZKV-sub001/internal/kernel"
	"github.com/draxxycodes/Universal-ZKV-sub001/logger"
	"github.com/draxxycodes/Universal-ZKV-sub001/plonk"
	"github.com/draxxycodes/Universal-ZKV-sub001/registry"
	"github.com/draxxycodes/Universal-ZKV-sub001/stark"
)

// Request errors surfaced by the engine. Cryptographic verification failure
// is not an error: Verify returns (false, nil) for a well formed proof that
// does not verify.
var (
	ErrVKNotRegistered          = registry.ErrVKNotRegistered
	ErrVKInactive               = registry.ErrVKInactive
	ErrStorageBomb              = registry.ErrStorageBomb
	ErrUnauthorized             = registry.ErrUnauthorized
	ErrPaused                   = registry.ErrPaused
	ErrNullifierSpent           = registry.ErrNullifierSpent
	ErrInvalidProofFormat       = kernel.ErrInvalidProofFormat
	ErrInvalidPublicInputLength = kernel.ErrInvalidPublicInputLength

	// ErrTypeMismatch is returned when the proof system claimed by a
	// verification request differs from the one the key was registered
	// under.
	ErrTypeMismatch = errors.New("proof system does not match registered key")

	// ErrBatchTooLarge is returned when a batch exceeds the configured
	// size limit.
	ErrBatchTooLarge = errors.New("batch exceeds size limit")
)

// Engine routes verification requests to the registered proof systems. It
// owns a key registry and is safe for concurrent use.
type Engine struct {
	registry *registry.Registry
	cfg      backend.VerifierConfig
	opts     []backend.VerifierOption
}

// New returns an engine with an empty registry. Verifier options apply to
// every request routed through the engine; per request options on Verify
// override them.
func New(guardian string, opts ...backend.VerifierOption) (*Engine, error) {
	cfg, err := backend.NewVerifierConfig(opts...)
	if err != nil {
		return nil, err
	}
	regOpts := []registry.Option{registry.WithMaxPublicInputs(cfg.MaxPublicInputs)}
	if guardian != "" {
		regOpts = append(regOpts, registry.WithGuardian(guardian))
	}
	return &Engine{
		registry: registry.New(regOpts...),
		cfg:      cfg,
		opts:     opts,
	}, nil
}

// Registry exposes the engine's key registry for lifecycle operations not
// routed through verification.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// RegisterVK validates and registers a verification key, returning its
// content hash.
func (e *Engine) RegisterVK(caller string, system backend.ProofSystem, vk []byte) ([32]byte, error) {
	return e.registry.Register(caller, system, vk)
}

// DeactivateVK retires a key on behalf of its registrant or the guardian.
func (e *Engine) DeactivateVK(caller string, hash [32]byte) error {
	return e.registry.Deactivate(caller, hash)
}

// IsVKRegistered reports whether a key hash is known, active or not.
func (e *Engine) IsVKRegistered(hash [32]byte) bool {
	return e.registry.IsRegistered(hash)
}

// VerificationCount returns the number of successful verifications recorded
// against a key.
func (e *Engine) VerificationCount(hash [32]byte) (uint64, error) {
	record, err := e.registry.Lookup(hash)
	if err != nil {
		return 0, err
	}
	return record.VerificationCount, nil
}

// Count returns the total number of successful verifications recorded for a
// proof system across all registered keys.
func (e *Engine) Count(system backend.ProofSystem) uint64 {
	return e.registry.SystemCount(system)
}

// Verify routes a serialized proof and public inputs to the proof system a
// key was registered under. The claimed system must match the registration;
// the key must be active and the registry not paused. A true result
// increments the key's usage counter.
func (e *Engine) Verify(system backend.ProofSystem, vkHash [32]byte, proof, publicInputs []byte) (bool, error) {
	if e.registry.Paused() {
		return false, ErrPaused
	}
	record, err := e.registry.Lookup(vkHash)
	if err != nil {
		return false, err
	}
	if record.ProofSystem != system {
		return false, ErrTypeMismatch
	}
	if !record.Active {
		return false, ErrVKInactive
	}

	ok, err := e.dispatch(&record, proof, publicInputs)
	if err != nil {
		return false, err
	}
	if ok {
		if err := e.registry.RecordVerification(vkHash); err != nil {
			return false, err
		}
	}
	return ok, nil
}

// BatchVerify verifies a batch of proofs against a single key. The result
// slice is indexed like the input; request errors on any element abort the
// whole batch. Groth16 batches use the folded multi pairing check, the other
// systems verify elements concurrently.
func (e *Engine) BatchVerify(system backend.ProofSystem, vkHash [32]byte, proofs, publicInputs [][]byte) ([]bool, error) {
	log := logger.Logger().With().Str("backend", system.String()).Int("batch_size", len(proofs)).Logger()
	start := time.Now()

	if len(proofs) != len(publicInputs) {
		return nil, errors.New("proof and public input counts differ")
	}
	if len(proofs) == 0 {
		return nil, errors.New("empty batch")
	}
	if len(proofs) > e.cfg.BatchSizeLimit {
		return nil, ErrBatchTooLarge
	}
	if e.registry.Paused() {
		return nil, ErrPaused
	}

	record, err := e.registry.Lookup(vkHash)
	if err != nil {
		return nil, err
	}
	if record.ProofSystem != system {
		return nil, ErrTypeMismatch
	}
	if !record.Active {
		return nil, ErrVKInactive
	}

	var results []bool
	switch system {
	case backend.GROTH16:
		results, err = e.batchGroth16(&record, proofs, publicInputs)
	default:
		results, err = e.batchSequentialSystems(&record, proofs, publicInputs)
	}
	if err != nil {
		return nil, err
	}

	for _, ok := range results {
		if ok {
			if err := e.registry.RecordVerification(vkHash); err != nil {
				return nil, err
			}
		}
	}
	log.Debug().Dur("took", time.Since(start)).Msg("batch verifier done")
	return results, nil
}

func (e *Engine) dispatch(record *registry.Record, proofBytes, inputBytes []byte) (bool, error) {
	verify, err := e.recordVerifier(record)
	if err != nil {
		return false, err
	}
	return verify(proofBytes, inputBytes)
}

// recordVerifier parses a record's verification key once and returns a
// verifier over serialized proofs and inputs, so batches decode the key a
// single time.
func (e *Engine) recordVerifier(record *registry.Record) (func(proofBytes, inputBytes []byte) (bool, error), error) {
	switch record.ProofSystem {
	case backend.GROTH16:
		vk, err := groth16.ParseVerifyingKey(record.VerifyingKey)
		if err != nil {
			return nil, err
		}
		return func(proofBytes, inputBytes []byte) (bool, error) {
			proof, err := groth16.ParseProof(proofBytes)
			if err != nil {
				return false, err
			}
			inputs, err := groth16.ParsePublicInputs(inputBytes, vk)
			if err != nil {
				return false, err
			}
			return groth16.Verify(proof, vk, inputs)
		}, nil
	case backend.PLONK:
		vk, err := plonk.ParseVerifyingKey(record.VerifyingKey)
		if err != nil {
			return nil, err
		}
		return func(proofBytes, inputBytes []byte) (bool, error) {
			proof, err := plonk.ParseProof(proofBytes)
			if err != nil {
				return false, err
			}
			inputs, err := plonk.ParsePublicInputs(inputBytes, vk)
			if err != nil {
				return false, err
			}
			return plonk.Verify(proof, vk, inputs, e.opts...)
		}, nil
	case backend.STARK:
		vk, err := stark.ParseVerifyingKey(record.VerifyingKey)
		if err != nil {
			return nil, err
		}
		return func(proofBytes, inputBytes []byte) (bool, error) {
			proof, err := stark.ParseProof(proofBytes)
			if err != nil {
				return false, err
			}
			inputs, err := stark.ParsePublicInputs(inputBytes, vk)
			if err != nil {
				return false, err
			}
			return stark.Verify(proof, vk, inputs, e.opts...)
		}, nil
	default:
		return nil, backend.ErrUnknownProofSystem
	}
}

// batchGroth16 parses the whole batch up front, then runs the folded multi
// pairing check.
func (e *Engine) batchGroth16(record *registry.Record, proofBytes, inputBytes [][]byte) ([]bool, error) {
	vk, err := groth16.ParseVerifyingKey(record.VerifyingKey)
	if err != nil {
		return nil, err
	}
	proofs := make([]*groth16.Proof, len(proofBytes))
	witnesses := make([][]fr.Element, len(proofBytes))
	for i := range proofBytes {
		if proofs[i], err = groth16.ParseProof(proofBytes[i]); err != nil {
			return nil, err
		}
		if witnesses[i], err = groth16.ParsePublicInputs(inputBytes[i], vk); err != nil {
			return nil, err
		}
	}
	return groth16.BatchVerify(proofs, vk, witnesses, e.cfg.ChallengeHash)
}

// batchSequentialSystems verifies batch elements independently across a
// bounded worker group.
func (e *Engine) batchSequentialSystems(record *registry.Record, proofBytes, inputBytes [][]byte) ([]bool, error) {
	verify, err := e.recordVerifier(record)
	if err != nil {
		return nil, err
	}
	results := make([]bool, len(proofBytes))
	var g errgroup.Group
	g.SetLimit(e.cfg.Parallelism)
	for i := range proofBytes {
		g.Go(func() error {
			ok, err := verify(proofBytes[i], inputBytes[i])
			if err != nil {
				return err
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
