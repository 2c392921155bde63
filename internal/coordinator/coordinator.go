// Package coordinator owns the shared global hyperparameter belief of a
// batched training session and each batch's cached contribution to it. The
// shared state is "marginal divided by prior": the analytic prior factor is
// never folded in here, which lets batch contributions compose without
// double-counting it.
package coordinator

import (
	"fmt"

	"hyperprior/internal/distribution"
	"hyperprior/internal/model"
)

// ContractViolationError reports a Commit that does not line up with the
// GetConstraint call that should have preceded it. It is fatal for the
// session, not retryable.
type ContractViolationError struct {
	Batch  int
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("coordinator contract violation: batch %d: %s", e.Batch, e.Reason)
}

// BatchIndexError reports a batch index that is negative or was never
// introduced.
type BatchIndexError struct {
	Index int
	Count int
}

func (e *BatchIndexError) Error() string {
	return fmt.Sprintf("batch index %d out of range, session has %d batches", e.Index, e.Count)
}

// Round binds one GetConstraint call to the Commit that consumes its
// result. Commit for batch i must use the exact constraint handed out for
// that round.
type Round struct {
	batch      int
	batchCount int
	constraint distribution.Sequence
	seq        uint64
}

// Constraint returns the constraint computed for this round. The returned
// sequence is the caller's copy to feed into the inference program.
func (r *Round) Constraint() distribution.Sequence {
	return distribution.Clone(r.constraint)
}

type batchRecord struct {
	outputMessage distribution.Sequence
	logEvidence   float64
	trained       bool
}

// Coordinator mediates between per-batch training rounds and the one shared
// hyperparameter belief. It performs no locking: a session has a single
// logical writer (see the session package).
type Coordinator struct {
	family   distribution.Family
	features int

	shared  distribution.Sequence
	batches []batchRecord

	nextSeq uint64
	pending map[int]uint64
}

// New creates a coordinator with a uniform shared state and no batches.
func New(family distribution.Family, features int) (*Coordinator, error) {
	if features <= 0 {
		return nil, fmt.Errorf("feature count must be > 0, got %d", features)
	}
	shared, err := distribution.UniformSequence(family, features)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		family:   family,
		features: features,
		shared:   shared,
		pending:  make(map[int]uint64),
	}, nil
}

// Features returns the per-feature sequence length.
func (c *Coordinator) Features() int {
	return c.features
}

// Family returns the exponential family of the shared belief.
func (c *Coordinator) Family() distribution.Family {
	return c.family
}

// BatchCount returns the number of introduced batches. It only ever grows.
func (c *Coordinator) BatchCount() int {
	return len(c.batches)
}

// TrainedCount returns the number of batches that have committed at least
// one training round.
func (c *Coordinator) TrainedCount() int {
	var n int
	for _, b := range c.batches {
		if b.trained {
			n++
		}
	}
	return n
}

// AddBatch introduces a new untrained batch index and returns it. When the
// count grows past one and the sole existing batch has trained, its whole
// accumulated contribution is exactly the shared state; that becomes its
// output message so later constraints divide it back out.
func (c *Coordinator) AddBatch() int {
	if len(c.batches) == 1 && c.batches[0].trained {
		c.batches[0].outputMessage = distribution.Clone(c.shared)
	}
	// New validated the family, so a uniform sequence for it cannot fail.
	uniform, _ := distribution.UniformSequence(c.family, c.features)
	c.batches = append(c.batches, batchRecord{outputMessage: uniform})
	return len(c.batches) - 1
}

// SharedState returns an independent copy of the shared hyperparameter
// belief (marginal divided by prior).
func (c *Coordinator) SharedState() distribution.Sequence {
	return distribution.Clone(c.shared)
}

// OutputMessages returns copies of the cached output messages of trained
// batches, in batch order.
func (c *Coordinator) OutputMessages() []distribution.Sequence {
	out := make([]distribution.Sequence, 0, len(c.batches))
	for _, b := range c.batches {
		if b.trained {
			out = append(out, distribution.Clone(b.outputMessage))
		}
	}
	return out
}

// Evidence returns the logged evidence values of trained batches, in batch
// order, aligned with OutputMessages.
func (c *Coordinator) Evidence() []float64 {
	out := make([]float64, 0, len(c.batches))
	for _, b := range c.batches {
		if b.trained {
			out = append(out, b.logEvidence)
		}
	}
	return out
}

// GetConstraint computes the constraint for the next training round of the
// given batch: the shared state verbatim when only one batch exists,
// otherwise the shared state with this batch's own cached contribution
// divided out. The round it returns must be passed back to Commit.
func (c *Coordinator) GetConstraint(batch int) (*Round, error) {
	if batch < 0 || batch >= len(c.batches) {
		return nil, &BatchIndexError{Index: batch, Count: len(c.batches)}
	}

	var constraint distribution.Sequence
	if len(c.batches) == 1 {
		constraint = distribution.Clone(c.shared)
	} else {
		var err error
		constraint, err = distribution.Ratio(c.shared, c.batches[batch].outputMessage)
		if err != nil {
			return nil, err
		}
	}

	c.nextSeq++
	c.pending[batch] = c.nextSeq
	return &Round{
		batch:      batch,
		batchCount: len(c.batches),
		constraint: constraint,
		seq:        c.nextSeq,
	}, nil
}

// Commit replaces the shared state with the marginal produced by a
// successful inference run and, when more than one batch exists, refreshes
// the batch's output message as Ratio(newShared, constraintUsed). Any error
// leaves the coordinator exactly as it was before the call.
func (c *Coordinator) Commit(round *Round, marginal distribution.Sequence) error {
	if round == nil {
		return &ContractViolationError{Batch: -1, Reason: "commit without a prior constraint round"}
	}
	if round.batch < 0 || round.batch >= len(c.batches) {
		return &BatchIndexError{Index: round.batch, Count: len(c.batches)}
	}
	if round.batchCount != len(c.batches) {
		return &ContractViolationError{
			Batch:  round.batch,
			Reason: fmt.Sprintf("batch count changed from %d to %d since constraint", round.batchCount, len(c.batches)),
		}
	}
	seq, ok := c.pending[round.batch]
	if !ok || seq != round.seq {
		return &ContractViolationError{Batch: round.batch, Reason: "no matching constraint round"}
	}
	if len(marginal) != c.features {
		return &distribution.ArithmeticError{Op: "commit", Feature: -1, Reason: "marginal length mismatch"}
	}
	if idx := distribution.Degenerate(marginal); idx >= 0 {
		return &distribution.ArithmeticError{Op: "commit", Feature: idx, Reason: "degenerate marginal"}
	}

	var outputMessage distribution.Sequence
	if round.batchCount > 1 {
		var err error
		outputMessage, err = distribution.Ratio(marginal, round.constraint)
		if err != nil {
			return err
		}
		if idx := distribution.Degenerate(outputMessage); idx >= 0 {
			return &distribution.ArithmeticError{Op: "commit", Feature: idx, Reason: "degenerate output message"}
		}
	}

	// Point of no return: all checks passed, mutate everything at once.
	c.shared = distribution.Clone(marginal)
	if outputMessage != nil {
		c.batches[round.batch].outputMessage = outputMessage
	}
	c.batches[round.batch].trained = true
	delete(c.pending, round.batch)
	return nil
}

// RecordEvidence overwrites the logged evidence of a trained batch.
func (c *Coordinator) RecordEvidence(batch int, logEvidence float64) error {
	if batch < 0 || batch >= len(c.batches) {
		return &BatchIndexError{Index: batch, Count: len(c.batches)}
	}
	c.batches[batch].logEvidence = logEvidence
	return nil
}

// Snapshot copies the full coordinator state into its persisted form.
func (c *Coordinator) Snapshot() model.SessionState {
	state := model.SessionState{
		Family:     string(c.family),
		Features:   c.features,
		BatchCount: len(c.batches),
		Shared:     distribution.ParamsOf(c.shared),
		Batches:    make([]model.BatchState, len(c.batches)),
	}
	for i, b := range c.batches {
		state.Batches[i] = model.BatchState{
			OutputMessage: distribution.ParamsOf(b.outputMessage),
			LogEvidence:   b.logEvidence,
			Trained:       b.trained,
		}
	}
	return state
}

// Restore rebuilds a coordinator from a snapshot.
func Restore(state model.SessionState) (*Coordinator, error) {
	family := distribution.Family(state.Family)
	c, err := New(family, state.Features)
	if err != nil {
		return nil, err
	}
	if len(state.Shared) != state.Features {
		return nil, fmt.Errorf("shared state has %d features, expected %d", len(state.Shared), state.Features)
	}
	if len(state.Batches) != state.BatchCount {
		return nil, fmt.Errorf("snapshot has %d batches, header says %d", len(state.Batches), state.BatchCount)
	}
	c.shared, err = distribution.SequenceFromParams(family, state.Shared)
	if err != nil {
		return nil, err
	}
	c.batches = make([]batchRecord, len(state.Batches))
	for i, b := range state.Batches {
		msg, err := distribution.SequenceFromParams(family, b.OutputMessage)
		if err != nil {
			return nil, err
		}
		if len(msg) != state.Features {
			return nil, fmt.Errorf("batch %d output message has %d features, expected %d", i, len(msg), state.Features)
		}
		c.batches[i] = batchRecord{
			outputMessage: msg,
			logEvidence:   b.LogEvidence,
			trained:       b.Trained,
		}
	}
	return c, nil
}
