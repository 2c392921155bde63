// Package session sequences training rounds over batches of data against a
// shared hierarchical prior. A session is single-writer: callers that need
// concurrent access must serialize externally (the pkg facade wraps each
// session in one coarse lock).
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hyperprior/internal/coordinator"
	"hyperprior/internal/distribution"
	"hyperprior/internal/evidence"
	"hyperprior/internal/inference"
	"hyperprior/internal/model"
)

// State describes how far a session has progressed.
type State string

const (
	StateUninitialized    State = "uninitialized"
	StatePartiallyTrained State = "partially_trained"
	StateTrained          State = "trained"
)

// InferenceDivergedError wraps a failed inference run. The session commits
// nothing when it is raised.
type InferenceDivergedError struct {
	Batch int
	Err   error
}

func (e *InferenceDivergedError) Error() string {
	return fmt.Sprintf("inference diverged on batch %d: %v", e.Batch, e.Err)
}

func (e *InferenceDivergedError) Unwrap() error {
	return e.Err
}

// Config assembles a session. Prior is the analytic prior over the shared
// hyperparameters; it is only used for posterior reporting, never folded
// into the shared state.
type Config struct {
	Program inference.Program
	Prior   distribution.Sequence
	RunID   string
	Logger  *zap.Logger
}

// Session is the training orchestrator for one model.
type Session struct {
	runID      string
	program    inference.Program
	prior      distribution.Sequence
	coord      *coordinator.Coordinator
	accountant *evidence.Accountant
	log        *zap.Logger
}

// New creates an untrained session with no batches.
func New(cfg Config) (*Session, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	coord, err := coordinator.New(cfg.Prior[0].Family(), len(cfg.Prior))
	if err != nil {
		return nil, err
	}
	return build(cfg, coord), nil
}

// Resume rebuilds a session from a persisted snapshot. The config's prior
// and program must describe the same model the snapshot was taken from.
func Resume(cfg Config, state model.SessionState) (*Session, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	coord, err := coordinator.Restore(state)
	if err != nil {
		return nil, err
	}
	if coord.Features() != len(cfg.Prior) {
		return nil, fmt.Errorf("snapshot has %d features, prior has %d", coord.Features(), len(cfg.Prior))
	}
	if coord.Family() != cfg.Prior[0].Family() {
		return nil, fmt.Errorf("snapshot family %s, prior family %s", coord.Family(), cfg.Prior[0].Family())
	}
	if cfg.RunID == "" {
		cfg.RunID = state.RunID
	}
	return build(cfg, coord), nil
}

func validateConfig(cfg Config) error {
	if cfg.Program == nil {
		return fmt.Errorf("inference program is required")
	}
	if len(cfg.Prior) == 0 {
		return fmt.Errorf("analytic prior is required")
	}
	for i, d := range cfg.Prior {
		if d.Family() != cfg.Prior[0].Family() {
			return &distribution.ArithmeticError{Op: "config", Feature: i, Reason: "mixed prior families"}
		}
		if d.IsDegenerate() {
			return &distribution.ArithmeticError{Op: "config", Feature: i, Reason: "degenerate prior"}
		}
	}
	return nil
}

func build(cfg Config, coord *coordinator.Coordinator) *Session {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Session{
		runID:      runID,
		program:    cfg.Program,
		prior:      distribution.Clone(cfg.Prior),
		coord:      coord,
		accountant: &evidence.Accountant{Program: cfg.Program},
		log:        log.With(zap.String("run_id", runID)),
	}
}

// RunID identifies this session in logs and storage.
func (s *Session) RunID() string {
	return s.runID
}

// State derives the session state from its batch records.
func (s *Session) State() State {
	trained := s.coord.TrainedCount()
	switch {
	case trained == 0:
		return StateUninitialized
	case trained < s.coord.BatchCount():
		return StatePartiallyTrained
	default:
		return StateTrained
	}
}

// BatchCount returns the number of introduced batches.
func (s *Session) BatchCount() int {
	return s.coord.BatchCount()
}

// AddBatch registers a new untrained batch index. It is permitted while a
// session is uninitialized or fully trained, not in the middle of a
// partially trained schedule.
func (s *Session) AddBatch() (int, error) {
	if st := s.State(); st == StatePartiallyTrained {
		return 0, &coordinator.ContractViolationError{
			Batch:  s.coord.BatchCount(),
			Reason: "cannot add a batch to a partially trained session",
		}
	}
	idx := s.coord.AddBatch()
	s.log.Debug("batch added", zap.Int("batch", idx))
	return idx, nil
}

// Train runs one training round for a batch and commits the result. The
// batch index must be dense: an existing index retrains that batch, the
// next unused index introduces it. On any failure nothing is mutated.
func (s *Session) Train(ctx context.Context, batch int, data [][]float64, iterations int) error {
	if batch < 0 || batch > s.coord.BatchCount() {
		return &coordinator.BatchIndexError{Index: batch, Count: s.coord.BatchCount()}
	}
	if batch == s.coord.BatchCount() {
		s.coord.AddBatch()
	}

	round, err := s.coord.GetConstraint(batch)
	if err != nil {
		return err
	}
	constraint := round.Constraint()

	marginal, logEvidence, err := s.program.Run(ctx, data, constraint, iterations)
	if err != nil {
		return &InferenceDivergedError{Batch: batch, Err: err}
	}

	if err := s.coord.Commit(round, marginal); err != nil {
		return err
	}
	if err := s.coord.RecordEvidence(batch, logEvidence); err != nil {
		return err
	}

	s.log.Debug("batch trained",
		zap.Int("batch", batch),
		zap.Int("rows", len(data)),
		zap.Int("iterations", iterations),
		zap.Float64("log_evidence", logEvidence),
	)
	return nil
}

// TrainAll cycles Train over every dataset for the given number of passes
// and reports the largest shared-state parameter delta seen in each pass.
// Dataset i feeds batch i; missing batches are introduced on the first
// pass.
func (s *Session) TrainAll(ctx context.Context, datasets [][][]float64, passes, iterations int) ([]float64, error) {
	if passes <= 0 {
		return nil, fmt.Errorf("passes must be > 0, got %d", passes)
	}
	deltas := make([]float64, 0, passes)
	for pass := 0; pass < passes; pass++ {
		before := s.coord.SharedState()
		for batch, data := range datasets {
			if err := s.Train(ctx, batch, data, iterations); err != nil {
				return deltas, err
			}
		}
		delta := distribution.MaxParamDelta(before, s.coord.SharedState())
		deltas = append(deltas, delta)
		s.log.Debug("pass complete", zap.Int("pass", pass), zap.Float64("max_delta", delta))
	}
	return deltas, nil
}

// Evidence returns the corrected total log evidence of everything trained
// so far. The correction is recomputed from the current output messages on
// every call.
func (s *Session) Evidence(ctx context.Context) (float64, error) {
	total, err := s.accountant.TotalCorrectedEvidence(ctx, s.coord.SharedState(), s.coord.OutputMessages(), s.coord.Evidence())
	if err != nil {
		return 0, err
	}
	s.log.Debug("evidence queried", zap.Float64("total", total))
	return total, nil
}

// ReplicateContribution exposes the correction term on its own, computed
// from the current trained output messages.
func (s *Session) ReplicateContribution() (float64, error) {
	return evidence.ReplicateContribution(s.coord.OutputMessages())
}

// EmptyBatchEvidence exposes the shared factor's standalone evidence
// contribution against the current shared state.
func (s *Session) EmptyBatchEvidence() (float64, error) {
	return s.accountant.EmptyBatchEvidence(s.coord.SharedState())
}

// CurrentSharedPosterior reports the shared hyperparameter posterior with
// the analytic prior folded back in.
func (s *Session) CurrentSharedPosterior() (distribution.Sequence, error) {
	return distribution.Product(s.coord.SharedState(), s.prior)
}

// SharedState returns a copy of the marginal-divided-by-prior belief.
func (s *Session) SharedState() distribution.Sequence {
	return s.coord.SharedState()
}

// OutputMessages returns copies of the trained batches' cached output
// messages.
func (s *Session) OutputMessages() []distribution.Sequence {
	return s.coord.OutputMessages()
}

// Snapshot captures the persisted form of the session.
func (s *Session) Snapshot() model.SessionState {
	state := s.coord.Snapshot()
	state.RunID = s.runID
	return state
}
