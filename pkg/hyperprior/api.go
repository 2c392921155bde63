// Package hyperprior is the embedding API for the batched hierarchical
// prior training engine: session lifecycle, training, evidence queries and
// persistence behind one client.
package hyperprior

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hyperprior/internal/distribution"
	"hyperprior/internal/inference"
	"hyperprior/internal/session"
	"hyperprior/internal/storage"
)

const defaultDBPath = "hyperprior.db"

// Options configure a client.
type Options struct {
	StoreKind string
	DBPath    string
	Logger    *zap.Logger
}

// Client owns the store and hands out serialized session handles.
type Client struct {
	store storage.Store
	log   *zap.Logger
}

// ModelKind selects one of the built-in reference conjugate models.
type ModelKind string

const (
	// ModelScale trains Gamma precision hyperparameters against
	// zero-mean observations.
	ModelScale ModelKind = "scale"
	// ModelLocation trains Gaussian location parameters against
	// known-noise observations.
	ModelLocation ModelKind = "location"
)

// SessionRequest describes a new training session. Program may be any
// compiled inference program; when nil, one of the built-in reference
// models is constructed from the remaining fields.
type SessionRequest struct {
	Program inference.Program
	Prior   distribution.Sequence

	Model    ModelKind
	Features int
	// Gamma prior (scale model).
	PriorShape float64
	PriorRate  float64
	// Gaussian prior and observation noise (location model).
	PriorMean     float64
	PriorVariance float64
	NoiseVariance float64

	RunID string
}

// Handle wraps a session behind one coarse lock, making the single-writer
// discipline safe for callers that share a handle across goroutines.
type Handle struct {
	mu sync.Mutex
	s  *session.Session
}

// New creates a client and initializes its store.
func New(ctx context.Context, opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{store: store, log: log}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// NewSession creates an untrained session.
func (c *Client) NewSession(req SessionRequest) (*Handle, error) {
	program, prior, err := resolveModel(req)
	if err != nil {
		return nil, err
	}
	s, err := session.New(session.Config{
		Program: program,
		Prior:   prior,
		RunID:   req.RunID,
		Logger:  c.log,
	})
	if err != nil {
		return nil, err
	}
	return &Handle{s: s}, nil
}

// ResumeSession restores a persisted session. The request must describe
// the same model the session was created with.
func (c *Client) ResumeSession(ctx context.Context, runID string, req SessionRequest) (*Handle, error) {
	state, ok, err := c.store.GetSession(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session %s not found", runID)
	}
	program, prior, err := resolveModel(req)
	if err != nil {
		return nil, err
	}
	s, err := session.Resume(session.Config{
		Program: program,
		Prior:   prior,
		Logger:  c.log,
	}, state)
	if err != nil {
		return nil, err
	}
	return &Handle{s: s}, nil
}

// SaveSession persists the session's current state.
func (c *Client) SaveSession(ctx context.Context, h *Handle) error {
	h.mu.Lock()
	state := h.s.Snapshot()
	h.mu.Unlock()
	return c.store.SaveSession(ctx, state)
}

// ListSessions returns the persisted session run IDs.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	return c.store.ListSessions(ctx)
}

// DeleteSession removes a persisted session.
func (c *Client) DeleteSession(ctx context.Context, runID string) error {
	return c.store.DeleteSession(ctx, runID)
}

func resolveModel(req SessionRequest) (inference.Program, distribution.Sequence, error) {
	if req.Program != nil {
		if len(req.Prior) == 0 {
			return nil, nil, fmt.Errorf("a custom program needs an explicit prior")
		}
		return req.Program, req.Prior, nil
	}
	switch req.Model {
	case ModelScale, "":
		prog, err := inference.NewScalePrior(req.Features, req.PriorShape, req.PriorRate)
		if err != nil {
			return nil, nil, err
		}
		return prog, prog.Prior(), nil
	case ModelLocation:
		prog, err := inference.NewLocationPrior(req.Features, req.PriorMean, req.PriorVariance, req.NoiseVariance)
		if err != nil {
			return nil, nil, err
		}
		return prog, prog.Prior(), nil
	default:
		return nil, nil, fmt.Errorf("unknown model kind: %s", req.Model)
	}
}

// RunID identifies the session.
func (h *Handle) RunID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s.RunID()
}

// State reports the session state machine position.
func (h *Handle) State() session.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s.State()
}

// AddBatch registers a new untrained batch.
func (h *Handle) AddBatch() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s.AddBatch()
}

// Train runs one training round for a batch.
func (h *Handle) Train(ctx context.Context, batch int, data [][]float64, iterations int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s.Train(ctx, batch, data, iterations)
}

// TrainAll cycles over all datasets for the given number of passes and
// returns per-pass maximum shared-state deltas.
func (h *Handle) TrainAll(ctx context.Context, datasets [][][]float64, passes, iterations int) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s.TrainAll(ctx, datasets, passes, iterations)
}

// Evidence returns the corrected total log evidence.
func (h *Handle) Evidence(ctx context.Context) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s.Evidence(ctx)
}

// PosteriorMoment is one feature's posterior summary.
type PosteriorMoment struct {
	Feature  int
	Mean     float64
	Variance float64
}

// Posterior reports the shared posterior moments per feature.
func (h *Handle) Posterior() ([]PosteriorMoment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	posterior, err := h.s.CurrentSharedPosterior()
	if err != nil {
		return nil, err
	}
	moments := make([]PosteriorMoment, len(posterior))
	for i, d := range posterior {
		mean, variance := d.Moments()
		moments[i] = PosteriorMoment{Feature: i, Mean: mean, Variance: variance}
	}
	return moments, nil
}
