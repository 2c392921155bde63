package hyperprior

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"hyperprior/internal/session"
)

var rows = [][]float64{
	{0.5, -1.2},
	{-0.8, 0.4},
	{1.1, 0.9},
}

func newMemoryClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(context.Background(), Options{StoreKind: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientTrainEvidencePosterior(t *testing.T) {
	c := newMemoryClient(t)
	ctx := context.Background()

	h, err := c.NewSession(SessionRequest{Model: ModelScale, Features: 2, PriorShape: 1, PriorRate: 1})
	require.NoError(t, err)
	require.NotEmpty(t, h.RunID())
	require.Equal(t, session.StateUninitialized, h.State())

	_, err = h.TrainAll(ctx, [][][]float64{rows, rows}, 2, 1)
	require.NoError(t, err)
	require.Equal(t, session.StateTrained, h.State())

	total, err := h.Evidence(ctx)
	require.NoError(t, err)
	require.NotZero(t, total)

	moments, err := h.Posterior()
	require.NoError(t, err)
	require.Len(t, moments, 2)
	for _, m := range moments {
		require.Positive(t, m.Mean)
		require.Positive(t, m.Variance)
	}
}

func TestClientSaveResume(t *testing.T) {
	c := newMemoryClient(t)
	ctx := context.Background()

	req := SessionRequest{Model: ModelScale, Features: 2, PriorShape: 1.5, PriorRate: 0.5, RunID: "run-a"}
	h, err := c.NewSession(req)
	require.NoError(t, err)
	_, err = h.TrainAll(ctx, [][][]float64{rows, rows}, 2, 1)
	require.NoError(t, err)
	want, err := h.Evidence(ctx)
	require.NoError(t, err)

	require.NoError(t, c.SaveSession(ctx, h))
	ids, err := c.ListSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"run-a"}, ids)

	resumed, err := c.ResumeSession(ctx, "run-a", req)
	require.NoError(t, err)
	got, err := resumed.Evidence(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, c.DeleteSession(ctx, "run-a"))
	_, err = c.ResumeSession(ctx, "run-a", req)
	require.Error(t, err)
}

func TestClientLocationModel(t *testing.T) {
	c := newMemoryClient(t)
	ctx := context.Background()

	h, err := c.NewSession(SessionRequest{
		Model:         ModelLocation,
		Features:      2,
		PriorVariance: 2,
		NoiseVariance: 0.5,
	})
	require.NoError(t, err)
	require.NoError(t, h.Train(ctx, 0, rows, 1))

	total, err := h.Evidence(ctx)
	require.NoError(t, err)
	require.Less(t, total, 0.0)
}

func TestClientRejectsBadRequests(t *testing.T) {
	c := newMemoryClient(t)

	_, err := c.NewSession(SessionRequest{Model: "mystery", Features: 2})
	require.Error(t, err)

	_, err = c.NewSession(SessionRequest{Model: ModelScale, Features: 0, PriorShape: 1, PriorRate: 1})
	require.Error(t, err)
}
