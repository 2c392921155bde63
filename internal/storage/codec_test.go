package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	payload, err := EncodeSession(sampleState("run-1"))
	require.NoError(t, err)

	state, err := DecodeSession(payload)
	require.NoError(t, err)
	require.Equal(t, "run-1", state.RunID)
	require.Equal(t, CurrentSchemaVersion, state.SchemaVersion)
	require.Equal(t, CurrentCodecVersion, state.CodecVersion)
	require.Len(t, state.Batches, 1)
	require.True(t, state.Batches[0].Trained)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	in := sampleState("run-1")
	payload, err := EncodeSession(in)
	require.NoError(t, err)

	// Fake a record written by a future format.
	future := string(payload)
	future = `{"schema_version":99,` + future[len(`{"schema_version":1,`):]

	_, err = DecodeSession([]byte(future))
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeSession([]byte("{not json"))
	require.Error(t, err)
}
