package storage

import (
	"encoding/json"
	"errors"

	"hyperprior/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// EncodeSession stamps the current format versions and serializes the
// session state.
func EncodeSession(s model.SessionState) ([]byte, error) {
	s.SchemaVersion = CurrentSchemaVersion
	s.CodecVersion = CurrentCodecVersion
	return json.Marshal(s)
}

func DecodeSession(data []byte) (model.SessionState, error) {
	var state model.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.SessionState{}, err
	}
	if err := checkVersion(state.VersionedRecord); err != nil {
		return model.SessionState{}, err
	}
	return state, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
