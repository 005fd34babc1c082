package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	recordFormatVersionCurrent = 1
	recordFormatVersionV1      = 1
)

// ErrRecordCorrupt is returned when a stored blob cannot be decoded.
var ErrRecordCorrupt = errors.New("session record corrupt")

type recordEnvelope struct {
	Version int     `json:"v"`
	Record  *Record `json:"record"`
}

// EncodeRecord serializes r into the current envelope version. Records that fail
// [Record.Validate] are never encoded.
func EncodeRecord(r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	stored := r.Clone()
	stored.ExpiresAt = stored.ExpiresAt.UTC()
	return json.Marshal(recordEnvelope{Version: recordFormatVersionCurrent, Record: stored})
}

// DecodeRecord parses a stored envelope. Unknown keys are ignored.
func DecodeRecord(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrRecordCorrupt)
	}

	var env recordEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}

	switch env.Version {
	case recordFormatVersionV1:
	default:
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrRecordCorrupt, env.Version)
	}

	if env.Record == nil {
		return nil, fmt.Errorf("%w: missing record", ErrRecordCorrupt)
	}
	if err := env.Record.Validate(); err != nil {
		return nil, err
	}
	env.Record.ExpiresAt = env.Record.ExpiresAt.UTC()

	return env.Record, nil
}
