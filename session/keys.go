package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used inside a session.
const (
	KeyAuth         = "auth"
	KeyRedirectPath = "redirectPath"
	KeyLoginState   = "loginState"
)

// DefaultRedirectPath is returned by [TakeRedirectPath] when nothing was saved.
const DefaultRedirectPath = "/"

// LoadRecord reads and decodes the auth record. It returns [ErrNotFound] when the
// session has no record, and [ErrRecordCorrupt] or [ErrRecordInvalid] when the
// stored blob cannot be trusted.
func LoadRecord(ctx context.Context, store Store, sessionID string) (*Record, error) {
	data, err := store.Get(ctx, sessionID, KeyAuth)
	if err != nil {
		return nil, err
	}
	return DecodeRecord(data)
}

// SaveRecord encodes and stores r under the auth key.
func SaveRecord(ctx context.Context, store Store, sessionID string, r *Record) error {
	data, err := EncodeRecord(r)
	if err != nil {
		return err
	}
	return store.Set(ctx, sessionID, KeyAuth, data)
}

// ClearRecord removes the auth record.
func ClearRecord(ctx context.Context, store Store, sessionID string) error {
	return store.Clear(ctx, sessionID, KeyAuth)
}

// SaveRedirectPath remembers where to send the user after login.
func SaveRedirectPath(ctx context.Context, store Store, sessionID, path string) error {
	return store.Set(ctx, sessionID, KeyRedirectPath, []byte(path))
}

// TakeRedirectPath returns the saved post-login path and clears it. Missing values
// yield [DefaultRedirectPath]; backend errors are returned alongside the default.
func TakeRedirectPath(ctx context.Context, store Store, sessionID string) (string, error) {
	data, err := store.Get(ctx, sessionID, KeyRedirectPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DefaultRedirectPath, nil
		}
		return DefaultRedirectPath, err
	}
	if err := store.Clear(ctx, sessionID, KeyRedirectPath); err != nil {
		return string(data), err
	}
	if len(data) == 0 {
		return DefaultRedirectPath, nil
	}
	return string(data), nil
}

// SaveLoginState stores the state of a pending authorization-code round trip.
func SaveLoginState(ctx context.Context, store Store, sessionID string, state LoginState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return store.Set(ctx, sessionID, KeyLoginState, data)
}

// TakeLoginState returns the pending login state and clears it, so a state value
// can be redeemed once.
func TakeLoginState(ctx context.Context, store Store, sessionID string) (LoginState, error) {
	data, err := store.Get(ctx, sessionID, KeyLoginState)
	if err != nil {
		return LoginState{}, err
	}
	if err := store.Clear(ctx, sessionID, KeyLoginState); err != nil {
		return LoginState{}, err
	}

	var state LoginState
	if err := json.Unmarshal(data, &state); err != nil {
		return LoginState{}, fmt.Errorf("%w: login state: %v", ErrRecordCorrupt, err)
	}
	return state, nil
}
