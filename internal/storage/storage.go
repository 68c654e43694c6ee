// Package storage persists the client's local state: the session and the progress marker.
// Values are plain JSON documents overwritten wholesale.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/victornm/quizclient/internal/errors"
)

type Store interface {
	// Get returns the value stored under key, or an error with errors.CodeNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

func notFound(key string) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("storage: key not found: %s", key))
}

// GetJSON decodes the value stored under key into v. A value that is not valid JSON for v
// is reported with errors.CodeInvalidArgument.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("storage: decode %s", key),
			errors.WithCause(err),
		)
	}

	return nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}

	return s.Set(ctx, key, b)
}
