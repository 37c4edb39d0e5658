package storage

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"go.uber.org/multierr"
)

// ErrQuotaExceeded is returned by backends that refuse a write because of its size.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

func isQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// writeWithReducedRetry writes the full snapshot and, when the backend reports a quota
// failure, retries exactly once with the reduced payload.
func writeWithReducedRetry(state cart.State, quota func(error) bool, write func(payload []byte) error) error {
	payload, err := cart.EncodeSnapshot(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = write(payload)
	if err == nil || !quota(err) {
		return err
	}

	reduced, encErr := cart.EncodeSnapshot(cart.Reduce(state, ReducedItemCap))
	if encErr != nil {
		return fmt.Errorf("encode reduced snapshot: %w", encErr)
	}
	if retryErr := write(reduced); retryErr != nil {
		return fmt.Errorf("reduced write after %v: %w", err, retryErr)
	}
	return nil
}

// decodeOrClear parses stored data; corrupt data is removed and reported as "nothing
// stored". The error is non-nil only when removing the corrupt entry failed as well.
func decodeOrClear(data []byte, clear func() error) (*cart.State, error) {
	state, err := cart.DecodeSnapshot(data)
	if err == nil {
		return state, nil
	}
	if clearErr := clear(); clearErr != nil {
		return nil, multierr.Combine(err, clearErr)
	}
	return nil, nil
}

func storageError(op, backend string, err error) error {
	if err == nil {
		return nil
	}
	return &cart.StorageError{Op: op, Backend: backend, Err: err}
}
