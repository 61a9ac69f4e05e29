package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"timekeeper/internal/apperr"
)

const (
	// KeyAlarms holds the alarm collection snapshot.
	KeyAlarms = "alarm-clock-alarms"
	// KeyTimers holds the timer collection snapshot.
	KeyTimers = "timer-page-timers"
)

// ErrNotFound indicates absent key.
var ErrNotFound = errors.New("not found")

// Store persists whole-collection snapshots under string keys.
// Params: load/save operations keyed by collection name.
// Returns: backend persistence behavior.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Close() error
}

// DecodeCollection reads one collection snapshot and reports failures.
// Params: store and collection key.
// Returns: decoded items, empty slice for absent key, or persistence error.
func DecodeCollection[T any](ctx context.Context, st Store, key string) ([]T, error) {
	body, err := st.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []T{}, nil
		}
		return nil, apperr.Mark(apperr.KindPersistence, fmt.Errorf("load %s: %w", key, err))
	}
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, apperr.Mark(apperr.KindPersistence, fmt.Errorf("decode %s: %w", key, err))
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// SaveCollection encodes and writes the full collection snapshot.
// Params: store, collection key, and items in display order.
// Returns: persistence error; callers log and keep in-memory state.
func SaveCollection[T any](ctx context.Context, st Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	body, err := json.Marshal(items)
	if err != nil {
		return apperr.Mark(apperr.KindPersistence, fmt.Errorf("encode %s: %w", key, err))
	}
	if err := st.Save(ctx, key, body); err != nil {
		return apperr.Mark(apperr.KindPersistence, fmt.Errorf("save %s: %w", key, err))
	}
	return nil
}
