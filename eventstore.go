package didevent

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// May be returned by AppendEntries (as a wrapped error)
	ErrDuplicateEntry = errors.New("duplicate event log entry")

	// May be returned by CommitEntries (as a wrapped error)
	ErrInvalidEntry = errors.New("invalid event log entry")
)

type EventStore interface {
	// GetEntry returns a single entry of a DID's history.
	// Returns nil if the entry does not exist.
	GetEntry(ctx context.Context, did string, cid string) (*LogEntry, error)

	// GetEntries returns the full history of a DID, in append order.
	// Returns nil or empty slice if the DID does not exist.
	GetEntries(ctx context.Context, did string) ([]*LogEntry, error)

	// AppendEntries atomically appends a batch of entries.
	// All entries in the batch are appended, or none are (all-or-nothing).
	// An entry whose (DID, CID) is already stored fails the batch with ErrDuplicateEntry.
	AppendEntries(ctx context.Context, entries []*LogEntry) error
}

// CommitEntries validates each entry in isolation and then appends the batch to the store.
// Errors wrapping ErrInvalidEntry indicate the batch is *definitely* invalid.
// Other errors are store-related and *may* be resolved by retrying.
func CommitEntries(ctx context.Context, store EventStore, entries []*LogEntry) error {
	for _, le := range entries {
		if err := le.Validate(); err != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrInvalidEntry, le.DID, le.CID, err)
		}
	}
	return store.AppendEntries(ctx, entries)
}

// MemEventStore is an in-memory implementation of the EventStore interface
type MemEventStore struct {
	history map[string][]*LogEntry // DID -> entries in append order
	seen    map[string]bool        // DID + " " + CID
	lock    sync.RWMutex
}

var _ EventStore = (*MemEventStore)(nil)

func NewMemEventStore() *MemEventStore {
	return &MemEventStore{
		history: make(map[string][]*LogEntry),
		seen:    make(map[string]bool),
	}
}

func entryKey(did, cid string) string {
	return did + " " + cid
}

func (store *MemEventStore) GetEntry(ctx context.Context, did string, cid string) (*LogEntry, error) {
	store.lock.RLock()
	defer store.lock.RUnlock()

	for _, le := range store.history[did] {
		if le.CID == cid {
			return le, nil
		}
	}
	return nil, nil
}

func (store *MemEventStore) GetEntries(ctx context.Context, did string) ([]*LogEntry, error) {
	store.lock.RLock()
	defer store.lock.RUnlock()

	entries := store.history[did]
	out := make([]*LogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (store *MemEventStore) AppendEntries(ctx context.Context, entries []*LogEntry) error {
	store.lock.Lock()
	defer store.lock.Unlock()

	// Check the whole batch before making any modifications
	batch := make(map[string]bool, len(entries))
	for _, le := range entries {
		k := entryKey(le.DID, le.CID)
		if store.seen[k] || batch[k] {
			return fmt.Errorf("%w: %s %s", ErrDuplicateEntry, le.DID, le.CID)
		}
		batch[k] = true
	}

	for _, le := range entries {
		cp := *le
		store.history[le.DID] = append(store.history[le.DID], &cp)
		store.seen[entryKey(le.DID, le.CID)] = true
	}
	return nil
}
