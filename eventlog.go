package didevent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/ipfs/go-cid"
)

// LogEntry is one published event in the history of a DID document, as replayed from the
// ledger or from an archive.
type LogEntry struct {
	DID       string    `json:"did"`
	Operation Operation `json:"operation"`
	// base64 payload, exactly as returned by Event.Base64
	Event     string `json:"event"`
	CID       string `json:"cid"`
	CreatedAt string `json:"createdAt"`
}

// raw codec, sha2-256 multihash
func computeCID(b []byte) cid.Cid {
	cidBuilder := cid.V1Builder{Codec: 0x55, MhType: 0x12, MhLength: 0}
	c, err := cidBuilder.Sum(b)
	if err != nil {
		return cid.Undef
	}
	return c
}

// the bytes addressed by an entry's CID: everything in the entry except the CID itself
type logMessage struct {
	Timestamp string    `json:"timestamp"`
	Operation Operation `json:"operation"`
	DID       string    `json:"did"`
	Event     string    `json:"event"`
}

// ComputeCID returns the content identifier of the entry's message.
func (le *LogEntry) ComputeCID() cid.Cid {
	b, err := json.Marshal(logMessage{
		Timestamp: le.CreatedAt,
		Operation: le.Operation,
		DID:       le.DID,
		Event:     le.Event,
	})
	if err != nil {
		return cid.Undef
	}
	return computeCID(b)
}

func NewLogEntry(ev Event, createdAt syntax.Datetime) LogEntry {
	le := LogEntry{
		DID:       EventDID(ev),
		Operation: ev.Operation(),
		Event:     ev.Base64(),
		CreatedAt: createdAt.String(),
	}
	le.CID = le.ComputeCID().String()
	return le
}

// ParseEvent decodes the entry's payload into a typed event.
func (le *LogEntry) ParseEvent() (Event, error) {
	return ParseEventBase64(le.Operation, le.Event)
}

// Checks self-consistency of this log entry in isolation. Does not access other context or log entries.
func (le *LogEntry) Validate() error {
	if _, err := syntax.ParseDID(le.DID); err != nil {
		return fmt.Errorf("log entry DID: %w", err)
	}
	if _, err := syntax.ParseDatetime(le.CreatedAt); err != nil {
		return fmt.Errorf("log entry timestamp: %w", err)
	}
	if le.ComputeCID().String() != le.CID {
		return fmt.Errorf("log entry CID didn't match computed CID")
	}
	ev, err := le.ParseEvent()
	if err != nil {
		return err
	}
	if EventDID(ev) != le.DID {
		return fmt.Errorf("log entry DID didn't match event subject %s", EventDID(ev))
	}
	return nil
}

// Verifies the history of a single DID: every entry is valid in isolation, all belong to the
// same DID, and no event appears twice. Ordering between events is not checked.
func VerifyEventLog(entries []LogEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("can't verify empty event log")
	}

	did := entries[0].DID
	store := NewMemEventStore()
	ctx := context.Background()

	for i := range entries {
		if entries[i].DID != did {
			return fmt.Errorf("inconsistent DID")
		}
		if err := CommitEntries(ctx, store, []*LogEntry{&entries[i]}); err != nil {
			return err
		}
	}
	return nil
}

// ReplayEventLog decodes every entry, in order, into typed events.
func ReplayEventLog(entries []*LogEntry) ([]Event, error) {
	events := make([]Event, 0, len(entries))
	for _, le := range entries {
		ev, err := le.ParseEvent()
		if err != nil {
			return nil, fmt.Errorf("replaying %s: %w", le.CID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
