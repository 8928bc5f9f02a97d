package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/did-method-hcs/go-didevent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSONL(t *testing.T, buf *bytes.Buffer, entries ...*didevent.LogEntry) {
	t.Helper()
	for _, le := range entries {
		b, err := json.Marshal(le)
		require.NoError(t, err)
		buf.Write(b)
		buf.WriteByte('\n')
	}
}

func newTestImporter(store *GormEventStore, source string) *Importer {
	return NewImporter(store, source, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestImporter_Run(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	didA, didB := testDID(1), testDID(2)
	a1 := createKey(t, didA, 1, testTime(0))
	b1 := createKey(t, didB, 1, testTime(1))
	a2 := createKey(t, didA, 2, testTime(2))
	a3 := revokeKey(t, didA, 1, testTime(3))
	b2 := revokeKey(t, didB, 1, testTime(4))

	tampered := *createKey(t, didB, 2, testTime(5))
	tampered.CreatedAt = string(testTime(6))

	var buf bytes.Buffer
	writeJSONL(t, &buf, a1, b1, a2)
	buf.WriteString("{not json\n")
	buf.WriteString("\n")
	writeJSONL(t, &buf, &tampered, a3, b2)

	stats, err := newTestImporter(store, "export.jsonl").Run(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Imported)
	assert.Equal(t, int64(2), stats.Rejected)
	assert.Equal(t, int64(0), stats.Duplicates)
	assert.Equal(t, int64(8), stats.Cursor)

	entries, err := store.GetEntries(ctx, didA)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, a1.CID, entries[0].CID)
	assert.Equal(t, a2.CID, entries[1].CID)
	assert.Equal(t, a3.CID, entries[2].CID)

	entries, err = store.GetEntries(ctx, didB)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, b1.CID, entries[0].CID)
	assert.Equal(t, b2.CID, entries[1].CID)

	cursor, err := store.GetCursor(ctx, "export.jsonl")
	require.NoError(t, err)
	assert.Equal(t, int64(8), cursor)
}

func TestImporter_Resume(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	did := testDID(1)
	e1 := createKey(t, did, 1, testTime(0))
	e2 := createKey(t, did, 2, testTime(1))
	e3 := createKey(t, did, 3, testTime(2))

	var first bytes.Buffer
	writeJSONL(t, &first, e1, e2)
	stats, err := newTestImporter(store, "export.jsonl").Run(ctx, &first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Imported)

	// the export has grown since the previous run; only the new line is processed
	var second bytes.Buffer
	writeJSONL(t, &second, e1, e2, e3)
	stats, err = newTestImporter(store, "export.jsonl").Run(ctx, &second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Imported)
	assert.Equal(t, int64(0), stats.Duplicates)
	assert.Equal(t, int64(3), stats.Cursor)

	entries, err := store.GetEntries(ctx, did)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestImporter_Duplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	did := testDID(1)
	e1 := createKey(t, did, 1, testTime(0))
	e2 := createKey(t, did, 2, testTime(1))
	other := createKey(t, testDID(2), 1, testTime(2))

	require.NoError(t, store.AppendEntries(ctx, []*didevent.LogEntry{e1}))

	var buf bytes.Buffer
	writeJSONL(t, &buf, e1, e2, other)

	stats, err := newTestImporter(store, "mirror.jsonl").Run(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Imported)
	assert.Equal(t, int64(1), stats.Duplicates)
	assert.Equal(t, int64(0), stats.Rejected)
	assert.Equal(t, int64(3), stats.Cursor)

	entries, err := store.GetEntries(ctx, did)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, e2.CID, entries[1].CID)
}

func TestImporter_ManyEntriesPerDID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var expected []string
	var buf bytes.Buffer
	for i := 1; i <= 50; i++ {
		le := createKey(t, testDID(0), i, testTime(i))
		expected = append(expected, le.CID)
		writeJSONL(t, &buf, le, createKey(t, testDID(i), 1, testTime(i)))
	}

	stats, err := newTestImporter(store, "bulk.jsonl").Run(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Imported)
	assert.Equal(t, int64(100), stats.Cursor)

	entries, err := store.GetEntries(ctx, testDID(0))
	require.NoError(t, err)
	require.Len(t, entries, len(expected))
	for i, le := range entries {
		assert.Equal(t, expected[i], le.CID)
	}

	count, err := store.CountDIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(51), count)
}

func TestImporter_Canceled(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	writeJSONL(t, &buf, createKey(t, testDID(1), 1, testTime(0)))

	_, err := newTestImporter(store, "export.jsonl").Run(ctx, &buf)
	assert.Error(t, err)
}

func TestImporter_BlockedDIDWaitsForRelease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	did := testDID(1)

	e1 := createKey(t, did, 1, testTime(0))
	e2 := createKey(t, did, 2, testTime(1))
	var buf bytes.Buffer
	writeJSONL(t, &buf, e1, e2)

	imp := newTestImporter(store, "export.jsonl")
	infl := newInFlight(0)
	out := make(chan sequencedEntry, 10)
	flushCh := make(chan struct{}, 10)
	errCh := make(chan error, 1)
	go func() {
		errCh <- imp.readLines(ctx, &buf, 0, infl, out, flushCh)
	}()

	first := <-out
	assert.Equal(t, e1.CID, first.Entry.CID)

	// one flush request, then the reader sleeps until a release
	require.Eventually(t, func() bool { return len(flushCh) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, flushCh, 1)
	assert.Empty(t, out)

	infl.release(did, first.Seq)
	select {
	case second := <-out:
		assert.Equal(t, e2.CID, second.Entry.CID)
	case <-time.After(time.Second):
		t.Fatal("second entry not forwarded after release")
	}
	require.NoError(t, <-errCh)
	assert.Len(t, flushCh, 1)
}
