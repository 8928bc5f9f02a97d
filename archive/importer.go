package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/did-method-hcs/go-didevent"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	// maximum number of entries appended in one transaction
	batchSize = 500

	// partial batches are committed at least this often
	commitInterval = 100 * time.Millisecond

	// how often the resume cursor is persisted while an import is running
	cursorPersistInterval = 1 * time.Second

	maxLineSize = 1 << 20
)

// ImportStats summarizes a completed (or aborted) import run.
type ImportStats struct {
	Imported   int64
	Rejected   int64
	Duplicates int64
	// last line number known to be fully processed
	Cursor int64
}

type sequencedEntry struct {
	Seq   int64
	Entry *didevent.LogEntry
}

// Importer loads a JSON-lines export of event log entries (one didevent.LogEntry per line)
// into the archive. Entries are validated concurrently and committed in batches; entries of
// the same DID are never in flight together, so each DID's history keeps file order.
//
// The line number of the last fully processed line is persisted per source, and a later run
// over the same source resumes after it.
type Importer struct {
	store      *GormEventStore
	source     string
	numWorkers int
	logger     *slog.Logger

	imported   atomic.Int64
	rejected   atomic.Int64
	duplicates atomic.Int64
}

func NewImporter(store *GormEventStore, source string, numWorkers int, logger *slog.Logger) *Importer {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Importer{
		store:      store,
		source:     source,
		numWorkers: numWorkers,
		logger:     logger.With("component", "importer", "source", source),
	}
}

// Run imports every line of r after the persisted cursor, and returns once all of them are
// committed or rejected.
func (imp *Importer) Run(ctx context.Context, r io.Reader) (ImportStats, error) {
	cursor, err := imp.store.GetCursor(ctx, imp.source)
	if err != nil {
		return ImportStats{}, err
	}
	imp.logger.Info("starting import", "cursor", cursor)

	infl := newInFlight(cursor)

	/*

		readLines parses lines into entries (in line order) and, before forwarding each one,
		makes sure no other entry for the same DID is in flight.

		validateWorker threads check each entry in isolation; invalid entries are dropped here.

		commitWorker appends validated entries in batches and releases them from inFlight.

	*/

	entries := make(chan sequencedEntry, 100)
	validated := make(chan sequencedEntry, 1000)
	flushCh := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)

	var workers errgroup.Group
	for range imp.numWorkers {
		workers.Go(func() error {
			return imp.validateWorker(gctx, entries, validated, infl)
		})
	}
	g.Go(func() error {
		err := workers.Wait()
		close(validated)
		return err
	})

	g.Go(func() error {
		return imp.commitWorker(gctx, validated, infl, flushCh)
	})

	g.Go(func() error {
		defer close(entries)
		return imp.readLines(gctx, r, cursor, infl, entries, flushCh)
	})

	stopPersist := make(chan struct{})
	persistDone := make(chan struct{})
	go func() {
		defer close(persistDone)
		ticker := time.NewTicker(cursorPersistInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPersist:
				return
			case <-ticker.C:
				imp.persistCursor(ctx, infl.resumeCursor())
			}
		}
	}()

	err = g.Wait()
	close(stopPersist)
	<-persistDone

	final := infl.resumeCursor()
	if perr := imp.store.PutCursor(ctx, imp.source, final); perr != nil && err == nil {
		err = fmt.Errorf("failed to persist cursor: %w", perr)
	}
	ImportCursorGauge.Record(ctx, final)

	stats := ImportStats{
		Imported:   imp.imported.Load(),
		Rejected:   imp.rejected.Load(),
		Duplicates: imp.duplicates.Load(),
		Cursor:     final,
	}
	imp.logger.Info("import finished", "imported", stats.Imported, "rejected", stats.Rejected, "duplicates", stats.Duplicates, "cursor", stats.Cursor)
	return stats, err
}

func (imp *Importer) persistCursor(ctx context.Context, cursor int64) {
	if err := imp.store.PutCursor(ctx, imp.source, cursor); err != nil {
		imp.logger.Error("failed to persist cursor", "error", err)
		return
	}
	imp.logger.Debug("persisted cursor", "cursor", cursor)
	ImportCursorGauge.Record(ctx, cursor)
}

func (imp *Importer) reject(ctx context.Context, dup bool) {
	if dup {
		imp.duplicates.Add(1)
	} else {
		imp.rejected.Add(1)
	}
	EventsRejectedCounter.Add(ctx, 1, metric.WithAttributes(SourceImport))
}

func (imp *Importer) readLines(ctx context.Context, r io.Reader, cursor int64, infl *inFlight, out chan<- sequencedEntry, flushCh chan<- struct{}) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineSize)

	var seq int64
	for scanner.Scan() {
		seq++
		if seq <= cursor {
			continue
		}

		var le didevent.LogEntry
		line := scanner.Bytes()
		if err := json.Unmarshal(line, &le); err != nil || len(line) == 0 {
			if len(line) > 0 {
				imp.logger.Warn("skipping unparseable line", "seq", seq, "error", err)
				imp.reject(ctx, false)
			}
			// nothing to process, but the cursor still has to move past this line
			key := fmt.Sprintf("line:%d", seq)
			infl.acquire(key, seq)
			infl.release(key, seq)
			continue
		}

		// If the DID is already in flight, ask the committer for one flush so the earlier
		// entry gets committed soon, then sleep until some entry is released and retry. An
		// entry still queued for validation is picked up by a later periodic commit.
		flushed := false
		for {
			ok, released := infl.acquireOrWait(le.DID, seq)
			if ok {
				break
			}
			if !flushed {
				select {
				case flushCh <- struct{}{}:
				case <-ctx.Done():
					return ctx.Err()
				}
				flushed = true
			}
			select {
			case <-released:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case out <- sequencedEntry{Seq: seq, Entry: &le}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading import source: %w", err)
	}
	return nil
}

// validateWorker checks entries in isolation. It is responsible for releasing rejected
// entries from inFlight; accepted ones are released by the commit worker.
func (imp *Importer) validateWorker(ctx context.Context, in <-chan sequencedEntry, out chan<- sequencedEntry, infl *inFlight) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case se, ok := <-in:
			if !ok {
				return nil
			}
			if err := se.Entry.Validate(); err != nil {
				imp.logger.Warn("rejecting invalid entry", "seq", se.Seq, "did", se.Entry.DID, "cid", se.Entry.CID, "error", err)
				imp.reject(ctx, false)
				infl.release(se.Entry.DID, se.Seq)
				continue
			}
			select {
			case out <- se:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// commitWorker appends validated entries in batches. Only a single commit worker runs.
func (imp *Importer) commitWorker(ctx context.Context, in <-chan sequencedEntry, infl *inFlight, flushCh <-chan struct{}) error {
	batch := make([]sequencedEntry, 0, batchSize)
	ticker := time.NewTicker(commitInterval)
	defer ticker.Stop()

	commitBatch := func() error {
		if len(batch) == 0 {
			return nil
		}

		les := make([]*didevent.LogEntry, len(batch))
		for i, se := range batch {
			les[i] = se.Entry
		}

		err := imp.store.AppendEntries(ctx, les)
		switch {
		case err == nil:
			imp.imported.Add(int64(len(les)))
			EventsAppendedCounter.Add(ctx, int64(len(les)), metric.WithAttributes(SourceImport))
		case errors.Is(err, didevent.ErrDuplicateEntry):
			// re-imports of already archived history; fall back to one entry at a time
			for _, le := range les {
				err := imp.store.AppendEntries(ctx, []*didevent.LogEntry{le})
				if errors.Is(err, didevent.ErrDuplicateEntry) {
					imp.reject(ctx, true)
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to commit entry %s %s: %w", le.DID, le.CID, err)
				}
				imp.imported.Add(1)
				EventsAppendedCounter.Add(ctx, 1, metric.WithAttributes(SourceImport))
			}
		default:
			return fmt.Errorf("failed to commit batch of %d: %w", len(les), err)
		}

		for _, se := range batch {
			infl.release(se.Entry.DID, se.Seq)
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case se, ok := <-in:
			if !ok {
				return commitBatch()
			}
			batch = append(batch, se)
			if len(batch) >= batchSize {
				if err := commitBatch(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := commitBatch(); err != nil {
				return err
			}
		case <-flushCh:
			if err := commitBatch(); err != nil {
				return err
			}
		}
	}
}
