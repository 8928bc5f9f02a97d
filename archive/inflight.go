package archive

import (
	"sync"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
)

/*

inFlight tracks which import lines are being processed, so that:

- at most one entry per DID is in the pipeline at a time (keeps each DID's history in file order)
- the resume cursor only advances past a line once every earlier line is done

acquire is always called in order of ascending seq.

*/

type inFlight struct {
	cursor  int64 // every seq <= cursor is done
	keys    *hashset.Set
	pending *treeset.Set // seqs acquired and not yet released
	done    *treeset.Set // seqs released while an earlier seq is still pending
	// closed and replaced on every release
	released chan struct{}
	lock     sync.RWMutex
}

func newInFlight(cursor int64) *inFlight {
	return &inFlight{
		cursor:  cursor,
		keys:    hashset.New(),
		pending: treeset.NewWith(utils.Int64Comparator),
		done:    treeset.NewWith(utils.Int64Comparator),

		released: make(chan struct{}),
	}
}

func (infl *inFlight) resumeCursor() int64 {
	infl.lock.RLock()
	defer infl.lock.RUnlock()
	return infl.cursor
}

// returns false, changing nothing, if key already has a line in flight
func (infl *inFlight) acquire(key string, seq int64) bool {
	infl.lock.Lock()
	defer infl.lock.Unlock()

	if infl.keys.Contains(key) {
		return false
	}
	infl.keys.Add(key)
	infl.pending.Add(seq)
	return true
}

// acquireOrWait is acquire, but when key is taken it also returns a channel that is closed
// by the next release of any key.
func (infl *inFlight) acquireOrWait(key string, seq int64) (bool, <-chan struct{}) {
	infl.lock.Lock()
	defer infl.lock.Unlock()

	if infl.keys.Contains(key) {
		return false, infl.released
	}
	infl.keys.Add(key)
	infl.pending.Add(seq)
	return true, nil
}

func (infl *inFlight) release(key string, seq int64) {
	infl.lock.Lock()
	defer infl.lock.Unlock()

	if !infl.keys.Contains(key) {
		return
	}
	infl.keys.Remove(key)
	infl.pending.Remove(seq)
	infl.done.Add(seq)

	close(infl.released)
	infl.released = make(chan struct{})

	// advance the cursor over done seqs that precede every pending seq
	for {
		doneIt := infl.done.Iterator()
		if !doneIt.First() {
			return
		}
		lowestDone := doneIt.Value().(int64)

		pendingIt := infl.pending.Iterator()
		if pendingIt.First() && pendingIt.Value().(int64) < lowestDone {
			return
		}

		infl.cursor = lowestDone
		infl.done.Remove(lowestDone)
	}
}
