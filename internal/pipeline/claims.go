package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// claim identifies which batch owns a stem in the images directory.
type claim struct {
	batch   int
	takenAt time.Time
	path    string
}

// beats applies the dedup rule across batches: earliest instant wins, and a
// tie goes to the batch discovered first.
func (c claim) beats(other claim) bool {
	if !c.takenAt.Equal(other.takenAt) {
		return c.takenAt.Before(other.takenAt)
	}
	return c.batch < other.batch
}

// stemClaims serializes writes per stem across the batches of one run, so
// the file left on disk does not depend on which batch finished first.
type stemClaims struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	held  map[string]claim
}

func newStemClaims() *stemClaims {
	return &stemClaims{
		locks: make(map[string]*sync.Mutex),
		held:  make(map[string]claim),
	}
}

func (c *stemClaims) lock(stem string) func() {
	c.mu.Lock()
	l, ok := c.locks[stem]
	if !ok {
		l = &sync.Mutex{}
		c.locks[stem] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// claimOutcome reports what write did for one candidate.
type claimOutcome struct {
	written   bool
	contested bool
	previous  claim
}

// write runs persist when candidate beats the current holder of stem, and
// records the path persist returns as the new holder. An empty path means
// nothing reached the disk. A replaced holder's file is removed when its
// extension differed from the new one.
func (c *stemClaims) write(stem string, candidate claim, persist func() (string, error)) (claimOutcome, error) {
	unlock := c.lock(stem)
	defer unlock()

	c.mu.Lock()
	current, exists := c.held[stem]
	c.mu.Unlock()
	out := claimOutcome{contested: exists, previous: current}
	if exists && !candidate.beats(current) {
		return out, nil
	}

	path, err := persist()
	if err != nil {
		return out, err
	}
	out.written = true
	candidate.path = path
	c.mu.Lock()
	c.held[stem] = candidate
	c.mu.Unlock()

	if exists && current.path != "" && current.path != path {
		if err := os.Remove(current.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return out, fmt.Errorf("remove superseded image: %w", err)
		}
	}
	return out, nil
}

// holder reports whether batch owns stem once every batch has finished.
func (c *stemClaims) holder(stem string, batch int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	held, ok := c.held[stem]
	return ok && held.batch == batch
}
