package frontier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"article-scraper/pkg/log"
	"article-scraper/pkg/models"
	"article-scraper/pkg/utils"
)

const (
	queuedKeyPrefix  = "q:" // Prefix for queued URL keys in DB
	visitedKeyPrefix = "v:" // Prefix for visited URL keys in DB
)

// BadgerOptions configures a BadgerStore
type BadgerOptions struct {
	StateDir          string // Where the exported line files go
	DBPath            string // Badger directory
	SeedURL           string
	ExpectedURLs      uint    // Bloom filter sizing
	FalsePositiveRate float64 // Bloom filter target rate
}

// BadgerStore keeps the frontier in BadgerDB so large crawls are not bound by memory.
// Membership checks go through a bloom filter first.
type BadgerStore struct {
	db   *badger.DB
	opts BadgerOptions
	log  *logrus.Entry

	mu     sync.Mutex // Serializes set mutations and guards filter
	filter *urlFilter

	queuedCount  atomic.Int64
	visitedCount atomic.Int64

	persistMu sync.Mutex
}

// NewBadgerStore opens (or creates) the database at opts.DBPath
func NewBadgerStore(opts BadgerOptions, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		opts:   opts,
		log:    logger.WithField("frontier", "badger"),
		filter: newURLFilter(opts.ExpectedURLs, opts.FalsePositiveRate),
	}

	if err := os.MkdirAll(opts.DBPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w: cannot create frontier DB directory %s: %w", utils.ErrFrontier, utils.ErrFilesystem, opts.DBPath, err)
	}

	badgerOpts := badger.DefaultOptions(opts.DBPath).
		WithLogger(log.NewBadgerLogger(store.log)).
		WithNumVersionsToKeep(1) // Only the latest state of a URL matters

	var err error
	store.db, err = badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: failed to open badger database at %s: %w", utils.ErrFrontier, utils.ErrDatabase, opts.DBPath, err)
	}
	store.log.Infof("Frontier database opened at: %s", opts.DBPath)
	return store, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Load implements Store. It rebuilds the bloom filter and counters from the DB.
// An empty DB imports the line files (or the seed), so a crawl can switch backends.
func (s *BadgerStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = newURLFilter(s.opts.ExpectedURLs, s.opts.FalsePositiveRate)
	var queued, visited int64
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			key := string(it.Item().Key())
			switch {
			case strings.HasPrefix(key, queuedKeyPrefix):
				queued++
				s.filter.add(strings.TrimPrefix(key, queuedKeyPrefix))
			case strings.HasPrefix(key, visitedKeyPrefix):
				visited++
				s.filter.add(strings.TrimPrefix(key, visitedKeyPrefix))
			}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w: scanning frontier DB: %w", utils.ErrFrontier, utils.ErrDatabase, err)
	}
	s.queuedCount.Store(queued)
	s.visitedCount.Store(visited)

	if queued == 0 && visited == 0 {
		if err := s.importLineFiles(); err != nil {
			return err
		}
	}
	s.log.Infof("Frontier loaded: %d queued, %d visited (bloom ~%d entries)",
		s.queuedCount.Load(), s.visitedCount.Load(), s.filter.estimatedCount())
	return nil
}

// importLineFiles seeds an empty DB from persisted line files. Caller holds s.mu.
func (s *BadgerStore) importLineFiles() error {
	queued, visited, err := loadLineFiles(s.opts.StateDir, s.opts.SeedURL)
	if err != nil {
		return err
	}
	if len(queued)+len(visited) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, u := range visited {
		if err := wb.Set([]byte(visitedKeyPrefix+u), []byte{}); err != nil {
			return fmt.Errorf("%w: %w: importing visited '%s': %w", utils.ErrFrontier, utils.ErrDatabase, u, err)
		}
		s.filter.add(u)
	}
	for _, u := range queued {
		if err := wb.Set([]byte(queuedKeyPrefix+u), []byte{}); err != nil {
			return fmt.Errorf("%w: %w: importing queued '%s': %w", utils.ErrFrontier, utils.ErrDatabase, u, err)
		}
		s.filter.add(u)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: %w: flushing import: %w", utils.ErrFrontier, utils.ErrDatabase, err)
	}
	s.queuedCount.Store(int64(len(queued)))
	s.visitedCount.Store(int64(len(visited)))
	s.log.Infof("Imported %d queued and %d visited URLs into frontier DB", len(queued), len(visited))
	return nil
}

// hasKey reports whether key exists in txn
func hasKey(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// lookup returns the URL's queued/visited flags, using the filter to skip the DB on a miss.
// Caller holds s.mu.
func (s *BadgerStore) lookup(url string) (queued, visited bool, err error) {
	if !s.filter.mayContain(url) {
		return false, false, nil
	}
	err = s.db.View(func(txn *badger.Txn) error {
		var errGet error
		if visited, errGet = hasKey(txn, visitedKeyPrefix+url); errGet != nil || visited {
			return errGet
		}
		queued, errGet = hasKey(txn, queuedKeyPrefix+url)
		return errGet
	})
	return queued, visited, err
}

// Contains implements Store. DB read errors are logged and reported as "not contained".
func (s *BadgerStore) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, v, err := s.lookup(url)
	if err != nil {
		s.log.WithField("url", url).Errorf("DB View error in Contains: %v", err)
		return false
	}
	return q || v
}

// IsVisited implements Store
func (s *BadgerStore) IsVisited(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, v, err := s.lookup(url)
	if err != nil {
		s.log.WithField("url", url).Errorf("DB View error in IsVisited: %v", err)
		return false
	}
	return v
}

// MarkVisited implements Store
func (s *BadgerStore) MarkVisited(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removedQueued, addedVisited bool
	err := s.dbUpdate(func(txn *badger.Txn) error {
		removedQueued, addedVisited = false, false
		wasQueued, errGet := hasKey(txn, queuedKeyPrefix+url)
		if errGet != nil {
			return errGet
		}
		if wasQueued {
			if errDel := txn.Delete([]byte(queuedKeyPrefix + url)); errDel != nil {
				return errDel
			}
			removedQueued = true
		}
		wasVisited, errGet := hasKey(txn, visitedKeyPrefix+url)
		if errGet != nil {
			return errGet
		}
		if !wasVisited {
			if errSet := txn.Set([]byte(visitedKeyPrefix+url), []byte{}); errSet != nil {
				return errSet
			}
			addedVisited = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w: marking '%s' visited: %w", utils.ErrFrontier, utils.ErrDatabase, url, err)
	}

	s.filter.add(url)
	if removedQueued {
		s.queuedCount.Add(-1)
	}
	if addedVisited {
		s.visitedCount.Add(1)
	}
	return nil
}

// Enqueue implements Store
func (s *BadgerStore) Enqueue(urls []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []string
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		q, v, err := s.lookup(u)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: checking '%s': %w", utils.ErrFrontier, utils.ErrDatabase, u, err)
		}
		if !q && !v {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	err := s.dbUpdate(func(txn *badger.Txn) error {
		for _, u := range candidates {
			if errSet := txn.Set([]byte(queuedKeyPrefix+u), []byte{}); errSet != nil {
				return errSet
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w: enqueueing %d URLs: %w", utils.ErrFrontier, utils.ErrDatabase, len(candidates), err)
	}

	for _, u := range candidates {
		s.filter.add(u)
	}
	s.queuedCount.Add(int64(len(candidates)))
	return candidates, nil
}

// Persist implements Store. Syncs the DB and exports the line files from one read transaction.
func (s *BadgerStore) Persist(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("%w: %w: syncing frontier DB: %w", utils.ErrFrontier, utils.ErrDatabase, err)
	}
	snap, err := s.snapshot()
	if err != nil {
		return err
	}
	if err := writeSnapshot(s.opts.StateDir, snap); err != nil {
		return err
	}
	s.log.Debugf("Frontier persisted: %d queued, %d visited", len(snap.Queued), len(snap.Visited))
	return nil
}

// snapshot reads both key ranges in a single read transaction; keys come back sorted.
func (s *BadgerStore) snapshot() (models.FrontierSnapshot, error) {
	var snap models.FrontierSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		snap.Queued = scanPrefix(txn, queuedKeyPrefix)
		snap.Visited = scanPrefix(txn, visitedKeyPrefix)
		return nil
	})
	if err != nil {
		return models.FrontierSnapshot{}, fmt.Errorf("%w: %w: reading snapshot: %w", utils.ErrFrontier, utils.ErrDatabase, err)
	}
	return snap, nil
}

func scanPrefix(txn *badger.Txn, prefix string) []string {
	iterOpts := badger.DefaultIteratorOptions
	iterOpts.PrefetchValues = false
	iterOpts.Prefix = []byte(prefix)
	it := txn.NewIterator(iterOpts)
	defer it.Close()

	urls := []string{}
	for it.Rewind(); it.Valid(); it.Next() {
		urls = append(urls, strings.TrimPrefix(string(it.Item().Key()), prefix))
	}
	return urls
}

// Snapshot implements Store. Returns an empty snapshot if the DB cannot be read.
func (s *BadgerStore) Snapshot() models.FrontierSnapshot {
	snap, err := s.snapshot()
	if err != nil {
		s.log.Errorf("Snapshot failed: %v", err)
		return models.FrontierSnapshot{Queued: []string{}, Visited: []string{}}
	}
	return snap
}

// Counts implements Store. Counters are maintained on every mutation, no scan needed.
func (s *BadgerStore) Counts() (int, int) {
	return int(s.queuedCount.Load()), int(s.visitedCount.Load())
}

// RunGC runs BadgerDB's value log garbage collection periodically until ctx ends
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")
	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Debug("DB GC: database is closed, skipping GC cycle.")
				continue
			}
			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements Store
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %w: closing frontier DB: %w", utils.ErrFrontier, utils.ErrDatabase, err)
	}
	return nil
}
