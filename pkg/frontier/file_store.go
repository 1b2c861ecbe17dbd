package frontier

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"article-scraper/pkg/models"
)

// FileStore keeps both sets in memory and persists them as the queue/crawled line files
type FileStore struct {
	stateDir string
	seedURL  string
	log      *logrus.Entry

	mu      sync.Mutex // Guards queued and visited; never held during file I/O
	queued  map[string]struct{}
	visited map[string]struct{}

	persistMu sync.Mutex // Serializes Persist calls so older snapshots cannot overwrite newer ones
}

// NewFileStore creates an empty store rooted at stateDir
func NewFileStore(stateDir, seedURL string, log *logrus.Entry) *FileStore {
	return &FileStore{
		stateDir: stateDir,
		seedURL:  seedURL,
		log:      log.WithField("frontier", "file"),
		queued:   make(map[string]struct{}),
		visited:  make(map[string]struct{}),
	}
}

// Load implements Store
func (s *FileStore) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	queued, visited, err := loadLineFiles(s.stateDir, s.seedURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = make(map[string]struct{}, len(queued))
	s.visited = make(map[string]struct{}, len(visited))
	for _, u := range visited {
		s.visited[u] = struct{}{}
	}
	for _, u := range queued {
		s.queued[u] = struct{}{}
	}
	s.log.Infof("Frontier loaded: %d queued, %d visited", len(s.queued), len(s.visited))
	return nil
}

// Contains implements Store
func (s *FileStore) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, q := s.queued[url]
	_, v := s.visited[url]
	return q || v
}

// IsVisited implements Store
func (s *FileStore) IsVisited(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, v := s.visited[url]
	return v
}

// MarkVisited implements Store
func (s *FileStore) MarkVisited(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queued, url)
	s.visited[url] = struct{}{}
	return nil
}

// Enqueue implements Store
func (s *FileStore) Enqueue(urls []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added []string
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := s.queued[u]; ok {
			continue
		}
		if _, ok := s.visited[u]; ok {
			continue
		}
		s.queued[u] = struct{}{}
		added = append(added, u)
	}
	return added, nil
}

// Persist implements Store. The snapshot is copied under the set lock and written without it.
func (s *FileStore) Persist(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap := s.Snapshot()
	if err := writeSnapshot(s.stateDir, snap); err != nil {
		return err
	}
	s.log.Debugf("Frontier persisted: %d queued, %d visited", len(snap.Queued), len(snap.Visited))
	return nil
}

// Snapshot implements Store
func (s *FileStore) Snapshot() models.FrontierSnapshot {
	s.mu.Lock()
	snap := models.FrontierSnapshot{
		Queued:  make([]string, 0, len(s.queued)),
		Visited: make([]string, 0, len(s.visited)),
	}
	for u := range s.queued {
		snap.Queued = append(snap.Queued, u)
	}
	for u := range s.visited {
		snap.Visited = append(snap.Visited, u)
	}
	s.mu.Unlock()

	sort.Strings(snap.Queued)
	sort.Strings(snap.Visited)
	return snap
}

// Counts implements Store
func (s *FileStore) Counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued), len(s.visited)
}

// Close implements Store
func (s *FileStore) Close() error {
	return nil
}
