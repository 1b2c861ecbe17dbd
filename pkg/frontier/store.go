package frontier

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"article-scraper/pkg/config"
	"article-scraper/pkg/models"
	"article-scraper/pkg/utils"
)

// Durable state file names, shared by every backend
const (
	QueueFileName   = "queue.txt"
	CrawledFileName = "crawled.txt"
)

// Store holds the crawl frontier: URLs waiting to be processed (queued) and URLs already
// processed (visited). The two sets are always disjoint and a visited URL never returns to queued.
// All URLs are expected in normalized form.
type Store interface {
	// Load restores both sets from durable storage, or seeds queued with the seed URL
	// when no queue has been persisted yet
	Load(ctx context.Context) error

	// Contains reports whether the URL is queued or visited
	Contains(url string) bool

	// IsVisited reports whether the URL has been processed
	IsVisited(url string) bool

	// MarkVisited moves the URL from queued (if present) to visited. Idempotent.
	MarkVisited(url string) error

	// Enqueue adds every URL that is neither queued nor visited and returns the newly added ones
	Enqueue(urls []string) ([]string, error)

	// Persist writes a consistent snapshot of both sets to durable storage
	Persist(ctx context.Context) error

	// Snapshot returns sorted copies of both sets
	Snapshot() models.FrontierSnapshot

	// Counts returns the current set sizes
	Counts() (queued, visited int)

	// Close releases backend resources
	Close() error
}

// Open creates the store selected by cfg.FrontierBackend. The caller still has to Load it.
func Open(cfg *config.AppConfig, seedURL string, log *logrus.Entry) (Store, error) {
	stateDir := cfg.EffectiveStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w: cannot create state directory '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, stateDir, err)
	}

	switch cfg.FrontierBackend {
	case config.FrontierBackendBadger:
		return NewBadgerStore(BadgerOptions{
			StateDir:          stateDir,
			DBPath:            cfg.BadgerDBPath(),
			SeedURL:           seedURL,
			ExpectedURLs:      cfg.BloomExpectedURLs,
			FalsePositiveRate: cfg.BloomFalsePositive,
		}, log)
	case config.FrontierBackendFile, "":
		return NewFileStore(stateDir, seedURL, log), nil
	default:
		return nil, fmt.Errorf("%w: unknown frontier backend '%s'", utils.ErrConfigValidation, cfg.FrontierBackend)
	}
}

// Reset removes all persisted frontier state for cfg so the next Load starts from the seed.
func Reset(cfg *config.AppConfig, log *logrus.Entry) error {
	stateDir := cfg.EffectiveStateDir()
	targets := []string{
		filepath.Join(stateDir, QueueFileName),
		filepath.Join(stateDir, CrawledFileName),
		cfg.BadgerDBPath(),
	}
	for _, target := range targets {
		log.Warnf("Removing frontier state: %s", target)
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("%w: %w: removing '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, target, err)
		}
	}
	return nil
}

// readLineFile reads one URL per line. A missing file is reported with found=false and no error.
func readLineFile(path string) (lines []string, found bool, err error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %w: opening '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // Long query strings
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, true, fmt.Errorf("%w: %w: reading '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, path, err)
	}
	return lines, true, nil
}

// writeLineFile atomically replaces path with one line per entry.
// Content goes to a temp file in the same directory, is fsynced, then renamed over the target.
func writeLineFile(path string, lines []string) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w: creating temp file for '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	writer := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err = writer.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("%w: %w: writing '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, tmpName, err)
		}
	}
	if err = writer.Flush(); err != nil {
		return fmt.Errorf("%w: %w: flushing '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w: syncing '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w: closing '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %w: renaming '%s' to '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, tmpName, path, err)
	}
	return nil
}

// writeSnapshot persists both line files of a snapshot.
func writeSnapshot(stateDir string, snap models.FrontierSnapshot) error {
	if err := writeLineFile(filepath.Join(stateDir, QueueFileName), snap.Queued); err != nil {
		return err
	}
	return writeLineFile(filepath.Join(stateDir, CrawledFileName), snap.Visited)
}

// Export writes the store's current sets as queue/crawled line files into dir
func Export(s Store, dir string) (models.FrontierSnapshot, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.FrontierSnapshot{}, fmt.Errorf("%w: %w: cannot create export directory '%s': %w", utils.ErrFrontier, utils.ErrFilesystem, dir, err)
	}
	snap := s.Snapshot()
	return snap, writeSnapshot(dir, snap)
}

// loadLineFiles reads persisted line files and applies the seeding rule:
// a missing queue file means a first run, so the seed URL becomes the only queued entry.
// Queued entries already in visited are dropped to keep the sets disjoint.
func loadLineFiles(stateDir, seedURL string) (queued, visited []string, err error) {
	visited, _, err = readLineFile(filepath.Join(stateDir, CrawledFileName))
	if err != nil {
		return nil, nil, err
	}
	rawQueued, queueFound, err := readLineFile(filepath.Join(stateDir, QueueFileName))
	if err != nil {
		return nil, nil, err
	}
	if !queueFound && seedURL != "" {
		rawQueued = []string{seedURL}
	}

	visitedSet := make(map[string]struct{}, len(visited))
	for _, u := range visited {
		visitedSet[u] = struct{}{}
	}
	seen := make(map[string]struct{}, len(rawQueued))
	for _, u := range rawQueued {
		if _, done := visitedSet[u]; done {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		queued = append(queued, u)
	}
	return queued, visited, nil
}
