package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"article-scraper/pkg/models"
	"article-scraper/pkg/utils"
)

const recordExt = ".txt"

// Writer persists accepted documents
type Writer interface {
	Write(ctx context.Context, doc *models.Document) (string, error)
}

// FileWriter stores each document as <dir>/<id>.txt. Records are write-once.
type FileWriter struct {
	dir string
	log *logrus.Entry
}

// NewFileWriter creates dir if needed
func NewFileWriter(dir string, log *logrus.Entry) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w: cannot create output directory '%s': %w", utils.ErrWrite, utils.ErrFilesystem, dir, err)
	}
	return &FileWriter{dir: dir, log: log}, nil
}

// Dir returns the output directory
func (w *FileWriter) Dir() string {
	return w.dir
}

// RecordPath returns the record path for a document ID
func RecordPath(dir string, id uint64) string {
	return filepath.Join(dir, strconv.FormatUint(id, 10)+recordExt)
}

// FormatRecord renders the on-disk record: five header lines followed by the body
func FormatRecord(doc *models.Document) string {
	var b strings.Builder
	b.Grow(len(doc.Body) + 256)
	fmt.Fprintf(&b, "URL: %s\n", doc.URL)
	fmt.Fprintf(&b, "TITLE: %s\n", doc.Title)
	fmt.Fprintf(&b, "META-KEYWORDS: %s\n", doc.Keywords)
	fmt.Fprintf(&b, "DATE: %s\n", doc.PublishDate)
	fmt.Fprintf(&b, "DOC ID: %d\n", doc.ID)
	b.WriteString(doc.Body)
	return b.String()
}

// Write creates the record for doc and returns its path. An existing record is never replaced.
// Every failure wraps utils.ErrWrite; a partially written file is removed.
func (w *FileWriter) Write(ctx context.Context, doc *models.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: document %d: %w", utils.ErrWrite, doc.ID, err)
	}
	path := RecordPath(w.dir, doc.ID)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("%w: creating '%s': %w", utils.ErrWrite, path, err)
	}

	if _, err := file.WriteString(FormatRecord(doc)); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: writing '%s': %w", utils.ErrWrite, path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: closing '%s': %w", utils.ErrWrite, path, err)
	}

	w.log.WithFields(logrus.Fields{"doc_id": doc.ID, "path": path}).Debug("Document written")
	return path, nil
}

// MaxDocumentID returns the highest ID among <n>.txt records in dir, 0 when there are none.
func MaxDocumentID(dir string) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: scanning '%s': %w", utils.ErrFilesystem, dir, err)
	}

	var maxID uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem, ok := strings.CutSuffix(entry.Name(), recordExt)
		if !ok {
			continue
		}
		id, parseErr := strconv.ParseUint(stem, 10, 64)
		if parseErr != nil {
			continue // Not a record (e.g. queue.txt)
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}
