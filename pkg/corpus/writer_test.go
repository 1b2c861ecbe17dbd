package corpus

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-scraper/pkg/models"
	"article-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func sampleDoc(id uint64) *models.Document {
	return &models.Document{
		ID:          id,
		URL:         "http://example.com/story",
		Title:       "A Title",
		Keywords:    "space, science",
		PublishDate: "3 April 2017",
		Body:        "First paragraph.\nSecond paragraph.",
		WordCount:   4,
	}
}

func TestFormatRecord(t *testing.T) {
	want := "URL: http://example.com/story\n" +
		"TITLE: A Title\n" +
		"META-KEYWORDS: space, science\n" +
		"DATE: 3 April 2017\n" +
		"DOC ID: 7\n" +
		"First paragraph.\nSecond paragraph."
	assert.Equal(t, want, FormatRecord(sampleDoc(7)))
}

func TestFileWriter_WritesRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewFileWriter(dir, testLogger())
	require.NoError(t, err)

	path, err := w.Write(context.Background(), sampleDoc(3))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "3.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatRecord(sampleDoc(3)), string(data))
}

func TestFileWriter_IsWriteOnce(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, testLogger())
	require.NoError(t, err)

	_, err = w.Write(context.Background(), sampleDoc(1))
	require.NoError(t, err)

	other := sampleDoc(1)
	other.Title = "Different"
	_, err = w.Write(context.Background(), other)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrWrite))
	assert.Equal(t, "Write_Exists", utils.CategorizeError(err))

	data, err := os.ReadFile(RecordPath(dir, 1))
	require.NoError(t, err)
	assert.Contains(t, string(data), "TITLE: A Title\n")
}

func TestFileWriter_CancelledContext(t *testing.T) {
	w, err := NewFileWriter(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Write(ctx, sampleDoc(1))
	assert.ErrorIs(t, err, utils.ErrWrite)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaxDocumentID(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.txt", "12.txt", "3.txt", "queue.txt", "crawled.txt", "7.md", "x12.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "99.txt"), 0755))

	maxID, err := MaxDocumentID(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), maxID)
}

func TestMaxDocumentID_MissingDir(t *testing.T) {
	maxID, err := MaxDocumentID(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), maxID)
}
