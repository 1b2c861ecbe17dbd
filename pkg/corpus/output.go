package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"article-scraper/pkg/config"
	"article-scraper/pkg/models"
	"article-scraper/pkg/utils"
)

// OutputManager owns the side outputs of a crawl: the TSV URL map and the YAML manifest.
type OutputManager struct {
	log       *logrus.Entry
	appCfg    *config.AppConfig
	outputDir string
	runID     string

	// TSV mapping
	mappingFile     *os.File
	mappingFileMu   sync.Mutex
	mappingFilePath string

	// YAML metadata
	collectedDocuments []models.DocumentMetadata
	metadataMutex      sync.Mutex
	crawlStartTime     time.Time
	resumed            bool
}

// NewOutputManager creates an OutputManager without opening files. Each manager gets a fresh run ID.
func NewOutputManager(log *logrus.Entry, appCfg *config.AppConfig) *OutputManager {
	runID := uuid.NewString()
	return &OutputManager{
		log:                log.WithField("run_id", runID),
		appCfg:             appCfg,
		outputDir:          appCfg.OutputDir,
		runID:              runID,
		collectedDocuments: make([]models.DocumentMetadata, 0),
	}
}

// RunID identifies this crawl run in the manifest and logs
func (om *OutputManager) RunID() string {
	return om.runID
}

// Open records the crawl start and opens the TSV mapping file when enabled.
// A resumed crawl appends to the existing mapping; a fresh one truncates it.
func (om *OutputManager) Open(resumed bool) {
	om.crawlStartTime = time.Now()
	om.resumed = resumed

	if !om.appCfg.EnableOutputMapping {
		om.log.Debug("TSV URL-to-file mapping is disabled.")
		return
	}
	om.mappingFilePath = filepath.Join(om.outputDir, om.appCfg.OutputMappingFile)
	om.log.Infof("TSV URL-to-file mapping enabled. Output file: %s", om.mappingFilePath)
	om.mappingFile = openOutputFile(om.log, om.mappingFilePath, "TSV mapping", resumed)
}

// openOutputFile opens an output file for writing, with append or truncate based on resume mode.
// Returns nil on error (caller should treat nil as "output disabled").
func openOutputFile(log *logrus.Entry, path, label string, resume bool) *os.File {
	openFlags := os.O_CREATE | os.O_WRONLY
	if resume {
		log.Debugf("Resume mode: Appending to %s file: %s", label, path)
		openFlags |= os.O_APPEND
	} else {
		log.Debugf("Non-resume mode: Truncating %s file: %s", label, path)
		openFlags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, openFlags, 0644)
	if err != nil {
		log.Errorf("Failed to open/create %s file '%s': %v. %s output will be disabled.", label, path, err, label)
		return nil
	}
	return file
}

// RecordDocument appends a TSV line and collects manifest metadata for a saved document.
func (om *OutputManager) RecordDocument(doc *models.Document, savedPath string, depth int, taskLog *logrus.Entry) {
	relativePath, relErr := filepath.Rel(om.outputDir, savedPath)
	if relErr != nil {
		taskLog.Warnf("Could not make path relative for outputs (Base: '%s', Target: '%s'): %v", om.outputDir, savedPath, relErr)
		relativePath = savedPath
	}
	relativePath = filepath.ToSlash(relativePath)

	om.writeToMappingFile(doc, relativePath, taskLog)

	if !om.appCfg.EnableMetadataYAML {
		return
	}
	keywordCount := 0
	for _, kw := range strings.Split(doc.Keywords, ",") {
		if strings.TrimSpace(kw) != "" {
			keywordCount++
		}
	}
	meta := models.DocumentMetadata{
		ID:            doc.ID,
		URL:           doc.URL,
		LocalFilePath: relativePath,
		Title:         doc.Title,
		PublishDate:   doc.PublishDate,
		KeywordCount:  keywordCount,
		WordCount:     doc.WordCount,
		Depth:         depth,
		ProcessedAt:   time.Now(),
		ContentHash:   utils.ContentSHA256(doc.Body),
		Fingerprint:   utils.ContentFingerprint(doc.Body),
	}

	om.metadataMutex.Lock()
	om.collectedDocuments = append(om.collectedDocuments, meta)
	om.metadataMutex.Unlock()
}

// DocumentsRecorded returns how many documents have been recorded in this run
func (om *OutputManager) DocumentsRecorded() int {
	om.metadataMutex.Lock()
	defer om.metadataMutex.Unlock()
	return len(om.collectedDocuments)
}

// Close closes the mapping file and writes the YAML manifest.
func (om *OutputManager) Close(pagesProcessed int64) error {
	om.closeMappingFile()
	return om.writeMetadataYAML(pagesProcessed)
}

// writeToMappingFile writes "id<TAB>url<TAB>path" to the TSV mapping file (if enabled and open).
func (om *OutputManager) writeToMappingFile(doc *models.Document, relativePath string, taskLog *logrus.Entry) {
	om.mappingFileMu.Lock()
	defer om.mappingFileMu.Unlock()

	if om.mappingFile == nil {
		return
	}
	line := fmt.Sprintf("%d\t%s\t%s\n", doc.ID, doc.URL, relativePath)
	if _, err := om.mappingFile.WriteString(line); err != nil {
		taskLog.WithFields(logrus.Fields{
			"tsv_mapping_file": om.mappingFilePath,
			"line_content":     strings.TrimSpace(line),
		}).Errorf("Failed to write to TSV mapping file: %v", err)
	}
}

// closeMappingFile closes the TSV mapping file, if it was opened.
func (om *OutputManager) closeMappingFile() {
	om.mappingFileMu.Lock()
	defer om.mappingFileMu.Unlock()

	if om.mappingFile != nil {
		if err := om.mappingFile.Sync(); err != nil {
			om.log.Errorf("Error syncing TSV mapping file '%s': %v", om.mappingFilePath, err)
		}
		if err := om.mappingFile.Close(); err != nil {
			om.log.Errorf("Error closing TSV mapping file '%s': %v", om.mappingFilePath, err)
		}
		om.mappingFile = nil
	}
}

// writeMetadataYAML writes the run manifest with every document recorded in this run.
func (om *OutputManager) writeMetadataYAML(pagesProcessed int64) error {
	if !om.appCfg.EnableMetadataYAML {
		om.log.Debug("YAML metadata output is disabled.")
		return nil
	}
	yamlFilePath := filepath.Join(om.outputDir, om.appCfg.MetadataYAMLFilename)

	om.metadataMutex.Lock()
	docs := make([]models.DocumentMetadata, len(om.collectedDocuments))
	copy(docs, om.collectedDocuments)
	om.metadataMutex.Unlock()

	metadata := models.CrawlMetadata{
		RunID:          om.runID,
		Domain:         om.appCfg.Domain,
		BaseURL:        om.appCfg.BaseURL,
		Resumed:        om.resumed,
		CrawlStartTime: om.crawlStartTime,
		CrawlEndTime:   time.Now(),
		PagesProcessed: pagesProcessed,
		DocumentsSaved: len(docs),
		Documents:      docs,
	}

	yamlData, errMarshal := yaml.Marshal(&metadata)
	if errMarshal != nil {
		return fmt.Errorf("failed to marshal crawl metadata to YAML: %w", errMarshal)
	}
	if errWrite := os.WriteFile(yamlFilePath, yamlData, 0644); errWrite != nil {
		return fmt.Errorf("%w: failed to write metadata YAML file '%s': %w", utils.ErrFilesystem, yamlFilePath, errWrite)
	}

	om.log.Infof("Wrote crawl metadata (%d documents) to %s", metadata.DocumentsSaved, yamlFilePath)
	return nil
}
