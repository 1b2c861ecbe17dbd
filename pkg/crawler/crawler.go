package crawler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"article-scraper/pkg/config"
	"article-scraper/pkg/corpus"
	"article-scraper/pkg/extract"
	"article-scraper/pkg/fetch"
	"article-scraper/pkg/frontier"
	"article-scraper/pkg/idgen"
	"article-scraper/pkg/models"
	"article-scraper/pkg/parse"
	"article-scraper/pkg/queue"
	"article-scraper/pkg/utils"
)

// Crawler runs the worker pool over the frontier until it is exhausted, the corpus is full,
// the pass limit is reached or the context ends.
type Crawler struct {
	log     *logrus.Entry
	cfg     *config.AppConfig
	resumed bool

	// Core components
	store    frontier.Store
	pipeline *extract.Pipeline
	writer   corpus.Writer
	output   *corpus.OutputManager
	ids      *idgen.Allocator

	// Tracking
	corpusCount atomic.Int64 // Documents counted against max_corpus_size, including ones reserved but not yet written
	saved       atomic.Int64 // Documents written in this run
	processed   atomic.Int64 // URLs processed in this run
	failed      atomic.Int64 // URLs whose fetch or parse failed

	persistCh chan struct{} // Coalesced persist requests; capacity 1
}

// Result summarizes a Run
type Result struct {
	Passes     int
	Processed  int64
	Accepted   int64
	Failed     int64
	CapReached bool
	Duration   time.Duration
}

// Progress is a point-in-time view of a running crawl
type Progress struct {
	Queued    int
	Visited   int
	Processed int64
	Accepted  int64
	Failed    int64
}

// New wires a crawler around an already loaded frontier store.
// With continue_doc_ids the allocator starts after the highest record in output_dir;
// on a resumed crawl those records also count against the corpus cap.
func New(cfg *config.AppConfig, store frontier.Store, fetcher fetch.PageFetcher, resumed bool, baseLogger *logrus.Entry) (*Crawler, error) {
	logger := baseLogger.WithField("domain", cfg.Domain)

	scope, err := parse.NewScope(cfg.Domain, cfg.ExcludePathPatterns)
	if err != nil {
		return nil, fmt.Errorf("building link scope: %w", err)
	}
	writer, err := corpus.NewFileWriter(cfg.OutputDir, logger)
	if err != nil {
		return nil, err
	}

	var startID uint64
	if cfg.ShouldContinueDocIDs() {
		startID, err = corpus.MaxDocumentID(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		if startID > 0 {
			logger.Infof("Continuing document IDs after %d", startID)
		}
	}

	c := &Crawler{
		log:       logger,
		cfg:       cfg,
		resumed:   resumed,
		store:     store,
		writer:    writer,
		output:    corpus.NewOutputManager(logger, cfg),
		ids:       idgen.NewAllocator(startID),
		persistCh: make(chan struct{}, 1),
	}
	if resumed && startID > 0 {
		c.corpusCount.Store(int64(startID))
	}
	c.pipeline = extract.NewPipeline(fetcher, scope, cfg, c.ids, c.admit, logger)
	return c, nil
}

// admit reserves a corpus slot. Once max_corpus_size slots are taken nothing else is admitted.
func (c *Crawler) admit() bool {
	limit := int64(c.cfg.MaxCorpusSize)
	for {
		current := c.corpusCount.Load()
		if limit > 0 && current >= limit {
			return false
		}
		if c.corpusCount.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// capReached reports whether the corpus is full
func (c *Crawler) capReached() bool {
	return c.cfg.MaxCorpusSize > 0 && c.corpusCount.Load() >= int64(c.cfg.MaxCorpusSize)
}

// GetProgress returns the current progress of the crawler
func (c *Crawler) GetProgress() Progress {
	queued, visited := c.store.Counts()
	return Progress{
		Queued:    queued,
		Visited:   visited,
		Processed: c.processed.Load(),
		Accepted:  c.saved.Load(),
		Failed:    c.failed.Load(),
	}
}

// Run drives passes over the frontier and blocks until the crawl ends.
// The returned error is the context error when the crawl was interrupted, nil otherwise.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	if c.cfg.GlobalCrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.GlobalCrawlTimeout)
		defer cancel()
	}
	startTime := time.Now()
	runLog := c.log.WithFields(logrus.Fields{"run_id": c.output.RunID(), "resumed": c.resumed})
	runLog.Infof("Crawl starting with %d worker(s)...", c.cfg.NumWorkers)

	c.output.Open(c.resumed)

	// --- Background processes: persister, progress reporter, DB GC ---
	bgCtx, stopBackground := context.WithCancel(ctx)
	var background errgroup.Group
	background.Go(func() error {
		c.runPersister(bgCtx)
		return nil
	})
	background.Go(func() error {
		c.reportProgress(bgCtx, runLog)
		return nil
	})
	if gc, ok := c.store.(interface {
		RunGC(ctx context.Context, interval time.Duration)
	}); ok {
		background.Go(func() error {
			gc.RunGC(bgCtx, c.cfg.BadgerGCInterval)
			return nil
		})
	}

	// --- Pass loop ---
	passes := 0
	for {
		if ctx.Err() != nil {
			runLog.Warnf("Crawl interrupted: %v", ctx.Err())
			break
		}
		if c.capReached() {
			runLog.Infof("Corpus size limit reached (%d documents)", c.cfg.MaxCorpusSize)
			break
		}
		if c.cfg.MaxPasses > 0 && passes >= c.cfg.MaxPasses {
			runLog.Infof("Pass limit reached (%d)", c.cfg.MaxPasses)
			break
		}
		seed := c.store.Snapshot().Queued
		if len(seed) == 0 {
			runLog.Info("Frontier exhausted")
			break
		}
		passes++
		c.runPass(ctx, passes, seed)
	}

	stopBackground()
	_ = background.Wait()

	// Final persist runs even when the crawl was cancelled
	persistErr := c.store.Persist(context.WithoutCancel(ctx))
	if persistErr != nil {
		runLog.WithField("category", utils.CategorizeError(persistErr)).Errorf("Final frontier persist failed: %v", persistErr)
	}
	if err := c.output.Close(c.processed.Load()); err != nil {
		runLog.Errorf("Failed to write final metadata YAML: %v", err)
	}

	result := &Result{
		Passes:     passes,
		Processed:  c.processed.Load(),
		Accepted:   c.saved.Load(),
		Failed:     c.failed.Load(),
		CapReached: c.capReached(),
		Duration:   time.Since(startTime),
	}
	queued, visited := c.store.Counts()

	summaryLog := runLog.WithField("base_url", c.cfg.BaseURL)
	summaryLog.Info("========================================================================")
	summaryLog.Info("CRAWL FINISHED")
	summaryLog.Infof("Duration:         %v", result.Duration)
	summaryLog.Infof("Final Stats: Passes: %d, Processed: %d, Accepted: %d, Failed: %d, Queued: %d, Visited: %d",
		result.Passes, result.Processed, result.Accepted, result.Failed, queued, visited)
	summaryLog.Info("========================================================================")

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if persistErr != nil {
		return result, persistErr
	}
	return result, nil
}

// runPass processes one batch seeded from the frontier. With follow_links_in_pass, newly
// discovered URLs join the same pass; otherwise they wait in the frontier for the next one.
func (c *Crawler) runPass(ctx context.Context, pass int, seed []string) {
	passLog := c.log.WithField("pass", pass)
	passLog.Infof("Pass starting with %d queued URL(s)", len(seed))
	passStart := time.Now()

	passCtx, cancelPass := context.WithCancel(ctx)
	defer cancelPass()

	wq := queue.NewWorkQueue(passLog)
	var wg sync.WaitGroup // One count per task in the work queue or in flight
	for _, u := range seed {
		wg.Add(1)
		wq.Add(&models.WorkItem{URL: u, Depth: 0})
	}

	var workers errgroup.Group
	for i := 1; i <= c.cfg.NumWorkers; i++ {
		workerLog := passLog.WithField("worker_id", i)
		workers.Go(func() error {
			c.worker(passCtx, wq, &wg, cancelPass, workerLog)
			return nil
		})
	}

	// Wait for all tasks, or for the pass to be cut short
	tasksDone := make(chan struct{})
	go func() { wg.Wait(); close(tasksDone) }()
	select {
	case <-tasksDone:
	case <-passCtx.Done():
		passLog.Debugf("Pass cut short: %v", passCtx.Err())
	}

	wq.Close()
	_ = workers.Wait()

	// Items never picked up stay queued in the frontier
	for range wq.Drain() {
		wg.Done()
	}
	<-tasksDone

	passLog.WithField("duration", time.Since(passStart).String()).Info("Pass finished")
}

// worker runs the loop for a single worker goroutine
func (c *Crawler) worker(ctx context.Context, wq *queue.WorkQueue, wg *sync.WaitGroup, cancelPass context.CancelFunc, workerLog *logrus.Entry) {
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		item, ok := wq.PopContext(ctx)
		if !ok {
			return
		}
		c.processTask(ctx, *item, wq, wg, cancelPass, workerLog)
	}
}

// processTask runs the pipeline for one URL and merges its results back into the frontier.
func (c *Crawler) processTask(ctx context.Context, item models.WorkItem, wq *queue.WorkQueue, wg *sync.WaitGroup, cancelPass context.CancelFunc, workerLog *logrus.Entry) {
	taskLog := workerLog.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth})
	startTime := time.Now()

	var outcome extract.Outcome
	state := models.URLStateQueued
	skipped := false // Skipped URLs are left exactly as they are in the frontier

	// Deferred function for panic recovery, marking visited, and WaitGroup decrement.
	defer func() {
		if r := recover(); r != nil {
			skipped = false // A URL that panics is still marked visited so it cannot loop
			outcome = extract.OutcomeFailed
			state = models.URLStateLinkedOnly
			c.failed.Add(1)
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"duration":    time.Since(startTime).String(),
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in processTask")
		}

		if !skipped {
			if err := c.store.MarkVisited(item.URL); err != nil {
				taskLog.WithField("category", utils.CategorizeError(err)).Errorf("Failed to mark URL visited: %v", err)
			} else {
				advance(&state, models.URLStateVisited, taskLog)
			}
			c.processed.Add(1)
			c.requestPersist()
			taskLog.WithFields(logrus.Fields{
				"outcome":  outcome.String(),
				"state":    state.String(),
				"duration": time.Since(startTime).String(),
			}).Debug("Task finished")
		}
		wg.Done()
	}()

	if c.store.IsVisited(item.URL) {
		skipped = true
		return
	}
	if c.capReached() || ctx.Err() != nil {
		skipped = true
		return
	}

	advance(&state, models.URLStateFetching, taskLog)
	result := c.pipeline.Process(ctx, item.URL)
	outcome = result.Outcome
	if outcome == extract.OutcomeFailed && ctx.Err() != nil {
		skipped = true // Interrupted mid-fetch; retry on resume
		return
	}
	if outcome == extract.OutcomeFailed {
		c.failed.Add(1)
	}

	// Merge links into the frontier; only genuinely new URLs come back
	if len(result.Links) > 0 {
		added, err := c.store.Enqueue(result.Links)
		if err != nil {
			taskLog.WithField("category", utils.CategorizeError(err)).Errorf("Failed to enqueue discovered links: %v", err)
		}
		if len(added) > 0 && c.cfg.ShouldFollowLinksInPass() {
			for _, u := range added {
				wg.Add(1)
				if !wq.Add(&models.WorkItem{URL: u, Depth: item.Depth + 1}) {
					wg.Done()
				}
			}
		}
		taskLog.Debugf("Discovered %d link(s), %d new", len(result.Links), len(added))
	}

	if outcome == extract.OutcomeCapped {
		skipped = true // Still an eligible article; keep it queued for a crawl with a larger cap
	}
	if result.Document != nil && c.saveDocument(ctx, result.Document, item.Depth, taskLog) {
		advance(&state, models.URLStateAccepted, taskLog)
	} else {
		advance(&state, models.URLStateLinkedOnly, taskLog)
	}
	if c.capReached() {
		cancelPass()
	}
}

// advance moves a task's URL to the next lifecycle state. Illegal steps are logged, not enforced.
func advance(state *models.URLState, next models.URLState, taskLog *logrus.Entry) {
	if !state.CanTransition(next) {
		taskLog.Warnf("Unexpected URL state transition %s -> %s", *state, next)
	}
	*state = next
}

// saveDocument writes an accepted document and reports whether it was saved.
// A failed write is logged and its corpus slot released.
func (c *Crawler) saveDocument(ctx context.Context, doc *models.Document, depth int, taskLog *logrus.Entry) bool {
	// The page is already processed; finish writing it even if the crawl is being cancelled
	path, err := c.writer.Write(context.WithoutCancel(ctx), doc)
	if err != nil {
		c.corpusCount.Add(-1)
		taskLog.WithFields(logrus.Fields{
			"doc_id":   doc.ID,
			"category": utils.CategorizeError(err),
		}).Errorf("Failed to write document: %v", err)
		return false
	}
	c.saved.Add(1)
	c.output.RecordDocument(doc, path, depth, taskLog)
	taskLog.WithFields(logrus.Fields{"doc_id": doc.ID, "saved_path": path}).Info("Document saved")
	return true
}
