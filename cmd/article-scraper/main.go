package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"article-scraper/pkg/config"
	"article-scraper/pkg/crawler"
	"article-scraper/pkg/fetch"
	"article-scraper/pkg/frontier"
	applog "article-scraper/pkg/log"
	"article-scraper/pkg/parse"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:], false)
	case "resume":
		runCrawl(os.Args[2:], true)
	case "validate":
		runValidate(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "version":
		fmt.Printf("article-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `article-scraper - Single-site article corpus crawler

Usage:
  article-scraper <command> [options]

Commands:
  crawl       Start a crawl (add -fresh to discard saved frontier state)
  resume      Resume an interrupted crawl from saved frontier state
  validate    Validate configuration file
  export      Write the frontier as queue/crawled line files
  version     Show version info

Run 'article-scraper <command> -h' for command-specific help.`)
}

// runCrawl handles both crawl and resume subcommands
func runCrawl(args []string, isResume bool) {
	cmdName := "crawl"
	if isResume {
		cmdName = "resume"
	}

	fs := flag.NewFlagSet(cmdName, flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	fresh := false
	if !isResume {
		fs.BoolVar(&fresh, "fresh", false, "Remove saved frontier state before crawling")
	}

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: article-scraper %s [options]\n\nOptions:\n", cmdName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(executeCrawl(*configFile, *logLevel, isResume, fresh))
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Infof("Loading configuration from %s", configFile)
	appCfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return nil, err
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// executeCrawl runs one crawl and returns the process exit code
func executeCrawl(configFile, logLevelStr string, isResume, fresh bool) int {
	log := applog.NewLogger(logLevelStr, os.Stderr)
	appCfg, err := loadAndValidateConfig(configFile, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	logAppConfig(appCfg, log)

	seedURL, _, err := parse.ParseAndNormalize(appCfg.BaseURL)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}

	// ===========================================================
	// == Setup Global Context & Signal Handling ==
	// ===========================================================
	crawlCtx, cancelCrawl := context.WithCancel(context.Background())
	defer cancelCrawl()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// First signal cancels the crawl, a second one exits immediately
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		sig, ok := <-sigChan
		if !ok {
			return
		}
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancelCrawl()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()
	defer signal.Stop(sigChan)

	// ===========================================================
	// == Initialize Components ==
	// ===========================================================
	log.Info("Initializing components...")
	logEntry := log.WithField("component", "crawl")

	// --- Frontier ---
	if fresh {
		log.Info("Fresh crawl requested, removing saved frontier state")
		if err := frontier.Reset(appCfg, logEntry); err != nil {
			log.Errorf("Failed to reset frontier state: %v", err)
			return 1
		}
	}
	store, err := frontier.Open(appCfg, seedURL, logEntry)
	if err != nil {
		log.Errorf("Failed to open frontier: %v", err)
		return 1
	}
	defer store.Close()

	if err := store.Load(crawlCtx); err != nil {
		log.Errorf("Failed to load frontier: %v", err)
		return 1
	}
	queued, visited := store.Counts()
	log.Infof("Frontier loaded: %d queued, %d visited (backend: %s)", queued, visited, appCfg.FrontierBackend)

	// --- HTTP Fetching ---
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, logEntry)
	fetcher := fetch.NewFetcher(httpClient, appCfg, logEntry)

	// --- Crawler Instance ---
	crawlerInstance, err := crawler.New(appCfg, store, fetcher, isResume, logEntry)
	if err != nil {
		log.Errorf("Failed to initialize crawler: %v", err)
		return 1
	}

	// ===========================================================
	// == Start Crawler Execution ==
	// ===========================================================
	result, err := crawlerInstance.Run(crawlCtx)

	// --- Exit ---
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Crawl cancelled gracefully. Run 'resume' to continue.")
			return 0
		} else if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Crawl timed out (global timeout).")
			return 1
		}
		log.Errorf("Crawl finished with error: %v", err)
		return 1
	}

	if result.CapReached {
		log.Infof("Crawl completed: corpus size limit of %d reached.", appCfg.MaxCorpusSize)
	} else {
		log.Info("Crawl completed successfully.")
	}
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: article-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: domain '%s', output '%s', frontier backend '%s'\n",
		appCfg.Domain, appCfg.OutputDir, appCfg.FrontierBackend)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runExport handles the export subcommand
func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	outDir := fs.String("out", "", "Directory to write queue.txt and crawled.txt into (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: article-scraper export [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doExport(*configFile, *outDir, os.Stdout, os.Stderr))
}

// doExport loads the configured frontier backend and writes its sets as line files to outDir.
// Returns exit code (0 = success, 1 = error).
func doExport(configPath, outDir string, stdout, stderr io.Writer) int {
	if outDir == "" {
		fmt.Fprintln(stderr, "Error: -out is required")
		return 1
	}
	appCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := appCfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	seedURL, _, err := parse.ParseAndNormalize(appCfg.BaseURL)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	logEntry := applog.NewLogger("warn", stderr).WithField("component", "export")
	store, err := frontier.Open(appCfg, seedURL, logEntry)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()
	if err := store.Load(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	snap, err := frontier.Export(store, outDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Exported %d queued and %d visited URL(s) to %s\n", len(snap.Queued), len(snap.Visited), outDir)
	return 0
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: BaseURL:%s, Domain:%s, OutputDir:%s, StateDir:%s",
		appCfg.BaseURL, appCfg.Domain, appCfg.OutputDir, appCfg.EffectiveStateDir())
	log.Infof("Config: Workers:%d, MaxReqs:%d, MaxCorpusSize:%d, MinBodyWords:%d, MaxPasses:%d, FollowInPass:%t",
		appCfg.NumWorkers, appCfg.MaxRequests, appCfg.MaxCorpusSize, appCfg.MinBodyWords, appCfg.MaxPasses, appCfg.ShouldFollowLinksInPass())
	log.Infof("Config Frontier: Backend:%s, PersistInterval:%v, ContinueDocIDs:%t",
		appCfg.FrontierBackend, appCfg.PersistInterval, appCfg.ShouldContinueDocIDs())
	log.Infof("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Config Timeouts: SemaphoreAcquire:%v, GlobalCrawl:%v, PerPage:%v",
		appCfg.SemaphoreTimeout, appCfg.GlobalCrawlTimeout, appCfg.PerPageTimeout)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns, appCfg.HTTPClientSettings.MaxIdleConnsPerHost,
		appCfg.HTTPClientSettings.IdleConnTimeout, appCfg.HTTPClientSettings.TLSHandshakeTimeout, appCfg.HTTPClientSettings.DialerTimeout)
	log.Infof("Config Output Mapping: Enabled:%t, Filename:'%s'; YAML Metadata: Enabled:%t, Filename:'%s'",
		appCfg.EnableOutputMapping, appCfg.OutputMappingFile, appCfg.EnableMetadataYAML, appCfg.MetadataYAMLFilename)
}
