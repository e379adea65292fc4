package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ledger/internal/api"
	"github.com/insightdelivered/statement-ledger/internal/config"
	"github.com/insightdelivered/statement-ledger/internal/converter"
	"github.com/insightdelivered/statement-ledger/internal/extractor"
	"github.com/insightdelivered/statement-ledger/internal/logger"
	"github.com/insightdelivered/statement-ledger/internal/metrics"
	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
	"github.com/insightdelivered/statement-ledger/internal/storage"
	"github.com/insightdelivered/statement-ledger/internal/writer"
)

func main() {
	bankFlag := flag.String("bank", "", "Bank preset: generic, metro, hsbc, barclays (auto-detected if omitted)")
	formatFlag := flag.String("format", "", "Output format: xlsx or csv (default from DEFAULT_FORMAT)")
	layoutFlag := flag.String("layout", "standard", "Column layout: standard or balance-before-in")
	outputFlag := flag.String("output", "", "Output file path (single input only; defaults to the input name with the format's extension)")
	headerFlag := flag.Bool("header", true, "Include account metadata rows in CSV output")
	debugFlag := flag.Bool("debug", false, "Log how each line was classified")
	serveFlag := flag.Bool("serve", false, "Run the HTTP server instead of converting files")
	versionFlag := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Bank statement ledger extractor

Reads bank statement PDFs and writes a normalised transaction ledger
(date, description, money out, money in, running balance).

Usage:
  statement-ledger [flags] <input.pdf> [input2.pdf ...]
  statement-ledger -serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  statement-ledger statement.pdf
  statement-ledger -bank=hsbc -format=csv statement.pdf
  statement-ledger -output=ledger.xlsx statement.pdf
  statement-ledger -bank=barclays jan.pdf feb.pdf mar.pdf
`)
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("statement-ledger v%s\n", api.Version)
		return
	}

	cfg, dotEnv, err := config.Load()
	if err != nil {
		fatalf("configuration: %v\n", err)
	}
	if *debugFlag {
		cfg.LogLevel = "debug"
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if dotEnv {
		log.Debug().Msg("loaded .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveFlag {
		if err := serve(ctx, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *outputFlag != "" && flag.NArg() > 1 {
		fatalf("-output can only be used with a single input file\n")
	}

	bank, err := parser.ParseBank(*bankFlag)
	if err != nil {
		fatalf("%v. Supported: generic, metro, hsbc, barclays\n", err)
	}
	format, err := writer.ParseFormat(*formatFlag, writer.Format(cfg.DefaultFormat))
	if err != nil {
		fatalf("%v\n", err)
	}
	layout, err := writer.ParseLayout(*layoutFlag)
	if err != nil {
		fatalf("%v\n", err)
	}

	opts := batchOptions{
		bank:          bank,
		format:        format,
		layout:        layout,
		output:        *outputFlag,
		includeHeader: *headerFlag,
		debug:         *debugFlag,
	}
	if failed := convertFiles(ctx, flag.Args(), opts, cfg, log); failed > 0 {
		os.Exit(1)
	}
}

type batchOptions struct {
	bank          models.BankType
	format        writer.Format
	layout        writer.Layout
	output        string
	includeHeader bool
	debug         bool
}

// convertFiles converts every input concurrently and writes each ledger next
// to its input. It returns the number of files that failed.
func convertFiles(ctx context.Context, paths []string, opts batchOptions, cfg config.Config, log zerolog.Logger) int {
	conv := converter.New(extractor.New(cfg.EnableOCR, log), converter.WithLogger(log))

	failed := 0
	var reqs []converter.Request
	for _, path := range paths {
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
			fmt.Fprintf(os.Stderr, "Error processing %s: expected .pdf file, got %q\n", path, ext)
			failed++
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", path, err)
			failed++
			continue
		}
		reqs = append(reqs, converter.Request{
			Filename: path,
			PDF:      data,
			Bank:     opts.bank,
			Debug:    opts.debug,
		})
	}

	for _, o := range conv.ConvertAll(ctx, reqs, runtime.NumCPU()) {
		path := o.Request.Filename
		if o.Err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %s\n", path, parser.UserMessage(o.Err))
			log.Debug().Err(o.Err).Str("file", path).Msg("conversion failed")
			failed++
			continue
		}
		if opts.debug {
			for _, dl := range o.Result.Info.DebugLines {
				log.Debug().Int("page", dl.Page).Int("line", dl.LineNum).Str("result", dl.Result).Str("method", dl.Method).Msg(dl.Text)
			}
		}

		outPath, err := writeLedger(path, o.Result.Info, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", path, err)
			failed++
			continue
		}
		printSummary(path, outPath, o.Result)
	}
	return failed
}

func writeLedger(inputPath string, info *models.StatementInfo, opts batchOptions) (string, error) {
	var w writer.Writer
	switch opts.format {
	case writer.FormatCSV:
		w = &writer.CSVWriter{Layout: opts.layout, IncludeHeader: opts.includeHeader}
	default:
		var err error
		if w, err = writer.New(opts.format, opts.layout); err != nil {
			return "", err
		}
	}

	outPath := opts.output
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + w.Ext()
	}
	if err := writer.WriteToFile(w, outPath, info); err != nil {
		return "", fmt.Errorf("%s write failed: %w", w.Ext(), err)
	}
	return outPath, nil
}

func printSummary(inputPath, outPath string, res *converter.Result) {
	meta := res.Info.Data.Metadata
	fmt.Printf("Processed: %s\n", inputPath)
	fmt.Printf("  Bank: %s\n", res.BankName)
	fmt.Printf("  Transactions: %d\n", len(res.Info.Data.Transactions))
	fmt.Printf("  Total credits: %s\n", meta.TotalCredits)
	fmt.Printf("  Total debits: %s\n", meta.TotalDebits)
	if meta.AccountNumber != "" {
		fmt.Printf("  Account number: %s\n", meta.AccountNumber)
	}
	if meta.SortCode != "" {
		fmt.Printf("  Sort code: %s\n", meta.SortCode)
	}
	if meta.StatementPeriod != "" {
		fmt.Printf("  Period: %s\n", meta.StatementPeriod)
	}
	fmt.Printf("  Output: %s\n", outPath)
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewPrometheus("statement_ledger")
	if err := prom.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ext := extractor.New(cfg.EnableOCR, log)
	if cfg.EnableOCR && !ext.IsOCRAvailable() {
		log.Warn().Msg("OCR enabled but pdftoppm or tesseract is not installed")
	}
	conv := converter.New(ext,
		converter.WithStore(store),
		converter.WithMetrics(prom),
		converter.WithLogger(log),
	)

	h := &api.Handler{
		Converter:      conv,
		Store:          store,
		DefaultFormat:  writer.Format(cfg.DefaultFormat),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	app := api.NewApp(h, api.ServerConfig{
		StaticDir:   cfg.StaticDir,
		CORSOrigins: cfg.CORSOrigins,
		BodyLimit:   int(cfg.MaxUploadBytes) + 1<<20,
		Gatherer:    registry,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("storage", cfg.StorageBackend).
			Bool("ocr", cfg.EnableOCR).
			Msg("starting server")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

// openStore returns the configured artifact store. The local directory is
// emptied on startup since download links do not survive a restart.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	switch cfg.StorageBackend {
	case "gcs":
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("open gcs bucket %s: %w", cfg.GCSBucket, err)
		}
		return s, func() { _ = s.Close() }, nil
	case "local", "":
		s, err := storage.NewLocalStore(cfg.DownloadDir)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Reset(); err != nil {
			return nil, nil, fmt.Errorf("clear %s: %w", cfg.DownloadDir, err)
		}
		return s, func() {}, nil
	default:
		return nil, nil, errors.New("unknown storage backend " + cfg.StorageBackend)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
