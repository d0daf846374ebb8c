// invoice-backfill runs already-captured document files (images, PDFs,
// HEICs) through the same extraction and result sinks as the live scanner,
// for importing a folder of scans accumulated before the camera went up.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/ai4fin/invoice-scanner/internal/capture"
	"github.com/ai4fin/invoice-scanner/internal/extraction"
	"github.com/ai4fin/invoice-scanner/internal/results"
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
}

func main() {
	fs := ff.NewFlagSet("invoice-backfill")
	var (
		dir         = fs.StringLong("dir", "", "Directory of document files to import")
		dbPath      = fs.StringLong("db", "invoice-scanner.db", "Result database file path")
		xlsxPath    = fs.StringLong("xlsx", "invoices.xlsx", "Result workbook file path")
		timeout     = fs.DurationLong("recognition-timeout", 2*time.Minute, "Upper bound on one model call")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		backend     = fs.StringLong("extractor", "ollama", "Extractor backend: 'gemini' or 'ollama'")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_SCANNER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if *dir == "" {
		slog.Error("--dir is required")
		os.Exit(1)
	}

	if err := run(*dir, *dbPath, *xlsxPath, *backend, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel, *timeout); err != nil {
		slog.Error("Backfill failed", "error", err)
		os.Exit(1)
	}
}

func run(dir, dbPath, xlsxPath, backend, geminiKey, geminiModel, ollamaURL, ollamaModel string, timeout time.Duration) error {
	store, err := results.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("initializing result database: %w", err)
	}
	defer store.Close()

	sink := results.NewTee(store, results.NewXLSXSink(xlsxPath))

	var extractor extraction.Extractor
	switch backend {
	case "gemini":
		key := geminiKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		extractor, err = extraction.NewGemini(key, geminiModel)
	case "ollama":
		extractor, err = extraction.NewOllama(ollamaURL, ollamaModel)
	default:
		return fmt.Errorf("unknown extractor type %q", backend)
	}
	if err != nil {
		return fmt.Errorf("initializing extractor: %w", err)
	}
	defer extractor.Close()

	nextID, err := store.LastJobID()
	if err != nil {
		return fmt.Errorf("reading last job id: %w", err)
	}
	nextID++

	var ok, failed, skipped int
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		contentType, known := contentTypes[strings.ToLower(filepath.Ext(path))]
		if !known {
			skipped++
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("Reading file failed", "path", path, "error", err)
			failed++
			return nil
		}

		job := &capture.Job{
			ID:          nextID,
			Image:       data,
			ContentType: contentType,
			CapturedAt:  time.Now(),
			ShotPath:    path,
		}
		nextID++

		result := process(extractor, job, timeout)
		if result.Status == results.StatusOK {
			ok++
			slog.Info("Imported", "path", path, "job_id", job.ID, "invoice_number", result.Record.InvoiceNumber)
		} else {
			failed++
			slog.Error("Import failed", "path", path, "job_id", job.ID, "reason", result.FailureReason)
		}

		if err := sink.Append(result); err != nil {
			return fmt.Errorf("appending result for %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Backfill complete", "ok", ok, "failed", failed, "skipped", skipped)
	return nil
}

func process(extractor extraction.Extractor, job *capture.Job, timeout time.Duration) *results.Result {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	record, err := extractor.ExtractInvoice(ctx, job.Image, job.ContentType)
	if err != nil {
		return results.NewFailure(job, err.Error())
	}
	return results.NewSuccess(job, record)
}
