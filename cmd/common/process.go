// Package common contains shared functionality for command handlers
package common

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/receipt-recon/internal/engine"
	"fjacquet/receipt-recon/internal/fileutils"
	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// SourceCLI marks documents handed over on the command line.
const SourceCLI = "cli"

// BatchIngester is the part of the engine the ingest command drives.
type BatchIngester interface {
	IngestBatch(ctx context.Context, docs []models.RawDocument, progress func(engine.Result)) ([]engine.Result, error)
}

// Context returns the command context, or a background context when the
// command runs outside Execute.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// CollectInputs resolves input to the documents it names: the file itself,
// or every document directly inside a directory.
func CollectInputs(input string) ([]string, error) {
	if input == "" {
		return nil, fmt.Errorf("input file or directory must be specified")
	}
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", input, err)
	}
	if !info.IsDir() {
		return []string{input}, nil
	}
	return fileutils.ListDocuments(input)
}

// LoadDocuments reads every path into a RawDocument. A file that cannot be
// read becomes a failed result instead of stopping the others.
func LoadDocuments(paths []string, source string) ([]models.RawDocument, []engine.Result) {
	docs := make([]models.RawDocument, 0, len(paths))
	var failed []engine.Result
	for _, path := range paths {
		doc, err := fileutils.ReadDocument(path, source)
		if err != nil {
			failed = append(failed, engine.Result{
				MessageID: filepath.Base(path),
				Outcome:   engine.OutcomeFailed,
				Err:       err,
			})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, failed
}

// IngestFiles loads and ingests paths. Unreadable files are reported as
// failed results ahead of the ingested ones. A progress bar is drawn on
// progress when it is non-nil and there is more than one document.
func IngestFiles(ctx context.Context, ing BatchIngester, paths []string, progress io.Writer, log logging.Logger) ([]engine.Result, error) {
	docs, failed := LoadDocuments(paths, SourceCLI)
	for _, res := range failed {
		log.WithError(res.Err).Warn("Skipping unreadable document", logging.F(logging.FieldFile, res.MessageID))
	}
	if len(docs) == 0 {
		return failed, nil
	}
	log.Info("Ingesting documents", logging.F(logging.FieldCount, len(docs)))

	var bar *progressbar.ProgressBar
	if progress != nil && len(docs) > 1 {
		bar = progressbar.NewOptions(len(docs),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Ingesting receipts"),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprintln(progress)
			}),
		)
	}

	results, err := ing.IngestBatch(ctx, docs, func(engine.Result) {
		if bar == nil {
			return
		}
		if err := bar.Add(1); err != nil {
			log.WithError(err).Debug("Failed to update progress bar")
		}
	})
	return append(failed, results...), err
}

// PrintResults writes one line per result.
func PrintResults(w io.Writer, results []engine.Result) error {
	for _, res := range results {
		line := fmt.Sprintf("%-12s %-18s %s", short(res.Fingerprint), res.Outcome, res.MessageID)
		switch {
		case res.Link != nil && res.Link.PaymentID != "":
			line += " -> " + res.Link.PaymentID
		case res.Link != nil && len(res.Link.Candidates) > 0:
			line += " candidates: " + strings.Join(res.Link.Candidates, ",")
		case res.Err != nil:
			line += ": " + res.Err.Error()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAML encodes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
