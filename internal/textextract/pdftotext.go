package textextract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Pdftotext shells out to the poppler pdftotext tool.
type Pdftotext struct {
	path string
}

// NewPdftotext returns the pdftotext method. An empty path means
// "pdftotext" on PATH.
func NewPdftotext(path string) *Pdftotext {
	if path == "" {
		path = "pdftotext"
	}
	return &Pdftotext{path: path}
}

func (p *Pdftotext) Name() string { return MethodPdftotext }

// Extract writes the document to a private temp dir, converts it, and
// removes the dir whatever the outcome. The process is killed when ctx
// expires.
func (p *Pdftotext) Extract(ctx context.Context, data []byte) (string, error) {
	if _, err := exec.LookPath(p.path); err != nil {
		return "", fmt.Errorf("pdftotext not available: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "receipt-pdftotext-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	in := filepath.Join(tempDir, "in.pdf")
	out := filepath.Join(tempDir, "out.txt")
	if err := os.WriteFile(in, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write temporary PDF file: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.path, "-layout", "-enc", "UTF-8", in, out)
	cmd.WaitDelay = time.Second
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("pdftotext: %w", ctxErr)
		}
		return "", fmt.Errorf("error running pdftotext: %w (%s)", err, truncate(string(output), 200))
	}

	text, err := os.ReadFile(out)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("error reading extracted text: %w", err)
	}
	return string(text), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
