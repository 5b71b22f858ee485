package textextract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// TextLayer reads the native text layer: pdfcpu dumps each page's decoded
// content stream and the text-showing operators are rendered as lines.
type TextLayer struct{}

// NewTextLayer returns the text-layer method.
func NewTextLayer() *TextLayer {
	disableConfigDir.Do(api.DisableConfigDir)
	return &TextLayer{}
}

func (t *TextLayer) Name() string { return MethodTextLayer }

func (t *TextLayer) Extract(ctx context.Context, data []byte) (string, error) {
	tempDir, err := os.MkdirTemp("", "receipt-textlayer-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ExtractContent(bytes.NewReader(data), tempDir, "receipt", nil, conf); err != nil {
		return "", fmt.Errorf("pdfcpu content extraction: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pages, err := pageFiles(tempDir)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, page := range pages {
		content, err := os.ReadFile(page)
		if err != nil {
			return "", fmt.Errorf("failed to read page content: %w", err)
		}
		sb.WriteString(decodeContentStream(content))
		sb.WriteByte('\n')
	}
	text := sb.String()
	if undecodedGlyphs(data, text) {
		return "", fmt.Errorf("text layer holds font glyph codes, not characters")
	}
	return text, nil
}

var type0Font = regexp.MustCompile(`/Subtype\s*/Type0\b`)

// undecodedGlyphs reports whether text is raw glyph codes of a composite
// font rather than characters. Two-byte codes decode with NUL high bytes;
// single-byte codes of a Type0 font read as Latin letters without a single
// Cyrillic letter or digit.
func undecodedGlyphs(data []byte, text string) bool {
	if strings.ContainsRune(text, 0) {
		return true
	}
	if !type0Font.Match(data) {
		return false
	}
	for _, r := range text {
		if unicode.Is(unicode.Cyrillic, r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var trailingNumber = regexp.MustCompile(`(\d+)\D*$`)

// pageFiles lists the dumped page files ordered by page number.
func pageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list page content: %w", err)
	}

	type page struct {
		path string
		nr   int
	}
	var pages []page
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		nr := 0
		if m := trailingNumber.FindStringSubmatch(e.Name()); m != nil {
			nr, _ = strconv.Atoi(m[1])
		}
		pages = append(pages, page{path: filepath.Join(dir, e.Name()), nr: nr})
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].nr < pages[j].nr })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
