package fields

import (
	"fjacquet/receipt-recon/internal/layout"
	"fjacquet/receipt-recon/internal/models"
)

// WindowSize bounds how many lines after a label the sequential strategy
// inspects for its value.
const WindowSize = 5

// Extractor extracts fields using the labels of one profile.
type Extractor struct {
	profile    *layout.Profile
	classifier *layout.Classifier
}

// NewExtractor returns an extractor for profile, or the default profile
// when nil.
func NewExtractor(profile *layout.Profile) *Extractor {
	c := layout.NewClassifier(profile)
	return &Extractor{profile: c.Profile(), classifier: c}
}

// DetectVariant scans lines for variant-defining phrases.
func (e *Extractor) DetectVariant(lines []string) models.TransferVariant {
	return DetectVariant(lines)
}

// Extract reads all fields. Labelled fields use the columnar or sequential
// strategy; an unrecognized layout uses the sequential one.
func (e *Extractor) Extract(lines []string, kind models.LayoutKind, variant models.TransferVariant) Fields {
	var f Fields
	used := extractCommon(lines, &f)
	positions := e.classifier.Locate(lines)

	switch kind {
	case models.LayoutColumnar:
		e.columnar(lines, positions, variant, used, &f)
	default:
		e.sequential(lines, positions, variant, used, &f)
	}
	return f
}

// columnar reads each value at value_block_start + rank of its label among
// the found labels. A value that fails its field pattern is absent.
func (e *Extractor) columnar(lines []string, positions []layout.Position, variant models.TransferVariant, used map[int]bool, f *Fields) {
	if len(positions) == 0 {
		return
	}
	start := positions[len(positions)-1].Index + 1
	for rank, pos := range positions {
		idx := start + rank
		if idx >= len(lines) || used[idx] {
			continue
		}
		if v, ok := matchLabelled(pos.Field, variant, lines[idx]); ok {
			f.set(pos.Field, v)
			used[idx] = true
		}
	}

	// Self-identifying values of labels the template did not print.
	found := make(map[string]bool, len(positions))
	for _, pos := range positions {
		found[pos.Field] = true
	}
	e.sweep(lines, start+len(positions), variant, used, f, func(field string) bool {
		return !found[field] && selfIdentifying[field]
	}, matchSelfIdentifying)
}

// sequential scans a bounded window after each label, skipping other
// labels, then sweeps forward from the last label for what is still
// missing. The windowed pass runs first and the first match wins.
func (e *Extractor) sequential(lines []string, positions []layout.Position, variant models.TransferVariant, used map[int]bool, f *Fields) {
	found := make(map[string]bool, len(positions))
	for _, pos := range positions {
		found[pos.Field] = true
		for idx, seen := pos.Index+1, 0; idx < len(lines) && seen < WindowSize; idx++ {
			if e.profile.IsLabel(lines[idx]) {
				continue
			}
			seen++
			if used[idx] {
				continue
			}
			if v, ok := matchLabelled(pos.Field, variant, lines[idx]); ok {
				f.set(pos.Field, v)
				used[idx] = true
				break
			}
		}
	}

	start := 0
	if len(positions) > 0 {
		start = positions[len(positions)-1].Index + 1
	}
	e.sweep(lines, start, variant, used, f, func(field string) bool {
		return found[field]
	}, matchLabelled)
	e.sweep(lines, start, variant, used, f, func(field string) bool {
		return !found[field] && selfIdentifying[field]
	}, matchSelfIdentifying)
}

type matchFunc func(field string, variant models.TransferVariant, line string) (string, bool)

// sweep assigns each free line from start on to the first still-missing
// eligible field, in profile order, whose pattern it matches.
func (e *Extractor) sweep(lines []string, start int, variant models.TransferVariant, used map[int]bool, f *Fields, eligible func(string) bool, match matchFunc) {
	if start < 0 {
		start = 0
	}
	for idx := start; idx < len(lines); idx++ {
		if used[idx] || e.profile.IsLabel(lines[idx]) {
			continue
		}
		for _, field := range e.profile.Fields() {
			if f.Has(field) || !eligible(field) {
				continue
			}
			if v, ok := match(field, variant, lines[idx]); ok {
				f.set(field, v)
				used[idx] = true
				break
			}
		}
	}
}
