package layout

import (
	"sort"

	"fjacquet/receipt-recon/internal/models"
)

// Position is where a label was found in the transcript.
type Position struct {
	Field string
	Index int
}

// Analysis is the classification of one transcript.
type Analysis struct {
	Kind models.LayoutKind
	// Positions are the found labels sorted by line index.
	Positions []Position
}

// Classifier classifies transcripts against a profile.
type Classifier struct {
	profile *Profile
}

// NewClassifier returns a classifier for profile, or the default profile
// when nil.
func NewClassifier(profile *Profile) *Classifier {
	if profile == nil {
		profile = DefaultProfile()
	}
	if profile.index == nil {
		profile.buildIndex()
	}
	return &Classifier{profile: profile}
}

// Profile returns the profile in use.
func (c *Classifier) Profile() *Profile {
	return c.profile
}

// Locate finds the first line of each label, sorted by line index.
func (c *Classifier) Locate(lines []string) []Position {
	seen := make(map[string]bool)
	var positions []Position
	for i, line := range lines {
		field, ok := c.profile.LabelField(line)
		if !ok || seen[field] {
			continue
		}
		seen[field] = true
		positions = append(positions, Position{Field: field, Index: i})
	}
	sort.SliceStable(positions, func(a, b int) bool { return positions[a].Index < positions[b].Index })
	return positions
}

// Classify returns the layout kind of lines.
func (c *Classifier) Classify(lines []string) models.LayoutKind {
	return c.Analyze(lines).Kind
}

// Analyze classifies lines and returns the label positions used.
//
// No labels means unrecognized. Fewer than the threshold is sequential by
// default. Otherwise labels on strictly consecutive lines are columnar.
func (c *Classifier) Analyze(lines []string) Analysis {
	positions := c.Locate(lines)
	a := Analysis{Positions: positions}

	switch {
	case len(positions) == 0:
		a.Kind = models.LayoutUnrecognized
	case len(positions) < c.profile.Threshold:
		a.Kind = models.LayoutSequential
	case consecutive(positions):
		a.Kind = models.LayoutColumnar
	default:
		a.Kind = models.LayoutSequential
	}
	return a
}

func consecutive(positions []Position) bool {
	for i := 1; i < len(positions); i++ {
		if positions[i].Index != positions[i-1].Index+1 {
			return false
		}
	}
	return true
}
