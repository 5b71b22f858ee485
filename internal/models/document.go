package models

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// RawDocument is an opaque document payload as delivered by the ingesting
// collaborator. It is never modified after construction.
type RawDocument struct {
	Data        []byte
	Fingerprint string
	MessageID   string
	ArrivedAt   time.Time
	Source      string
}

// NewRawDocument wraps data and computes its content fingerprint.
func NewRawDocument(data []byte, messageID string, arrivedAt time.Time, source string) RawDocument {
	return RawDocument{
		Data:        data,
		Fingerprint: Fingerprint(data),
		MessageID:   messageID,
		ArrivedAt:   arrivedAt,
		Source:      source,
	}
}

// Fingerprint returns the lowercase hex SHA-256 of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Transcript is the ordered sequence of non-empty trimmed lines extracted
// from a document, together with the extraction method that produced it.
type Transcript struct {
	Lines  []string `json:"lines" yaml:"lines"`
	Method string   `json:"method" yaml:"method"`
}

var spaceRun = regexp.MustCompile(`[ \t]+`)

// NewTranscript splits text into normalized lines. Non-breaking and narrow
// spaces become plain spaces, runs of spaces collapse, empty lines vanish.
func NewTranscript(text, method string) Transcript {
	replacer := strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u00a0", " ", "\u202f", " ", "\u2007", " ", "\ufeff", "")
	text = replacer.Replace(text)

	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return Transcript{Lines: lines, Method: method}
}

// Text joins the lines back with newlines.
func (t Transcript) Text() string {
	return strings.Join(t.Lines, "\n")
}

// IsEmpty reports whether the transcript has no lines.
func (t Transcript) IsEmpty() bool {
	return len(t.Lines) == 0
}
