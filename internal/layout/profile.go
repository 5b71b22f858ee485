// Package layout decides how field labels and their values are arranged in
// a receipt transcript.
package layout

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field identifiers for labelled receipt fields.
const (
	FieldCommission     = "commission"
	FieldSender         = "sender"
	FieldRecipientPhone = "recipient_phone"
	FieldRecipient      = "recipient"
	FieldRecipientBank  = "recipient_bank"
	FieldRecipientCard  = "recipient_card"
	FieldDebitAccount   = "debit_account"
)

var knownFields = map[string]bool{
	FieldCommission: true, FieldSender: true, FieldRecipientPhone: true, FieldRecipient: true,
	FieldRecipientBank: true, FieldRecipientCard: true, FieldDebitAccount: true,
}

// DefaultThreshold is the number of labels needed before a consecutive block
// is trusted to be columnar.
const DefaultThreshold = 4

// Label ties a field to the printed label text and its accepted aliases.
type Label struct {
	Field   string   `yaml:"field"`
	Text    string   `yaml:"text"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Profile is the ordered label list of one document family. The order is
// the order values appear in the columnar template.
type Profile struct {
	Name      string  `yaml:"name"`
	Threshold int     `yaml:"threshold"`
	Labels    []Label `yaml:"labels"`

	index    map[string]string
	maxWords int
}

// DefaultProfile returns the label list of the supported bank receipts.
func DefaultProfile() *Profile {
	p := &Profile{
		Name:      "default",
		Threshold: DefaultThreshold,
		Labels: []Label{
			{Field: FieldCommission, Text: "Комиссия"},
			{Field: FieldSender, Text: "Отправитель"},
			{Field: FieldRecipientPhone, Text: "Телефон получателя", Aliases: []string{"Номер телефона получателя"}},
			{Field: FieldRecipient, Text: "Получатель"},
			{Field: FieldRecipientBank, Text: "Банк получателя"},
			{Field: FieldRecipientCard, Text: "Карта получателя", Aliases: []string{"Номер карты получателя"}},
			{Field: FieldDebitAccount, Text: "Счет списания", Aliases: []string{"Карта списания"}},
		},
	}
	p.buildIndex()
	return p
}

// LoadProfile reads a YAML profile. A zero threshold means DefaultThreshold.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read layout profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("could not parse layout profile %s: %w", path, err)
	}
	if p.Threshold == 0 {
		p.Threshold = DefaultThreshold
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid layout profile %s: %w", path, err)
	}
	p.buildIndex()
	return &p, nil
}

func (p *Profile) validate() error {
	if len(p.Labels) == 0 {
		return fmt.Errorf("no labels")
	}
	if p.Threshold < 1 {
		return fmt.Errorf("threshold must be positive, got %d", p.Threshold)
	}
	seen := make(map[string]bool, len(p.Labels))
	for _, l := range p.Labels {
		if !knownFields[l.Field] {
			return fmt.Errorf("unknown field %q", l.Field)
		}
		if seen[l.Field] {
			return fmt.Errorf("duplicate field %q", l.Field)
		}
		if strings.TrimSpace(l.Text) == "" {
			return fmt.Errorf("empty label text for %q", l.Field)
		}
		seen[l.Field] = true
	}
	return nil
}

func (p *Profile) buildIndex() {
	p.index = make(map[string]string)
	p.maxWords = 0
	add := func(text, field string) {
		n := Normalize(text)
		p.index[n] = field
		if words := len(strings.Fields(n)); words > p.maxWords {
			p.maxWords = words
		}
	}
	for _, l := range p.Labels {
		add(l.Text, l.Field)
		for _, alias := range l.Aliases {
			add(alias, l.Field)
		}
	}
}

// Normalize folds a line for label comparison: lower case, ё as е,
// surrounding space and a trailing colon removed.
func Normalize(line string) string {
	s := strings.ToLower(strings.TrimSpace(line))
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.TrimSpace(strings.TrimSuffix(s, ":"))
	return strings.Join(strings.Fields(s), " ")
}

// LabelField returns the field a line labels, if it is a label.
func (p *Profile) LabelField(line string) (string, bool) {
	if p.index == nil {
		p.buildIndex()
	}
	f, ok := p.index[Normalize(line)]
	return f, ok
}

// SplitInline splits a line that carries a label followed by its value on
// the same line, as in "Отправитель: Ivan P." or a two-column row. The
// longest matching label wins. ok is false when line is not of that form.
func (p *Profile) SplitInline(line string) (label, value string, ok bool) {
	if p.index == nil {
		p.buildIndex()
	}
	words := strings.Fields(line)
	for n := min(p.maxWords, len(words)-1); n >= 1; n-- {
		head := strings.Join(words[:n], " ")
		if _, found := p.LabelField(head); !found {
			continue
		}
		value = strings.TrimSpace(strings.TrimLeft(strings.Join(words[n:], " "), ":"))
		if value == "" {
			return "", "", false
		}
		return strings.TrimSpace(strings.TrimSuffix(head, ":")), value, true
	}
	return "", "", false
}

// ExpandInline rewrites every inline "label value" line as a label line
// followed by a value line, so strategies that read a label's value from
// the following lines see it there.
func (p *Profile) ExpandInline(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if p.IsLabel(line) {
			out = append(out, line)
			continue
		}
		if label, value, ok := p.SplitInline(line); ok {
			out = append(out, label, value)
			continue
		}
		out = append(out, line)
	}
	return out
}

// IsLabel reports whether line is any known label.
func (p *Profile) IsLabel(line string) bool {
	_, ok := p.LabelField(line)
	return ok
}

// Fields returns the field identifiers in profile order.
func (p *Profile) Fields() []string {
	out := make([]string, len(p.Labels))
	for i, l := range p.Labels {
		out[i] = l.Field
	}
	return out
}
