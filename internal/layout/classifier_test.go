package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/receipt-recon/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Комиссия", "комиссия"},
		{"  Счёт списания: ", "счет списания"},
		{"ТЕЛЕФОН   ПОЛУЧАТЕЛЯ:", "телефон получателя"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestProfile_LabelField(t *testing.T) {
	p := DefaultProfile()

	field, ok := p.LabelField("Счёт списания:")
	assert.True(t, ok)
	assert.Equal(t, FieldDebitAccount, field)

	field, ok = p.LabelField("Номер телефона получателя")
	assert.True(t, ok)
	assert.Equal(t, FieldRecipientPhone, field)

	assert.False(t, p.IsLabel("Получатель платежа Иван"), "labels match whole lines only")
	assert.Equal(t, 7, len(p.Fields()))
}

func TestProfile_SplitInline(t *testing.T) {
	p := DefaultProfile()
	tests := []struct {
		line  string
		label string
		value string
		ok    bool
	}{
		{"Отправитель   Ivan P.", "Отправитель", "Ivan P.", true},
		{"Отправитель: Ivan P.", "Отправитель", "Ivan P.", true},
		{"Отправитель : Ivan P.", "Отправитель", "Ivan P.", true},
		{"Номер телефона получателя +7 912 345-67-89", "Номер телефона получателя", "+7 912 345-67-89", true},
		{"Счёт списания **** 1234", "Счёт списания", "**** 1234", true},
		{"Отправитель", "", "", false},
		{"Отправитель:", "", "", false},
		{"Перевод по номеру телефона", "", "", false},
		{"Ivan P.", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			label, value, ok := p.SplitInline(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestProfile_ExpandInline(t *testing.T) {
	p := DefaultProfile()
	lines := []string{"Сумма 100 ₽", "Отправитель Ivan P.", "Получатель", "Анна К."}

	expanded := p.ExpandInline(lines)
	assert.Equal(t, []string{"Сумма 100 ₽", "Отправитель", "Ivan P.", "Получатель", "Анна К."}, expanded)
	assert.Equal(t, models.LayoutSequential, NewClassifier(p).Classify(expanded))
	assert.Equal(t, models.LayoutSequential, NewClassifier(p).Classify(lines))
}

func TestClassifier_Analyze(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		kind  models.LayoutKind
		found int
	}{
		{
			name:  "no labels",
			lines: []string{"Перевод", "4 500 ₽", "Успешно"},
			kind:  models.LayoutUnrecognized,
		},
		{
			name:  "below threshold",
			lines: []string{"Комиссия", "Отправитель", "Получатель", "Без комиссии"},
			kind:  models.LayoutSequential,
			found: 3,
		},
		{
			name: "consecutive block",
			lines: []string{
				"Перевод по СБП", "Комиссия", "Отправитель", "Телефон получателя", "Получатель",
				"Без комиссии", "Ivan P.", "+7 999 123-45-67", "Анна К.",
			},
			kind:  models.LayoutColumnar,
			found: 4,
		},
		{
			name: "interleaved",
			lines: []string{
				"Комиссия", "Без комиссии", "Отправитель", "Ivan P.",
				"Телефон получателя", "+7 999 123-45-67", "Получатель", "Анна К.",
			},
			kind:  models.LayoutSequential,
			found: 4,
		},
		{
			name: "one gap breaks the block",
			lines: []string{
				"Комиссия", "Отправитель", "Телефон получателя", "x", "Получатель", "Банк получателя",
			},
			kind:  models.LayoutSequential,
			found: 5,
		},
	}

	c := NewClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := c.Analyze(tt.lines)
			assert.Equal(t, tt.kind, a.Kind)
			assert.Len(t, a.Positions, tt.found)
			assert.Equal(t, tt.kind, c.Classify(tt.lines))
		})
	}
}

func TestClassifier_LocateFirstOccurrenceSorted(t *testing.T) {
	c := NewClassifier(nil)
	positions := c.Locate([]string{"Получатель", "x", "Комиссия", "Получатель"})
	require.Len(t, positions, 2)
	assert.Equal(t, Position{Field: FieldRecipient, Index: 0}, positions[0])
	assert.Equal(t, Position{Field: FieldCommission, Index: 2}, positions[1])
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: alt-bank
threshold: 2
labels:
  - field: sender
    text: "ФИО отправителя"
  - field: recipient_phone
    text: "Телефон"
`), 0600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "alt-bank", p.Name)
	assert.Equal(t, 2, p.Threshold)

	c := NewClassifier(p)
	assert.Equal(t, models.LayoutColumnar, c.Classify([]string{"ФИО отправителя:", "Телефон", "Ivan P.", "+79991234567"}))
}

func TestLoadProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", "name: x\n"},
		{"unknown field", "labels:\n  - field: wallet\n    text: Кошелек\n"},
		{"duplicate", "labels:\n  - {field: sender, text: A}\n  - {field: sender, text: B}\n"},
		{"negative threshold", "threshold: -1\nlabels:\n  - {field: sender, text: A}\n"},
		{"not yaml", "labels: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "p.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0600))
			_, err := LoadProfile(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
