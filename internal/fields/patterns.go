package fields

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"fjacquet/receipt-recon/internal/currencyutils"
	"fjacquet/receipt-recon/internal/layout"
	"fjacquet/receipt-recon/internal/models"
)

var (
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\u00a0", "")
	phonePattern    = regexp.MustCompile(`^(?:\+7|8)([\d*•]{10})$`)

	cardSuffixPattern = regexp.MustCompile(`^[*•·]{1,4}(\d{4})$`)
	fullCardPattern   = regexp.MustCompile(`^(\d{4,6})[*•·]{2,}(\d{4})$`)
	accountPattern    = regexp.MustCompile(`^[*•·]*\d{4,20}$`)
	plainAmount       = regexp.MustCompile(`^\d{1,3}(?:[ ']\d{3})*(?:[.,]\d{1,2})?$|^\d+(?:[.,]\d{1,2})?$`)

	nameToken = `(?:\p{Lu}[\p{L}'’-]*|\p{Lu}\.)`
	// Two to five capitalised words or initials: "Ivan P.", "Анна К.", "Иванов Иван Иванович".
	namePattern = regexp.MustCompile(`^` + nameToken + `(?:\s+` + nameToken + `){1,4}$`)
)

// Bank names that do not contain the word "банк", matched as whole words.
var knownBanks = map[string]bool{
	"сбер": true, "сбербанк": true, "втб": true, "тинькофф": true, "райффайзен": true,
	"открытие": true, "озон": true, "ozon": true, "юmoney": true, "юмани": true,
	"yoomoney": true, "qiwi": true, "киви": true, "уралсиб": true,
}

var rejectedNames = map[string]bool{
	"без комиссии": true,
	"успешно":      true,
}

// normalizePhone returns +7XXXXXXXXXX for Russian mobile numbers.
func normalizePhone(line string) (string, bool) {
	m := phonePattern.FindStringSubmatch(phoneSeparators.Replace(line))
	if m == nil {
		return "", false
	}
	digits := 0
	for _, r := range m[1] {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 4 {
		return "", false
	}
	return "+7" + strings.ReplaceAll(m[1], "•", "*"), true
}

func compact(line string) string {
	return strings.Join(strings.Fields(line), "")
}

// normalizeCardSuffix returns *1234 for a masked card suffix.
func normalizeCardSuffix(line string) (string, bool) {
	m := cardSuffixPattern.FindStringSubmatch(compact(line))
	if m == nil {
		return "", false
	}
	return "*" + m[1], true
}

// normalizeFullCard returns 2200********1234 for a masked full card number.
func normalizeFullCard(line string) (string, bool) {
	c := compact(line)
	m := fullCardPattern.FindStringSubmatch(c)
	if m == nil {
		return "", false
	}
	masked := utf8.RuneCountInString(c) - len(m[1]) - len(m[2])
	return m[1] + strings.Repeat("*", masked) + m[2], true
}

func normalizeAccount(line string) (string, bool) {
	c := compact(line)
	if !accountPattern.MatchString(c) {
		return "", false
	}
	return strings.NewReplacer("•", "*", "·", "*").Replace(c), true
}

func isNoCommission(line string) bool {
	return strings.Contains(layout.Normalize(line), "без комиссии")
}

// commissionValue returns the commission as a decimal string; the explicit
// "no commission" marker is zero.
func commissionValue(line string) (string, bool) {
	if isNoCommission(line) {
		return "0", true
	}
	if amount, ok := currencyutils.ExtractRubles(line); ok {
		return amount.String(), true
	}
	if plainAmount.MatchString(strings.TrimSpace(line)) {
		amount, err := currencyutils.ParseAmount(line)
		if err == nil {
			return amount.String(), true
		}
	}
	return "", false
}

func isBank(line string) bool {
	n := layout.Normalize(line)
	if strings.Contains(n, "банк") || strings.Contains(n, "bank") {
		return true
	}
	for _, word := range strings.FieldsFunc(n, func(r rune) bool { return r == ' ' || r == '-' || r == '"' || r == '«' || r == '»' }) {
		if knownBanks[word] {
			return true
		}
	}
	return false
}

func isName(line string) bool {
	line = strings.TrimSpace(line)
	if rejectedNames[layout.Normalize(line)] || isBank(line) {
		return false
	}
	return namePattern.MatchString(line)
}

// matchLabelled validates line as the value of a labelled field and returns
// the normalized value.
func matchLabelled(field string, variant models.TransferVariant, line string) (string, bool) {
	switch field {
	case layout.FieldCommission:
		return commissionValue(line)
	case layout.FieldSender, layout.FieldRecipient:
		if isName(line) {
			return strings.Join(strings.Fields(line), " "), true
		}
	case layout.FieldRecipientPhone:
		return normalizePhone(line)
	case layout.FieldRecipientBank:
		if isBank(line) {
			return strings.TrimSpace(line), true
		}
	case layout.FieldRecipientCard:
		switch variant {
		case models.VariantToPlatformClient:
			return normalizeCardSuffix(line)
		case models.VariantToCard:
			return normalizeFullCard(line)
		default:
			if v, ok := normalizeFullCard(line); ok {
				return v, true
			}
			return normalizeCardSuffix(line)
		}
	case layout.FieldDebitAccount:
		return normalizeAccount(line)
	}
	return "", false
}

// matchSelfIdentifying recognizes values that are unambiguous without their
// label: phone numbers, masked cards and the no-commission marker.
func matchSelfIdentifying(field string, variant models.TransferVariant, line string) (string, bool) {
	switch field {
	case layout.FieldRecipientPhone:
		return normalizePhone(line)
	case layout.FieldRecipientCard:
		return matchLabelled(field, variant, line)
	case layout.FieldCommission:
		if isNoCommission(line) {
			return "0", true
		}
	}
	return "", false
}

var selfIdentifying = map[string]bool{
	layout.FieldRecipientPhone: true,
	layout.FieldRecipientCard:  true,
	layout.FieldCommission:     true,
}
