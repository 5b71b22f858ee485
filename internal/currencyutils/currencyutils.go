// Package currencyutils parses ruble amounts as they are printed on bank
// receipts ("4 500 ₽", "1 000,50 руб.", "12 RUB 30 коп.").
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyMarker = regexp.MustCompile(`(?i)(₽|(?:^|[^\p{L}])(?:руб|rub)(?:[^\p{L}]|$)|(?:^|[^\p{L}])р\.)`)

	// An amount followed by a currency marker, with optional kopecks.
	rubleAmount = regexp.MustCompile(`(?i)(-?\d{1,3}(?:[ '’]\d{3})+(?:[.,]\d{1,2})?|-?\d+(?:[.,]\d{1,2})?)\s*(?:₽|руб\.?|RUB|р\.)(?:\s*(\d{1,2})\s*коп\.?)?`)

	stripCurrency = regexp.MustCompile(`(?i)(₽|руб\.?|RUB|р\.|\s)`)
)

// ParseAmount parses a printed amount into a decimal. Spaces and apostrophes
// are thousands separators; a comma or a dot is the decimal separator.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	standardized := StandardizeAmount(amountStr)
	if standardized == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// StandardizeAmount converts a printed amount into the form accepted by
// decimal.NewFromString.
func StandardizeAmount(amountStr string) string {
	amountStr = stripCurrency.ReplaceAllString(amountStr, "")
	amountStr = strings.NewReplacer("'", "", "’", "").Replace(amountStr)

	if strings.Contains(amountStr, ",") && strings.Contains(amountStr, ".") {
		// 1.234,56
		if strings.LastIndex(amountStr, ".") < strings.LastIndex(amountStr, ",") {
			amountStr = strings.ReplaceAll(amountStr, ".", "")
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	} else if strings.Contains(amountStr, ",") {
		parts := strings.Split(amountStr, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			amountStr = strings.Replace(amountStr, ",", ".", 1)
		} else {
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	}
	return amountStr
}

// HasCurrencyMarker reports whether line names rubles in any usual form.
func HasCurrencyMarker(line string) bool {
	return currencyMarker.MatchString(line)
}

// ExtractRubles finds the first ruble amount in line. Kopecks written as a
// separate "NN коп." suffix are added to the whole part.
func ExtractRubles(line string) (decimal.Decimal, bool) {
	m := rubleAmount.FindStringSubmatch(line)
	if m == nil {
		return decimal.Zero, false
	}
	amount, err := ParseAmount(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	if m[2] != "" && amount.Equal(amount.Truncate(0)) {
		kop, err := decimal.NewFromString(m[2])
		if err == nil {
			amount = amount.Add(kop.Shift(-2))
		}
	}
	return amount, true
}

// FormatAmount renders amount the way receipts print it: grouped thousands
// with a space, comma decimals, and the ruble sign.
func FormatAmount(amount decimal.Decimal, currency string) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(' ')
		}
		grouped.WriteRune(r)
	}

	out := sign + grouped.String() + "," + frac
	switch strings.ToUpper(currency) {
	case "RUB":
		return out + " ₽"
	case "":
		return out
	default:
		return out + " " + currency
	}
}
