package fields

import (
	"regexp"
	"strings"
	"time"

	"fjacquet/receipt-recon/internal/currencyutils"
	"fjacquet/receipt-recon/internal/dateutils"
	"fjacquet/receipt-recon/internal/layout"
	"fjacquet/receipt-recon/internal/models"
)

var (
	amountLabel = regexp.MustCompile(`^сумма(?: перевода| операции| платежа)?(?:[:\s]|$)`)
	totalLabel  = regexp.MustCompile(`^итого(?:[:\s]|$)`)
	statusLabel = regexp.MustCompile(`^статус(?: операции| перевода)?(?::|\s|$)`)

	operationIDLabel   = regexp.MustCompile(`^(?:идентификатор операции|номер операции|id операции)`)
	protocolCodeLabel  = regexp.MustCompile(`^код протокола`)
	receiptNumberLabel = regexp.MustCompile(`^(?:квитанция|номер квитанции|чек)(?:\s|№|#|$)`)

	identifierValue  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{3,}$`)
	receiptNumInline = regexp.MustCompile(`(?:№|#)\s*(\d[\d-]{2,})`)
	receiptNumLine   = regexp.MustCompile(`^(?:№\s*)?(\d[\d-]{2,})$`)
)

// lineValue returns the text after a label on the same line, or the next
// line when the label stands alone. idx is the line the value came from.
func lineValue(lines []string, i int, label *regexp.Regexp) (string, int) {
	n := layout.Normalize(lines[i])
	loc := label.FindStringIndex(n)
	if loc == nil {
		return "", -1
	}
	rest := strings.TrimSpace(strings.TrimLeft(n[loc[1]:], ": "))
	if rest != "" {
		// Take the same suffix from the original line to keep its case.
		orig := strings.TrimSpace(lines[i])
		runes := []rune(orig)
		restRunes := []rune(rest)
		if len(restRunes) <= len(runes) {
			return strings.TrimSpace(string(runes[len(runes)-len(restRunes):])), i
		}
		return rest, i
	}
	if i+1 < len(lines) {
		return strings.TrimSpace(lines[i+1]), i + 1
	}
	return "", -1
}

// extractCommon applies the whole-transcript rules. It returns the indices
// of lines consumed so the labelled strategies leave them alone.
func extractCommon(lines []string, f *Fields) map[int]bool {
	used := make(map[int]bool)

	for i, line := range lines {
		n := layout.Normalize(line)
		switch {
		case !f.Has(Amount) && amountLabel.MatchString(n) && !strings.Contains(n, "комисси"):
			if v, idx := lineValue(lines, i, amountLabel); idx >= 0 && isAmountValue(v) {
				if amount, ok := currencyutils.ExtractRubles(v); ok {
					f.set(Amount, amount.String())
					f.set(Currency, models.CurrencyRUB)
					used[i], used[idx] = true, true
				}
			}
		case !f.Has(Total) && totalLabel.MatchString(n):
			if v, idx := lineValue(lines, i, totalLabel); idx >= 0 {
				if amount, ok := currencyutils.ExtractRubles(v); ok {
					f.set(Total, amount.String())
					used[i], used[idx] = true, true
				}
			}
		case !f.Has(Status) && statusLabel.MatchString(n):
			if v, idx := lineValue(lines, i, statusLabel); idx >= 0 {
				f.set(Status, canonicalStatus(v))
				used[i], used[idx] = true, true
			}
		case !f.Has(OperationID) && operationIDLabel.MatchString(n):
			if v, idx := lineValue(lines, i, operationIDLabel); idx >= 0 && identifierValue.MatchString(v) {
				f.set(OperationID, v)
				used[i], used[idx] = true, true
			}
		case !f.Has(ProtocolCode) && protocolCodeLabel.MatchString(n):
			if v, idx := lineValue(lines, i, protocolCodeLabel); idx >= 0 && identifierValue.MatchString(v) {
				f.set(ProtocolCode, v)
				used[i], used[idx] = true, true
			}
		case !f.Has(ReceiptNumber) && receiptNumberLabel.MatchString(n):
			if m := receiptNumInline.FindStringSubmatch(n); m != nil {
				f.set(ReceiptNumber, m[1])
				used[i] = true
			} else if i+1 < len(lines) {
				if m := receiptNumLine.FindStringSubmatch(layout.Normalize(lines[i+1])); m != nil {
					f.set(ReceiptNumber, m[1])
					used[i], used[i+1] = true, true
				}
			}
		}
	}

	// A standalone success line stands for the status when no label exists.
	if !f.Has(Status) {
		for i, line := range lines {
			if layout.Normalize(line) == "успешно" {
				f.set(Status, models.StatusSuccess)
				used[i] = true
				break
			}
		}
	}

	if ts, ok := dateutils.FindTimestamp(lines); ok {
		f.set(Timestamp, ts.Format(time.RFC3339))
	}

	if _, line := detectVariant(lines); line != "" {
		f.set(TransferType, strings.TrimSpace(line))
	}
	return used
}

// isAmountValue rejects the total and the commission, which share the
// "сумма" wording on some templates.
func isAmountValue(v string) bool {
	n := layout.Normalize(v)
	return !totalLabel.MatchString(n) && !strings.Contains(n, "комисси")
}

func canonicalStatus(v string) string {
	if layout.Normalize(v) == "успешно" {
		return models.StatusSuccess
	}
	return strings.TrimSpace(v)
}
