package fields

import (
	"regexp"

	"fjacquet/receipt-recon/internal/layout"
	"fjacquet/receipt-recon/internal/models"
)

type variantRule struct {
	variant models.TransferVariant
	phrase  *regexp.Regexp
}

// Rules are checked per line in this order; the first line carrying any
// phrase decides.
var variantRules = []variantRule{
	{models.VariantToPlatformClient, regexp.MustCompile(`(?:^|[^\p{L}])клиенту(?:[^\p{L}]|$)`)},
	{models.VariantToCard, regexp.MustCompile(`по номеру карты|(?:^|[^\p{L}])на карту(?:[^\p{L}]|$)`)},
	{models.VariantByPhone, regexp.MustCompile(`по номеру телефона|(?:^|[^\p{L}])сбп(?:[^\p{L}]|$)|система быстрых платежей|^телефон получателя$`)},
}

// DetectVariant scans lines for variant-defining phrases.
func DetectVariant(lines []string) models.TransferVariant {
	v, _ := detectVariant(lines)
	return v
}

// detectVariant also returns the line that carried the phrase.
func detectVariant(lines []string) (models.TransferVariant, string) {
	for _, line := range lines {
		n := layout.Normalize(line)
		for _, rule := range variantRules {
			if rule.phrase.MatchString(n) {
				return rule.variant, line
			}
		}
	}
	return models.VariantUnknown, ""
}
