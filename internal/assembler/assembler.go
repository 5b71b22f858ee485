// Package assembler turns extracted fields into a validated ParsedReceipt.
package assembler

import (
	"fmt"
	"time"

	"fjacquet/receipt-recon/internal/dateutils"
	"fjacquet/receipt-recon/internal/fields"
	"fjacquet/receipt-recon/internal/models"
	"fjacquet/receipt-recon/internal/receipterror"
)

// Assemble validates f and builds the receipt for variant. Checks run in a
// fixed order and the first failure is returned: status, amount, sender,
// transfer type, then the fields the variant requires.
func Assemble(transcript models.Transcript, kind models.LayoutKind, variant models.TransferVariant, f fields.Fields) (*models.ParsedReceipt, error) {
	status, _ := f.Get(fields.Status)
	if status != models.StatusSuccess {
		return nil, &receipterror.RejectedDocument{Status: status}
	}

	currency, ok := f.Get(fields.Currency)
	if !ok {
		currency = models.CurrencyRUB
	}
	amount, err := money(f, fields.Amount, currency)
	if err != nil || amount == nil || !amount.IsPositive() {
		return nil, &receipterror.FieldMissing{Field: fields.Amount}
	}

	sender, ok := f.Get(fields.Sender)
	if !ok {
		return nil, &receipterror.FieldMissing{Field: fields.Sender}
	}

	r := &models.ParsedReceipt{
		Variant:    variant,
		Layout:     kind,
		Amount:     *amount,
		Status:     status,
		SenderName: sender,
		Transcript: transcript,
	}

	if err := attachRecipient(r, f); err != nil {
		return nil, err
	}

	if r.Total, err = money(f, fields.Total, currency); err != nil {
		return nil, err
	}
	if r.Commission, err = money(f, fields.Commission, currency); err != nil {
		return nil, err
	}
	if v, ok := f.Get(fields.Timestamp); ok {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", v, err)
		}
		ts = ts.In(dateutils.Moscow)
		r.Timestamp = &ts
	}
	r.SenderAccount, _ = f.Get(fields.DebitAccount)
	r.OperationID, _ = f.Get(fields.OperationID)
	r.ProtocolCode, _ = f.Get(fields.ProtocolCode)
	r.ReceiptNumber, _ = f.Get(fields.ReceiptNumber)

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func attachRecipient(r *models.ParsedReceipt, f fields.Fields) error {
	name, _ := f.Get(fields.Recipient)

	switch r.Variant {
	case models.VariantByPhone:
		phone, ok := f.Get(fields.RecipientPhone)
		if !ok {
			return &receipterror.FieldMissing{Field: fields.RecipientPhone}
		}
		bank, _ := f.Get(fields.RecipientBank)
		r.ByPhone = &models.ByPhoneDetails{Phone: phone, Name: name, Bank: bank}
	case models.VariantToPlatformClient:
		if name == "" {
			return &receipterror.FieldMissing{Field: fields.Recipient}
		}
		suffix, ok := f.Get(fields.RecipientCard)
		if !ok {
			return &receipterror.FieldMissing{Field: fields.RecipientCard}
		}
		r.PlatformClient = &models.PlatformClientDetails{Name: name, CardSuffix: suffix}
	case models.VariantToCard:
		card, ok := f.Get(fields.RecipientCard)
		if !ok {
			return &receipterror.FieldMissing{Field: fields.RecipientCard}
		}
		r.Card = &models.CardDetails{MaskedCard: card}
	default:
		return &receipterror.FieldMissing{Field: fields.TransferType}
	}
	return nil
}

// money returns nil when field is absent.
func money(f fields.Fields, field, currency string) (*models.Money, error) {
	v, ok := f.Get(field)
	if !ok {
		return nil, nil
	}
	m, err := models.NewMoneyFromString(v, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	return &m, nil
}
