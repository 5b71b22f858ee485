package models

import (
	"time"

	"fjacquet/receipt-recon/internal/receipterror"
)

// LayoutKind describes how labels and values are arranged in a transcript.
type LayoutKind string

const (
	LayoutColumnar     LayoutKind = "columnar"
	LayoutSequential   LayoutKind = "sequential"
	LayoutUnrecognized LayoutKind = "unrecognized"
)

// TransferVariant is the kind of payment destination named by a receipt.
type TransferVariant string

const (
	VariantByPhone          TransferVariant = "by-phone"
	VariantToPlatformClient TransferVariant = "to-platform-client"
	VariantToCard           TransferVariant = "to-card"
	VariantUnknown          TransferVariant = "unknown"
)

// StatusSuccess is the status text of a completed transfer.
const StatusSuccess = "Успешно"

// ByPhoneDetails is the recipient of a transfer addressed by phone number.
type ByPhoneDetails struct {
	Phone string `json:"phone" yaml:"phone"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Bank  string `json:"bank,omitempty" yaml:"bank,omitempty"`
}

// PlatformClientDetails is the recipient of a transfer to a client of the
// issuing bank.
type PlatformClientDetails struct {
	Name       string `json:"name" yaml:"name"`
	CardSuffix string `json:"card_suffix" yaml:"card_suffix"`
}

// CardDetails is the recipient of a transfer addressed by card number.
type CardDetails struct {
	MaskedCard string `json:"masked_card" yaml:"masked_card"`
}

// ParsedReceipt is a validated receipt. Exactly one of ByPhone,
// PlatformClient and Card is set, matching Variant.
type ParsedReceipt struct {
	Fingerprint   string          `json:"fingerprint" yaml:"fingerprint"`
	Variant       TransferVariant `json:"variant" yaml:"variant"`
	Layout        LayoutKind      `json:"layout" yaml:"layout"`
	Timestamp     *time.Time      `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Amount        Money           `json:"amount" yaml:"amount"`
	Total         *Money          `json:"total,omitempty" yaml:"total,omitempty"`
	Commission    *Money          `json:"commission,omitempty" yaml:"commission,omitempty"`
	Status        string          `json:"status" yaml:"status"`
	SenderName    string          `json:"sender_name" yaml:"sender_name"`
	SenderAccount string          `json:"sender_account,omitempty" yaml:"sender_account,omitempty"`
	OperationID   string          `json:"operation_id,omitempty" yaml:"operation_id,omitempty"`
	ProtocolCode  string          `json:"protocol_code,omitempty" yaml:"protocol_code,omitempty"`
	ReceiptNumber string          `json:"receipt_number,omitempty" yaml:"receipt_number,omitempty"`

	ByPhone        *ByPhoneDetails        `json:"by_phone,omitempty" yaml:"by_phone,omitempty"`
	PlatformClient *PlatformClientDetails `json:"platform_client,omitempty" yaml:"platform_client,omitempty"`
	Card           *CardDetails           `json:"card,omitempty" yaml:"card,omitempty"`

	Transcript Transcript `json:"transcript" yaml:"transcript"`
}

// Validate checks the receipt invariants and returns the first violation.
func (r *ParsedReceipt) Validate() error {
	if r.Status != StatusSuccess {
		return &receipterror.RejectedDocument{Status: r.Status}
	}
	if !r.Amount.IsPositive() {
		return &receipterror.FieldMissing{Field: "amount"}
	}
	if r.SenderName == "" {
		return &receipterror.FieldMissing{Field: "sender"}
	}

	set := 0
	for _, present := range []bool{r.ByPhone != nil, r.PlatformClient != nil, r.Card != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return &receipterror.FieldMissing{Field: "transfer_type"}
	}

	switch r.Variant {
	case VariantByPhone:
		if r.ByPhone == nil || r.ByPhone.Phone == "" {
			return &receipterror.FieldMissing{Field: "recipient_phone"}
		}
	case VariantToPlatformClient:
		if r.PlatformClient == nil || r.PlatformClient.Name == "" {
			return &receipterror.FieldMissing{Field: "recipient"}
		}
		if r.PlatformClient.CardSuffix == "" {
			return &receipterror.FieldMissing{Field: "recipient_card"}
		}
	case VariantToCard:
		if r.Card == nil || r.Card.MaskedCard == "" {
			return &receipterror.FieldMissing{Field: "recipient_card"}
		}
	default:
		return &receipterror.FieldMissing{Field: "transfer_type"}
	}
	return nil
}

// Recipient returns a short human-readable recipient description.
func (r *ParsedReceipt) Recipient() string {
	switch {
	case r.ByPhone != nil:
		if r.ByPhone.Name != "" {
			return r.ByPhone.Name + " " + r.ByPhone.Phone
		}
		return r.ByPhone.Phone
	case r.PlatformClient != nil:
		return r.PlatformClient.Name + " " + r.PlatformClient.CardSuffix
	case r.Card != nil:
		return r.Card.MaskedCard
	}
	return ""
}

// TotalConsistent reports whether the stated total equals the amount plus
// the commission. A receipt without a total is consistent.
func (r *ParsedReceipt) TotalConsistent() bool {
	if r.Total == nil {
		return true
	}
	fee := ZeroMoney(r.Amount.Currency)
	if r.Commission != nil && !r.Commission.IsZero() {
		fee = *r.Commission
	}
	sum, err := r.Amount.Add(fee)
	if err != nil {
		return false
	}
	return sum.Equal(*r.Total)
}
