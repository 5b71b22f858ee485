// Package fields pulls the semantic fields out of a classified transcript.
//
// Labelled fields (sender, recipient, phone, ...) are read with a strategy
// chosen by the layout; common fields (amount, status, timestamp,
// identifiers) are read by dedicated rules over the whole transcript.
package fields

import (
	"sort"

	"fjacquet/receipt-recon/internal/layout"
)

// Common field identifiers. Labelled ones are the layout.Field* constants.
const (
	Amount        = "amount"
	Currency      = "currency"
	Total         = "total"
	Status        = "status"
	Timestamp     = "timestamp"
	TransferType  = "transfer_type"
	OperationID   = "operation_id"
	ProtocolCode  = "protocol_code"
	ReceiptNumber = "receipt_number"

	Commission     = layout.FieldCommission
	Sender         = layout.FieldSender
	RecipientPhone = layout.FieldRecipientPhone
	Recipient      = layout.FieldRecipient
	RecipientBank  = layout.FieldRecipientBank
	RecipientCard  = layout.FieldRecipientCard
	DebitAccount   = layout.FieldDebitAccount
)

// Fields holds extracted values. A field that could not be located is
// absent, never an empty string.
type Fields struct {
	values map[string]string
}

// NewFields returns an empty set, optionally seeded with values.
func NewFields(values map[string]string) Fields {
	f := Fields{values: make(map[string]string, len(values))}
	for k, v := range values {
		f.set(k, v)
	}
	return f
}

// Get returns the value of field and whether it was found.
func (f Fields) Get(field string) (string, bool) {
	v, ok := f.values[field]
	return v, ok
}

// Has reports whether field was found.
func (f Fields) Has(field string) bool {
	_, ok := f.values[field]
	return ok
}

// Names lists the found fields, sorted.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f.values))
	for k := range f.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of all values.
func (f Fields) Map() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

func (f *Fields) set(field, value string) {
	if value == "" {
		return
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[field] = value
}
