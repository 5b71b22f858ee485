package models

import "time"

// PaymentState is the ledger state of a pending payment.
type PaymentState string

const (
	PaymentAwaitingConfirmation PaymentState = "awaiting_confirmation"
	PaymentConfirmed            PaymentState = "confirmed"
	PaymentCancelled            PaymentState = "cancelled"
)

// Valid reports whether s is a known state.
func (s PaymentState) Valid() bool {
	switch s {
	case PaymentAwaitingConfirmation, PaymentConfirmed, PaymentCancelled:
		return true
	}
	return false
}

// PendingPayment is money owed to a counterparty, owned by the ledger. The
// engine only writes BoundReceipt.
type PendingPayment struct {
	ID           string       `json:"id" yaml:"id"`
	Amount       Money        `json:"amount" yaml:"amount"`
	State        PaymentState `json:"state" yaml:"state"`
	CreatedAt    time.Time    `json:"created_at" yaml:"created_at"`
	BoundReceipt string       `json:"bound_receipt,omitempty" yaml:"bound_receipt,omitempty"`
	Reference    string       `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// Claimable reports whether the payment may still be bound to a receipt.
func (p PendingPayment) Claimable() bool {
	return p.State == PaymentAwaitingConfirmation && p.BoundReceipt == ""
}

// Decision is the reconciliation outcome for one receipt.
type Decision string

const (
	DecisionMatched   Decision = "matched"
	DecisionAmbiguous Decision = "ambiguous"
	DecisionUnmatched Decision = "unmatched"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionMatched, DecisionAmbiguous, DecisionUnmatched:
		return true
	}
	return false
}

// ReceiptPaymentLink records how a receipt was reconciled. PaymentID is set
// only for matched links; Candidates only for ambiguous ones.
type ReceiptPaymentLink struct {
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	PaymentID   string    `json:"payment_id,omitempty" yaml:"payment_id,omitempty"`
	Decision    Decision  `json:"decision" yaml:"decision"`
	Candidates  []string  `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Amount      Money     `json:"amount" yaml:"amount"`
	DecidedAt   time.Time `json:"decided_at" yaml:"decided_at"`
}
