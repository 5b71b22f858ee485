// Package receipterror defines the typed failures produced while turning a
// document into a reconciled receipt.
package receipterror

import (
	"fmt"
	"strings"
)

// MethodAttempt records how one extraction method fared.
type MethodAttempt struct {
	Method string
	Err    error
}

// ExtractionFailure means no extraction method produced text.
type ExtractionFailure struct {
	Fingerprint string
	Attempts    []MethodAttempt
}

func (e *ExtractionFailure) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", a.Method, a.Err))
		} else {
			parts = append(parts, a.Method+": empty")
		}
	}
	return fmt.Sprintf("extraction failed for %s after %d methods [%s]",
		shortFingerprint(e.Fingerprint), len(e.Attempts), strings.Join(parts, "; "))
}

// StructureUnrecognized is reported when no field label could be located.
// Parsing continues with the sequential strategy; the error is only logged.
type StructureUnrecognized struct {
	Fingerprint string
}

func (e *StructureUnrecognized) Error() string {
	return fmt.Sprintf("no layout signal in %s, using sequential strategy", shortFingerprint(e.Fingerprint))
}

// FieldMissing means a required field could not be located.
type FieldMissing struct {
	Field string
}

func (e *FieldMissing) Error() string {
	return fmt.Sprintf("required field missing: %s", e.Field)
}

// RejectedDocument means the transfer status is not successful. The
// document is excluded from settlement.
type RejectedDocument struct {
	Status string
}

func (e *RejectedDocument) Error() string {
	if e.Status == "" {
		return "document rejected: no success status"
	}
	return fmt.Sprintf("document rejected: status %q", e.Status)
}

// DuplicateReceipt means a byte-identical document was already processed.
type DuplicateReceipt struct {
	Fingerprint string
}

func (e *DuplicateReceipt) Error() string {
	return fmt.Sprintf("duplicate receipt %s", shortFingerprint(e.Fingerprint))
}

// Is lets errors.Is match any DuplicateReceipt regardless of fingerprint.
func (e *DuplicateReceipt) Is(target error) bool {
	_, ok := target.(*DuplicateReceipt)
	return ok
}

// Is lets errors.Is match any RejectedDocument.
func (e *RejectedDocument) Is(target error) bool {
	_, ok := target.(*RejectedDocument)
	return ok
}

// Is matches a FieldMissing with the same field, or any field when the
// target's Field is empty.
func (e *FieldMissing) Is(target error) bool {
	t, ok := target.(*FieldMissing)
	if !ok {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// Is lets errors.Is match any ExtractionFailure.
func (e *ExtractionFailure) Is(target error) bool {
	_, ok := target.(*ExtractionFailure)
	return ok
}

// Kind names the error category for logs, exports and CLI output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case isType[*ExtractionFailure](err):
		return "extraction_failure"
	case isType[*FieldMissing](err):
		return "field_missing"
	case isType[*RejectedDocument](err):
		return "rejected"
	case isType[*DuplicateReceipt](err):
		return "duplicate"
	case isType[*StructureUnrecognized](err):
		return "structure_unrecognized"
	default:
		return "internal"
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	if fp == "" {
		return "<unknown>"
	}
	return fp
}
