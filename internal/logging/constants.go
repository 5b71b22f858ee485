package logging

// Field names shared by all components so log output can be filtered
// per document or per payment.
const (
	FieldFingerprint = "fingerprint"
	FieldMessageID   = "message_id"
	FieldMethod      = "method"
	FieldLayout      = "layout"
	FieldVariant     = "variant"
	FieldField       = "field"
	FieldPaymentID   = "payment_id"
	FieldDecision    = "decision"
	FieldCandidates  = "candidates"
	FieldAmount      = "amount"
	FieldFile        = "file_path"
	FieldCount       = "count"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldComponent   = "component"
)
