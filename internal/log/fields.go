package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"

	FieldOwnerID     = "owner_id"
	FieldRuleID      = "rule_id"
	FieldEntryID     = "entry_id"
	FieldFrequency   = "frequency"
	FieldNextRun     = "next_run"
	FieldAmountCents = "amount_cents"
	FieldChecked     = "checked"
	FieldFired       = "fired"
	FieldFailed      = "failed"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentWorker   = "worker"
	ComponentConsumer = "consumer"
)
