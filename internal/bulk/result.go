package bulk

import "time"

// Outcome classifies how a bulk request's delivery ended.
type Outcome string

// Delivery outcomes.
const (
	// OutcomePending means delivery has not finished yet.
	OutcomePending Outcome = "pending"
	// OutcomeAcknowledged is a 2xx response with no item failures.
	OutcomeAcknowledged Outcome = "acknowledged"
	// OutcomePartial is a 2xx response reporting per-item failures.
	OutcomePartial Outcome = "partial"
	// OutcomeRejected is a 4xx response.
	OutcomeRejected Outcome = "rejected"
	// OutcomeServerError is a 5xx response. The batch was transmitted.
	OutcomeServerError Outcome = "server_error"
	// OutcomeTransportError means the endpoint could not be reached.
	OutcomeTransportError Outcome = "transport_error"
	// OutcomeDropped means the request never left the process.
	OutcomeDropped Outcome = "dropped"
	// OutcomeSkipped means there was nothing to send.
	OutcomeSkipped Outcome = "skipped"
)

// Failed reports whether the outcome counts as a delivery failure.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomePartial, OutcomeRejected, OutcomeServerError,
		OutcomeTransportError, OutcomeDropped:
		return true
	default:
		return false
	}
}

// Result describes a completed delivery attempt.
type Result struct {
	Outcome Outcome

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	// ItemFailures is the number of failed items reported in a 2xx body.
	ItemFailures int

	// Bytes is the size of the uncompressed payload.
	Bytes int

	Duration time.Duration
	Err      error
}
