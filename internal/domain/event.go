package domain

// Outcome is the tri-state result of a gated request. The numeric values
// are the protocol status codes returned by the payment checkpoint.
type Outcome int

const (
	OutcomeSettled         Outcome = 200
	OutcomePaymentRequired Outcome = 402
	OutcomeRejected        Outcome = 403
)

// Valid reports whether o is one of the three checkpoint outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSettled, OutcomePaymentRequired, OutcomeRejected:
		return true
	}
	return false
}

// Settled reports whether the payment was accepted and finalized.
func (o Outcome) Settled() bool { return o == OutcomeSettled }

// Lifecycle stage vocabulary. Stages mirror the checkpoint's
// verify -> settle negotiation flow.
const (
	StageRequestReceived       = "request_received"
	StagePaymentRequiredIssued = "payment_required_issued"
	StagePaymentSigned         = "payment_signed"
	StageVerification          = "verification"
	StageSettlement            = "settlement"
	StageSettled               = "settled"
	StageResponseSent          = "response_sent"
)

// FailureReason classifies why a gated request did not settle.
type FailureReason string

const (
	FailureNoPaymentProvided   FailureReason = "no_payment_provided"
	FailureInvalidSignature    FailureReason = "invalid_signature"
	FailureFacilitatorTimeout  FailureReason = "facilitator_timeout"
	FailureInsufficientBalance FailureReason = "insufficient_balance"
	FailureUnknown             FailureReason = "unknown"
)

// MetaErrorKey is the lifecycle metadata key carrying an upstream error
// marker (e.g. "insufficient_balance" on the settlement stage).
const MetaErrorKey = "error"

// LifecycleStage is one named, timestamped phase within a request's
// payment negotiation. Stages for a single event are non-decreasing
// by TimestampMs.
type LifecycleStage struct {
	Name        string            `json:"stage"`
	TimestampMs int64             `json:"timestamp_ms"`
	DurationMs  int64             `json:"duration_ms"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Location is a derived display coordinate for an event's payer.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Country string  `json:"country"`
}

// PaymentEvent is the immutable record of one gated request and its
// reconstructed lifecycle. It is created once by the ingestion boundary,
// appended once to the event store, and never mutated afterwards.
//
// Invariants: AmountUSDC > 0 iff Outcome is settled; FailureReason is
// non-empty iff Outcome is not settled; TxHash and Payer are present only
// when extractable from settlement metadata.
type PaymentEvent struct {
	ID            string           `json:"id"`
	ScopeID       string           `json:"scope_id"`
	Endpoint      string           `json:"endpoint"`
	Outcome       Outcome          `json:"status"`
	AmountUSDC    float64          `json:"amount_usdc"`
	StartedAt     int64            `json:"started_at"` // epoch ms
	DurationMs    int64            `json:"duration_ms"`
	TxHash        string           `json:"tx_hash,omitempty"`
	Payer         string           `json:"payer,omitempty"`
	FailureReason FailureReason    `json:"failure_reason,omitempty"`
	Lifecycle     []LifecycleStage `json:"lifecycle"`
	Location      Location         `json:"location"`
}
