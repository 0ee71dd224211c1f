package lifecycle

import (
	"sort"

	"github.com/paywatch/paywatch/internal/domain"
)

// boundaryToleranceMs is how close an existing boundary stage must be to
// the derived boundary timestamp before we treat it as already present.
const boundaryToleranceMs = 1

// Reconstructor derives an ordered lifecycle stage sequence and a failure
// classification from a request's outcome and timing. It is pure: the same
// inputs always yield the same output.
type Reconstructor struct{}

func NewReconstructor() *Reconstructor {
	return &Reconstructor{}
}

// Reconstruct produces the lifecycle for one gated request. When raw
// stages were captured by an interception hook it sorts them and fills in
// missing boundary stages (direct mode); otherwise it synthesizes a
// plausible breakdown from the outcome and total duration alone
// (approximate mode).
func (r *Reconstructor) Reconstruct(outcome domain.Outcome, startedAt, totalMs int64, raw []domain.LifecycleStage) ([]domain.LifecycleStage, domain.FailureReason) {
	var stages []domain.LifecycleStage
	if len(raw) > 0 {
		stages = r.direct(startedAt, totalMs, raw)
	} else {
		stages = r.approximate(outcome, startedAt, totalMs)
	}
	return stages, Classify(outcome, stages)
}

// direct sorts captured stages by timestamp and appends the request and
// response boundary stages unless one already exists within tolerance.
func (r *Reconstructor) direct(startedAt, totalMs int64, raw []domain.LifecycleStage) []domain.LifecycleStage {
	stages := make([]domain.LifecycleStage, len(raw))
	copy(stages, raw)
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].TimestampMs < stages[j].TimestampMs
	})

	if !hasBoundary(stages, domain.StageRequestReceived, startedAt) {
		stages = append([]domain.LifecycleStage{{
			Name:        domain.StageRequestReceived,
			TimestampMs: startedAt,
		}}, stages...)
	}
	finishedAt := startedAt + totalMs
	if !hasBoundary(stages, domain.StageResponseSent, finishedAt) {
		stages = append(stages, domain.LifecycleStage{
			Name:        domain.StageResponseSent,
			TimestampMs: finishedAt,
		})
	}
	return stages
}

func hasBoundary(stages []domain.LifecycleStage, name string, ts int64) bool {
	for _, s := range stages {
		if s.Name != name {
			continue
		}
		d := s.TimestampMs - ts
		if d < 0 {
			d = -d
		}
		if d <= boundaryToleranceMs {
			return true
		}
	}
	return false
}

// approximate synthesizes a stage breakdown from timing alone. For
// rejected and settled outcomes the split is overhead 20% / verification
// 40% / settlement 40%, with the final stage absorbing rounding so stage
// durations sum to totalMs.
func (r *Reconstructor) approximate(outcome domain.Outcome, startedAt, totalMs int64) []domain.LifecycleStage {
	stages := []domain.LifecycleStage{
		{Name: domain.StageRequestReceived, TimestampMs: startedAt},
	}

	if outcome == domain.OutcomePaymentRequired {
		// No payment signature arrived; the whole duration is the
		// checkpoint's own overhead issuing the 402.
		stages = append(stages, domain.LifecycleStage{
			Name:        domain.StagePaymentRequiredIssued,
			TimestampMs: startedAt,
			DurationMs:  totalMs,
		})
		return stages
	}

	overheadMs := totalMs / 5
	verifyMs := totalMs * 2 / 5

	stages = append(stages, domain.LifecycleStage{
		Name:        domain.StagePaymentSigned,
		TimestampMs: startedAt,
		DurationMs:  overheadMs,
	})

	if outcome != domain.OutcomeSettled {
		// Verification failed; it absorbs the remainder.
		stages = append(stages, domain.LifecycleStage{
			Name:        domain.StageVerification,
			TimestampMs: startedAt + overheadMs,
			DurationMs:  totalMs - overheadMs,
		})
		return stages
	}

	settleMs := totalMs - overheadMs - verifyMs
	stages = append(stages,
		domain.LifecycleStage{
			Name:        domain.StageVerification,
			TimestampMs: startedAt + overheadMs,
			DurationMs:  verifyMs,
		},
		domain.LifecycleStage{
			Name:        domain.StageSettlement,
			TimestampMs: startedAt + overheadMs + verifyMs,
			DurationMs:  settleMs,
		},
		domain.LifecycleStage{
			Name:        domain.StageSettled,
			TimestampMs: startedAt + totalMs,
		},
		domain.LifecycleStage{
			Name:        domain.StageResponseSent,
			TimestampMs: startedAt + totalMs,
		},
	)
	return stages
}

// Classify derives the failure reason for a non-settled outcome. A
// rejected request with an explicit insufficient-balance marker on its
// settlement stage metadata resolves to that reason; otherwise rejection
// defaults to an invalid signature.
func Classify(outcome domain.Outcome, stages []domain.LifecycleStage) domain.FailureReason {
	switch outcome {
	case domain.OutcomeSettled:
		return ""
	case domain.OutcomePaymentRequired:
		return domain.FailureNoPaymentProvided
	case domain.OutcomeRejected:
		for _, s := range stages {
			if s.Name == domain.StageSettlement && s.Meta[domain.MetaErrorKey] == string(domain.FailureInsufficientBalance) {
				return domain.FailureInsufficientBalance
			}
		}
		return domain.FailureInvalidSignature
	default:
		return domain.FailureUnknown
	}
}
