package usecase

import (
	"context"
	"time"

	"github.com/paywatch/paywatch/internal/domain"
)

// AccessStatus is the tri-state answer to a subscription check. A missing
// payer identity is distinct from an expired window.
type AccessStatus int

const (
	AccessNoIdentity AccessStatus = iota
	AccessExpired
	AccessActive
)

func (s AccessStatus) String() string {
	switch s {
	case AccessActive:
		return "active"
	case AccessExpired:
		return "expired"
	default:
		return "no_identity"
	}
}

// SubscriptionUseCase answers whether a payer holds a valid rolling access
// window. Validity is a predicate over settled history, re-evaluated on
// every call; there is no stored subscription entity, so a later payment
// always extends effective access.
type SubscriptionUseCase struct {
	repo domain.EventRepository
	now  func() time.Time
}

func NewSubscriptionUseCase(repo domain.EventRepository) *SubscriptionUseCase {
	return &SubscriptionUseCase{repo: repo, now: time.Now}
}

// Check reports the payer's access status for the given rolling window:
// active iff at least one settled event for (scopeID, payer) started
// after now - window.
func (uc *SubscriptionUseCase) Check(ctx context.Context, scopeID, payer string, window time.Duration) (AccessStatus, error) {
	if payer == "" {
		return AccessNoIdentity, nil
	}

	events, err := uc.repo.All(ctx, scopeID)
	if err != nil {
		return AccessExpired, err
	}

	cutoff := uc.now().UnixMilli() - window.Milliseconds()
	for _, e := range events {
		if e.Outcome.Settled() && e.Payer == payer && e.StartedAt > cutoff {
			return AccessActive, nil
		}
	}
	return AccessExpired, nil
}
