package service

import "github.com/vellko/affiliate-admin/internal/repository"

// DeriveStatus projects the per-platform sub-statuses onto the signup-wide
// status. The signup-wide status is never stored independently of this
// function except for outright rejection and reset.
//
// For "Both" applications a single platform approval unblocks the signup:
// one APPROVED wins regardless of the other platform's state. Rejection
// requires both platforms rejected. Everything else stays PENDING, including
// FAILED states, which remain actionable for a retry.
func DeriveStatus(t repository.ApplicationType, cakeStatus, ringbaStatus *repository.PlatformStatus) repository.SignupStatus {
	switch t {
	case repository.TypeWebTraffic:
		return fromSingle(cakeStatus)
	case repository.TypeCallTraffic:
		return fromSingle(ringbaStatus)
	case repository.TypeBoth:
		if is(cakeStatus, repository.PlatformApproved) || is(ringbaStatus, repository.PlatformApproved) {
			return repository.StatusApproved
		}
		if is(cakeStatus, repository.PlatformRejected) && is(ringbaStatus, repository.PlatformRejected) {
			return repository.StatusRejected
		}
		return repository.StatusPending
	default:
		return repository.StatusPending
	}
}

func fromSingle(s *repository.PlatformStatus) repository.SignupStatus {
	switch {
	case is(s, repository.PlatformApproved):
		return repository.StatusApproved
	case is(s, repository.PlatformRejected):
		return repository.StatusRejected
	default:
		return repository.StatusPending
	}
}

func is(s *repository.PlatformStatus, want repository.PlatformStatus) bool {
	return s != nil && *s == want
}
