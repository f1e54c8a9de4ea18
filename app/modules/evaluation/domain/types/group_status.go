package evaluationtypes

import "math"

// DefaultFailureThreshold is the fraction of a group's battles that may fail
// before the whole group is considered FAILED.
const DefaultFailureThreshold = 0.5

// DeriveGroupStatus computes a battle group's status from its counters.
// The status is never stored independently of the counters, so it cannot
// drift from them.
//
// Rules: PENDING until the first battle settles; FAILED once failures reach
// the threshold fraction of the total; COMPLETED once every battle has
// settled (and the group has not failed); IN_PROGRESS otherwise.
func DeriveGroupStatus(completed, failed, total int, failureThreshold float64) BattleGroupStatus {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}

	settled := completed + failed
	if settled == 0 {
		return GroupStatusPending
	}

	failLimit := int(math.Ceil(failureThreshold * float64(total)))
	if failLimit < 1 {
		failLimit = 1
	}
	if failed >= failLimit {
		return GroupStatusFailed
	}
	if settled >= total {
		return GroupStatusCompleted
	}
	return GroupStatusInProgress
}
