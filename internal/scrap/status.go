package scrap

import (
	"letscrap-backend/internal/authz"
	"letscrap-backend/internal/models"
)

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[models.RequestStatus][]models.RequestStatus{
	models.StatusPending:  {models.StatusAccepted, models.StatusRejected, models.StatusCancelled},
	models.StatusAccepted: {models.StatusPickedUp, models.StatusCancelled},
	models.StatusPickedUp: {models.StatusCompleted},
}

var statusActions = map[models.RequestStatus]string{
	models.StatusAccepted:  authz.ActionAccept,
	models.StatusRejected:  authz.ActionReject,
	models.StatusPickedUp:  authz.ActionPickup,
	models.StatusCompleted: authz.ActionComplete,
	models.StatusCancelled: authz.ActionCancel,
}

func CanTransition(from, to models.RequestStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ActionFor maps a target status to the policy action that sets it.
// Pending is never a target.
func ActionFor(to models.RequestStatus) (string, bool) {
	a, ok := statusActions[to]
	return a, ok
}

func IsFinished(s models.RequestStatus) bool {
	for _, f := range models.FinishedStatuses {
		if f == s {
			return true
		}
	}
	return false
}

func ValidStatus(s models.RequestStatus) bool {
	if s == models.StatusPending {
		return true
	}
	_, ok := statusActions[s]
	return ok
}
