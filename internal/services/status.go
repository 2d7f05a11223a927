package services

import (
	"time"

	"library/internal/models"
)

// ─── Loan Status Transition Table ─────────────────────────────────────────────

// statusTransitions is the single authoritative transition table for the loan
// lifecycle. Returned is terminal and has no outgoing transitions.
var statusTransitions = map[models.LoanStatus][]models.LoanStatus{
	models.LoanStatusPending:  {models.LoanStatusApproved, models.LoanStatusRejected},
	models.LoanStatusApproved: {models.LoanStatusReturned, models.LoanStatusOverdue},
	models.LoanStatusOverdue:  {models.LoanStatusReturned},
	models.LoanStatusReturned: {},
	models.LoanStatusRejected: {},
}

// KnownStatus reports whether s is one of the five loan statuses.
func KnownStatus(s models.LoanStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether a loan may move from one status to another.
// A transition to the same status is always allowed (idempotent re-submission).
func CanTransition(from, to models.LoanStatus) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyTransition moves the loan to the new status, touching UpdatedAt, if the
// transition is legal. It has no inventory side effects; pairing copy-count
// changes with the status write is the lifecycle service's job, so the rule
// table stays independently testable.
func ApplyTransition(loan *models.BookLoan, to models.LoanStatus) error {
	if !CanTransition(loan.Status, to) {
		return &InvalidTransitionError{From: loan.Status, To: to}
	}
	now := time.Now().UTC()
	loan.Status = to
	loan.UpdatedAt = &now
	return nil
}
