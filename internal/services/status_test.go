package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from models.LoanStatus
		to   models.LoanStatus
		want bool
	}{
		{models.LoanStatusPending, models.LoanStatusApproved, true},
		{models.LoanStatusPending, models.LoanStatusRejected, true},
		{models.LoanStatusPending, models.LoanStatusReturned, false},
		{models.LoanStatusPending, models.LoanStatusOverdue, false},
		{models.LoanStatusApproved, models.LoanStatusReturned, true},
		{models.LoanStatusApproved, models.LoanStatusOverdue, true},
		{models.LoanStatusApproved, models.LoanStatusRejected, false},
		{models.LoanStatusApproved, models.LoanStatusPending, false},
		{models.LoanStatusOverdue, models.LoanStatusReturned, true},
		{models.LoanStatusOverdue, models.LoanStatusApproved, false},
		{models.LoanStatusReturned, models.LoanStatusApproved, false},
		{models.LoanStatusReturned, models.LoanStatusOverdue, false},
		{models.LoanStatusReturned, models.LoanStatusPending, false},
		{models.LoanStatusRejected, models.LoanStatusApproved, false},
		// idempotent re-submission
		{models.LoanStatusPending, models.LoanStatusPending, true},
		{models.LoanStatusReturned, models.LoanStatusReturned, true},
		{models.LoanStatusOverdue, models.LoanStatusOverdue, true},
	}

	for _, tc := range tests {
		got := CanTransition(tc.from, tc.to)
		assert.Equal(t, tc.want, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestApplyTransitionLegal(t *testing.T) {
	loan := &models.BookLoan{Status: models.LoanStatusPending}

	err := ApplyTransition(loan, models.LoanStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, loan.Status)
	require.NotNil(t, loan.UpdatedAt)
}

func TestApplyTransitionIllegal(t *testing.T) {
	loan := &models.BookLoan{Status: models.LoanStatusReturned}

	err := ApplyTransition(loan, models.LoanStatusApproved)
	require.Error(t, err)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.LoanStatusReturned, invalid.From)
	assert.Equal(t, models.LoanStatusApproved, invalid.To)

	// The loan is untouched on failure.
	assert.Equal(t, models.LoanStatusReturned, loan.Status)
	assert.Nil(t, loan.UpdatedAt)
}

func TestApplyTransitionSameStatusIsNoOpSuccess(t *testing.T) {
	loan := &models.BookLoan{Status: models.LoanStatusApproved}

	err := ApplyTransition(loan, models.LoanStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, loan.Status)
}

func TestKnownStatus(t *testing.T) {
	assert.True(t, KnownStatus(models.LoanStatusPending))
	assert.True(t, KnownStatus(models.LoanStatusOverdue))
	assert.False(t, KnownStatus(models.LoanStatus("Archived")))
}
