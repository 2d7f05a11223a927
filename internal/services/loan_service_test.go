package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/models"
	"library/internal/repositories"
)

func TestCreateLoan(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)
	book := env.createBook(t, "Dune", 2)

	loan, err := env.loans.CreateLoan(user.ID, book.ID, "first read")
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusPending, loan.Status)
	assert.Equal(t, "first read", loan.Notes)
	assert.Nil(t, loan.ReturnDate)
	assert.WithinDuration(t, loan.BorrowDate.AddDate(0, 0, LoanPeriodDays), loan.DueDate, time.Second)

	reloaded := env.reloadBook(t, book.ID)
	assert.Equal(t, 1, reloaded.AvailableCopies)
	assert.Equal(t, 2, reloaded.TotalCopies)
}

func TestCreateLoanBookNotFound(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)

	_, err := env.loans.CreateLoan(user.ID, uuid.New(), "")
	require.ErrorIs(t, err, ErrBookNotFound)
}

func TestCreateLoanOutOfStock(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.UserRoleUser)
	bob := env.createUser(t, "bob", models.UserRoleUser)
	book := env.createBook(t, "Dune", 1)

	_, err := env.loans.CreateLoan(alice.ID, book.ID, "")
	require.NoError(t, err)

	// The single copy is gone; the next request must fail and change nothing.
	_, err = env.loans.CreateLoan(bob.ID, book.ID, "")
	require.ErrorIs(t, err, ErrOutOfStock)

	assert.Equal(t, 0, env.reloadBook(t, book.ID).AvailableCopies)
}

func TestCreateLoanConcurrentLastCopy(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.UserRoleUser)
	bob := env.createUser(t, "bob", models.UserRoleUser)
	book := env.createBook(t, "Dune", 1)

	// Both requests fire at once; the version guard on the book row must
	// grant the last copy to exactly one of them.
	start := make(chan struct{})
	errs := make(chan error, 2)
	for _, borrower := range []*models.User{alice, bob} {
		go func(userID uuid.UUID) {
			<-start
			_, err := env.loans.CreateLoan(userID, book.ID, "")
			errs <- err
		}(borrower.ID)
	}
	close(start)

	var granted, denied int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			granted++
		case errors.Is(err, ErrOutOfStock) || errors.Is(err, ErrConcurrentModification):
			denied++
		default:
			t.Fatalf("unexpected CreateLoan error: %v", err)
		}
	}

	assert.Equal(t, 1, granted)
	assert.Equal(t, 1, denied)
	assert.Equal(t, 0, env.reloadBook(t, book.ID).AvailableCopies)
}

func TestCreateLoanDuplicateActive(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)
	book := env.createBook(t, "Dune", 3)

	_, err := env.loans.CreateLoan(user.ID, book.ID, "")
	require.NoError(t, err)

	_, err = env.loans.CreateLoan(user.ID, book.ID, "")
	require.ErrorIs(t, err, ErrDuplicateActiveLoan)
	assert.Equal(t, 2, env.reloadBook(t, book.ID).AvailableCopies)
}

func TestRejectRestoresAvailability(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	book := env.createBook(t, "Dune", 2)

	loan, err := env.loans.CreateLoan(user.ID, book.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, env.reloadBook(t, book.ID).AvailableCopies)

	_, err = env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusRejected, nil)
	require.NoError(t, err)

	// Rejection undoes the reservation made at creation.
	assert.Equal(t, 2, env.reloadBook(t, book.ID).AvailableCopies)
	assert.Equal(t, models.LoanStatusRejected, env.reloadLoan(t, loan.ID).Status)
}

func TestBorrowApproveReturnScenario(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	book := env.createBook(t, "Dune", 2)

	loan, err := env.loans.CreateLoan(user.ID, book.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusPending, loan.Status)
	assert.Equal(t, 1, env.reloadBook(t, book.ID).AvailableCopies)

	// Approval keeps the copy that was reserved at creation.
	_, err = env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, env.reloadBook(t, book.ID).AvailableCopies)

	// The borrower marks it returned themselves.
	updated, err := env.loans.ChangeStatus(loan.ID, userIdentity(user), models.LoanStatusReturned, nil)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, updated.Status)
	require.NotNil(t, updated.ReturnDate)
	assert.Equal(t, 2, env.reloadBook(t, book.ID).AvailableCopies)
}

func TestChangeStatusAuthorization(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.UserRoleUser)
	bob := env.createUser(t, "bob", models.UserRoleUser)
	book := env.createBook(t, "Dune", 2)

	loan, err := env.loans.CreateLoan(alice.ID, book.ID, "")
	require.NoError(t, err)

	// A regular user cannot approve, even their own loan.
	_, err = env.loans.ChangeStatus(loan.ID, userIdentity(alice), models.LoanStatusApproved, nil)
	require.ErrorIs(t, err, ErrForbidden)

	// A regular user cannot return someone else's loan.
	_, err = env.loans.ChangeStatus(loan.ID, userIdentity(bob), models.LoanStatusReturned, nil)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestChangeStatusInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	book := env.createBook(t, "Dune", 1)

	loan, err := env.loans.CreateLoan(user.ID, book.ID, "")
	require.NoError(t, err)
	_, err = env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusApproved, nil)
	require.NoError(t, err)
	_, err = env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusReturned, nil)
	require.NoError(t, err)

	// Returned is terminal.
	_, err = env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusApproved, nil)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.LoanStatusReturned, invalid.From)
	assert.Equal(t, models.LoanStatusApproved, invalid.To)
}

func TestChangeStatusIdempotentResubmission(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	book := env.createBook(t, "Dune", 1)

	loan, err := env.loans.CreateLoan(user.ID, book.ID, "")
	require.NoError(t, err)
	_, err = env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusApproved, nil)
	require.NoError(t, err)

	first, err := env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusReturned, nil)
	require.NoError(t, err)
	require.NotNil(t, first.ReturnDate)
	assert.Equal(t, 1, env.reloadBook(t, book.ID).AvailableCopies)

	// Re-submitting Returned succeeds but must not release a second copy or
	// move the return date.
	second, err := env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusReturned, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ReturnDate.Unix(), second.ReturnDate.Unix())
	assert.Equal(t, 1, env.reloadBook(t, book.ID).AvailableCopies)
}

func TestChangeStatusNotesSemantics(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	book := env.createBook(t, "Dune", 1)

	loan, err := env.loans.CreateLoan(user.ID, book.ID, "original note")
	require.NoError(t, err)

	// Nil notes preserve the existing value.
	updated, err := env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, "original note", updated.Notes)

	// Non-nil notes replace it.
	replacement := "inspected on return"
	updated, err = env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusReturned, &replacement)
	require.NoError(t, err)
	assert.Equal(t, "inspected on return", updated.Notes)
}

func TestChangeStatusLoanNotFound(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "root", models.UserRoleAdmin)

	_, err := env.loans.ChangeStatus(uuid.New(), adminIdentity(admin), models.LoanStatusApproved, nil)
	require.ErrorIs(t, err, ErrLoanNotFound)
}

func TestVersionGuardDetectsLostUpdate(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", models.UserRoleUser)
	book := env.createBook(t, "Dune", 1)

	loan, err := env.loans.CreateLoan(user.ID, book.ID, "")
	require.NoError(t, err)

	// Writer A reads the loan, then writer B commits first.
	stale, err := env.loanRepo.GetByID(nil, loan.ID)
	require.NoError(t, err)

	fresh, err := env.loanRepo.GetByID(nil, loan.ID)
	require.NoError(t, err)
	fresh.Status = models.LoanStatusApproved
	rows, err := env.loanRepo.UpdateWithVersion(nil, fresh, fresh.Version)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	// Writer A's token is now stale; the write must affect zero rows.
	stale.Status = models.LoanStatusRejected
	rows, err = env.loanRepo.UpdateWithVersion(nil, stale, stale.Version)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)

	assert.Equal(t, models.LoanStatusApproved, env.reloadLoan(t, loan.ID).Status)
}

func TestGetLoanOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.UserRoleUser)
	bob := env.createUser(t, "bob", models.UserRoleUser)
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	book := env.createBook(t, "Dune", 1)

	loan, err := env.loans.CreateLoan(alice.ID, book.ID, "")
	require.NoError(t, err)

	_, err = env.loans.GetLoan(loan.ID, userIdentity(alice))
	require.NoError(t, err)

	_, err = env.loans.GetLoan(loan.ID, userIdentity(bob))
	require.ErrorIs(t, err, ErrForbidden)

	_, err = env.loans.GetLoan(loan.ID, adminIdentity(admin))
	require.NoError(t, err)
}

func TestListLoansScopesNonAdminToOwnLoans(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", models.UserRoleUser)
	bob := env.createUser(t, "bob", models.UserRoleUser)
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	dune := env.createBook(t, "Dune", 2)
	lotr := env.createBook(t, "LOTR", 2)

	_, err := env.loans.CreateLoan(alice.ID, dune.ID, "")
	require.NoError(t, err)
	_, err = env.loans.CreateLoan(bob.ID, lotr.ID, "")
	require.NoError(t, err)

	// Alice asking for Bob's loans still only sees her own.
	records, total, err := env.loans.ListLoans(userIdentity(alice), repositories.LoanFilter{UserID: &bob.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, alice.ID, records[0].UserID)
	assert.Equal(t, "alice", records[0].Username)
	assert.Equal(t, "Dune", records[0].BookTitle)

	// Admin sees everything.
	_, total, err = env.loans.ListLoans(adminIdentity(admin), repositories.LoanFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestListLoansStatusFilterAndPaging(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "root", models.UserRoleAdmin)
	book := env.createBook(t, "Dune", 5)

	for i := 0; i < 3; i++ {
		borrower := env.createUser(t, "user"+string(rune('a'+i)), models.UserRoleUser)
		loan, err := env.loans.CreateLoan(borrower.ID, book.ID, "")
		require.NoError(t, err)
		if i == 0 {
			_, err = env.loans.ChangeStatus(loan.ID, adminIdentity(admin), models.LoanStatusApproved, nil)
			require.NoError(t, err)
		}
	}

	pending := models.LoanStatusPending
	records, total, err := env.loans.ListLoans(adminIdentity(admin), repositories.LoanFilter{
		Status:   &pending,
		Page:     1,
		PageSize: 1,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, records, 1)
}
