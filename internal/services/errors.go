package services

import (
	"errors"
	"fmt"

	"library/internal/models"
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrBookNotFound is returned when the requested book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrLoanNotFound is returned when the referenced loan does not exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrCategoryNotFound is returned when the referenced category does not exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrOutOfStock is returned when a loan is requested for a book with no
	// available copies.
	ErrOutOfStock = errors.New("no copies of this book are available")

	// ErrDuplicateActiveLoan is returned when the user already holds an
	// outstanding loan for the same book.
	ErrDuplicateActiveLoan = errors.New("user already has an active loan for this book")

	// ErrForbidden is returned when the caller is not allowed to perform the
	// requested operation on the target record.
	ErrForbidden = errors.New("operation not permitted for this user")

	// ErrConcurrentModification is returned when a record changed between read
	// and write. The caller should re-read and retry.
	ErrConcurrentModification = errors.New("record was modified concurrently, retry the operation")

	// ErrUsernameTaken is returned on registration with a username already in use.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrEmailTaken is returned on registration with an email already in use.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrInvalidCredentials is returned when login fails. Deliberately does not
	// distinguish unknown username from wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrISBNTaken is returned when a book create/update would duplicate an ISBN.
	ErrISBNTaken = errors.New("ISBN already exists")

	// ErrCategoryNameTaken is returned when a category create/update would
	// duplicate a name.
	ErrCategoryNameTaken = errors.New("category name already exists")

	// ErrBookHasActiveLoans is returned when deleting a book that still has
	// outstanding loans.
	ErrBookHasActiveLoans = errors.New("cannot delete book with active loans")

	// ErrCategoryHasBooks is returned when deleting a category that still owns books.
	ErrCategoryHasBooks = errors.New("cannot delete category with books")
)

// InvalidTransitionError reports an illegal loan status transition, carrying
// the attempted pair for diagnostics.
type InvalidTransitionError struct {
	From models.LoanStatus
	To   models.LoanStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
