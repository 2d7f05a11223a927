package services

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"library/internal/models"
	"library/internal/repositories"
)

const (
	// LoanPeriodDays is the number of days a user may keep a book.
	LoanPeriodDays = 14
)

// Identity is the authenticated caller, as supplied by the auth middleware.
type Identity struct {
	UserID uuid.UUID
	Role   models.UserRole
}

// IsAdmin reports whether the caller holds the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == models.UserRoleAdmin
}

// ─── Service Interface ────────────────────────────────────────────────────────

// LoanService owns the loan lifecycle: creation, status changes and their
// paired inventory effects, and loan queries.
type LoanService interface {
	CreateLoan(userID, bookID uuid.UUID, notes string) (*models.BookLoan, error)
	ChangeStatus(loanID uuid.UUID, requestedBy Identity, newStatus models.LoanStatus, notes *string) (*models.BookLoan, error)
	GetLoan(loanID uuid.UUID, requestedBy Identity) (*models.BookLoan, error)
	ListLoans(requestedBy Identity, filter repositories.LoanFilter) ([]repositories.LoanRecord, int64, error)
}

type loanService struct {
	db       *gorm.DB
	loanRepo repositories.LoanRepository
	bookRepo repositories.BookRepository
	userRepo repositories.UserRepository
}

// NewLoanService wires up the loan lifecycle service.
func NewLoanService(
	db *gorm.DB,
	loanRepo repositories.LoanRepository,
	bookRepo repositories.BookRepository,
	userRepo repositories.UserRepository,
) LoanService {
	return &loanService{
		db:       db,
		loanRepo: loanRepo,
		bookRepo: bookRepo,
		userRepo: userRepo,
	}
}

// ─── Create ───────────────────────────────────────────────────────────────────

// createLoanRetries bounds how often CreateLoan re-runs after losing a
// version race on the book row.
const createLoanRetries = 3

// CreateLoan reserves a copy and records a Pending loan, both in one
// transaction. The due date is the borrow date plus the loan period.
//
// When two requests race for the last copy, the version guard on the book row
// lets exactly one through; the loser re-reads and reports ErrOutOfStock.
func (s *loanService) CreateLoan(userID, bookID uuid.UUID, notes string) (*models.BookLoan, error) {
	var loan *models.BookLoan
	var err error
	for attempt := 0; attempt < createLoanRetries; attempt++ {
		loan, err = s.tryCreateLoan(userID, bookID, notes)
		if !errors.Is(err, ErrConcurrentModification) {
			return loan, err
		}
		log.Printf("[WARN] CreateLoan: book %s changed concurrently, retrying (attempt %d)", bookID, attempt+1)
	}
	return loan, err
}

func (s *loanService) tryCreateLoan(userID, bookID uuid.UUID, notes string) (*models.BookLoan, error) {
	var created *models.BookLoan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.GetByID(tx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		book, err := s.bookRepo.GetByID(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		// One outstanding loan per user per book.
		hasActive, err := s.loanRepo.HasOutstanding(tx, userID, bookID)
		if err != nil {
			return err
		}
		if hasActive {
			return ErrDuplicateActiveLoan
		}

		prevVersion := book.Version
		if err := ReserveCopy(book); err != nil {
			return err
		}
		rows, err := s.bookRepo.UpdateWithVersion(tx, book, prevVersion)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrConcurrentModification
		}

		now := time.Now().UTC()
		loan := &models.BookLoan{
			UserID:     userID,
			BookID:     bookID,
			BorrowDate: now,
			DueDate:    now.AddDate(0, 0, LoanPeriodDays),
			Status:     models.LoanStatusPending,
			Notes:      notes,
		}
		if err := s.loanRepo.Create(tx, loan); err != nil {
			log.Printf("[ERROR] CreateLoan: failed to create loan record: %v", err)
			return err
		}
		created = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] CreateLoan: loan %s created for user %s / book %s, due %s",
		created.ID, userID, bookID, created.DueDate.Format("2006-01-02"))
	return created, nil
}

// ─── Status Change ────────────────────────────────────────────────────────────

// ChangeStatus validates the transition against the rule table, applies the
// inventory effect keyed on the new status, and commits loan and book together.
//
// Authorization: a non-admin caller may only request Returned, and only on a
// loan they own. The status write is guarded by the loan's version token;
// a lost race surfaces as ErrConcurrentModification.
func (s *loanService) ChangeStatus(loanID uuid.UUID, requestedBy Identity, newStatus models.LoanStatus, notes *string) (*models.BookLoan, error) {
	var updated *models.BookLoan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		loan, err := s.loanRepo.GetByID(tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}

		if !requestedBy.IsAdmin() {
			if loan.UserID != requestedBy.UserID || newStatus != models.LoanStatusReturned {
				return ErrForbidden
			}
		}

		wasPending := loan.Status == models.LoanStatusPending
		wasOutstanding := loan.Outstanding()
		prevVersion := loan.Version

		if err := ApplyTransition(loan, newStatus); err != nil {
			return err
		}

		// Inventory effects keyed on the new status. Approved keeps the copy
		// that was reserved at creation; Overdue touches nothing.
		var bookEffect func(*models.Book)
		switch {
		case newStatus == models.LoanStatusReturned && wasOutstanding:
			now := time.Now().UTC()
			loan.ReturnDate = &now
			bookEffect = ReleaseCopy
		case newStatus == models.LoanStatusRejected && wasPending:
			bookEffect = ReleaseCopy
		}

		if bookEffect != nil {
			book, err := s.bookRepo.GetByID(tx, loan.BookID)
			if err != nil {
				return err
			}
			bookVersion := book.Version
			bookEffect(book)
			rows, err := s.bookRepo.UpdateWithVersion(tx, book, bookVersion)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrConcurrentModification
			}
		}

		if notes != nil {
			loan.Notes = *notes
		}

		rows, err := s.loanRepo.UpdateWithVersion(tx, loan, prevVersion)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrConcurrentModification
		}
		updated = loan
		return nil
	})
	if err != nil {
		var invalid *InvalidTransitionError
		switch {
		case errors.As(err, &invalid):
			log.Printf("[WARN] ChangeStatus: loan %s: %v", loanID, err)
		case errors.Is(err, ErrConcurrentModification):
			log.Printf("[WARN] ChangeStatus: loan %s lost a concurrent update race", loanID)
		}
		return nil, err
	}

	log.Printf("[INFO] ChangeStatus: loan %s moved to %s by user %s", loanID, newStatus, requestedBy.UserID)
	return updated, nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// GetLoan returns a single loan. Non-admin callers may only see their own.
func (s *loanService) GetLoan(loanID uuid.UUID, requestedBy Identity) (*models.BookLoan, error) {
	loan, err := s.loanRepo.GetByID(nil, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	if !requestedBy.IsAdmin() && loan.UserID != requestedBy.UserID {
		return nil, ErrForbidden
	}
	return loan, nil
}

// ListLoans returns a page of loans joined with user and book names. Non-admin
// callers are forced onto their own loans regardless of the requested filter.
func (s *loanService) ListLoans(requestedBy Identity, filter repositories.LoanFilter) ([]repositories.LoanRecord, int64, error) {
	if !requestedBy.IsAdmin() {
		uid := requestedBy.UserID
		filter.UserID = &uid
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 10
	}
	return s.loanRepo.List(nil, filter)
}
