package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library/internal/models"
	"library/internal/repositories"
)

// testEnv bundles a fresh in-memory database with the repositories and
// services under test.
type testEnv struct {
	db           *gorm.DB
	userRepo     repositories.UserRepository
	categoryRepo repositories.CategoryRepository
	bookRepo     repositories.BookRepository
	loanRepo     repositories.LoanRepository
	loans        LoanService
	catalog      CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite allows one writer at a time; a single connection keeps
	// concurrent transactions from tripping over table locks.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Book{},
		&models.BookLoan{},
	))

	env := &testEnv{
		db:           db,
		userRepo:     repositories.NewUserRepository(db),
		categoryRepo: repositories.NewCategoryRepository(db),
		bookRepo:     repositories.NewBookRepository(db),
		loanRepo:     repositories.NewLoanRepository(db),
	}
	env.loans = NewLoanService(db, env.loanRepo, env.bookRepo, env.userRepo)
	env.catalog = NewCatalogService(db, env.bookRepo, env.categoryRepo, env.loanRepo)
	return env
}

func (e *testEnv) createUser(t *testing.T, username string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, e.userRepo.Create(nil, user))
	return user
}

func (e *testEnv) createCategory(t *testing.T, name string) *models.Category {
	t.Helper()
	category := &models.Category{Name: name}
	require.NoError(t, e.categoryRepo.Create(nil, category))
	return category
}

func (e *testEnv) createBook(t *testing.T, title string, copies int) *models.Book {
	t.Helper()
	category := e.createCategory(t, "cat-"+title)
	book := &models.Book{
		Title:           title,
		Author:          "Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
		CategoryID:      category.ID,
	}
	require.NoError(t, e.bookRepo.Create(nil, book))
	return book
}

// reloadBook fetches the current book row.
func (e *testEnv) reloadBook(t *testing.T, id uuid.UUID) *models.Book {
	t.Helper()
	book, err := e.bookRepo.GetByID(nil, id)
	require.NoError(t, err)
	return book
}

// reloadLoan fetches the current loan row.
func (e *testEnv) reloadLoan(t *testing.T, id uuid.UUID) *models.BookLoan {
	t.Helper()
	loan, err := e.loanRepo.GetByID(nil, id)
	require.NoError(t, err)
	return loan
}

// seedLoan inserts a loan row directly, bypassing the service, for tests that
// need a specific starting state such as a past due date.
func (e *testEnv) seedLoan(t *testing.T, userID, bookID uuid.UUID, status models.LoanStatus, dueDate time.Time) *models.BookLoan {
	t.Helper()
	loan := &models.BookLoan{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: dueDate.AddDate(0, 0, -LoanPeriodDays),
		DueDate:    dueDate,
		Status:     status,
	}
	if status == models.LoanStatusReturned {
		now := time.Now().UTC()
		loan.ReturnDate = &now
	}
	require.NoError(t, e.loanRepo.Create(nil, loan))
	return loan
}

func adminIdentity(user *models.User) Identity {
	return Identity{UserID: user.ID, Role: models.UserRoleAdmin}
}

func userIdentity(user *models.User) Identity {
	return Identity{UserID: user.ID, Role: models.UserRoleUser}
}
