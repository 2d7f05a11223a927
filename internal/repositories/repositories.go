package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"library/internal/models"
)

// LoanFilter narrows a loan listing. Nil fields are ignored.
type LoanFilter struct {
	Status   *models.LoanStatus
	UserID   *uuid.UUID
	FromDate *time.Time
	ToDate   *time.Time
	Page     int
	PageSize int
}

// LoanRecord is a loan row joined with the owning user and book, resolved
// at the persistence boundary instead of through live object references.
type LoanRecord struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"user_id"`
	Username   string            `json:"username"`
	BookID     uuid.UUID         `json:"book_id"`
	BookTitle  string            `json:"book_title"`
	BorrowDate time.Time         `json:"borrow_date"`
	DueDate    time.Time         `json:"due_date"`
	ReturnDate *time.Time        `json:"return_date"`
	Status     models.LoanStatus `json:"status"`
	Notes      string            `json:"notes"`
}

// PopularBook ranks a book by how many loans it has accumulated.
type PopularBook struct {
	BookID    uuid.UUID `json:"book_id"`
	Title     string    `json:"title"`
	LoanCount int64     `json:"loan_count"`
}

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.User, error)
	GetByUsername(db *gorm.DB, username string) (*models.User, error)
	UsernameExists(db *gorm.DB, username string) (bool, error)
	EmailExists(db *gorm.DB, email string) (bool, error)
	List(db *gorm.DB) ([]models.User, error)
	Count(db *gorm.DB) (int64, error)
}

type CategoryRepository interface {
	Create(db *gorm.DB, category *models.Category) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Category, error)
	NameExists(db *gorm.DB, name string, excludeID uuid.UUID) (bool, error)
	Save(db *gorm.DB, category *models.Category) error
	Delete(db *gorm.DB, id uuid.UUID) error
	List(db *gorm.DB) ([]models.Category, error)
	Count(db *gorm.DB) (int64, error)
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	ISBNExists(db *gorm.DB, isbn string, excludeID uuid.UUID) (bool, error)
	Search(db *gorm.DB, term string, categoryID *uuid.UUID, page, pageSize int) ([]models.Book, int64, error)
	UpdateWithVersion(db *gorm.DB, book *models.Book, expectedVersion int) (int64, error)
	Delete(db *gorm.DB, id uuid.UUID) error
	CountByCategory(db *gorm.DB, categoryID uuid.UUID) (int64, error)
	Count(db *gorm.DB) (int64, error)
	LowStock(db *gorm.DB, threshold int) ([]models.Book, error)
}

type LoanRepository interface {
	Create(db *gorm.DB, loan *models.BookLoan) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.BookLoan, error)
	HasOutstanding(db *gorm.DB, userID, bookID uuid.UUID) (bool, error)
	CountOutstandingByBook(db *gorm.DB, bookID uuid.UUID) (int64, error)
	List(db *gorm.DB, filter LoanFilter) ([]LoanRecord, int64, error)
	UpdateWithVersion(db *gorm.DB, loan *models.BookLoan, expectedVersion int) (int64, error)
	FindOverdueCandidates(db *gorm.DB, now time.Time) ([]models.BookLoan, error)
	Count(db *gorm.DB) (int64, error)
	CountOutstanding(db *gorm.DB) (int64, error)
	CountOverdue(db *gorm.DB, now time.Time) (int64, error)
	PopularBooks(db *gorm.DB, limit int) ([]PopularBook, error)
}

// concrete implementations

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(db *gorm.DB, user *models.User) error {
	if db == nil {
		db = r.db
	}
	return db.Create(user).Error
}

func (r *userRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(db *gorm.DB, username string) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UsernameExists(db *gorm.DB, username string) (bool, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) EmailExists(db *gorm.DB, email string) (bool, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) List(db *gorm.DB) ([]models.User, error) {
	if db == nil {
		db = r.db
	}
	var users []models.User
	if err := db.Order("username").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Count(db *gorm.DB) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.User{}).Count(&count).Error
	return count, err
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(db *gorm.DB, category *models.Category) error {
	if db == nil {
		db = r.db
	}
	return db.Create(category).Error
}

func (r *categoryRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Category, error) {
	if db == nil {
		db = r.db
	}
	var category models.Category
	if err := db.First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) NameExists(db *gorm.DB, name string, excludeID uuid.UUID) (bool, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Category{}).
		Where("name = ? AND id <> ?", name, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *categoryRepository) Save(db *gorm.DB, category *models.Category) error {
	if db == nil {
		db = r.db
	}
	return db.Save(category).Error
}

func (r *categoryRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Category{}, "id = ?", id).Error
}

func (r *categoryRepository) List(db *gorm.DB) ([]models.Category, error) {
	if db == nil {
		db = r.db
	}
	var categories []models.Category
	if err := db.Order("name").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) Count(db *gorm.DB) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Category{}).Count(&count).Error
	return count, err
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Create(book).Error
}

func (r *bookRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) ISBNExists(db *gorm.DB, isbn string, excludeID uuid.UUID) (bool, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Book{}).
		Where("isbn = ? AND id <> ?", isbn, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *bookRepository) Search(db *gorm.DB, term string, categoryID *uuid.UUID, page, pageSize int) ([]models.Book, int64, error) {
	if db == nil {
		db = r.db
	}
	query := db.Model(&models.Book{})
	if term != "" {
		pattern := "%" + term + "%"
		query = query.Where(
			"LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?) OR LOWER(isbn) LIKE LOWER(?)",
			pattern, pattern, pattern,
		)
	}
	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var books []models.Book
	err := query.
		Order("title").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&books).Error
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// UpdateWithVersion writes the book's mutable columns guarded by the version
// token. Returns the number of rows affected: zero means another writer got
// there first (or the row is gone) and the caller must re-read and retry.
func (r *bookRepository) UpdateWithVersion(db *gorm.DB, book *models.Book, expectedVersion int) (int64, error) {
	if db == nil {
		db = r.db
	}
	now := time.Now().UTC()
	result := db.Model(&models.Book{}).
		Where("id = ? AND version = ?", book.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":            book.Title,
			"author":           book.Author,
			"isbn":             book.ISBN,
			"publisher":        book.Publisher,
			"publication_year": book.PublicationYear,
			"description":      book.Description,
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
			"category_id":      book.CategoryID,
			"version":          expectedVersion + 1,
			"updated_at":       now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		book.Version = expectedVersion + 1
		book.UpdatedAt = &now
	}
	return result.RowsAffected, nil
}

func (r *bookRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Book{}, "id = ?", id).Error
}

func (r *bookRepository) CountByCategory(db *gorm.DB, categoryID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Book{}).Where("category_id = ?", categoryID).Count(&count).Error
	return count, err
}

func (r *bookRepository) Count(db *gorm.DB) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Book{}).Count(&count).Error
	return count, err
}

func (r *bookRepository) LowStock(db *gorm.DB, threshold int) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	var books []models.Book
	err := db.
		Where("available_copies <= ? AND total_copies > 0", threshold).
		Order("available_copies ASC").
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

type loanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(db *gorm.DB, loan *models.BookLoan) error {
	if db == nil {
		db = r.db
	}
	return db.Create(loan).Error
}

func (r *loanRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.BookLoan, error) {
	if db == nil {
		db = r.db
	}
	var loan models.BookLoan
	if err := db.First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) HasOutstanding(db *gorm.DB, userID, bookID uuid.UUID) (bool, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.BookLoan{}).
		Where("user_id = ? AND book_id = ? AND return_date IS NULL", userID, bookID).
		Count(&count).Error
	return count > 0, err
}

func (r *loanRepository) CountOutstandingByBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.BookLoan{}).
		Where("book_id = ? AND return_date IS NULL", bookID).
		Count(&count).Error
	return count, err
}

func (r *loanRepository) List(db *gorm.DB, filter LoanFilter) ([]LoanRecord, int64, error) {
	if db == nil {
		db = r.db
	}
	query := db.Model(&models.BookLoan{}).
		Joins("JOIN users ON users.id = book_loans.user_id").
		Joins("JOIN books ON books.id = book_loans.book_id")

	if filter.Status != nil {
		query = query.Where("book_loans.status = ?", *filter.Status)
	}
	if filter.UserID != nil {
		query = query.Where("book_loans.user_id = ?", *filter.UserID)
	}
	if filter.FromDate != nil {
		query = query.Where("book_loans.borrow_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("book_loans.borrow_date <= ?", *filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []LoanRecord
	err := query.
		Select("book_loans.id, book_loans.user_id, users.username AS username, " +
			"book_loans.book_id, books.title AS book_title, book_loans.borrow_date, " +
			"book_loans.due_date, book_loans.return_date, book_loans.status, book_loans.notes").
		Order("book_loans.borrow_date DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Scan(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// UpdateWithVersion writes status, return date and notes guarded by the
// version token. Zero rows affected means a lost-update race.
func (r *loanRepository) UpdateWithVersion(db *gorm.DB, loan *models.BookLoan, expectedVersion int) (int64, error) {
	if db == nil {
		db = r.db
	}
	now := time.Now().UTC()
	result := db.Model(&models.BookLoan{}).
		Where("id = ? AND version = ?", loan.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":      loan.Status,
			"return_date": loan.ReturnDate,
			"notes":       loan.Notes,
			"version":     expectedVersion + 1,
			"updated_at":  now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		loan.Version = expectedVersion + 1
		loan.UpdatedAt = &now
	}
	return result.RowsAffected, nil
}

func (r *loanRepository) FindOverdueCandidates(db *gorm.DB, now time.Time) ([]models.BookLoan, error) {
	if db == nil {
		db = r.db
	}
	var loans []models.BookLoan
	err := db.
		Where("due_date <= ? AND return_date IS NULL AND status <> ?", now, models.LoanStatusOverdue).
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *loanRepository) Count(db *gorm.DB) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.BookLoan{}).Count(&count).Error
	return count, err
}

func (r *loanRepository) CountOutstanding(db *gorm.DB) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.BookLoan{}).Where("return_date IS NULL").Count(&count).Error
	return count, err
}

// PopularBooks returns the most-borrowed books, every loan counted
// regardless of status.
func (r *loanRepository) PopularBooks(db *gorm.DB, limit int) ([]PopularBook, error) {
	if db == nil {
		db = r.db
	}
	var rows []PopularBook
	err := db.Model(&models.BookLoan{}).
		Joins("JOIN books ON books.id = book_loans.book_id").
		Select("book_loans.book_id, books.title AS title, COUNT(*) AS loan_count").
		Group("book_loans.book_id, books.title").
		Order("loan_count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *loanRepository) CountOverdue(db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.BookLoan{}).
		Where("return_date IS NULL AND due_date < ?", now).
		Count(&count).Error
	return count, err
}
