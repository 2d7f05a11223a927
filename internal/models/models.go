package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "Admin"
	UserRoleUser  UserRole = "User"
)

type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "Pending"
	LoanStatusApproved LoanStatus = "Approved"
	LoanStatusRejected LoanStatus = "Rejected"
	LoanStatusReturned LoanStatus = "Returned"
	LoanStatusOverdue  LoanStatus = "Overdue"
)

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string     `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         UserRole   `gorm:"size:20;not null" json:"role"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Category struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Book holds the catalogue record plus the copy counts the ledger maintains.
// Invariant: 0 <= AvailableCopies <= TotalCopies. Version is the optimistic
// concurrency token; every successful write increments it.
type Book struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string     `gorm:"size:200;not null;index" json:"title"`
	Author          string     `gorm:"size:100;not null;index" json:"author"`
	ISBN            string     `gorm:"size:20;index" json:"isbn"`
	Publisher       string     `gorm:"size:100" json:"publisher"`
	PublicationYear *int       `json:"publication_year"`
	Description     string     `json:"description"`
	TotalCopies     int        `gorm:"not null" json:"total_copies"`
	AvailableCopies int        `gorm:"not null" json:"available_copies"`
	CategoryID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"category_id"`
	Version         int        `gorm:"not null;default:1" json:"-"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Version == 0 {
		b.Version = 1
	}
	return nil
}

// BookLoan is the permanent record of one borrow request and its lifecycle.
// Invariant: ReturnDate is non-nil exactly when Status is Returned.
type BookLoan struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	BookID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"book_id"`
	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	DueDate    time.Time  `gorm:"not null;index" json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	Status     LoanStatus `gorm:"size:20;not null;index" json:"status"`
	Notes      string     `json:"notes"`
	Version    int        `gorm:"not null;default:1" json:"-"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

func (l *BookLoan) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Version == 0 {
		l.Version = 1
	}
	return nil
}

// Outstanding reports whether the loan is still open (the book has not come back).
func (l *BookLoan) Outstanding() bool {
	return l.ReturnDate == nil
}
