package services

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"library/internal/models"
	"library/internal/repositories"
)

// BookInput carries the fields an admin supplies when creating or updating a book.
type BookInput struct {
	Title           string
	Author          string
	ISBN            string
	Publisher       string
	PublicationYear *int
	Description     string
	TotalCopies     int
	CategoryID      uuid.UUID
}

// CatalogService manages books and categories. Copy-count changes on book
// updates go through the inventory ledger so availability stays consistent
// with copies currently out on loan.
type CatalogService interface {
	CreateBook(input BookInput) (*models.Book, error)
	UpdateBook(id uuid.UUID, input BookInput) (*models.Book, error)
	DeleteBook(id uuid.UUID) error
	GetBook(id uuid.UUID) (*models.Book, error)
	SearchBooks(term string, categoryID *uuid.UUID, page, pageSize int) ([]models.Book, int64, error)

	CreateCategory(name, description string) (*models.Category, error)
	UpdateCategory(id uuid.UUID, name, description string) (*models.Category, error)
	DeleteCategory(id uuid.UUID) error
	GetCategory(id uuid.UUID) (*models.Category, error)
	ListCategories() ([]models.Category, error)
}

type catalogService struct {
	db           *gorm.DB
	bookRepo     repositories.BookRepository
	categoryRepo repositories.CategoryRepository
	loanRepo     repositories.LoanRepository
}

// NewCatalogService wires up the catalogue service.
func NewCatalogService(
	db *gorm.DB,
	bookRepo repositories.BookRepository,
	categoryRepo repositories.CategoryRepository,
	loanRepo repositories.LoanRepository,
) CatalogService {
	return &catalogService{
		db:           db,
		bookRepo:     bookRepo,
		categoryRepo: categoryRepo,
		loanRepo:     loanRepo,
	}
}

// ─── Books ────────────────────────────────────────────────────────────────────

// CreateBook adds a book to the catalogue. All copies start available.
func (s *catalogService) CreateBook(input BookInput) (*models.Book, error) {
	if input.TotalCopies < 0 {
		input.TotalCopies = 0
	}

	var created *models.Book
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if input.ISBN != "" {
			taken, err := s.bookRepo.ISBNExists(tx, input.ISBN, uuid.Nil)
			if err != nil {
				return err
			}
			if taken {
				return ErrISBNTaken
			}
		}
		if _, err := s.categoryRepo.GetByID(tx, input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}

		book := &models.Book{
			Title:           input.Title,
			Author:          input.Author,
			ISBN:            input.ISBN,
			Publisher:       input.Publisher,
			PublicationYear: input.PublicationYear,
			Description:     input.Description,
			TotalCopies:     input.TotalCopies,
			AvailableCopies: input.TotalCopies,
			CategoryID:      input.CategoryID,
		}
		if err := s.bookRepo.Create(tx, book); err != nil {
			log.Printf("[ERROR] CreateBook: failed to create book record: %v", err)
			return err
		}
		created = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] CreateBook: created book %q (id=%s) with %d copies", created.Title, created.ID, created.TotalCopies)
	return created, nil
}

// UpdateBook replaces the descriptive fields and resizes the copy counts
// through the ledger, so availability shifts by the stock delta without
// corrupting counts while copies are checked out.
func (s *catalogService) UpdateBook(id uuid.UUID, input BookInput) (*models.Book, error) {
	var updated *models.Book
	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByID(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		if input.ISBN != "" {
			taken, err := s.bookRepo.ISBNExists(tx, input.ISBN, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrISBNTaken
			}
		}
		if _, err := s.categoryRepo.GetByID(tx, input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}

		prevVersion := book.Version
		book.Title = input.Title
		book.Author = input.Author
		book.ISBN = input.ISBN
		book.Publisher = input.Publisher
		book.PublicationYear = input.PublicationYear
		book.Description = input.Description
		book.CategoryID = input.CategoryID
		ResizeCopies(book, input.TotalCopies)

		rows, err := s.bookRepo.UpdateWithVersion(tx, book, prevVersion)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrConcurrentModification
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] UpdateBook: updated book %s (total=%d available=%d)", id, updated.TotalCopies, updated.AvailableCopies)
	return updated, nil
}

// DeleteBook removes a book unless loans are still outstanding against it.
func (s *catalogService) DeleteBook(id uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.bookRepo.GetByID(tx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		active, err := s.loanRepo.CountOutstandingByBook(tx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrBookHasActiveLoans
		}
		return s.bookRepo.Delete(tx, id)
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] DeleteBook: deleted book %s", id)
	return nil
}

func (s *catalogService) GetBook(id uuid.UUID) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *catalogService) SearchBooks(term string, categoryID *uuid.UUID, page, pageSize int) ([]models.Book, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return s.bookRepo.Search(nil, term, categoryID, page, pageSize)
}

// ─── Categories ───────────────────────────────────────────────────────────────

func (s *catalogService) CreateCategory(name, description string) (*models.Category, error) {
	var created *models.Category
	err := s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := s.categoryRepo.NameExists(tx, name, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrCategoryNameTaken
		}
		category := &models.Category{Name: name, Description: description}
		if err := s.categoryRepo.Create(tx, category); err != nil {
			return err
		}
		created = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] CreateCategory: created category %q (id=%s)", created.Name, created.ID)
	return created, nil
}

func (s *catalogService) UpdateCategory(id uuid.UUID, name, description string) (*models.Category, error) {
	var updated *models.Category
	err := s.db.Transaction(func(tx *gorm.DB) error {
		category, err := s.categoryRepo.GetByID(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}
		taken, err := s.categoryRepo.NameExists(tx, name, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrCategoryNameTaken
		}
		category.Name = name
		category.Description = description
		if err := s.categoryRepo.Save(tx, category); err != nil {
			return err
		}
		updated = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCategory removes a category unless it still owns books.
func (s *catalogService) DeleteCategory(id uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.categoryRepo.GetByID(tx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}
		count, err := s.bookRepo.CountByCategory(tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrCategoryHasBooks
		}
		return s.categoryRepo.Delete(tx, id)
	})
}

func (s *catalogService) GetCategory(id uuid.UUID) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *catalogService) ListCategories() ([]models.Category, error) {
	return s.categoryRepo.List(nil)
}
