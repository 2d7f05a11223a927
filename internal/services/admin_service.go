package services

import (
	"time"

	"gorm.io/gorm"

	"library/internal/models"
	"library/internal/repositories"
)

// lowStockThreshold marks books nearly out of loanable copies on the dashboard.
const lowStockThreshold = 2

// popularBooksLimit caps the most-borrowed ranking on the dashboard.
const popularBooksLimit = 5

// DashboardStats is the admin overview of the whole system.
type DashboardStats struct {
	TotalBooks      int64                      `json:"total_books"`
	TotalUsers      int64                      `json:"total_users"`
	TotalCategories int64                      `json:"total_categories"`
	TotalLoans      int64                      `json:"total_loans"`
	ActiveLoans     int64                      `json:"active_loans"`
	OverdueLoans    int64                      `json:"overdue_loans"`
	LowStockBooks   []models.Book              `json:"low_stock_books"`
	PopularBooks    []repositories.PopularBook `json:"popular_books"`
}

// AdminService serves administrative queries that cut across entities.
type AdminService interface {
	Dashboard() (*DashboardStats, error)
	ListUsers() ([]models.User, error)
}

type adminService struct {
	db           *gorm.DB
	userRepo     repositories.UserRepository
	bookRepo     repositories.BookRepository
	categoryRepo repositories.CategoryRepository
	loanRepo     repositories.LoanRepository
}

func NewAdminService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	bookRepo repositories.BookRepository,
	categoryRepo repositories.CategoryRepository,
	loanRepo repositories.LoanRepository,
) AdminService {
	return &adminService{
		db:           db,
		userRepo:     userRepo,
		bookRepo:     bookRepo,
		categoryRepo: categoryRepo,
		loanRepo:     loanRepo,
	}
}

func (s *adminService) Dashboard() (*DashboardStats, error) {
	stats := &DashboardStats{}
	var err error

	if stats.TotalBooks, err = s.bookRepo.Count(nil); err != nil {
		return nil, err
	}
	if stats.TotalUsers, err = s.userRepo.Count(nil); err != nil {
		return nil, err
	}
	if stats.TotalCategories, err = s.categoryRepo.Count(nil); err != nil {
		return nil, err
	}
	if stats.TotalLoans, err = s.loanRepo.Count(nil); err != nil {
		return nil, err
	}
	if stats.ActiveLoans, err = s.loanRepo.CountOutstanding(nil); err != nil {
		return nil, err
	}
	if stats.OverdueLoans, err = s.loanRepo.CountOverdue(nil, time.Now().UTC()); err != nil {
		return nil, err
	}
	if stats.LowStockBooks, err = s.bookRepo.LowStock(nil, lowStockThreshold); err != nil {
		return nil, err
	}
	if stats.PopularBooks, err = s.loanRepo.PopularBooks(nil, popularBooksLimit); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *adminService) ListUsers() ([]models.User, error) {
	return s.userRepo.List(nil)
}
