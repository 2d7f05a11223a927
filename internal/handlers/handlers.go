package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"library/internal/models"
	"library/internal/repositories"
	"library/internal/services"
)

type LibraryHandler struct {
	authSvc    services.AuthService
	loanSvc    services.LoanService
	catalogSvc services.CatalogService
	adminSvc   services.AdminService
}

// RegisterRoutes mounts all API endpoints on the router.
func RegisterRoutes(
	r *gin.Engine,
	tokenSecret string,
	authSvc services.AuthService,
	loanSvc services.LoanService,
	catalogSvc services.CatalogService,
	adminSvc services.AdminService,
) {
	h := &LibraryHandler{
		authSvc:    authSvc,
		loanSvc:    loanSvc,
		catalogSvc: catalogSvc,
		adminSvc:   adminSvc,
	}

	api := r.Group("/api")

	// Public endpoints
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)
	api.GET("/books", h.searchBooks)
	api.GET("/books/:id", h.getBook)
	api.GET("/categories", h.listCategories)
	api.GET("/categories/:id", h.getCategory)

	// Authenticated endpoints
	authed := api.Group("", RequireAuth(tokenSecret))
	authed.GET("/users/profile", h.profile)
	authed.POST("/bookloans", h.createLoan)
	authed.GET("/bookloans", h.listLoans)
	authed.GET("/bookloans/:id", h.getLoan)
	authed.PUT("/bookloans/:id", h.changeLoanStatus)

	// Admin endpoints
	admin := authed.Group("", RequireAdmin())
	admin.POST("/books", h.createBook)
	admin.PUT("/books/:id", h.updateBook)
	admin.DELETE("/books/:id", h.deleteBook)
	admin.POST("/categories", h.createCategory)
	admin.PUT("/categories/:id", h.updateCategory)
	admin.DELETE("/categories/:id", h.deleteCategory)
	admin.GET("/admin/dashboard", h.dashboard)
	admin.GET("/admin/users", h.listUsers)
}

// setPaginationHeaders mirrors page metadata into response headers.
func setPaginationHeaders(c *gin.Context, totalItems int64, pageSize, page int) {
	totalPages := (totalItems + int64(pageSize) - 1) / int64(pageSize)
	c.Header("X-Pagination-TotalItems", strconv.FormatInt(totalItems, 10))
	c.Header("X-Pagination-TotalPages", strconv.FormatInt(totalPages, 10))
	c.Header("X-Pagination-CurrentPage", strconv.Itoa(page))
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *LibraryHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	result, err := h.authSvc.Register(req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *LibraryHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	result, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LibraryHandler) profile(c *gin.Context) {
	user, err := h.authSvc.Profile(currentIdentity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ─── Loans ────────────────────────────────────────────────────────────────────

type createLoanRequest struct {
	BookID string `json:"book_id" binding:"required,uuid"`
	Notes  string `json:"notes"`
}

func (h *LibraryHandler) createLoan(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	bookID, err := uuid.Parse(req.BookID)
	if err != nil {
		respondBadRequest(c, "invalid book id")
		return
	}

	loan, err := h.loanSvc.CreateLoan(currentIdentity(c).UserID, bookID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

type changeLoanStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

func (h *LibraryHandler) changeLoanStatus(c *gin.Context) {
	loanID, ok := pathID(c)
	if !ok {
		return
	}
	var req changeLoanStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	status := models.LoanStatus(req.Status)
	if !services.KnownStatus(status) {
		respondBadRequest(c, "unknown loan status")
		return
	}

	loan, err := h.loanSvc.ChangeStatus(loanID, currentIdentity(c), status, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (h *LibraryHandler) getLoan(c *gin.Context) {
	loanID, ok := pathID(c)
	if !ok {
		return
	}
	loan, err := h.loanSvc.GetLoan(loanID, currentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (h *LibraryHandler) listLoans(c *gin.Context) {
	filter := repositories.LoanFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 10),
	}

	if raw := c.Query("status"); raw != "" {
		status := models.LoanStatus(raw)
		if !services.KnownStatus(status) {
			respondBadRequest(c, "unknown loan status")
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			respondBadRequest(c, "invalid user id")
			return
		}
		filter.UserID = &userID
	}
	if raw := c.Query("from_date"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondBadRequest(c, "invalid from_date, expected RFC 3339")
			return
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to_date"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondBadRequest(c, "invalid to_date, expected RFC 3339")
			return
		}
		filter.ToDate = &to
	}

	records, total, err := h.loanSvc.ListLoans(currentIdentity(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	setPaginationHeaders(c, total, filter.PageSize, filter.Page)
	c.JSON(http.StatusOK, records)
}

// ─── Books ────────────────────────────────────────────────────────────────────

type bookRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	Author          string `json:"author" binding:"required,max=100"`
	ISBN            string `json:"isbn" binding:"max=20"`
	Publisher       string `json:"publisher" binding:"max=100"`
	PublicationYear *int   `json:"publication_year"`
	Description     string `json:"description"`
	TotalCopies     int    `json:"total_copies" binding:"min=0"`
	CategoryID      string `json:"category_id" binding:"required,uuid"`
}

func (r bookRequest) toInput() (services.BookInput, error) {
	categoryID, err := uuid.Parse(r.CategoryID)
	if err != nil {
		return services.BookInput{}, err
	}
	return services.BookInput{
		Title:           r.Title,
		Author:          r.Author,
		ISBN:            r.ISBN,
		Publisher:       r.Publisher,
		PublicationYear: r.PublicationYear,
		Description:     r.Description,
		TotalCopies:     r.TotalCopies,
		CategoryID:      categoryID,
	}, nil
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondBadRequest(c, "invalid category id")
		return
	}
	book, err := h.catalogSvc.CreateBook(input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *LibraryHandler) updateBook(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondBadRequest(c, "invalid category id")
		return
	}
	book, err := h.catalogSvc.UpdateBook(bookID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) deleteBook(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalogSvc.DeleteBook(bookID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LibraryHandler) getBook(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	book, err := h.catalogSvc.GetBook(bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) searchBooks(c *gin.Context) {
	var categoryID *uuid.UUID
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondBadRequest(c, "invalid category id")
			return
		}
		categoryID = &id
	}
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 10)

	books, total, err := h.catalogSvc.SearchBooks(c.Query("search"), categoryID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	setPaginationHeaders(c, total, pageSize, page)
	c.JSON(http.StatusOK, books)
}

// ─── Categories ───────────────────────────────────────────────────────────────

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

func (h *LibraryHandler) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	category, err := h.catalogSvc.CreateCategory(req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *LibraryHandler) updateCategory(c *gin.Context) {
	categoryID, ok := pathID(c)
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	category, err := h.catalogSvc.UpdateCategory(categoryID, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *LibraryHandler) deleteCategory(c *gin.Context) {
	categoryID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalogSvc.DeleteCategory(categoryID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LibraryHandler) getCategory(c *gin.Context) {
	categoryID, ok := pathID(c)
	if !ok {
		return
	}
	category, err := h.catalogSvc.GetCategory(categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *LibraryHandler) listCategories(c *gin.Context) {
	categories, err := h.catalogSvc.ListCategories()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// ─── Admin ────────────────────────────────────────────────────────────────────

func (h *LibraryHandler) dashboard(c *gin.Context) {
	stats, err := h.adminSvc.Dashboard()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *LibraryHandler) listUsers(c *gin.Context) {
	users, err := h.adminSvc.ListUsers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
