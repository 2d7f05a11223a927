package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"library/internal/services"
)

// respondError maps domain errors onto one uniform JSON error shape. Every
// endpoint goes through here so clients never see two different formats for
// the same kind of failure.
func respondError(c *gin.Context, err error) {
	var invalid *services.InvalidTransitionError

	switch {
	case errors.Is(err, services.ErrBookNotFound),
		errors.Is(err, services.ErrLoanNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrCategoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.As(err, &invalid),
		errors.Is(err, services.ErrOutOfStock),
		errors.Is(err, services.ErrDuplicateActiveLoan),
		errors.Is(err, services.ErrConcurrentModification),
		errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrISBNTaken),
		errors.Is(err, services.ErrCategoryNameTaken),
		errors.Is(err, services.ErrBookHasActiveLoans),
		errors.Is(err, services.ErrCategoryHasBooks):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
