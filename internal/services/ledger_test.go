package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/models"
)

func TestReserveCopy(t *testing.T) {
	book := &models.Book{TotalCopies: 2, AvailableCopies: 2}

	require.NoError(t, ReserveCopy(book))
	assert.Equal(t, 1, book.AvailableCopies)

	require.NoError(t, ReserveCopy(book))
	assert.Equal(t, 0, book.AvailableCopies)

	err := ReserveCopy(book)
	require.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 0, book.AvailableCopies)
}

func TestReleaseCopyClampsAtTotal(t *testing.T) {
	book := &models.Book{TotalCopies: 2, AvailableCopies: 1}

	ReleaseCopy(book)
	assert.Equal(t, 2, book.AvailableCopies)

	// Releasing beyond the total stock must not over-count.
	ReleaseCopy(book)
	assert.Equal(t, 2, book.AvailableCopies)
}

func TestResizeCopies(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		available     int
		newTotal      int
		wantAvailable int
	}{
		{"grow with all on shelf", 3, 3, 5, 5},
		{"grow with copies out", 3, 1, 5, 3},
		{"shrink with all on shelf", 5, 5, 2, 2},
		{"shrink below checked-out count clamps at zero", 3, 1, 1, 0},
		{"shrink to zero", 4, 2, 0, 0},
		{"negative total treated as zero", 4, 2, -3, 0},
		{"no change", 3, 2, 3, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			book := &models.Book{TotalCopies: tc.total, AvailableCopies: tc.available}
			ResizeCopies(book, tc.newTotal)

			assert.Equal(t, tc.wantAvailable, book.AvailableCopies)
			assert.GreaterOrEqual(t, book.AvailableCopies, 0)
			assert.LessOrEqual(t, book.AvailableCopies, book.TotalCopies)
		})
	}
}
