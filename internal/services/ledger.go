package services

import "library/internal/models"

// ─── Inventory Ledger ─────────────────────────────────────────────────────────
//
// The ledger mutates a book's copy counts in memory and enforces
// 0 <= AvailableCopies <= TotalCopies. Persisting the mutated record,
// atomically with whatever loan change motivated it, is the caller's job.

// ReserveCopy takes one available copy off the shelf. Fails with ErrOutOfStock
// when none are left.
func ReserveCopy(book *models.Book) error {
	if book.AvailableCopies <= 0 {
		return ErrOutOfStock
	}
	book.AvailableCopies--
	return nil
}

// ReleaseCopy puts one copy back, clamped so availability never exceeds the
// total stock.
func ReleaseCopy(book *models.Book) {
	if book.AvailableCopies < book.TotalCopies {
		book.AvailableCopies++
	}
}

// ResizeCopies adjusts the total stock to newTotal and shifts availability by
// the same signed delta, clamped to [0, newTotal]. Copies currently checked
// out stay checked out; the counts never go inconsistent.
func ResizeCopies(book *models.Book, newTotal int) {
	if newTotal < 0 {
		newTotal = 0
	}
	delta := newTotal - book.TotalCopies
	book.TotalCopies = newTotal

	book.AvailableCopies += delta
	if book.AvailableCopies < 0 {
		book.AvailableCopies = 0
	}
	if book.AvailableCopies > newTotal {
		book.AvailableCopies = newTotal
	}
}
