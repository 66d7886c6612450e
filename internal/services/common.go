package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blib/internal/models"
	"blib/internal/repositories"
)

const (
	// LoanPeriodDays is the number of days a subscriber may keep a book.
	LoanPeriodDays = 14

	// HoldingWindowDays is how long an earmarked copy waits for pickup before
	// the reservation expires.
	HoldingWindowDays = 2

	// FreezePeriodDays is the length of a freeze episode.
	FreezePeriodDays = 30

	// OverdueFreezeDays is how many days past due a record must be before the
	// account is frozen.
	OverdueFreezeDays = 7

	// OverdueIssueDays is how many days past due a record must be before an
	// overdue issue is raised.
	OverdueIssueDays = 1
)

// Clock supplies the current instant; injectable so time-dependent behavior is
// testable deterministically.
type Clock func() time.Time

func defaultClock() time.Time {
	return time.Now().UTC()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// allocator bundles the repositories shared by every flow that frees or
// earmarks a copy: Return, Cancel and reservation expiry all run the same
// queue-assignment step, and every borrow-affecting flow recomputes the
// book's nearest return date.
type allocator struct {
	books        repositories.BookRepository
	borrows      repositories.BorrowRepository
	reservations repositories.ReservationRepository
	messages     repositories.MessageRepository
}

// assignFreedCopy offers one available copy to the lowest-priority waiting
// reservation: the reservation receives a holding window of
// HoldingWindowDays, the copy count drops by one, and the subscriber gets a
// pickup reminder. A no-op when no copy is free or nobody is waiting.
func (a allocator) assignFreedCopy(tx *gorm.DB, bookID uuid.UUID, now time.Time) error {
	book, err := a.books.GetByID(tx, bookID)
	if err != nil {
		return err
	}
	if book.AvailableCopies <= 0 {
		return nil
	}

	next, err := a.reservations.NextWaiting(tx, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	expiration := now.AddDate(0, 0, HoldingWindowDays)
	if err := a.reservations.SetExpiration(tx, next.ID, &expiration); err != nil {
		return err
	}
	rows, err := a.books.AdjustAvailableCopies(tx, bookID, -1)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNegativeCopies
	}

	content := fmt.Sprintf("A copy of '%s' is being held for you. Pick it up before %s or the reservation expires.",
		book.Title, expiration.Format("2006-01-02"))
	return a.messages.Create(tx, &models.Message{
		UserID:    next.SubscriberID,
		Content:   content,
		Kind:      models.MessageKindPickupReminder,
		CreatedAt: now,
	})
}

// recomputeNearestReturn refreshes the book's nearest return date from the
// minimum due date over its open borrow records.
func (a allocator) recomputeNearestReturn(tx *gorm.DB, bookID uuid.UUID) error {
	earliest, err := a.borrows.EarliestOpenDueDate(tx, bookID)
	if err != nil {
		return err
	}
	return a.books.SetNearestReturnDate(tx, bookID, earliest)
}
