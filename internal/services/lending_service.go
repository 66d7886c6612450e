package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blib/internal/models"
	"blib/internal/repositories"
)

// LendingService owns the borrow-record lifecycle: borrowing a copy,
// returning it (which may hand the freed copy to the reservation queue) and
// extending a loan.
type LendingService interface {
	Borrow(subscriberID, bookID uuid.UUID) (*models.BorrowRecord, error)
	Return(subscriberID, bookID uuid.UUID) (*models.BorrowRecord, error)
	// Extend moves an active record's due date. requestedBy is empty for a
	// subscriber/system request and carries the librarian's name for a manual
	// one; both outcomes append an extension notification.
	Extend(recordID uuid.UUID, requestedBy string, newDueDate time.Time) (*models.BorrowRecord, error)
	FetchBorrowedBooks(subscriberID uuid.UUID) ([]models.BorrowRecord, error)
}

type lendingService struct {
	db          *gorm.DB
	subscribers repositories.SubscriberRepository
	locks       *LockTable
	now         Clock
	allocator
}

func NewLendingService(
	db *gorm.DB,
	subscribers repositories.SubscriberRepository,
	books repositories.BookRepository,
	borrows repositories.BorrowRepository,
	reservations repositories.ReservationRepository,
	messages repositories.MessageRepository,
	locks *LockTable,
	now Clock,
) LendingService {
	if now == nil {
		now = defaultClock
	}
	return &lendingService{
		db:          db,
		subscribers: subscribers,
		locks:       locks,
		now:         now,
		allocator: allocator{
			books:        books,
			borrows:      borrows,
			reservations: reservations,
			messages:     messages,
		},
	}
}

// Borrow hands one copy of the book to the subscriber for LoanPeriodDays.
// When no copy is free, the subscriber's earmarked reservation (their turn in
// the queue) is consumed instead; the copy was already deducted when the
// holding window was granted.
func (s *lendingService) Borrow(subscriberID, bookID uuid.UUID) (*models.BorrowRecord, error) {
	unlock := s.locks.LockBook(bookID)
	defer unlock()

	var record *models.BorrowRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.subscribers.GetByID(tx, subscriberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriberNotFound
			}
			return err
		}
		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		if sub.Status == models.SubscriberStatusFrozen {
			log.Printf("[WARN] Borrow: subscriber %s is frozen, borrowing denied", subscriberID)
			return ErrAccountFrozen
		}

		now := s.now()
		if book.AvailableCopies > 0 {
			rows, err := s.books.AdjustAvailableCopies(tx, bookID, -1)
			if err != nil {
				return err
			}
			if rows == 0 {
				return ErrNegativeCopies
			}
		} else {
			// No free copy: only a reservation holding an earmarked copy lets
			// the borrow proceed. Consuming it must not touch the counter —
			// the copy was deducted at assignment time.
			res, err := s.reservations.GetEarmarked(tx, bookID, subscriberID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNoCopyAvailable
				}
				return err
			}
			if err := s.reservations.UpdateStatus(tx, res.ID, models.ReservationStatusUnactive); err != nil {
				return err
			}
			if err := s.reservations.CompactPrioritiesAbove(tx, bookID, res.Priority); err != nil {
				return err
			}
			log.Printf("[INFO] Borrow: subscriber %s consumed reservation %s for book %s", subscriberID, res.ID, bookID)
		}

		record = &models.BorrowRecord{
			SubscriberID: subscriberID,
			BookID:       bookID,
			BorrowDate:   now,
			DueDate:      now.AddDate(0, 0, LoanPeriodDays),
			Status:       models.BorrowStatusActive,
		}
		if err := s.borrows.Create(tx, record); err != nil {
			return err
		}

		if err := s.recomputeNearestReturn(tx, bookID); err != nil {
			return err
		}

		content := fmt.Sprintf("You have successfully borrowed '%s'. It is due on %s.",
			book.Title, record.DueDate.Format("2006-01-02"))
		return s.messages.Create(tx, &models.Message{
			UserID:    subscriberID,
			Content:   content,
			Kind:      models.MessageKindBorrow,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Borrow: record %s created for subscriber %s / book %s, due %s",
		record.ID, subscriberID, bookID, record.DueDate.Format("2006-01-02"))
	return record, nil
}

// Return closes the subscriber's open record for the book, releases the copy
// and runs the queue-assignment step so a waiting reservation can claim it
// immediately.
func (s *lendingService) Return(subscriberID, bookID uuid.UUID) (*models.BorrowRecord, error) {
	unlock := s.locks.LockBook(bookID)
	defer unlock()

	var record *models.BorrowRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := s.borrows.GetOpenBySubscriberAndBook(tx, subscriberID, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}

		now := s.now()
		if err := s.borrows.MarkReturned(tx, rec.ID, now); err != nil {
			return err
		}
		if _, err := s.books.AdjustAvailableCopies(tx, bookID, 1); err != nil {
			return err
		}

		if err := s.assignFreedCopy(tx, bookID, now); err != nil {
			return err
		}
		if err := s.recomputeNearestReturn(tx, bookID); err != nil {
			return err
		}

		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			return err
		}
		content := fmt.Sprintf("You have successfully returned '%s'.", book.Title)
		if err := s.messages.Create(tx, &models.Message{
			UserID:    subscriberID,
			Content:   content,
			Kind:      models.MessageKindReturn,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		record, err = s.borrows.GetByID(tx, rec.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Return: record %s closed for subscriber %s / book %s", record.ID, subscriberID, bookID)
	return record, nil
}

// Extend approves a later due date for an active record unless the book has
// pending reservations, which always take priority. The denial notification
// outlives the rolled-back transaction so subscriber and librarian both see
// the outcome.
func (s *lendingService) Extend(recordID uuid.UUID, requestedBy string, newDueDate time.Time) (*models.BorrowRecord, error) {
	// Resolve the book id first so the right lock is taken.
	rec, err := s.borrows.GetByID(nil, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	bookID := rec.BookID

	unlock := s.locks.LockBook(bookID)
	defer unlock()

	var record *models.BorrowRecord
	var denied *models.Message
	err = s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := s.borrows.GetByID(tx, recordID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		if rec.Status != models.BorrowStatusActive {
			return ErrRecordNotFound
		}

		if !newDueDate.After(rec.DueDate) {
			return ErrInvalidDate
		}

		book, err := s.books.GetByID(tx, rec.BookID)
		if err != nil {
			return err
		}

		now := s.now()
		queued, err := s.reservations.CountActiveByBook(tx, rec.BookID)
		if err != nil {
			return err
		}
		if queued > 0 {
			denied = &models.Message{
				UserID:    rec.SubscriberID,
				Content:   extensionOutcome(requestedBy, rec.ID, book.Title, "denied: the book has active reservations"),
				Kind:      models.MessageKindExtension,
				CreatedAt: now,
			}
			return ErrExtensionBlocked
		}

		if err := s.borrows.MarkExtended(tx, recordID, newDueDate); err != nil {
			return err
		}
		if err := s.recomputeNearestReturn(tx, rec.BookID); err != nil {
			return err
		}

		msg := &models.Message{
			UserID: rec.SubscriberID,
			Content: extensionOutcome(requestedBy, rec.ID, book.Title,
				fmt.Sprintf("approved; the new due date is %s", newDueDate.Format("2006-01-02"))),
			Kind:      models.MessageKindExtension,
			CreatedAt: now,
		}
		if err := s.messages.Create(tx, msg); err != nil {
			return err
		}

		record, err = s.borrows.GetByID(tx, recordID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrExtensionBlocked) && denied != nil {
			// The denial is part of the outcome, not of the rolled-back
			// write set.
			if msgErr := s.messages.Create(nil, denied); msgErr != nil {
				log.Printf("[ERROR] Extend: failed to append denial notification for record %s: %v", recordID, msgErr)
			}
			log.Printf("[WARN] Extend: record %s denied, book %s has active reservations", recordID, bookID)
		}
		return nil, err
	}
	log.Printf("[INFO] Extend: record %s extended to %s", recordID, newDueDate.Format("2006-01-02"))
	return record, nil
}

func (s *lendingService) FetchBorrowedBooks(subscriberID uuid.UUID) ([]models.BorrowRecord, error) {
	return s.borrows.ListBySubscriber(nil, subscriberID)
}

func extensionOutcome(requestedBy string, recordID uuid.UUID, title, outcome string) string {
	if requestedBy == "" {
		return fmt.Sprintf("Extension request for record %s on '%s' was %s.", recordID, title, outcome)
	}
	return fmt.Sprintf("Manual extension by librarian %s for record %s on '%s' was %s.", requestedBy, recordID, title, outcome)
}
