package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blib/internal/models"
	"blib/internal/repositories"
)

// ReservationService owns the per-book waiting queue: joining it, leaving it,
// and keeping the priority sequence contiguous.
type ReservationService interface {
	Reserve(bookID, subscriberID uuid.UUID) (*models.Reservation, error)
	Cancel(reservationID uuid.UUID) error
	FetchReservations(subscriberID uuid.UUID) ([]models.Reservation, error)
}

type reservationService struct {
	db          *gorm.DB
	subscribers repositories.SubscriberRepository
	locks       *LockTable
	now         Clock
	allocator
}

func NewReservationService(
	db *gorm.DB,
	subscribers repositories.SubscriberRepository,
	books repositories.BookRepository,
	borrows repositories.BorrowRepository,
	reservations repositories.ReservationRepository,
	messages repositories.MessageRepository,
	locks *LockTable,
	now Clock,
) ReservationService {
	if now == nil {
		now = defaultClock
	}
	return &reservationService{
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

// Reserve appends the subscriber to the book's queue. Admission is bounded by
// circulation: counting the new entry, the queue must stay below the number
// of copies currently out, so nobody waits behind shelf stock that will never
// pass through a return.
func (s *reservationService) Reserve(bookID, subscriberID uuid.UUID) (*models.Reservation, error) {
	unlock := s.locks.LockBook(bookID)
	defer unlock()

	var reservation *models.Reservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.subscribers.GetByID(tx, subscriberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriberNotFound
			}
			return err
		}
		if sub.Status == models.SubscriberStatusFrozen {
			log.Printf("[WARN] Reserve: subscriber %s is frozen, reservation denied", subscriberID)
			return ErrAccountFrozen
		}

		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		if _, err := s.reservations.GetActiveBySubscriberAndBook(tx, bookID, subscriberID); err == nil {
			return ErrDuplicateReservation
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		outstanding, err := s.borrows.CountOutstandingByBook(tx, bookID)
		if err != nil {
			return err
		}
		queued, err := s.reservations.CountActiveByBook(tx, bookID)
		if err != nil {
			return err
		}
		if queued+1 >= outstanding {
			log.Printf("[WARN] Reserve: queue full for book %s (queued=%d outstanding=%d)", bookID, queued, outstanding)
			return ErrQueueFull
		}

		maxPriority, err := s.reservations.MaxActivePriority(tx, bookID)
		if err != nil {
			return err
		}

		now := s.now()
		reservation = &models.Reservation{
			BookID:          bookID,
			SubscriberID:    subscriberID,
			ReservationDate: now,
			Priority:        maxPriority + 1,
			Status:          models.ReservationStatusActive,
		}
		if err := s.reservations.Create(tx, reservation); err != nil {
			return err
		}

		content := fmt.Sprintf("You have successfully placed a reservation for '%s'.", book.Title)
		return s.messages.Create(tx, &models.Message{
			UserID:    subscriberID,
			Content:   content,
			Kind:      models.MessageKindReservation,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Reserve: reservation %s created for subscriber %s / book %s at priority %d",
		reservation.ID, subscriberID, bookID, reservation.Priority)
	return reservation, nil
}

// Cancel removes an active reservation, closes the priority gap it leaves
// and, if it was holding an earmarked copy, releases that copy back to the
// queue-assignment step.
func (s *reservationService) Cancel(reservationID uuid.UUID) error {
	res, err := s.reservations.GetByID(nil, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReservationNotFound
		}
		return err
	}
	bookID := res.BookID

	unlock := s.locks.LockBook(bookID)
	defer unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res, err := s.reservations.GetByID(tx, reservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if res.Status != models.ReservationStatusActive {
			return ErrInvalidState
		}

		if err := s.reservations.UpdateStatus(tx, reservationID, models.ReservationStatusCanceled); err != nil {
			return err
		}
		if err := s.reservations.CompactPrioritiesAbove(tx, bookID, res.Priority); err != nil {
			return err
		}

		now := s.now()
		if res.ExpirationDate != nil {
			// The canceled reservation was holding a copy; free it and offer
			// it to the next in line.
			if _, err := s.books.AdjustAvailableCopies(tx, bookID, 1); err != nil {
				return err
			}
			if err := s.assignFreedCopy(tx, bookID, now); err != nil {
				return err
			}
		}

		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			return err
		}
		content := fmt.Sprintf("You have canceled your reservation for '%s'.", book.Title)
		return s.messages.Create(tx, &models.Message{
			UserID:    res.SubscriberID,
			Content:   content,
			Kind:      models.MessageKindReservation,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] Cancel: reservation %s canceled for book %s", reservationID, bookID)
	return nil
}

func (s *reservationService) FetchReservations(subscriberID uuid.UUID) ([]models.Reservation, error) {
	return s.reservations.ListBySubscriber(nil, subscriberID)
}
