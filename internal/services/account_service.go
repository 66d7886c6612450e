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

// AccountService manages the freeze lifecycle of subscriber accounts. Its
// operations are driven exclusively by the reconciliation sweep, never by
// client actions.
type AccountService interface {
	Freeze(subscriberID uuid.UUID) error
	Unfreeze(subscriberID, freezeLogID uuid.UUID) error
}

type accountService struct {
	db          *gorm.DB
	subscribers repositories.SubscriberRepository
	freezeLogs  repositories.FreezeLogRepository
	messages    repositories.MessageRepository
	locks       *LockTable
	now         Clock
}

func NewAccountService(
	db *gorm.DB,
	subscribers repositories.SubscriberRepository,
	freezeLogs repositories.FreezeLogRepository,
	messages repositories.MessageRepository,
	locks *LockTable,
	now Clock,
) AccountService {
	if now == nil {
		now = defaultClock
	}
	return &accountService{
		db:          db,
		subscribers: subscribers,
		freezeLogs:  freezeLogs,
		messages:    messages,
		locks:       locks,
		now:         now,
	}
}

// Freeze moves an active account to Frozen and opens the freeze episode's
// log entry, ending FreezePeriodDays from now.
func (s *accountService) Freeze(subscriberID uuid.UUID) error {
	unlock := s.locks.LockSubscriber(subscriberID)
	defer unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.subscribers.GetByID(tx, subscriberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriberNotFound
			}
			return err
		}
		if sub.Status != models.SubscriberStatusActive {
			return ErrInvalidState
		}

		now := s.now()
		end := now.AddDate(0, 0, FreezePeriodDays)
		if err := s.subscribers.UpdateStatus(tx, subscriberID, models.SubscriberStatusFrozen); err != nil {
			return err
		}
		if err := s.freezeLogs.Create(tx, &models.FreezeLog{
			SubscriberID:  subscriberID,
			FreezeEndDate: end,
			Processed:     false,
		}); err != nil {
			return err
		}

		content := fmt.Sprintf("Your account has been frozen until %s because of an overdue book.", end.Format("2006-01-02"))
		return s.messages.Create(tx, &models.Message{
			UserID:    subscriberID,
			Content:   content,
			Kind:      models.MessageKindAccountStatus,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] Freeze: subscriber %s frozen for %d days", subscriberID, FreezePeriodDays)
	return nil
}

// Unfreeze closes a freeze episode once its end date has passed: the account
// returns to Active and the log entry is marked processed so the episode is
// handled exactly once.
func (s *accountService) Unfreeze(subscriberID, freezeLogID uuid.UUID) error {
	unlock := s.locks.LockSubscriber(subscriberID)
	defer unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		entry, err := s.freezeLogs.GetByID(tx, freezeLogID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidState
			}
			return err
		}
		now := s.now()
		if entry.SubscriberID != subscriberID || entry.Processed || entry.FreezeEndDate.After(now) {
			return ErrInvalidState
		}

		sub, err := s.subscribers.GetByID(tx, subscriberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriberNotFound
			}
			return err
		}
		if sub.Status != models.SubscriberStatusFrozen {
			return ErrInvalidState
		}

		if err := s.subscribers.UpdateStatus(tx, subscriberID, models.SubscriberStatusActive); err != nil {
			return err
		}
		if err := s.freezeLogs.MarkProcessed(tx, freezeLogID); err != nil {
			return err
		}

		return s.messages.Create(tx, &models.Message{
			UserID:    subscriberID,
			Content:   "Your account is active again.",
			Kind:      models.MessageKindAccountStatus,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] Unfreeze: subscriber %s active again", subscriberID)
	return nil
}
