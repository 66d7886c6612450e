package services

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blib/internal/models"
	"blib/internal/repositories"
)

// SubscriberService covers subscriber management outside the freeze
// lifecycle: registration, contact updates and listing.
type SubscriberService interface {
	Register(sub *models.Subscriber) (*models.Subscriber, error)
	UpdateContactDetails(subscriberID uuid.UUID, email, phone string) (*models.Subscriber, error)
	GetSubscriber(subscriberID uuid.UUID) (*models.Subscriber, error)
	FetchSubscribers() ([]models.Subscriber, error)
}

type subscriberService struct {
	db          *gorm.DB
	subscribers repositories.SubscriberRepository
}

func NewSubscriberService(db *gorm.DB, subscribers repositories.SubscriberRepository) SubscriberService {
	return &subscriberService{db: db, subscribers: subscribers}
}

// Register creates a new account in Active state. The id, subscription
// number, email and phone number must all be unused.
func (s *subscriberService) Register(sub *models.Subscriber) (*models.Subscriber, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if sub.ID != uuid.Nil {
			if _, err := s.subscribers.GetByID(tx, sub.ID); err == nil {
				return ErrDuplicateSubscriber
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		if _, err := s.subscribers.GetBySubscriptionNumber(tx, sub.SubscriptionNumber); err == nil {
			return ErrDuplicateSubscriber
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if _, err := s.subscribers.FindConflict(tx, sub.Email, sub.MobilePhoneNumber, sub.ID); err == nil {
			return ErrDuplicateSubscriber
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		sub.Status = models.SubscriberStatusActive
		return s.subscribers.Create(tx, sub)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Register: subscriber %s registered (number=%s)", sub.ID, sub.SubscriptionNumber)
	return sub, nil
}

// UpdateContactDetails replaces the subscriber's email and phone number after
// checking neither is in use by someone else.
func (s *subscriberService) UpdateContactDetails(subscriberID uuid.UUID, email, phone string) (*models.Subscriber, error) {
	var updated *models.Subscriber
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.subscribers.GetByID(tx, subscriberID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriberNotFound
			}
			return err
		}

		if other, err := s.subscribers.FindConflict(tx, email, phone, subscriberID); err == nil {
			log.Printf("[WARN] UpdateContactDetails: contact details for %s collide with subscriber %s", subscriberID, other.ID)
			return ErrDuplicateSubscriber
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.subscribers.UpdateContact(tx, subscriberID, email, phone); err != nil {
			return err
		}
		var err error
		updated, err = s.subscribers.GetByID(tx, subscriberID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] UpdateContactDetails: subscriber %s contact details updated", subscriberID)
	return updated, nil
}

func (s *subscriberService) GetSubscriber(subscriberID uuid.UUID) (*models.Subscriber, error) {
	sub, err := s.subscribers.GetByID(nil, subscriberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *subscriberService) FetchSubscribers() ([]models.Subscriber, error) {
	return s.subscribers.List(nil)
}
