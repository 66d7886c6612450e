package services

import (
	"log"

	"github.com/google/uuid"

	"blib/internal/models"
	"blib/internal/repositories"
)

// Roles recognized by the notification fetch. Subscribers read their own
// inbox; librarians see the extension-notification stream across all
// subscribers.
const (
	RoleSubscriber = "subscriber"
	RoleLibrarian  = "librarian"
)

// NotificationService is the append-only message sink. Messages are never
// edited or deleted; delivery is the messaging UI's concern.
type NotificationService interface {
	Append(userID uuid.UUID, kind models.MessageKind, content string) (*models.Message, error)
	FetchMessages(userID uuid.UUID, role string) ([]models.Message, error)
}

type notificationService struct {
	messages repositories.MessageRepository
	now      Clock
}

func NewNotificationService(messages repositories.MessageRepository, now Clock) NotificationService {
	if now == nil {
		now = defaultClock
	}
	return &notificationService{messages: messages, now: now}
}

func (s *notificationService) Append(userID uuid.UUID, kind models.MessageKind, content string) (*models.Message, error) {
	msg := &models.Message{
		UserID:    userID,
		Content:   content,
		Kind:      kind,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(nil, msg); err != nil {
		log.Printf("[ERROR] Append: failed to append message for user %s: %v", userID, err)
		return nil, err
	}
	return msg, nil
}

// FetchMessages returns the newest-first message view for the role: a
// subscriber's own inbox, or the extension notifications a librarian reviews.
func (s *notificationService) FetchMessages(userID uuid.UUID, role string) ([]models.Message, error) {
	if role == RoleLibrarian {
		return s.messages.ListByKind(nil, models.MessageKindExtension)
	}
	return s.messages.ListByUser(nil, userID)
}
