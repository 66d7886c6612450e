package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriberStatus string

const (
	SubscriberStatusActive SubscriberStatus = "ACTIVE"
	SubscriberStatusFrozen SubscriberStatus = "FROZEN"
)

type BorrowStatus string

const (
	BorrowStatusActive   BorrowStatus = "ACTIVE"
	BorrowStatusExtended BorrowStatus = "EXTENDED"
	BorrowStatusReturned BorrowStatus = "RETURNED"
)

type ReservationStatus string

const (
	// ReservationStatusActive means the subscriber is waiting in the queue.
	ReservationStatusActive ReservationStatus = "ACTIVE"
	// ReservationStatusUnactive means the reservation was consumed by a borrow.
	ReservationStatusUnactive ReservationStatus = "UNACTIVE"
	// ReservationStatusExpired means the holding window lapsed unused.
	ReservationStatusExpired  ReservationStatus = "EXPIRED"
	ReservationStatusCanceled ReservationStatus = "CANCELED"
)

type IssueKind string

const (
	IssueKindOverdue IssueKind = "OVERDUE"
	IssueKindLost    IssueKind = "LOST"
)

type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "OPEN"
	IssueStatusResolved IssueStatus = "RESOLVED"
)

type MessageKind string

const (
	MessageKindBorrow         MessageKind = "Borrow"
	MessageKindReturn         MessageKind = "Return"
	MessageKindReservation    MessageKind = "Reservation"
	MessageKindPickupReminder MessageKind = "PickupReminder"
	MessageKindDueReminder    MessageKind = "DueReminder"
	MessageKindExtension      MessageKind = "ExtensionNotification"
	MessageKindAccountStatus  MessageKind = "AccountStatus"
)

// Report types and categories produced by the monthly aggregation.
const (
	ReportTypeBorrowDurations  = "BorrowingDurations"
	ReportTypeSubscriberStatus = "SubscriberStatus"

	ReportCategoryShortLoan = "1-7Days"
	ReportCategoryFullLoan  = "8-14Days"
	ReportCategoryOverdue   = "Overdue"
	ReportCategoryExtended  = "ExtendedBorrowing"
	ReportCategoryActive    = "Active"
	ReportCategoryFrozen    = "Frozen"
)

type Book struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	Author            string     `gorm:"size:255;not null" json:"author"`
	Subject           string     `gorm:"size:255" json:"subject"`
	Description       string     `gorm:"size:1024" json:"description"`
	Location          string     `gorm:"size:64" json:"location"`
	Barcode           string     `gorm:"size:64;uniqueIndex" json:"barcode"`
	TotalCopies       int        `gorm:"not null" json:"total_copies"`
	AvailableCopies   int        `gorm:"not null" json:"available_copies"`
	NearestReturnDate *time.Time `json:"nearest_return_date"`
}

func (b *Book) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type Subscriber struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SubscriptionNumber string           `gorm:"size:32;uniqueIndex;not null" json:"subscription_number"`
	Name               string           `gorm:"size:255;not null" json:"name"`
	Email              string           `gorm:"size:255;uniqueIndex;not null" json:"email"`
	MobilePhoneNumber  string           `gorm:"size:32;uniqueIndex;not null" json:"mobile_phone_number"`
	Status             SubscriberStatus `gorm:"size:16;not null" json:"status"`
}

func (s *Subscriber) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type BorrowRecord struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	SubscriberID uuid.UUID    `gorm:"type:uuid;not null;index" json:"subscriber_id"`
	BookID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"book_id"`
	BorrowDate   time.Time    `gorm:"not null" json:"borrow_date"`
	DueDate      time.Time    `gorm:"not null" json:"due_date"`
	ReturnDate   *time.Time   `json:"return_date"`
	Status       BorrowStatus `gorm:"size:16;not null;index" json:"status"`
}

func (r *BorrowRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Reservation is one slot in a book's waiting queue. A non-nil ExpirationDate
// means the reservation currently holds one earmarked copy for pickup.
type Reservation struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	BookID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"book_id"`
	SubscriberID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"subscriber_id"`
	ReservationDate time.Time         `gorm:"not null" json:"reservation_date"`
	ExpirationDate  *time.Time        `json:"expiration_date"`
	Priority        int               `gorm:"not null" json:"priority"`
	Status          ReservationStatus `gorm:"size:16;not null;index" json:"status"`
}

func (r *Reservation) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// FreezeLog tracks one freeze episode; Processed flips to true when the
// account returns to Active.
type FreezeLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubscriberID  uuid.UUID `gorm:"type:uuid;not null;index" json:"subscriber_id"`
	FreezeEndDate time.Time `gorm:"not null" json:"freeze_end_date"`
	Processed     bool      `gorm:"not null" json:"processed"`
}

func (f *FreezeLog) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

type Issue struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	SubscriberID uuid.UUID   `gorm:"type:uuid;not null;index" json:"subscriber_id"`
	BookID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"book_id"`
	Kind         IssueKind   `gorm:"size:16;not null" json:"kind"`
	Description  string      `gorm:"size:512;not null" json:"description"`
	DateReported time.Time   `gorm:"not null" json:"date_reported"`
	Status       IssueStatus `gorm:"size:16;not null;index" json:"status"`
}

func (i *Issue) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Message is one entry in the notification sink. Delivery and rendering are
// the messaging UI's concern; the engine only appends.
type Message struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	Content   string      `gorm:"size:1024;not null" json:"content"`
	Kind      MessageKind `gorm:"size:32;not null;index" json:"kind"`
	CreatedAt time.Time   `gorm:"not null" json:"created_at"`
}

func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Report holds one aggregated numeric value. The (type, month, category)
// triple is unique so re-running a month's aggregation overwrites.
type Report struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportType  string    `gorm:"size:32;not null;uniqueIndex:uniq_report_key" json:"report_type"`
	ReportMonth time.Time `gorm:"not null;uniqueIndex:uniq_report_key" json:"report_month"`
	Category    string    `gorm:"size:32;not null;uniqueIndex:uniq_report_key" json:"category"`
	Value       int       `gorm:"not null" json:"value"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (r *Report) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
