package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blib/internal/models"
)

type SubscriberRepository interface {
	Create(db *gorm.DB, sub *models.Subscriber) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Subscriber, error)
	GetBySubscriptionNumber(db *gorm.DB, number string) (*models.Subscriber, error)
	List(db *gorm.DB) ([]models.Subscriber, error)
	// FindConflict returns a subscriber other than excludeID already using the
	// given email or phone number, or gorm.ErrRecordNotFound.
	FindConflict(db *gorm.DB, email, phone string, excludeID uuid.UUID) (*models.Subscriber, error)
	UpdateStatus(db *gorm.DB, id uuid.UUID, status models.SubscriberStatus) error
	UpdateContact(db *gorm.DB, id uuid.UUID, email, phone string) error
	CountByStatus(db *gorm.DB, status models.SubscriberStatus) (int64, error)
	ListByStatus(db *gorm.DB, status models.SubscriberStatus) ([]models.Subscriber, error)
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	GetByBarcode(db *gorm.DB, barcode string) (*models.Book, error)
	List(db *gorm.DB) ([]models.Book, error)
	Search(db *gorm.DB, query string) ([]models.Book, error)
	// AdjustAvailableCopies adds delta to available_copies. The UPDATE is
	// guarded so the counter can never go below zero; a guarded-out update
	// reports zero rows affected.
	AdjustAvailableCopies(db *gorm.DB, id uuid.UUID, delta int) (int64, error)
	IncrementTotalCopies(db *gorm.DB, id uuid.UUID, delta int) error
	SetNearestReturnDate(db *gorm.DB, id uuid.UUID, date *time.Time) error
}

type BorrowRepository interface {
	Create(db *gorm.DB, rec *models.BorrowRecord) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.BorrowRecord, error)
	// GetOpenBySubscriberAndBook finds the subscriber's Active or Extended
	// record for the book.
	GetOpenBySubscriberAndBook(db *gorm.DB, subscriberID, bookID uuid.UUID) (*models.BorrowRecord, error)
	MarkReturned(db *gorm.DB, id uuid.UUID, returnedAt time.Time) error
	MarkExtended(db *gorm.DB, id uuid.UUID, newDueDate time.Time) error
	CountOutstandingByBook(db *gorm.DB, bookID uuid.UUID) (int64, error)
	// EarliestOpenDueDate returns the minimum due date among Active/Extended
	// records for the book, or nil if none are out.
	EarliestOpenDueDate(db *gorm.DB, bookID uuid.UUID) (*time.Time, error)
	ListBySubscriber(db *gorm.DB, subscriberID uuid.UUID) ([]models.BorrowRecord, error)
	// ListOverdueOpen returns Active/Extended records with due_date <= cutoff.
	ListOverdueOpen(db *gorm.DB, cutoff time.Time) ([]models.BorrowRecord, error)
	// ListDueBetween returns Active/Extended records with from <= due_date < to.
	ListDueBetween(db *gorm.DB, from, to time.Time) ([]models.BorrowRecord, error)
	ListBorrowedBetween(db *gorm.DB, from, to time.Time) ([]models.BorrowRecord, error)
}

type ReservationRepository interface {
	Create(db *gorm.DB, res *models.Reservation) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Reservation, error)
	// GetEarmarked finds the subscriber's Active reservation for the book that
	// currently holds a copy (expiration date set).
	GetEarmarked(db *gorm.DB, bookID, subscriberID uuid.UUID) (*models.Reservation, error)
	GetActiveBySubscriberAndBook(db *gorm.DB, bookID, subscriberID uuid.UUID) (*models.Reservation, error)
	// NextWaiting returns the lowest-priority Active reservation for the book
	// without a holding window.
	NextWaiting(db *gorm.DB, bookID uuid.UUID) (*models.Reservation, error)
	CountActiveByBook(db *gorm.DB, bookID uuid.UUID) (int64, error)
	MaxActivePriority(db *gorm.DB, bookID uuid.UUID) (int, error)
	UpdateStatus(db *gorm.DB, id uuid.UUID, status models.ReservationStatus) error
	SetExpiration(db *gorm.DB, id uuid.UUID, expiration *time.Time) error
	// CompactPrioritiesAbove closes the gap left by a departed reservation.
	CompactPrioritiesAbove(db *gorm.DB, bookID uuid.UUID, priority int) error
	ListBySubscriber(db *gorm.DB, subscriberID uuid.UUID) ([]models.Reservation, error)
	ListActiveByBook(db *gorm.DB, bookID uuid.UUID) ([]models.Reservation, error)
	// ListExpiredHolds returns Active reservations whose holding window ended
	// before asOf.
	ListExpiredHolds(db *gorm.DB, asOf time.Time) ([]models.Reservation, error)
}

type FreezeLogRepository interface {
	Create(db *gorm.DB, log *models.FreezeLog) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.FreezeLog, error)
	ListUnprocessedDue(db *gorm.DB, asOf time.Time) ([]models.FreezeLog, error)
	MarkProcessed(db *gorm.DB, id uuid.UUID) error
}

type IssueRepository interface {
	Create(db *gorm.DB, issue *models.Issue) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Issue, error)
	// HasOpen reports whether the subscriber has any open issue of the given
	// kind, regardless of book.
	HasOpen(db *gorm.DB, subscriberID uuid.UUID, kind models.IssueKind) (bool, error)
	// HasOpenLostForBook reports whether any subscriber has an open lost issue
	// for the book.
	HasOpenLostForBook(db *gorm.DB, bookID uuid.UUID) (bool, error)
	HasOpenLost(db *gorm.DB, subscriberID, bookID uuid.UUID) (bool, error)
	Resolve(db *gorm.DB, id uuid.UUID) error
	ListBySubscriber(db *gorm.DB, subscriberID uuid.UUID) ([]models.Issue, error)
}

type MessageRepository interface {
	Create(db *gorm.DB, msg *models.Message) error
	ListByUser(db *gorm.DB, userID uuid.UUID) ([]models.Message, error)
	ListByKind(db *gorm.DB, kind models.MessageKind) ([]models.Message, error)
	// ExistsSame reports whether an identical message was already appended for
	// the user at or after since. Used to keep reminders idempotent per day.
	ExistsSame(db *gorm.DB, userID uuid.UUID, kind models.MessageKind, content string, since time.Time) (bool, error)
}

type ReportRepository interface {
	Upsert(db *gorm.DB, report *models.Report) error
	ListByTypeAndMonth(db *gorm.DB, reportType string, month time.Time) ([]models.Report, error)
}

// concrete implementations

type subscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) handle(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *subscriberRepository) Create(db *gorm.DB, sub *models.Subscriber) error {
	return r.handle(db).Create(sub).Error
}

func (r *subscriberRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.handle(db).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriberRepository) GetBySubscriptionNumber(db *gorm.DB, number string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.handle(db).First(&sub, "subscription_number = ?", number).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriberRepository) List(db *gorm.DB) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	if err := r.handle(db).Order("subscription_number").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subscriberRepository) FindConflict(db *gorm.DB, email, phone string, excludeID uuid.UUID) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := r.handle(db).
		Where("(email = ? OR mobile_phone_number = ?) AND id <> ?", email, phone, excludeID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriberRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, status models.SubscriberStatus) error {
	return r.handle(db).Model(&models.Subscriber{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *subscriberRepository) UpdateContact(db *gorm.DB, id uuid.UUID, email, phone string) error {
	return r.handle(db).Model(&models.Subscriber{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"email":               email,
			"mobile_phone_number": phone,
		}).Error
}

func (r *subscriberRepository) CountByStatus(db *gorm.DB, status models.SubscriberStatus) (int64, error) {
	var n int64
	err := r.handle(db).Model(&models.Subscriber{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

func (r *subscriberRepository) ListByStatus(db *gorm.DB, status models.SubscriberStatus) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	if err := r.handle(db).Where("status = ?", status).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) handle(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	return r.handle(db).Create(book).Error
}

func (r *bookRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.handle(db).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) GetByBarcode(db *gorm.DB, barcode string) (*models.Book, error) {
	var book models.Book
	if err := r.handle(db).First(&book, "barcode = ?", barcode).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(db *gorm.DB) ([]models.Book, error) {
	var books []models.Book
	if err := r.handle(db).Order("title").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) Search(db *gorm.DB, query string) ([]models.Book, error) {
	var books []models.Book
	pattern := "%" + query + "%"
	err := r.handle(db).
		Where("title LIKE ? OR subject LIKE ? OR description LIKE ?", pattern, pattern, pattern).
		Order("title").
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) AdjustAvailableCopies(db *gorm.DB, id uuid.UUID, delta int) (int64, error) {
	res := r.handle(db).Model(&models.Book{}).
		Where("id = ? AND available_copies + ? >= 0", id, delta).
		UpdateColumn("available_copies", gorm.Expr("available_copies + ?", delta))
	return res.RowsAffected, res.Error
}

func (r *bookRepository) IncrementTotalCopies(db *gorm.DB, id uuid.UUID, delta int) error {
	return r.handle(db).Model(&models.Book{}).
		Where("id = ?", id).
		UpdateColumn("total_copies", gorm.Expr("total_copies + ?", delta)).Error
}

func (r *bookRepository) SetNearestReturnDate(db *gorm.DB, id uuid.UUID, date *time.Time) error {
	return r.handle(db).Model(&models.Book{}).
		Where("id = ?", id).
		Update("nearest_return_date", date).Error
}

type borrowRepository struct {
	db *gorm.DB
}

func NewBorrowRepository(db *gorm.DB) BorrowRepository {
	return &borrowRepository{db: db}
}

func (r *borrowRepository) handle(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

var openBorrowStatuses = []models.BorrowStatus{
	models.BorrowStatusActive,
	models.BorrowStatusExtended,
}

func (r *borrowRepository) Create(db *gorm.DB, rec *models.BorrowRecord) error {
	return r.handle(db).Create(rec).Error
}

func (r *borrowRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.BorrowRecord, error) {
	var rec models.BorrowRecord
	if err := r.handle(db).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *borrowRepository) GetOpenBySubscriberAndBook(db *gorm.DB, subscriberID, bookID uuid.UUID) (*models.BorrowRecord, error) {
	var rec models.BorrowRecord
	err := r.handle(db).
		Where("subscriber_id = ? AND book_id = ? AND status IN ?", subscriberID, bookID, openBorrowStatuses).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *borrowRepository) MarkReturned(db *gorm.DB, id uuid.UUID, returnedAt time.Time) error {
	return r.handle(db).Model(&models.BorrowRecord{}).
		Where("id = ? AND status IN ?", id, openBorrowStatuses).
		Updates(map[string]interface{}{
			"return_date": returnedAt,
			"status":      models.BorrowStatusReturned,
		}).Error
}

func (r *borrowRepository) MarkExtended(db *gorm.DB, id uuid.UUID, newDueDate time.Time) error {
	return r.handle(db).Model(&models.BorrowRecord{}).
		Where("id = ? AND status = ?", id, models.BorrowStatusActive).
		Updates(map[string]interface{}{
			"due_date": newDueDate,
			"status":   models.BorrowStatusExtended,
		}).Error
}

func (r *borrowRepository) CountOutstandingByBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	var n int64
	err := r.handle(db).Model(&models.BorrowRecord{}).
		Where("book_id = ? AND status IN ?", bookID, openBorrowStatuses).
		Count(&n).Error
	return n, err
}

func (r *borrowRepository) EarliestOpenDueDate(db *gorm.DB, bookID uuid.UUID) (*time.Time, error) {
	var rec models.BorrowRecord
	err := r.handle(db).
		Where("book_id = ? AND status IN ?", bookID, openBorrowStatuses).
		Order("due_date ASC").
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rec.DueDate, nil
}

func (r *borrowRepository) ListBySubscriber(db *gorm.DB, subscriberID uuid.UUID) ([]models.BorrowRecord, error) {
	var recs []models.BorrowRecord
	err := r.handle(db).
		Where("subscriber_id = ?", subscriberID).
		Order("borrow_date DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *borrowRepository) ListOverdueOpen(db *gorm.DB, cutoff time.Time) ([]models.BorrowRecord, error) {
	var recs []models.BorrowRecord
	err := r.handle(db).
		Where("status IN ? AND due_date <= ?", openBorrowStatuses, cutoff).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *borrowRepository) ListDueBetween(db *gorm.DB, from, to time.Time) ([]models.BorrowRecord, error) {
	var recs []models.BorrowRecord
	err := r.handle(db).
		Where("status IN ? AND due_date >= ? AND due_date < ?", openBorrowStatuses, from, to).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *borrowRepository) ListBorrowedBetween(db *gorm.DB, from, to time.Time) ([]models.BorrowRecord, error) {
	var recs []models.BorrowRecord
	err := r.handle(db).
		Where("borrow_date >= ? AND borrow_date < ?", from, to).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) handle(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *reservationRepository) Create(db *gorm.DB, res *models.Reservation) error {
	return r.handle(db).Create(res).Error
}

func (r *reservationRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.handle(db).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) GetEarmarked(db *gorm.DB, bookID, subscriberID uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.handle(db).
		Where("book_id = ? AND subscriber_id = ? AND status = ? AND expiration_date IS NOT NULL",
			bookID, subscriberID, models.ReservationStatusActive).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) GetActiveBySubscriberAndBook(db *gorm.DB, bookID, subscriberID uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.handle(db).
		Where("book_id = ? AND subscriber_id = ? AND status = ?",
			bookID, subscriberID, models.ReservationStatusActive).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) NextWaiting(db *gorm.DB, bookID uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.handle(db).
		Where("book_id = ? AND status = ? AND expiration_date IS NULL",
			bookID, models.ReservationStatusActive).
		Order("priority ASC").
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) CountActiveByBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	var n int64
	err := r.handle(db).Model(&models.Reservation{}).
		Where("book_id = ? AND status = ?", bookID, models.ReservationStatusActive).
		Count(&n).Error
	return n, err
}

func (r *reservationRepository) MaxActivePriority(db *gorm.DB, bookID uuid.UUID) (int, error) {
	var res models.Reservation
	err := r.handle(db).
		Where("book_id = ? AND status = ?", bookID, models.ReservationStatusActive).
		Order("priority DESC").
		First(&res).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return res.Priority, nil
}

func (r *reservationRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, status models.ReservationStatus) error {
	return r.handle(db).Model(&models.Reservation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *reservationRepository) SetExpiration(db *gorm.DB, id uuid.UUID, expiration *time.Time) error {
	return r.handle(db).Model(&models.Reservation{}).
		Where("id = ?", id).
		Update("expiration_date", expiration).Error
}

func (r *reservationRepository) CompactPrioritiesAbove(db *gorm.DB, bookID uuid.UUID, priority int) error {
	return r.handle(db).Model(&models.Reservation{}).
		Where("book_id = ? AND status = ? AND priority > ?", bookID, models.ReservationStatusActive, priority).
		UpdateColumn("priority", gorm.Expr("priority - 1")).Error
}

func (r *reservationRepository) ListBySubscriber(db *gorm.DB, subscriberID uuid.UUID) ([]models.Reservation, error) {
	var list []models.Reservation
	err := r.handle(db).
		Where("subscriber_id = ?", subscriberID).
		Order("priority ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *reservationRepository) ListActiveByBook(db *gorm.DB, bookID uuid.UUID) ([]models.Reservation, error) {
	var list []models.Reservation
	err := r.handle(db).
		Where("book_id = ? AND status = ?", bookID, models.ReservationStatusActive).
		Order("priority ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *reservationRepository) ListExpiredHolds(db *gorm.DB, asOf time.Time) ([]models.Reservation, error) {
	var list []models.Reservation
	err := r.handle(db).
		Where("status = ? AND expiration_date IS NOT NULL AND expiration_date < ?",
			models.ReservationStatusActive, asOf).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

type freezeLogRepository struct {
	db *gorm.DB
}

func NewFreezeLogRepository(db *gorm.DB) FreezeLogRepository {
	return &freezeLogRepository{db: db}
}

func (r *freezeLogRepository) handle(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *freezeLogRepository) Create(db *gorm.DB, log *models.FreezeLog) error {
	return r.handle(db).Create(log).Error
}

func (r *freezeLogRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.FreezeLog, error) {
	var log models.FreezeLog
	if err := r.handle(db).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *freezeLogRepository) ListUnprocessedDue(db *gorm.DB, asOf time.Time) ([]models.FreezeLog, error) {
	var logs []models.FreezeLog
	err := r.handle(db).
		Where("processed = ? AND freeze_end_date <= ?", false, asOf).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *freezeLogRepository) MarkProcessed(db *gorm.DB, id uuid.UUID) error {
	return r.handle(db).Model(&models.FreezeLog{}).
		Where("id = ?", id).
		Update("processed", true).Error
}

type issueRepository struct {
	db *gorm.DB
}

func NewIssueRepository(db *gorm.DB) IssueRepository {
	return &issueRepository{db: db}
}

func (r *issueRepository) handle(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *issueRepository) Create(db *gorm.DB, issue *models.Issue) error {
	return r.handle(db).Create(issue).Error
}

func (r *issueRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Issue, error) {
	var issue models.Issue
	if err := r.handle(db).First(&issue, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *issueRepository) HasOpen(db *gorm.DB, subscriberID uuid.UUID, kind models.IssueKind) (bool, error) {
	var n int64
	err := r.handle(db).Model(&models.Issue{}).
		Where("subscriber_id = ? AND kind = ? AND status = ?", subscriberID, kind, models.IssueStatusOpen).
		Count(&n).Error
	return n > 0, err
}

func (r *issueRepository) HasOpenLostForBook(db *gorm.DB, bookID uuid.UUID) (bool, error) {
	var n int64
	err := r.handle(db).Model(&models.Issue{}).
		Where("book_id = ? AND kind = ? AND status = ?", bookID, models.IssueKindLost, models.IssueStatusOpen).
		Count(&n).Error
	return n > 0, err
}

func (r *issueRepository) HasOpenLost(db *gorm.DB, subscriberID, bookID uuid.UUID) (bool, error) {
	var n int64
	err := r.handle(db).Model(&models.Issue{}).
		Where("subscriber_id = ? AND book_id = ? AND kind = ? AND status = ?",
			subscriberID, bookID, models.IssueKindLost, models.IssueStatusOpen).
		Count(&n).Error
	return n > 0, err
}

func (r *issueRepository) Resolve(db *gorm.DB, id uuid.UUID) error {
	return r.handle(db).Model(&models.Issue{}).
		Where("id = ?", id).
		Update("status", models.IssueStatusResolved).Error
}

func (r *issueRepository) ListBySubscriber(db *gorm.DB, subscriberID uuid.UUID) ([]models.Issue, error) {
	var issues []models.Issue
	err := r.handle(db).
		Where("subscriber_id = ?", subscriberID).
		Order("date_reported DESC").
		Find(&issues).Error
	if err != nil {
		return nil, err
	}
	return issues, nil
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) handle(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *messageRepository) Create(db *gorm.DB, msg *models.Message) error {
	return r.handle(db).Create(msg).Error
}

func (r *messageRepository) ListByUser(db *gorm.DB, userID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	err := r.handle(db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) ListByKind(db *gorm.DB, kind models.MessageKind) ([]models.Message, error) {
	var msgs []models.Message
	err := r.handle(db).
		Where("kind = ?", kind).
		Order("created_at DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) ExistsSame(db *gorm.DB, userID uuid.UUID, kind models.MessageKind, content string, since time.Time) (bool, error) {
	var n int64
	err := r.handle(db).Model(&models.Message{}).
		Where("user_id = ? AND kind = ? AND content = ? AND created_at >= ?", userID, kind, content, since).
		Count(&n).Error
	return n > 0, err
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) handle(db *gorm.DB) *gorm.DB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *reportRepository) Upsert(db *gorm.DB, report *models.Report) error {
	return r.handle(db).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "report_type"},
			{Name: "report_month"},
			{Name: "category"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value", "created_at"}),
	}).Create(report).Error
}

func (r *reportRepository) ListByTypeAndMonth(db *gorm.DB, reportType string, month time.Time) ([]models.Report, error) {
	var reports []models.Report
	err := r.handle(db).
		Where("report_type = ? AND report_month = ?", reportType, month).
		Order("category").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}
