package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blib/internal/models"
	"blib/internal/repositories"
)

// baseTime is the fixed instant every fixture clock starts at.
var baseTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by all services in a fixture.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *fakeClock) AdvanceDays(days int) {
	c.now = c.now.AddDate(0, 0, days)
}

type fixture struct {
	db    *gorm.DB
	clock *fakeClock

	books        repositories.BookRepository
	borrows      repositories.BorrowRepository
	reservationR repositories.ReservationRepository
	freezeLogs   repositories.FreezeLogRepository
	issueR       repositories.IssueRepository
	messages     repositories.MessageRepository
	reportR      repositories.ReportRepository
	subscriberR  repositories.SubscriberRepository

	catalog        CatalogService
	lending        LendingService
	reservations   ReservationService
	subscribers    SubscriberService
	accounts       AccountService
	issues         IssueService
	notifications  NotificationService
	reconciliation ReconciliationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Book{},
		&models.Subscriber{},
		&models.BorrowRecord{},
		&models.Reservation{},
		&models.FreezeLog{},
		&models.Issue{},
		&models.Message{},
		&models.Report{},
	))

	clock := &fakeClock{now: baseTime}
	locks := NewLockTable()

	f := &fixture{
		db:           db,
		clock:        clock,
		books:        repositories.NewBookRepository(db),
		borrows:      repositories.NewBorrowRepository(db),
		reservationR: repositories.NewReservationRepository(db),
		freezeLogs:   repositories.NewFreezeLogRepository(db),
		issueR:       repositories.NewIssueRepository(db),
		messages:     repositories.NewMessageRepository(db),
		reportR:      repositories.NewReportRepository(db),
		subscriberR:  repositories.NewSubscriberRepository(db),
	}

	f.catalog = NewCatalogService(db, f.books, locks)
	f.lending = NewLendingService(db, f.subscriberR, f.books, f.borrows, f.reservationR, f.messages, locks, clock.Now)
	f.reservations = NewReservationService(db, f.subscriberR, f.books, f.borrows, f.reservationR, f.messages, locks, clock.Now)
	f.subscribers = NewSubscriberService(db, f.subscriberR)
	f.accounts = NewAccountService(db, f.subscriberR, f.freezeLogs, f.messages, locks, clock.Now)
	f.issues = NewIssueService(db, f.borrows, f.books, f.issueR, locks, clock.Now)
	f.notifications = NewNotificationService(f.messages, clock.Now)
	f.reconciliation = NewReconciliationService(
		db, f.subscriberR, f.books, f.borrows, f.reservationR, f.messages,
		f.freezeLogs, f.issueR, f.reportR, f.accounts, locks, clock.Now)

	return f
}

var subscriberSeq int

func (f *fixture) newSubscriber(t *testing.T) *models.Subscriber {
	t.Helper()
	subscriberSeq++
	sub, err := f.subscribers.Register(&models.Subscriber{
		SubscriptionNumber: fmt.Sprintf("S%05d", subscriberSeq),
		Name:               fmt.Sprintf("Subscriber %d", subscriberSeq),
		Email:              fmt.Sprintf("subscriber%d@example.com", subscriberSeq),
		MobilePhoneNumber:  fmt.Sprintf("+4917%07d", subscriberSeq),
	})
	require.NoError(t, err)
	return sub
}

var bookSeq int

func (f *fixture) newBook(t *testing.T, copies int) *models.Book {
	t.Helper()
	bookSeq++
	book, err := f.catalog.AddBook(&models.Book{
		Title:       fmt.Sprintf("Book %d", bookSeq),
		Author:      "Test Author",
		Barcode:     fmt.Sprintf("BC%06d", bookSeq),
		TotalCopies: copies,
	})
	require.NoError(t, err)
	return book
}

func newUUID() uuid.UUID {
	return uuid.New()
}

func (f *fixture) book(t *testing.T, id uuid.UUID) *models.Book {
	t.Helper()
	var book models.Book
	require.NoError(t, f.db.First(&book, "id = ?", id).Error)
	return &book
}

func (f *fixture) messagesFor(t *testing.T, sub *models.Subscriber, kind models.MessageKind) []models.Message {
	t.Helper()
	var msgs []models.Message
	require.NoError(t, f.db.
		Where("user_id = ? AND kind = ?", sub.ID, kind).
		Order("created_at").
		Find(&msgs).Error)
	return msgs
}
