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

// StepResult counts the outcome of one sweep step. Failures are logged and
// never abort the sweep; the remaining items still get processed.
type StepResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// DailySummary reports what one daily sweep did, step by step in execution
// order.
type DailySummary struct {
	ExpiredHolds  StepResult `json:"expired_holds"`
	Freezes       StepResult `json:"freezes"`
	OverdueIssues StepResult `json:"overdue_issues"`
	Unfreezes     StepResult `json:"unfreezes"`
	DueReminders  StepResult `json:"due_reminders"`
}

// ReconciliationService runs the periodic maintenance passes: the daily sweep
// over holds, overdue records and freeze episodes, and the monthly report
// aggregation.
type ReconciliationService interface {
	RunDaily(now time.Time) (*DailySummary, error)
	RunMonthly(month time.Time) error
	FetchReports(reportType string, month time.Time) ([]models.Report, error)
}

type reconciliationService struct {
	db          *gorm.DB
	subscribers repositories.SubscriberRepository
	freezeLogs  repositories.FreezeLogRepository
	issues      repositories.IssueRepository
	reports     repositories.ReportRepository
	accounts    AccountService
	locks       *LockTable
	now         Clock
	allocator
}

func NewReconciliationService(
	db *gorm.DB,
	subscribers repositories.SubscriberRepository,
	books repositories.BookRepository,
	borrows repositories.BorrowRepository,
	reservations repositories.ReservationRepository,
	messages repositories.MessageRepository,
	freezeLogs repositories.FreezeLogRepository,
	issues repositories.IssueRepository,
	reports repositories.ReportRepository,
	accounts AccountService,
	locks *LockTable,
	now Clock,
) ReconciliationService {
	if now == nil {
		now = defaultClock
	}
	return &reconciliationService{
		db:          db,
		subscribers: subscribers,
		freezeLogs:  freezeLogs,
		issues:      issues,
		reports:     reports,
		accounts:    accounts,
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

// RunDaily executes the sweep steps in a fixed order: expired holds are
// released before overdue processing so freed copies reach the queue first,
// and unfreezing runs after freezing so an account frozen today is never
// thawed in the same pass. Every step is idempotent, so re-running the sweep
// for the same day is harmless.
func (s *reconciliationService) RunDaily(now time.Time) (*DailySummary, error) {
	summary := &DailySummary{}
	log.Printf("[INFO] RunDaily: sweep starting as of %s", now.Format("2006-01-02"))

	summary.ExpiredHolds = s.expireHolds(now)
	summary.Freezes = s.freezeOverdue(now)
	summary.OverdueIssues = s.raiseOverdueIssues(now)
	summary.Unfreezes = s.unfreezeDue(now)
	summary.DueReminders = s.sendDueReminders(now)

	log.Printf("[INFO] RunDaily: sweep finished (holds=%+v freezes=%+v issues=%+v unfreezes=%+v reminders=%+v)",
		summary.ExpiredHolds, summary.Freezes, summary.OverdueIssues, summary.Unfreezes, summary.DueReminders)
	return summary, nil
}

// expireHolds cancels reservations whose holding window lapsed unused. The
// copy each one was holding goes back to availability and is immediately
// offered to the next waiting reservation.
func (s *reconciliationService) expireHolds(now time.Time) StepResult {
	var result StepResult
	expired, err := s.reservations.ListExpiredHolds(nil, now)
	if err != nil {
		log.Printf("[ERROR] RunDaily: listing expired holds: %v", err)
		result.Failed++
		return result
	}

	for _, res := range expired {
		if err := s.expireHold(res.ID, res.BookID, now); err != nil {
			log.Printf("[ERROR] RunDaily: expiring hold %s: %v", res.ID, err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result
}

func (s *reconciliationService) expireHold(reservationID, bookID uuid.UUID, now time.Time) error {
	unlock := s.locks.LockBook(bookID)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		res, err := s.reservations.GetByID(tx, reservationID)
		if err != nil {
			return err
		}
		// Someone may have picked up or canceled between the listing and the
		// lock; only a still-lapsed hold is expired.
		if res.Status != models.ReservationStatusActive ||
			res.ExpirationDate == nil || !res.ExpirationDate.Before(now) {
			return nil
		}

		if err := s.reservations.UpdateStatus(tx, reservationID, models.ReservationStatusExpired); err != nil {
			return err
		}
		if err := s.reservations.CompactPrioritiesAbove(tx, bookID, res.Priority); err != nil {
			return err
		}
		if _, err := s.books.AdjustAvailableCopies(tx, bookID, 1); err != nil {
			return err
		}
		if err := s.assignFreedCopy(tx, bookID, now); err != nil {
			return err
		}

		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			return err
		}
		content := fmt.Sprintf("Your reservation for '%s' has expired because the copy was not picked up in time.", book.Title)
		return s.messages.Create(tx, &models.Message{
			UserID:    res.SubscriberID,
			Content:   content,
			Kind:      models.MessageKindReservation,
			CreatedAt: now,
		})
	})
}

// freezeOverdue freezes every active subscriber holding a record more than
// OverdueFreezeDays past due.
func (s *reconciliationService) freezeOverdue(now time.Time) StepResult {
	var result StepResult
	cutoff := now.AddDate(0, 0, -OverdueFreezeDays)
	overdue, err := s.borrows.ListOverdueOpen(nil, cutoff)
	if err != nil {
		log.Printf("[ERROR] RunDaily: listing overdue records for freezing: %v", err)
		result.Failed++
		return result
	}

	seen := make(map[uuid.UUID]bool)
	for _, rec := range overdue {
		if seen[rec.SubscriberID] {
			continue
		}
		seen[rec.SubscriberID] = true

		err := s.accounts.Freeze(rec.SubscriberID)
		if errors.Is(err, ErrInvalidState) {
			// Already frozen from an earlier run or record.
			continue
		}
		if err != nil {
			log.Printf("[ERROR] RunDaily: freezing subscriber %s: %v", rec.SubscriberID, err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result
}

// raiseOverdueIssues opens an Overdue issue for every record at least
// OverdueIssueDays past due. A subscriber carries at most one open Overdue
// issue at a time, and a book under an open Lost issue is skipped: the loss
// supersedes the lateness.
func (s *reconciliationService) raiseOverdueIssues(now time.Time) StepResult {
	var result StepResult
	cutoff := now.AddDate(0, 0, -OverdueIssueDays)
	overdue, err := s.borrows.ListOverdueOpen(nil, cutoff)
	if err != nil {
		log.Printf("[ERROR] RunDaily: listing overdue records for issues: %v", err)
		result.Failed++
		return result
	}

	for _, rec := range overdue {
		created, err := s.raiseOverdueIssue(rec, now)
		if err != nil {
			log.Printf("[ERROR] RunDaily: raising overdue issue for record %s: %v", rec.ID, err)
			result.Failed++
			continue
		}
		if created {
			result.Succeeded++
		}
	}
	return result
}

func (s *reconciliationService) raiseOverdueIssue(rec models.BorrowRecord, now time.Time) (bool, error) {
	created := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if open, err := s.issues.HasOpen(tx, rec.SubscriberID, models.IssueKindOverdue); err != nil {
			return err
		} else if open {
			return nil
		}
		if lost, err := s.issues.HasOpenLostForBook(tx, rec.BookID); err != nil {
			return err
		} else if lost {
			return nil
		}

		book, err := s.books.GetByID(tx, rec.BookID)
		if err != nil {
			return err
		}
		created = true
		return s.issues.Create(tx, &models.Issue{
			SubscriberID: rec.SubscriberID,
			BookID:       rec.BookID,
			Kind:         models.IssueKindOverdue,
			Description:  fmt.Sprintf("'%s' is overdue since %s (record %s).", book.Title, rec.DueDate.Format("2006-01-02"), rec.ID),
			DateReported: now,
			Status:       models.IssueStatusOpen,
		})
	})
	return created, err
}

// unfreezeDue closes every freeze episode whose end date has passed.
func (s *reconciliationService) unfreezeDue(now time.Time) StepResult {
	var result StepResult
	due, err := s.freezeLogs.ListUnprocessedDue(nil, now)
	if err != nil {
		log.Printf("[ERROR] RunDaily: listing due freeze episodes: %v", err)
		result.Failed++
		return result
	}

	for _, entry := range due {
		err := s.accounts.Unfreeze(entry.SubscriberID, entry.ID)
		if errors.Is(err, ErrInvalidState) {
			continue
		}
		if err != nil {
			log.Printf("[ERROR] RunDaily: unfreezing subscriber %s: %v", entry.SubscriberID, err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}
	return result
}

// sendDueReminders notifies subscribers whose loans come due tomorrow. The
// reminder is keyed on its exact content, so re-running the sweep within the
// same day appends nothing new.
func (s *reconciliationService) sendDueReminders(now time.Time) StepResult {
	var result StepResult
	from := startOfDay(now).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)
	due, err := s.borrows.ListDueBetween(nil, from, to)
	if err != nil {
		log.Printf("[ERROR] RunDaily: listing records due tomorrow: %v", err)
		result.Failed++
		return result
	}

	for _, rec := range due {
		sent, err := s.sendDueReminder(rec, now)
		if err != nil {
			log.Printf("[ERROR] RunDaily: due reminder for record %s: %v", rec.ID, err)
			result.Failed++
			continue
		}
		if sent {
			result.Succeeded++
		}
	}
	return result
}

func (s *reconciliationService) sendDueReminder(rec models.BorrowRecord, now time.Time) (bool, error) {
	sent := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.books.GetByID(tx, rec.BookID)
		if err != nil {
			return err
		}
		content := fmt.Sprintf("Reminder: '%s' is due tomorrow, on %s.", book.Title, rec.DueDate.Format("2006-01-02"))

		exists, err := s.messages.ExistsSame(tx, rec.SubscriberID, models.MessageKindDueReminder, content, startOfDay(now))
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		sent = true
		return s.messages.Create(tx, &models.Message{
			UserID:    rec.SubscriberID,
			Content:   content,
			Kind:      models.MessageKindDueReminder,
			CreatedAt: now,
		})
	})
	return sent, err
}

// RunMonthly aggregates the month's borrowing records into duration buckets
// and snapshots the subscriber status distribution. A record belongs to the
// month it was borrowed in. Re-running a month overwrites its rows, so the
// aggregation can be repeated after corrections.
func (s *reconciliationService) RunMonthly(month time.Time) error {
	month = firstOfMonth(month)
	next := month.AddDate(0, 1, 0)
	now := s.now()

	records, err := s.borrows.ListBorrowedBetween(nil, month, next)
	if err != nil {
		return err
	}

	buckets := map[string]int{
		models.ReportCategoryShortLoan: 0,
		models.ReportCategoryFullLoan:  0,
		models.ReportCategoryOverdue:   0,
		models.ReportCategoryExtended:  0,
	}
	for _, rec := range records {
		buckets[borrowCategory(rec, now)]++
	}

	active, err := s.subscribers.CountByStatus(nil, models.SubscriberStatusActive)
	if err != nil {
		return err
	}
	frozen, err := s.subscribers.CountByStatus(nil, models.SubscriberStatusFrozen)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for category, value := range buckets {
			if err := s.reports.Upsert(tx, &models.Report{
				ReportType:  models.ReportTypeBorrowDurations,
				ReportMonth: month,
				Category:    category,
				Value:       value,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
		statuses := map[string]int{
			models.ReportCategoryActive: int(active),
			models.ReportCategoryFrozen: int(frozen),
		}
		for category, value := range statuses {
			if err := s.reports.Upsert(tx, &models.Report{
				ReportType:  models.ReportTypeSubscriberStatus,
				ReportMonth: month,
				Category:    category,
				Value:       value,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] RunMonthly: reports for %s aggregated over %d records", month.Format("2006-01"), len(records))
	return nil
}

// borrowCategory places one record in exactly one duration bucket. Lateness
// dominates; otherwise the bucket is how long the copy was actually out, with
// anything past the regular loan period counting as extended borrowing. Open
// records are measured up to asOf.
func borrowCategory(rec models.BorrowRecord, asOf time.Time) string {
	end := asOf
	if rec.ReturnDate != nil {
		end = *rec.ReturnDate
	}
	if end.After(rec.DueDate) {
		return models.ReportCategoryOverdue
	}
	days := int(end.Sub(rec.BorrowDate).Hours() / 24)
	switch {
	case days <= 7:
		return models.ReportCategoryShortLoan
	case days <= LoanPeriodDays:
		return models.ReportCategoryFullLoan
	default:
		return models.ReportCategoryExtended
	}
}

func (s *reconciliationService) FetchReports(reportType string, month time.Time) ([]models.Report, error) {
	return s.reports.ListByTypeAndMonth(nil, reportType, firstOfMonth(month))
}
