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

// IssueService records lost-book reports and lets librarians close issues of
// either kind once they are dealt with.
type IssueService interface {
	ReportLost(subscriberID, bookID uuid.UUID) (*models.Issue, error)
	ResolveIssue(issueID uuid.UUID) error
	FetchIssues(subscriberID uuid.UUID) ([]models.Issue, error)
}

type issueService struct {
	db      *gorm.DB
	borrows repositories.BorrowRepository
	books   repositories.BookRepository
	issues  repositories.IssueRepository
	locks   *LockTable
	now     Clock
}

func NewIssueService(
	db *gorm.DB,
	borrows repositories.BorrowRepository,
	books repositories.BookRepository,
	issues repositories.IssueRepository,
	locks *LockTable,
	now Clock,
) IssueService {
	if now == nil {
		now = defaultClock
	}
	return &issueService{
		db:      db,
		borrows: borrows,
		books:   books,
		issues:  issues,
		locks:   locks,
		now:     now,
	}
}

// ReportLost opens a Lost issue against the subscriber's open record for the
// book. The record stays open; the copy comes back through the normal return
// flow if the book ever turns up. Repeat reports of the same loss are
// collapsed into the existing open issue.
func (s *issueService) ReportLost(subscriberID, bookID uuid.UUID) (*models.Issue, error) {
	unlock := s.locks.LockBook(bookID)
	defer unlock()

	var issue *models.Issue
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := s.borrows.GetOpenBySubscriberAndBook(tx, subscriberID, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}

		already, err := s.issues.HasOpenLost(tx, subscriberID, bookID)
		if err != nil {
			return err
		}
		if already {
			log.Printf("[WARN] ReportLost: open lost issue already exists for subscriber %s / book %s", subscriberID, bookID)
			return ErrDuplicateIssue
		}

		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		issue = &models.Issue{
			SubscriberID: subscriberID,
			BookID:       bookID,
			Kind:         models.IssueKindLost,
			Description:  fmt.Sprintf("Copy of '%s' reported lost (record %s).", book.Title, rec.ID),
			DateReported: s.now(),
			Status:       models.IssueStatusOpen,
		}
		return s.issues.Create(tx, issue)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] ReportLost: issue %s opened for subscriber %s / book %s", issue.ID, subscriberID, bookID)
	return issue, nil
}

// ResolveIssue closes an open issue.
func (s *issueService) ResolveIssue(issueID uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		issue, err := s.issues.GetByID(tx, issueID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIssueNotFound
			}
			return err
		}
		if issue.Status != models.IssueStatusOpen {
			return ErrInvalidState
		}
		return s.issues.Resolve(tx, issueID)
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] ResolveIssue: issue %s resolved", issueID)
	return nil
}

func (s *issueService) FetchIssues(subscriberID uuid.UUID) ([]models.Issue, error) {
	return s.issues.ListBySubscriber(nil, subscriberID)
}
