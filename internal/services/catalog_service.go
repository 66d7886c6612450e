package services

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blib/internal/models"
	"blib/internal/repositories"
)

// CatalogService manages per-book inventory counters and availability
// metadata.
type CatalogService interface {
	AddBook(book *models.Book) (*models.Book, error)
	SetTotalCopies(bookID uuid.UUID, totalCopies int) (*models.Book, error)
	GetAvailability(bookID uuid.UUID) (*models.Book, error)
	ListBooks() ([]models.Book, error)
	SearchBooks(query string) ([]models.Book, error)
}

type catalogService struct {
	db    *gorm.DB
	books repositories.BookRepository
	locks *LockTable
}

func NewCatalogService(db *gorm.DB, books repositories.BookRepository, locks *LockTable) CatalogService {
	return &catalogService{db: db, books: books, locks: locks}
}

// AddBook inserts a new title with all copies available. Duplicate ids and
// barcodes are rejected before the insert.
func (s *catalogService) AddBook(book *models.Book) (*models.Book, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if book.ID != uuid.Nil {
			if _, err := s.books.GetByID(tx, book.ID); err == nil {
				return ErrDuplicateBook
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		if _, err := s.books.GetByBarcode(tx, book.Barcode); err == nil {
			return ErrDuplicateBook
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		book.AvailableCopies = book.TotalCopies
		book.NearestReturnDate = nil
		if err := s.books.Create(tx, book); err != nil {
			log.Printf("[ERROR] AddBook: failed to create book %q: %v", book.Title, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] AddBook: added %q (id=%s) with %d copies", book.Title, book.ID, book.TotalCopies)
	return book, nil
}

// SetTotalCopies corrects the stock of a title. The availability counter
// moves by the same delta; shrinking below the number of copies currently out
// or held fails with ErrNegativeCopies.
func (s *catalogService) SetTotalCopies(bookID uuid.UUID, totalCopies int) (*models.Book, error) {
	unlock := s.locks.LockBook(bookID)
	defer unlock()

	var updated *models.Book
	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.books.GetByID(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		delta := totalCopies - book.TotalCopies
		if delta != 0 {
			rows, err := s.books.AdjustAvailableCopies(tx, bookID, delta)
			if err != nil {
				return err
			}
			if rows == 0 {
				log.Printf("[WARN] SetTotalCopies: book %s cannot shrink to %d copies, too many out", bookID, totalCopies)
				return ErrNegativeCopies
			}
			if err := s.books.IncrementTotalCopies(tx, bookID, delta); err != nil {
				return err
			}
		}

		updated, err = s.books.GetByID(tx, bookID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] SetTotalCopies: book %s now has %d total copies", bookID, totalCopies)
	return updated, nil
}

func (s *catalogService) GetAvailability(bookID uuid.UUID) (*models.Book, error) {
	book, err := s.books.GetByID(nil, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *catalogService) ListBooks() ([]models.Book, error) {
	return s.books.List(nil)
}

func (s *catalogService) SearchBooks(query string) ([]models.Book, error) {
	return s.books.Search(nil, query)
}
