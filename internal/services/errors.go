package services

import "errors"

var (
	// ErrBookNotFound is returned when the referenced book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrSubscriberNotFound is returned when the referenced subscriber does not exist.
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrRecordNotFound is returned when no matching borrow record exists.
	ErrRecordNotFound = errors.New("borrow record not found")

	// ErrReservationNotFound is returned when the referenced reservation does not exist.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrIssueNotFound is returned when the referenced issue does not exist.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrAccountFrozen is returned when a frozen subscriber attempts to borrow
	// or reserve.
	ErrAccountFrozen = errors.New("subscriber account is frozen")

	// ErrNoCopyAvailable is returned when no copy is available and the
	// subscriber holds no earmarked reservation for the book.
	ErrNoCopyAvailable = errors.New("no copies available and no valid reservation found")

	// ErrQueueFull is returned when the reservation queue already covers every
	// copy out in circulation.
	ErrQueueFull = errors.New("active reservations exceed copies in circulation")

	// ErrDuplicateReservation is returned when the subscriber already has an
	// active reservation for the same book.
	ErrDuplicateReservation = errors.New("subscriber already has an active reservation for this book")

	// ErrInvalidDate is returned when an extension's new due date is not
	// strictly after the current one.
	ErrInvalidDate = errors.New("new due date must be after the current due date")

	// ErrExtensionBlocked is returned when active reservations for the book
	// take priority over an extension.
	ErrExtensionBlocked = errors.New("extension blocked by active reservations")

	// ErrInvalidState is returned when an operation targets an entity in the
	// wrong lifecycle state, e.g. canceling a non-active reservation.
	ErrInvalidState = errors.New("entity is not in a valid state for this operation")

	// ErrNegativeCopies signals an available-copies underflow. This is an
	// internal invariant violation, never an expected outcome.
	ErrNegativeCopies = errors.New("available copies would become negative")

	// ErrDuplicateBook is returned when a book with the same id or barcode
	// already exists.
	ErrDuplicateBook = errors.New("book already exists")

	// ErrDuplicateSubscriber is returned when the id, email or phone number is
	// already registered.
	ErrDuplicateSubscriber = errors.New("subscriber already exists")

	// ErrDuplicateIssue is returned when an open issue of the same kind already
	// covers the subscriber and book.
	ErrDuplicateIssue = errors.New("an open issue already exists for this subscriber and book")
)
