package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blib/internal/models"
)

func TestReserveAdmissionBoundedByCirculation(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 2)
	borrowerA := f.newSubscriber(t)
	borrowerB := f.newSubscriber(t)
	waiterA := f.newSubscriber(t)
	waiterB := f.newSubscriber(t)

	_, err := f.lending.Borrow(borrowerA.ID, book.ID)
	require.NoError(t, err)
	_, err = f.lending.Borrow(borrowerB.ID, book.ID)
	require.NoError(t, err)

	// Two copies out: the first reservation fits under the circulation bound.
	res, err := f.reservations.Reserve(book.ID, waiterA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Priority)
	assert.Nil(t, res.ExpirationDate)

	// The second would fill the queue up to the number of copies out.
	_, err = f.reservations.Reserve(book.ID, waiterB.ID)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestReserveDeniedWhenFrozen(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 2)
	borrowerA := f.newSubscriber(t)
	borrowerB := f.newSubscriber(t)
	frozen := f.newSubscriber(t)

	_, err := f.lending.Borrow(borrowerA.ID, book.ID)
	require.NoError(t, err)
	_, err = f.lending.Borrow(borrowerB.ID, book.ID)
	require.NoError(t, err)

	require.NoError(t, f.accounts.Freeze(frozen.ID))

	_, err = f.reservations.Reserve(book.ID, frozen.ID)
	assert.ErrorIs(t, err, ErrAccountFrozen)
}

func TestReserveRejectsSecondActiveReservation(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 3)
	waiter := f.newSubscriber(t)

	for i := 0; i < 3; i++ {
		borrower := f.newSubscriber(t)
		_, err := f.lending.Borrow(borrower.ID, book.ID)
		require.NoError(t, err)
	}

	_, err := f.reservations.Reserve(book.ID, waiter.ID)
	require.NoError(t, err)

	_, err = f.reservations.Reserve(book.ID, waiter.ID)
	assert.ErrorIs(t, err, ErrDuplicateReservation)
}

func TestReturnAssignsFreedCopyToLowestPriority(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 3)
	var borrowers []*models.Subscriber
	for i := 0; i < 3; i++ {
		borrower := f.newSubscriber(t)
		_, err := f.lending.Borrow(borrower.ID, book.ID)
		require.NoError(t, err)
		borrowers = append(borrowers, borrower)
	}
	waiterA := f.newSubscriber(t)
	waiterB := f.newSubscriber(t)

	resA, err := f.reservations.Reserve(book.ID, waiterA.ID)
	require.NoError(t, err)
	resB, err := f.reservations.Reserve(book.ID, waiterB.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, resA.Priority)
	assert.Equal(t, 2, resB.Priority)

	_, err = f.lending.Return(borrowers[0].ID, book.ID)
	require.NoError(t, err)

	// The freed copy goes straight to waiterA's reservation; availability
	// stays at zero.
	after := f.book(t, book.ID)
	assert.Equal(t, 0, after.AvailableCopies)

	var heldA models.Reservation
	require.NoError(t, f.db.First(&heldA, "id = ?", resA.ID).Error)
	require.NotNil(t, heldA.ExpirationDate)
	assert.WithinDuration(t, f.clock.Now().AddDate(0, 0, HoldingWindowDays), *heldA.ExpirationDate, time.Second)

	var stillWaiting models.Reservation
	require.NoError(t, f.db.First(&stillWaiting, "id = ?", resB.ID).Error)
	assert.Nil(t, stillWaiting.ExpirationDate)

	assert.Len(t, f.messagesFor(t, waiterA, models.MessageKindPickupReminder), 1)
	assert.Empty(t, f.messagesFor(t, waiterB, models.MessageKindPickupReminder))
}

func TestBorrowConsumesEarmarkedReservation(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 2)
	borrowerA := f.newSubscriber(t)
	borrowerB := f.newSubscriber(t)
	waiter := f.newSubscriber(t)

	_, err := f.lending.Borrow(borrowerA.ID, book.ID)
	require.NoError(t, err)
	_, err = f.lending.Borrow(borrowerB.ID, book.ID)
	require.NoError(t, err)

	res, err := f.reservations.Reserve(book.ID, waiter.ID)
	require.NoError(t, err)

	_, err = f.lending.Return(borrowerA.ID, book.ID)
	require.NoError(t, err)

	// The waiter picks up the earmarked copy. The availability counter is
	// untouched: the copy was deducted at assignment time.
	record, err := f.lending.Borrow(waiter.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusActive, record.Status)

	after := f.book(t, book.ID)
	assert.Equal(t, 0, after.AvailableCopies)

	var consumed models.Reservation
	require.NoError(t, f.db.First(&consumed, "id = ?", res.ID).Error)
	assert.Equal(t, models.ReservationStatusUnactive, consumed.Status)
}

func TestCancelCompactsPriorities(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 4)
	for i := 0; i < 4; i++ {
		borrower := f.newSubscriber(t)
		_, err := f.lending.Borrow(borrower.ID, book.ID)
		require.NoError(t, err)
	}

	var reservations []*models.Reservation
	for i := 0; i < 3; i++ {
		waiter := f.newSubscriber(t)
		res, err := f.reservations.Reserve(book.ID, waiter.ID)
		require.NoError(t, err)
		reservations = append(reservations, res)
	}

	require.NoError(t, f.reservations.Cancel(reservations[1].ID))

	active, err := f.reservationR.ListActiveByBook(nil, book.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].Priority)
	assert.Equal(t, reservations[0].ID, active[0].ID)
	assert.Equal(t, 2, active[1].Priority)
	assert.Equal(t, reservations[2].ID, active[1].ID)
}

func TestCancelOfHoldingReservationReleasesCopy(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 2)
	borrowerA := f.newSubscriber(t)
	borrowerB := f.newSubscriber(t)
	waiter := f.newSubscriber(t)

	_, err := f.lending.Borrow(borrowerA.ID, book.ID)
	require.NoError(t, err)
	_, err = f.lending.Borrow(borrowerB.ID, book.ID)
	require.NoError(t, err)

	res, err := f.reservations.Reserve(book.ID, waiter.ID)
	require.NoError(t, err)

	_, err = f.lending.Return(borrowerA.ID, book.ID)
	require.NoError(t, err)

	// The waiter holds a copy now; canceling releases it back to the shelf
	// since nobody else is waiting.
	require.NoError(t, f.reservations.Cancel(res.ID))

	after := f.book(t, book.ID)
	assert.Equal(t, 1, after.AvailableCopies)
}

func TestCancelRequiresActiveReservation(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 2)
	borrowerA := f.newSubscriber(t)
	borrowerB := f.newSubscriber(t)
	waiter := f.newSubscriber(t)

	_, err := f.lending.Borrow(borrowerA.ID, book.ID)
	require.NoError(t, err)
	_, err = f.lending.Borrow(borrowerB.ID, book.ID)
	require.NoError(t, err)

	res, err := f.reservations.Reserve(book.ID, waiter.ID)
	require.NoError(t, err)

	require.NoError(t, f.reservations.Cancel(res.ID))
	assert.ErrorIs(t, f.reservations.Cancel(res.ID), ErrInvalidState)

	assert.ErrorIs(t, f.reservations.Cancel(newUUID()), ErrReservationNotFound)
}
