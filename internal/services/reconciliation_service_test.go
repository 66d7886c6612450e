package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blib/internal/models"
)

func TestDailySweepExpiresLapsedHoldsAndReassigns(t *testing.T) {
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

	// A return earmarks a copy for waiterA.
	_, err = f.lending.Return(borrowers[0].ID, book.ID)
	require.NoError(t, err)

	// The holding window lapses unused.
	f.clock.AdvanceDays(HoldingWindowDays + 1)
	summary, err := f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExpiredHolds.Succeeded)
	assert.Equal(t, 0, summary.ExpiredHolds.Failed)

	var expired models.Reservation
	require.NoError(t, f.db.First(&expired, "id = ?", resA.ID).Error)
	assert.Equal(t, models.ReservationStatusExpired, expired.Status)

	// The freed copy moves on to waiterB, who takes over priority 1.
	var next models.Reservation
	require.NoError(t, f.db.First(&next, "id = ?", resB.ID).Error)
	assert.Equal(t, models.ReservationStatusActive, next.Status)
	assert.Equal(t, 1, next.Priority)
	require.NotNil(t, next.ExpirationDate)

	after := f.book(t, book.ID)
	assert.Equal(t, 0, after.AvailableCopies)

	assert.Len(t, f.messagesFor(t, waiterA, models.MessageKindReservation), 2) // placed + expired
	assert.Len(t, f.messagesFor(t, waiterB, models.MessageKindPickupReminder), 1)
}

func TestDailySweepFreezesOverdueAccounts(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.lending.Borrow(sub.ID, book.ID)
	require.NoError(t, err)

	// Eight days past due.
	f.clock.AdvanceDays(LoanPeriodDays + 8)
	summary, err := f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Freezes.Succeeded)

	var frozen models.Subscriber
	require.NoError(t, f.db.First(&frozen, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriberStatusFrozen, frozen.Status)

	var logs []models.FreezeLog
	require.NoError(t, f.db.Where("subscriber_id = ?", sub.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Processed)
	assert.WithinDuration(t, f.clock.Now().AddDate(0, 0, FreezePeriodDays), logs[0].FreezeEndDate, time.Second)

	assert.Len(t, f.messagesFor(t, sub, models.MessageKindAccountStatus), 1)
}

func TestDailySweepRaisesOneOverdueIssuePerSubscriber(t *testing.T) {
	f := newFixture(t)
	bookA := f.newBook(t, 1)
	bookB := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.lending.Borrow(sub.ID, bookA.ID)
	require.NoError(t, err)
	_, err = f.lending.Borrow(sub.ID, bookB.ID)
	require.NoError(t, err)

	f.clock.AdvanceDays(LoanPeriodDays + 2)
	summary, err := f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OverdueIssues.Succeeded)

	var issues []models.Issue
	require.NoError(t, f.db.Where("subscriber_id = ? AND kind = ?", sub.ID, models.IssueKindOverdue).Find(&issues).Error)
	assert.Len(t, issues, 1)
}

func TestDailySweepSkipsOverdueIssueWhenBookReportedLost(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.lending.Borrow(sub.ID, book.ID)
	require.NoError(t, err)
	_, err = f.issues.ReportLost(sub.ID, book.ID)
	require.NoError(t, err)

	f.clock.AdvanceDays(LoanPeriodDays + 2)
	summary, err := f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.OverdueIssues.Succeeded)

	var issues []models.Issue
	require.NoError(t, f.db.Where("subscriber_id = ?", sub.ID).Find(&issues).Error)
	require.Len(t, issues, 1)
	assert.Equal(t, models.IssueKindLost, issues[0].Kind)
}

func TestDailySweepUnfreezesAfterFreezePeriod(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.lending.Borrow(sub.ID, book.ID)
	require.NoError(t, err)

	f.clock.AdvanceDays(LoanPeriodDays + 8)
	_, err = f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)

	f.clock.AdvanceDays(FreezePeriodDays)
	summary, err := f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unfreezes.Succeeded)

	var thawed models.Subscriber
	require.NoError(t, f.db.First(&thawed, "id = ?", sub.ID).Error)
	assert.Equal(t, models.SubscriberStatusActive, thawed.Status)

	var logs []models.FreezeLog
	require.NoError(t, f.db.Where("subscriber_id = ?", sub.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Processed)
}

func TestDailySweepSendsDueTomorrowReminderOnce(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.lending.Borrow(sub.ID, book.ID)
	require.NoError(t, err)

	f.clock.AdvanceDays(LoanPeriodDays - 1)
	summary, err := f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DueReminders.Succeeded)

	reminders := f.messagesFor(t, sub, models.MessageKindDueReminder)
	require.Len(t, reminders, 1)
	assert.Contains(t, reminders[0].Content, "due tomorrow")

	// Re-running within the same day appends nothing new.
	f.clock.Advance(2 * time.Hour)
	summary, err = f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.DueReminders.Succeeded)
	assert.Len(t, f.messagesFor(t, sub, models.MessageKindDueReminder), 1)
}

func TestDailySweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.lending.Borrow(sub.ID, book.ID)
	require.NoError(t, err)

	f.clock.AdvanceDays(LoanPeriodDays + 8)
	first, err := f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Freezes.Succeeded)
	assert.Equal(t, 1, first.OverdueIssues.Succeeded)

	second, err := f.reconciliation.RunDaily(f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, DailySummary{}, *second)
}

func TestMonthlyReportBucketsBorrowDurations(t *testing.T) {
	f := newFixture(t)

	shortBook := f.newBook(t, 1)
	fullBook := f.newBook(t, 1)
	extendedBook := f.newBook(t, 1)
	overdueBook := f.newBook(t, 1)

	shortSub := f.newSubscriber(t)
	fullSub := f.newSubscriber(t)
	extendedSub := f.newSubscriber(t)
	overdueSub := f.newSubscriber(t)

	_, err := f.lending.Borrow(shortSub.ID, shortBook.ID)
	require.NoError(t, err)
	_, err = f.lending.Borrow(fullSub.ID, fullBook.ID)
	require.NoError(t, err)
	extendedRec, err := f.lending.Borrow(extendedSub.ID, extendedBook.ID)
	require.NoError(t, err)
	_, err = f.lending.Borrow(overdueSub.ID, overdueBook.ID)
	require.NoError(t, err)

	f.clock.AdvanceDays(5)
	_, err = f.lending.Return(shortSub.ID, shortBook.ID)
	require.NoError(t, err)

	f.clock.AdvanceDays(5)
	_, err = f.lending.Return(fullSub.ID, fullBook.ID)
	require.NoError(t, err)
	_, err = f.lending.Extend(extendedRec.ID, "", extendedRec.DueDate.AddDate(0, 0, 7))
	require.NoError(t, err)

	f.clock.AdvanceDays(6)
	_, err = f.lending.Return(extendedSub.ID, extendedBook.ID)
	require.NoError(t, err)

	// The fourth record stays out past its due date.
	f.clock.AdvanceDays(4)
	require.NoError(t, f.reconciliation.RunMonthly(baseTime))

	reports, err := f.reconciliation.FetchReports(models.ReportTypeBorrowDurations, baseTime)
	require.NoError(t, err)

	values := map[string]int{}
	for _, r := range reports {
		values[r.Category] = r.Value
	}
	assert.Equal(t, map[string]int{
		models.ReportCategoryShortLoan: 1,
		models.ReportCategoryFullLoan:  1,
		models.ReportCategoryExtended:  1,
		models.ReportCategoryOverdue:   1,
	}, values)
}

func TestMonthlyReportRerunOverwrites(t *testing.T) {
	f := newFixture(t)
	f.newSubscriber(t)
	f.newSubscriber(t)

	require.NoError(t, f.reconciliation.RunMonthly(baseTime))

	reports, err := f.reconciliation.FetchReports(models.ReportTypeSubscriberStatus, baseTime)
	require.NoError(t, err)
	values := map[string]int{}
	for _, r := range reports {
		values[r.Category] = r.Value
	}
	assert.Equal(t, 2, values[models.ReportCategoryActive])
	assert.Equal(t, 0, values[models.ReportCategoryFrozen])

	third := f.newSubscriber(t)
	require.NoError(t, f.accounts.Freeze(third.ID))

	require.NoError(t, f.reconciliation.RunMonthly(baseTime))

	reports, err = f.reconciliation.FetchReports(models.ReportTypeSubscriberStatus, baseTime)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	values = map[string]int{}
	for _, r := range reports {
		values[r.Category] = r.Value
	}
	assert.Equal(t, 2, values[models.ReportCategoryActive])
	assert.Equal(t, 1, values[models.ReportCategoryFrozen])
}
