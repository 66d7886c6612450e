package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blib/internal/models"
)

func TestReportLostRequiresOpenRecord(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.issues.ReportLost(sub.ID, book.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestReportLostCollapsesRepeatReports(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.lending.Borrow(sub.ID, book.ID)
	require.NoError(t, err)

	issue, err := f.issues.ReportLost(sub.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueKindLost, issue.Kind)
	assert.Equal(t, models.IssueStatusOpen, issue.Status)

	_, err = f.issues.ReportLost(sub.ID, book.ID)
	assert.ErrorIs(t, err, ErrDuplicateIssue)
}

func TestResolveIssue(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)

	_, err := f.lending.Borrow(sub.ID, book.ID)
	require.NoError(t, err)
	issue, err := f.issues.ReportLost(sub.ID, book.ID)
	require.NoError(t, err)

	require.NoError(t, f.issues.ResolveIssue(issue.ID))

	// Resolving twice is a state error; resolving the unknown is not found.
	assert.ErrorIs(t, f.issues.ResolveIssue(issue.ID), ErrInvalidState)
	assert.ErrorIs(t, f.issues.ResolveIssue(newUUID()), ErrIssueNotFound)

	// With the lost issue closed, a fresh report can be opened again.
	_, err = f.issues.ReportLost(sub.ID, book.ID)
	assert.NoError(t, err)
}
