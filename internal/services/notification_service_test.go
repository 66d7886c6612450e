package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blib/internal/models"
)

func TestFetchMessagesSubscriberSeesOwnInboxNewestFirst(t *testing.T) {
	f := newFixture(t)
	sub := f.newSubscriber(t)
	other := f.newSubscriber(t)

	_, err := f.notifications.Append(sub.ID, models.MessageKindBorrow, "first")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.notifications.Append(sub.ID, models.MessageKindReturn, "second")
	require.NoError(t, err)
	_, err = f.notifications.Append(other.ID, models.MessageKindBorrow, "not yours")
	require.NoError(t, err)

	msgs, err := f.notifications.FetchMessages(sub.ID, RoleSubscriber)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Content)
	assert.Equal(t, "first", msgs[1].Content)
}

func TestFetchMessagesLibrarianSeesExtensionStream(t *testing.T) {
	f := newFixture(t)
	book := f.newBook(t, 1)
	sub := f.newSubscriber(t)
	librarian := newUUID()

	record, err := f.lending.Borrow(sub.ID, book.ID)
	require.NoError(t, err)
	_, err = f.lending.Extend(record.ID, "", record.DueDate.AddDate(0, 0, 3))
	require.NoError(t, err)

	// The borrow notification is not part of the librarian stream.
	msgs, err := f.notifications.FetchMessages(librarian, RoleLibrarian)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageKindExtension, msgs[0].Kind)
}
