package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/raffle-go/internal/domain"
	"github.com/kirinyoku/raffle-go/internal/repository/memory"
	"github.com/kirinyoku/raffle-go/internal/service/query"
)

func seed(t *testing.T, store *memory.Store, owner string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.Register(context.Background(), owner, "", "proof")
		require.NoError(t, err)
	}
}

func TestActiveTicketsOrdered(t *testing.T) {
	store := memory.New()
	svc := query.New(store, store, nil, query.Config{})

	seed(t, store, "alice", 3)
	seed(t, store, "bob", 1)
	seed(t, store, "alice", 1)

	numbers, err := svc.ActiveTickets(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 5}, numbers)

	numbers, err = svc.ActiveTickets(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, numbers)
}

func TestLookupActiveHidesTerminalTickets(t *testing.T) {
	store := memory.New()
	svc := query.New(store, store, nil, query.Config{})

	seed(t, store, "alice", 1)

	ticket, err := svc.LookupActive(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", ticket.OwnerID)

	require.NoError(t, store.SetStatus(context.Background(), 1, domain.TicketDeleted, "spam"))

	_, err = svc.LookupActive(context.Background(), 1)
	assert.ErrorIs(t, err, query.ErrTicketNotFound)

	// LookupAny still sees it, with status and reason.
	any, err := svc.LookupAny(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketDeleted, any.Status)
	assert.Equal(t, "spam", any.Comment)
}

func TestLookupUnknownNumber(t *testing.T) {
	store := memory.New()
	svc := query.New(store, store, nil, query.Config{})

	_, err := svc.LookupAny(context.Background(), 404)
	assert.ErrorIs(t, err, query.ErrTicketNotFound)
}

func TestHistoryAfterArchive(t *testing.T) {
	store := memory.New()
	svc := query.New(store, store, nil, query.Config{})

	seed(t, store, "alice", 2)

	archivedID, _, err := store.Archive(context.Background())
	require.NoError(t, err)

	// Gone from the open round...
	_, err = svc.LookupAny(context.Background(), 1)
	assert.ErrorIs(t, err, query.ErrTicketNotFound)

	// ...findable only via history.
	history, err := svc.ArchivedTickets(context.Background(), archivedID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Number)
	assert.Equal(t, 2, history[1].Number)

	_, err = svc.ArchivedTickets(context.Background(), 42)
	assert.ErrorIs(t, err, query.ErrRoundNotFound)

	rounds, err := svc.Rounds(context.Background())
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Nil(t, rounds[0].ArchivedAt, "open round listed first")
	assert.NotNil(t, rounds[1].ArchivedAt)

	next, err := svc.NextNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, next, "numbering restarts with the new round")
}
