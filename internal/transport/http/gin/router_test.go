package httpgin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/raffle-go/internal/draw"
	"github.com/kirinyoku/raffle-go/internal/repository/memory"
	"github.com/kirinyoku/raffle-go/internal/service"
	"github.com/kirinyoku/raffle-go/internal/service/query"
	"github.com/kirinyoku/raffle-go/internal/service/raffle"
	httpgin "github.com/kirinyoku/raffle-go/internal/transport/http/gin"
)

const operatorID = "op-1"

type noopAnnouncer struct{}

func (noopAnnouncer) Announce(context.Context, string, string) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	svcs := &service.Services{
		Raffle: raffle.New(store, store, draw.NewCoordinator(), noopAnnouncer{}, nil, nil),
		Query:  query.New(store, store, nil, query.Config{}),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	isOperator := func(actorID string) bool { return actorID == operatorID }

	return httpgin.NewRouter(svcs, isOperator, logger)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, actorID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func registerTicket(t *testing.T, r *gin.Engine, ownerID string) httpgin.TicketResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/tickets", "", map[string]string{
		"owner_id":  ownerID,
		"proof_ref": "proofs/" + ownerID + ".jpg",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[httpgin.TicketResponse](t, w)
}

func TestRegisterTicket(t *testing.T) {
	r := newTestRouter(t)

	first := registerTicket(t, r, "alice")
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "active", first.Status)

	second := registerTicket(t, r, "bob")
	assert.Equal(t, 2, second.Number)
}

func TestRegisterTicketValidation(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/tickets", "", map[string]string{
		"owner_id": "alice",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookupActiveTicket(t *testing.T) {
	r := newTestRouter(t)
	registerTicket(t, r, "alice")

	w := doJSON(t, r, http.MethodGet, "/tickets/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[httpgin.TicketResponse](t, w)
	assert.Equal(t, "alice", got.OwnerID)

	w = doJSON(t, r, http.MethodGet, "/tickets/99", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/tickets/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOwnerTickets(t *testing.T) {
	r := newTestRouter(t)
	registerTicket(t, r, "alice")
	registerTicket(t, r, "bob")
	registerTicket(t, r, "alice")

	w := doJSON(t, r, http.MethodGet, "/owners/alice/tickets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[httpgin.OwnerTicketsResponse](t, w)
	assert.Equal(t, []int{1, 3}, got.Numbers)

	w = doJSON(t, r, http.MethodGet, "/owners/nobody/tickets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[httpgin.OwnerTicketsResponse](t, w).Numbers)
}

func TestAdminRequiresOperator(t *testing.T) {
	r := newTestRouter(t)

	for _, actor := range []string{"", "intruder"} {
		w := doJSON(t, r, http.MethodPost, "/admin/draw", actor, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "actor %q", actor)
	}
}

func TestDrawLifecycle(t *testing.T) {
	r := newTestRouter(t)
	registerTicket(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/admin/draw", operatorID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	drawn := decode[httpgin.DrawResponse](t, w)
	require.NotEmpty(t, drawn.DrawID)
	require.Equal(t, 1, drawn.Ticket.Number)

	// A second draw while the first is presented conflicts.
	w = doJSON(t, r, http.MethodPost, "/admin/draw", operatorID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/admin/draw/confirm", operatorID, map[string]int{
		"ticket_number": drawn.Ticket.Number,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "rejected", decode[httpgin.TicketResponse](t, w).Status)

	// Pool is exhausted now.
	w = doJSON(t, r, http.MethodPost, "/admin/draw", operatorID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDrawEmptyPool(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/admin/draw", operatorID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmWithoutDraw(t *testing.T) {
	r := newTestRouter(t)
	registerTicket(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/admin/draw/confirm", operatorID, map[string]int{
		"ticket_number": 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRejectChainsToNext(t *testing.T) {
	r := newTestRouter(t)
	registerTicket(t, r, "alice")
	registerTicket(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/admin/draw", operatorID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	drawn := decode[httpgin.DrawResponse](t, w)

	w = doJSON(t, r, http.MethodPost, "/admin/draw/reject", operatorID, map[string]any{
		"ticket_number": drawn.Ticket.Number,
		"reason":        "photo too blurry",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[httpgin.RejectResponse](t, w)
	assert.Equal(t, drawn.Ticket.Number, got.Rejected)
	require.NotNil(t, got.Next)
	assert.NotEqual(t, drawn.Ticket.Number, got.Next.Ticket.Number)
}

func TestRejectLastTicket(t *testing.T) {
	r := newTestRouter(t)
	registerTicket(t, r, "alice")

	w := doJSON(t, r, http.MethodPost, "/admin/draw", operatorID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	drawn := decode[httpgin.DrawResponse](t, w)

	w = doJSON(t, r, http.MethodPost, "/admin/draw/reject", operatorID, map[string]any{
		"ticket_number": drawn.Ticket.Number,
		"reason":        "duplicate entry",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[httpgin.RejectResponse](t, w).Next)
}

func TestDeleteTicket(t *testing.T) {
	r := newTestRouter(t)
	registerTicket(t, r, "alice")

	w := doJSON(t, r, http.MethodDelete, "/admin/tickets/1", operatorID, map[string]string{
		"reason": "spam",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "deleted", decode[httpgin.TicketResponse](t, w).Status)

	// Deleted tickets stay visible to operators but not to participants.
	w = doJSON(t, r, http.MethodGet, "/admin/tickets/1", operatorID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/tickets/1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/admin/tickets/42", operatorID, map[string]string{
		"reason": "spam",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveRound(t *testing.T) {
	r := newTestRouter(t)
	registerTicket(t, r, "alice")
	registerTicket(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/admin/rounds/archive", operatorID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	arch := decode[httpgin.ArchiveRoundResponse](t, w)
	assert.NotEqual(t, arch.ArchivedRoundID, arch.NewRoundID)

	// Numbering restarts in the new round.
	fresh := registerTicket(t, r, "carol")
	assert.Equal(t, 1, fresh.Number)
	assert.Equal(t, arch.NewRoundID, fresh.RoundID)

	// The archived tickets remain queryable by round.
	path := fmt.Sprintf("/admin/rounds/%d/tickets", arch.ArchivedRoundID)
	w = doJSON(t, r, http.MethodGet, path, operatorID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]httpgin.ArchivedTicketResponse](t, w), 2)

	w = doJSON(t, r, http.MethodGet, "/admin/rounds", operatorID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]httpgin.RoundResponse](t, w), 2)
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
