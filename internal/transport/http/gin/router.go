package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/raffle-go/internal/service"
	"github.com/kirinyoku/raffle-go/internal/service/query"
	"github.com/kirinyoku/raffle-go/internal/service/raffle"
)

func NewRouter(
	svcs *service.Services,
	isOperator func(actorID string) bool,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Participant API
	r.POST("/tickets", handleRegisterTicket(svcs))
	r.GET("/tickets/:number", handleLookupActive(svcs))
	r.GET("/owners/:id/tickets", handleOwnerTickets(svcs))

	// Operator API
	admin := r.Group("/admin", RequireOperator(isOperator))
	{
		admin.GET("/tickets/:number", handleLookupAny(svcs))
		admin.DELETE("/tickets/:number", handleDeleteTicket(svcs))

		admin.POST("/draw", handleRequestDraw(svcs))
		admin.POST("/draw/confirm", handleConfirmWinner(svcs))
		admin.POST("/draw/reject", handleRejectCandidate(svcs))

		admin.GET("/rounds", handleListRounds(svcs))
		admin.GET("/rounds/:id/tickets", handleArchivedTickets(svcs))
		admin.POST("/rounds/archive", handleArchiveRound(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Register a ticket for a submitted proof
// @Param    req body  RegisterTicketRequest true "payload"
// @Success  201 {object} TicketResponse
// @Failure  400 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /tickets [post]
func handleRegisterTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		t, err := svcs.Raffle.Register(
			c.Request.Context(),
			req.OwnerID,
			req.OwnerLabel,
			req.ProofRef,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, toTicketResponse(t))
	}
}

// @Summary  Look up an active ticket by number
// @Param    number path int true "Ticket number"
// @Success  200 {object} TicketResponse
// @Failure  404 {object} ErrorResponse
// @Router   /tickets/{number} [get]
func handleLookupActive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := parseIntParam(c, "number")
		if !ok {
			return
		}

		t, err := svcs.Query.LookupActive(c.Request.Context(), number)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, toTicketResponse(t), "public, max-age=15")
	}
}

// @Summary  List an owner's active ticket numbers
// @Param    id path string true "Owner ID"
// @Success  200 {object} OwnerTicketsResponse
// @Router   /owners/{id}/tickets [get]
func handleOwnerTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := c.Param("id")

		numbers, err := svcs.Query.ActiveTickets(c.Request.Context(), ownerID)
		if err != nil {
			respondErr(c, err)
			return
		}
		if numbers == nil {
			numbers = []int{}
		}

		writeJSONWithCache(c, http.StatusOK,
			OwnerTicketsResponse{OwnerID: ownerID, Numbers: numbers},
			"public, max-age=15",
		)
	}
}

// @Summary  Look up a ticket by number regardless of status
// @Param    number path int true "Ticket number"
// @Success  200 {object} TicketResponse
// @Failure  404 {object} ErrorResponse
// @Router   /admin/tickets/{number} [get]
func handleLookupAny(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := parseIntParam(c, "number")
		if !ok {
			return
		}

		t, err := svcs.Query.LookupAny(c.Request.Context(), number)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, toTicketResponse(t))
	}
}

// @Summary  Start a draw
// @Success  200 {object} DrawResponse
// @Failure  404 {object} ErrorResponse "no active tickets"
// @Failure  409 {object} ErrorResponse "draw already in progress"
// @Router   /admin/draw [post]
func handleRequestDraw(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svcs.Raffle.RequestDraw(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, DrawResponse{
			DrawID: out.DrawID,
			Ticket: toTicketResponse(out.Ticket),
		})
	}
}

// @Summary  Confirm the presented candidate as winner
// @Param    req body ConfirmWinnerRequest true "payload"
// @Success  200 {object} TicketResponse
// @Failure  409 {object} ErrorResponse "stale candidate"
// @Router   /admin/draw/confirm [post]
func handleConfirmWinner(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmWinnerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		t, err := svcs.Raffle.ConfirmWinner(c.Request.Context(), req.TicketNumber)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, toTicketResponse(t))
	}
}

// @Summary  Reject the presented candidate and auto-draw the next one
// @Param    req body RejectCandidateRequest true "payload"
// @Success  200 {object} RejectResponse
// @Failure  409 {object} ErrorResponse "stale candidate"
// @Router   /admin/draw/reject [post]
func handleRejectCandidate(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RejectCandidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		next, err := svcs.Raffle.RejectCandidate(
			c.Request.Context(),
			req.TicketNumber,
			req.Reason,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		resp := RejectResponse{Rejected: req.TicketNumber}
		if next != nil {
			resp.Next = &DrawResponse{
				DrawID: next.DrawID,
				Ticket: toTicketResponse(next.Ticket),
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Delete a ticket with a reason
// @Param    number path int true "Ticket number"
// @Param    req body DeleteTicketRequest true "payload"
// @Success  200 {object} TicketResponse
// @Failure  404 {object} ErrorResponse
// @Router   /admin/tickets/{number} [delete]
func handleDeleteTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := parseIntParam(c, "number")
		if !ok {
			return
		}

		var req DeleteTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		t, err := svcs.Raffle.DeleteTicket(c.Request.Context(), number, req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, toTicketResponse(t))
	}
}

// @Summary  List rounds
// @Success  200 {array} RoundResponse
// @Router   /admin/rounds [get]
func handleListRounds(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		rounds, err := svcs.Query.Rounds(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]RoundResponse, 0, len(rounds))
		for _, rd := range rounds {
			out = append(out, RoundResponse{
				ID:         rd.ID,
				CreatedAt:  rd.CreatedAt,
				ArchivedAt: rd.ArchivedAt,
			})
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  List archived tickets of a round
// @Param    id path int true "Round ID"
// @Success  200 {array} ArchivedTicketResponse
// @Failure  404 {object} ErrorResponse
// @Router   /admin/rounds/{id}/tickets [get]
func handleArchivedTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		roundID, ok := parseIntParam(c, "id")
		if !ok {
			return
		}

		tickets, err := svcs.Query.ArchivedTickets(c.Request.Context(), int64(roundID))
		if err != nil {
			respondErr(c, err)
			return
		}

		out := make([]ArchivedTicketResponse, 0, len(tickets))
		for i := range tickets {
			out = append(out, ArchivedTicketResponse{
				TicketResponse: toTicketResponse(&tickets[i].Ticket),
				ArchivedAt:     tickets[i].ArchivedAt,
			})
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Archive the open round and start a new one
// @Success  200 {object} ArchiveRoundResponse
// @Router   /admin/rounds/archive [post]
func handleArchiveRound(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		archivedID, next, err := svcs.Raffle.ArchiveRound(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ArchiveRoundResponse{
			ArchivedRoundID: archivedID,
			NewRoundID:      next.ID,
		})
	}
}

// --- Helpers ---

func parseIntParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// raffle service, expected operator-facing states
	case errors.Is(err, raffle.ErrBusy):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "draw already in progress"})
	case errors.Is(err, raffle.ErrEmpty):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no active tickets"})
	case errors.Is(err, raffle.ErrStaleCandidate):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "candidate is no longer available"})
	case errors.Is(err, raffle.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
	case errors.Is(err, raffle.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
	// query service
	case errors.Is(err, query.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
	case errors.Is(err, query.ErrRoundNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "round not found"})
	default:
		// Numbering invariant breaches (repository.ErrDuplicateNumber) and
		// storage failures stay opaque to clients; the logging middleware
		// picks them up from c.Errors.
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
