package httpgin

import (
	"time"

	"github.com/kirinyoku/raffle-go/internal/domain"
)

type RegisterTicketRequest struct {
	OwnerID    string `json:"owner_id" binding:"required"`
	OwnerLabel string `json:"owner_label"`
	ProofRef   string `json:"proof_ref" binding:"required"`
}

type ConfirmWinnerRequest struct {
	TicketNumber int `json:"ticket_number" binding:"required,gt=0"`
}

type RejectCandidateRequest struct {
	TicketNumber int    `json:"ticket_number" binding:"required,gt=0"`
	Reason       string `json:"reason" binding:"required"`
}

type DeleteTicketRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type TicketResponse struct {
	RoundID    int64  `json:"round_id"`
	Number     int    `json:"number"`
	OwnerID    string `json:"owner_id"`
	OwnerLabel string `json:"owner_label,omitempty"`
	ProofRef   string `json:"proof_ref"`
	Status     string `json:"status"`
	Comment    string `json:"comment,omitempty"`
}

func toTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		RoundID:    t.RoundID,
		Number:     t.Number,
		OwnerID:    t.OwnerID,
		OwnerLabel: t.OwnerLabel,
		ProofRef:   t.ProofRef,
		Status:     string(t.Status),
		Comment:    t.Comment,
	}
}

type ArchivedTicketResponse struct {
	TicketResponse
	ArchivedAt time.Time `json:"archived_at"`
}

type OwnerTicketsResponse struct {
	OwnerID string `json:"owner_id"`
	Numbers []int  `json:"numbers"`
}

type DrawResponse struct {
	DrawID string         `json:"draw_id"`
	Ticket TicketResponse `json:"ticket"`
}

type RejectResponse struct {
	Rejected int           `json:"rejected"`
	Next     *DrawResponse `json:"next"` // nil when the pool is exhausted
}

type RoundResponse struct {
	ID         int64      `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

type ArchiveRoundResponse struct {
	ArchivedRoundID int64 `json:"archived_round_id"`
	NewRoundID      int64 `json:"new_round_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
