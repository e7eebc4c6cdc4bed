package domain

import "time"

type TicketStatus string

const (
	TicketActive   TicketStatus = "active"
	TicketRejected TicketStatus = "rejected"
	TicketDeleted  TicketStatus = "deleted"
)

// Terminal reports whether the status can never change again within its
// round.
func (s TicketStatus) Terminal() bool {
	return s == TicketRejected || s == TicketDeleted
}

// Ticket is one raffle entry in the open round. Number is unique within a
// round and assigned sequentially from 1.
type Ticket struct {
	ID         int64
	RoundID    int64
	Number     int
	OwnerID    string
	OwnerLabel string // optional display name, may be empty
	ProofRef   string // opaque reference to the submitted proof image
	Status     TicketStatus
	Comment    string // reason text, set on rejected/deleted only
}

type Round struct {
	ID         int64
	CreatedAt  time.Time
	ArchivedAt *time.Time // nil while the round is open
}

// ArchivedTicket is an immutable history record written when its round is
// archived.
type ArchivedTicket struct {
	Ticket
	ArchivedAt time.Time
}
