package query

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrRoundNotFound  = errors.New("round not found")
)
