package redisx

import "fmt"

const ns = "rafflego:v1"

func KeyOwnerTickets(roundID int64, ownerID string) string {
	return fmt.Sprintf("%s:round:%d:owner:%s:tickets", ns, roundID, ownerID)
}

func KeyTicketView(roundID int64, number int) string {
	return fmt.Sprintf("%s:round:%d:ticket:%d", ns, roundID, number)
}

// KeyRateLimit is a prefix; the limiter appends the caller identity.
func KeyRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func ChannelAnnouncements() string {
	return ns + ":announcements"
}
