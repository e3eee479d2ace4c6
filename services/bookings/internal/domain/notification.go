package domain

import "time"

type NotificationRecord struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
	BookingID string    `json:"bookingId,omitempty"`
}

// MarkRead flips Read to true and reports whether anything changed.
// Notifications are never marked unread again.
func (n *NotificationRecord) MarkRead() bool {
	if n.Read {
		return false
	}
	n.Read = true
	return true
}
