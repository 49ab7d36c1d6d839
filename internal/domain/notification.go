package domain

import "time"

// NotificationType represents the kind of notification row.
type NotificationType string

const (
	NotificationTripStarted  NotificationType = "TRIP_STARTED"
	NotificationTripFinished NotificationType = "TRIP_FINISHED"
	NotificationMessage      NotificationType = "MESSAGE"
)

// Notification is a persisted message for one recipient.
type Notification struct {
	ID          string
	RecipientID string
	TripID      string
	Type        NotificationType
	Title       string
	Message     string
	ReadAt      time.Time
	CreatedAt   time.Time
}
