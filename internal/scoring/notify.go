package scoring

import "time"

// NotificationType tags a notification by the sign of its point delta.
type NotificationType string

const (
	NotificationPenalty NotificationType = "penalty"
	NotificationReward  NotificationType = "reward"
	NotificationInfo    NotificationType = "info"
)

// Notification records a single discrete scoring event. Negative points are
// penalties, positive points rewards, zero informational.
type Notification struct {
	Message   string           `json:"message"`
	Points    float64          `json:"points"`
	Timestamp time.Time        `json:"timestamp"`
	Type      NotificationType `json:"type"`
	Category  string           `json:"category"`
}

func typeForPoints(points float64) NotificationType {
	switch {
	case points < 0:
		return NotificationPenalty
	case points > 0:
		return NotificationReward
	default:
		return NotificationInfo
	}
}
