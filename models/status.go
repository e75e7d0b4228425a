package models

import "fmt"

// Status is the lifecycle state of a pickup request.
type Status string

const (
	StatusPending           Status = "pending"
	StatusAccepted          Status = "accepted"
	StatusOnTheWay          Status = "on-the-way"
	StatusCollected         Status = "collected"
	StatusPendingCompletion Status = "pending-completion"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusRejected          Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusOnTheWay,
	StatusCollected,
	StatusPendingCompletion,
	StatusCompleted,
	StatusCancelled,
	StatusRejected,
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) String() string { return string(s) }
