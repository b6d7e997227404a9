package models

import "time"

type NotificationType string

const (
	NotificationInterviewReminder NotificationType = "interview-reminder"
	NotificationFollowUp          NotificationType = "follow-up"
	NotificationDeadline          NotificationType = "deadline"
	NotificationReapply           NotificationType = "reapply"
	NotificationAISuggestion      NotificationType = "ai-suggestion"
)

type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Date       time.Time        `json:"date"`
	Read       bool             `json:"read"`
	JobID      string           `json:"jobId,omitempty"`
	Actionable bool             `json:"actionable"`
	Action     string           `json:"action,omitempty"`
}
