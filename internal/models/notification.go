package models

import "time"

type NotificationLevel string

const (
	NotifyInfo    NotificationLevel = "info"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
	NotifySuccess NotificationLevel = "success"
)

type Notification struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Level     NotificationLevel `json:"level"`
	Timestamp time.Time         `json:"timestamp"`
	Read      bool              `json:"read"`
}
