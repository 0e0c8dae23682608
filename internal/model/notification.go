package model

import "time"

type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationSuccess NotificationLevel = "success"
	NotificationWarn    NotificationLevel = "warn"
	NotificationError   NotificationLevel = "error"
)

type Notification struct {
	Message  string            `json:"message"`
	Level    NotificationLevel `json:"level"`
	Duration time.Duration     `json:"duration"`
}
