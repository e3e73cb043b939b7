package pankind

import "time"

const Version = "v0.4.1"

type AuditLog struct {
	ID        int       `json:"id"`
	LogTime   time.Time `json:"log_time"`
	SystemLog bool      `json:"system_log"`
	Message   string    `json:"message"`
	Actor     *string   `json:"actor"`
}
