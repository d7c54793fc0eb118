package domain

import "time"

// UserSession records one issued session token for login history.
// SessionID is the token id (jti).
type UserSession struct {
	SessionID  string    `json:"session_id"`
	UserID     int64     `json:"user_id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsActive   bool      `json:"is_active"`
}
