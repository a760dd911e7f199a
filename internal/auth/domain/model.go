// Package domain contains core types for the auth service.
package domain

import "time"

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// User represents a dashboard account.
type User struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Name         string    `gorm:"type:text;not null"`
	Email        string    `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;type:text;not null"`
	Role         string    `gorm:"size:32;not null;default:viewer"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session. Only the sha256 of the
// cookie token is stored.
type Session struct {
	ID               string     `gorm:"primaryKey;size:64"`
	UserID           string     `gorm:"column:user_id;size:64;not null;index"`
	SessionTokenHash string     `gorm:"column:session_token_hash;size:64;not null;uniqueIndex"`
	UserAgent        string     `gorm:"column:user_agent;type:text"`
	IPAddress        string     `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time `gorm:"column:revoked_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time  `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// Identity is the signed-in user attached to a request.
type Identity struct {
	SessionID string `json:"-"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}
