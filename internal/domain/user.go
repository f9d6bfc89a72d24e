package domain

import "time"

// User is the account owning the stored threads.
// IsPremium lifts the free-tier thread quota.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
	DisplayName  string    `json:"display_name"`
	IsPremium    bool      `json:"is_premium"`
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  time.Time `json:"last_login_at,omitzero"`
}

// Session is a refresh-token session for a logged-in client.
// The refresh token itself is never stored, only its hash.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// IsExpired reports whether the session's refresh token has lapsed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// UserPrefs is the flat settings document for the capture client.
type UserPrefs struct {
	Theme               string `json:"theme"`
	DefaultExportFormat string `json:"default_export_format"`
	AutoCapture         bool   `json:"auto_capture"`
	ShowSaveButton      bool   `json:"show_save_button"`
}

// DefaultPrefs returns the preferences written on first run.
func DefaultPrefs() *UserPrefs {
	return &UserPrefs{
		Theme:               "system",
		DefaultExportFormat: "markdown",
		AutoCapture:         false,
		ShowSaveButton:      true,
	}
}
