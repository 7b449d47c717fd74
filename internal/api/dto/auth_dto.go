package dto

import "time"

// TokenRequest payload.
type TokenRequest struct {
	APIKey string `json:"api_key"`
}

// TokenResponse payload.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
