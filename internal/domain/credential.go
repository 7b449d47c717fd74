package domain

import "time"

// Credential is one seller's API token for the external platform, scoped to a
// user profile. Tokens are managed elsewhere; this service only reads them.
type Credential struct {
	ID        string
	ProfileID string
	Token     string
	Active    bool
	CreatedAt time.Time
}
