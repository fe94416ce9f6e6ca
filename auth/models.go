package auth

import "time"

// Administrator is the single privileged identity. PartyID is the ledger
// account the administrator acts as when calling guarded operations.
type Administrator struct {
	ID           string
	Email        string
	PasswordHash string
	PartyID      string
	CreatedAt    time.Time
}

// LoginRequest contains administrator login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult bundles the token and the party identity it authenticates.
type LoginResult struct {
	Token   string
	PartyID string
}
