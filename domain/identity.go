// Package domain contains core concepts of the messaging system.
// This file defines Identity entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Identity is a registered username/password-hash pair.
// Immutable after registration. Usernames are unique across all identities.
type Identity struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Token is a signed, time-limited proof of a prior successful login.
// Opaque to its holder; verification happens in the auth layer.
type Token string
