package models

import (
	"time"
)

// Credentials holds the Aruba Central OAuth2 client and token state for one run.
// A zero AccessTokenExpiry means the expiry is unknown and the token is treated as stale.
type Credentials struct {
	ClientID          string
	ClientSecret      string
	CustomerID        string
	RefreshToken      string
	AccessToken       string
	AccessTokenExpiry time.Time
}

// HasAccessToken reports whether an access token with a known expiry is present
func (c Credentials) HasAccessToken() bool {
	return c.AccessToken != "" && !c.AccessTokenExpiry.IsZero()
}

// CachedToken is the token cache record, keyed by OAuth2 client ID.
// SeedHash fingerprints the configured refresh token the entry descends from; a
// different configured token means the operator replaced it and the entry is stale.
type CachedToken struct {
	ClientID     string    `json:"client_id" badgerhold:"key"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SeedHash     string    `json:"seed_hash"`
	Expiry       time.Time `json:"expiry"`
	UpdatedAt    time.Time `json:"updated_at"`
}
