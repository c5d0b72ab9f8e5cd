package model

import "time"

// DefaultUserPrefix is applied when a channel is created without an
// explicit prefix template.
const DefaultUserPrefix = "US###"

// Channel is a namespace owned by an account.  Users and reviews live
// under a channel and are reachable with the channel's bearer token.
// This struct corresponds to a row in the `channels` table.
//
// Fields:
//  ID              – UUID primary key (exposed to clients as base64url).
//  Name            – human-friendly name.
//  UserPrefix      – acc_id template with one run of '#' placeholders.
//  AccessTokenHash – bcrypt hash of the current bearer token.
//  AccountUsername – owning account.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type Channel struct {
	ID              string
	Name            string
	UserPrefix      string
	AccessTokenHash string
	AccountUsername string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OwnedBy reports whether the channel belongs to the given account.
func (c *Channel) OwnedBy(username string) bool {
	return c.AccountUsername == username
}
