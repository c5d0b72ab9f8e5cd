package model

import "time"

// AccountType is the billing tier of an account.  It decides how many
// channels the account may own.
type AccountType string

const (
	AccountFree    AccountType = "free"    // at most FreeChannelLimit channels
	AccountPremium AccountType = "premium" // unlimited channels
)

// Valid reports whether t is one of the known tiers.
func (t AccountType) Valid() bool {
	return t == AccountFree || t == AccountPremium
}

// Account represents a tenant as stored in the `accounts` table.  The
// username is the primary identity and is embedded in session tokens.
//
// Fields:
//  Username     – primary key, lowercase, no whitespace.
//  Email        – unique email address.
//  Name         – display name.
//  PasswordHash – bcrypt hash of the password; the plaintext is never kept.
//  Type         – billing tier (free or premium).
//  Credit       – non-negative credit balance.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Account struct {
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	PasswordHash string      `json:"-"`
	Type         AccountType `json:"account_type"`
	Credit       uint64      `json:"credit"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// IsPremium reports whether the account is on the premium tier.
func (a *Account) IsPremium() bool { return a.Type == AccountPremium }
