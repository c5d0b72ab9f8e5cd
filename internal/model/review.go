package model

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review records a user's rating of an external game.  Review and
// Screenshot are optional; Screenshot is a stored asset reference
// relative to the asset base URL.
type Review struct {
	ID         uint64
	UserID     uint64
	AccID      string // owning user's acc_id, filled by joined reads
	ChannelID  string // owning user's channel, filled by joined reads
	GameID     uint64
	GameName   string
	Rating     int
	Review     *string
	Screenshot *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidRating reports whether r is inside the accepted rating range.
func ValidRating(r int) bool { return r >= MinRating && r <= MaxRating }

// Game is a candidate returned by the external game lookup.
type Game struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}
