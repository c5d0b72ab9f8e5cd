package model

import "time"

// User is an end user of a channel.  The surrogate ID never leaves the
// service; clients address users by AccID, which is unique among the
// live users of one channel.
//
// Fields:
//  ID        – surrogate primary key.
//  AccID     – template-derived external identifier (e.g. US008).
//  ChannelID – owning channel.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
//  DeletedAt – soft delete marker (nil while live).
type User struct {
	ID        uint64
	AccID     string
	ChannelID string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
