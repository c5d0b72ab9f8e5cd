// Package queue defines the domain events exchanged over the message broker,
// the publisher used by the services and the audit consumer.
package queue

import "time"

// EventType names a domain event.  It doubles as the message type header.
type EventType string

const (
	ChannelCreated      EventType = "channel.created"
	ChannelTokenRotated EventType = "channel.token_rotated"
	ChannelDeleted      EventType = "channel.deleted"
	UsersAllocated      EventType = "users.allocated"
	UserDeleted         EventType = "user.deleted"
	ReviewCreated       EventType = "review.created"
	AccountUpgraded     EventType = "account.upgraded"
	AccountToppedUp     EventType = "account.topped_up"
)

// Event is published after a state change commits.  It carries enough
// context for the audit consumer to write a line without querying the
// primary database.  Secrets never appear in an event.
type Event struct {
	Type            EventType `json:"type"`
	AccountUsername string    `json:"account_username,omitempty"`
	ChannelID       string    `json:"channel_id,omitempty"`
	AccIDs          []string  `json:"acc_ids,omitempty"`
	ReviewID        uint64    `json:"review_id,omitempty"`
	GameID          uint64    `json:"game_id,omitempty"`
	Credit          uint64    `json:"credit,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewEvent stamps an event of type t with the current UTC time.
func NewEvent(t EventType) Event {
	return Event{Type: t, OccurredAt: time.Now().UTC()}
}
