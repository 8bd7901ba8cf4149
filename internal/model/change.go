package model

import "time"

type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	// ChangeExternal is raised when another process wrote to the shared store
	// and the affected card is not known.
	ChangeExternal ChangeKind = "external"
)

// Change is one notification on the card change stream. Delivery is
// at-least-once; ID lets consumers drop duplicates.
type Change struct {
	ID     string     `json:"id"`
	Kind   ChangeKind `json:"kind"`
	CardID string     `json:"cardId,omitempty"`
	Origin string     `json:"origin"`
	At     time.Time  `json:"at"`
}
