package model

import "time"

// DayLayout is the wire/storage format of Card.Day.
const DayLayout = "2006-01-02"

type Card struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Room string    `json:"room"`
	Dx   string    `json:"dx"`
	Proc Procedure `json:"proc"`

	// Placement. Ord is sparse and only meaningful among cards sharing Day and Row.
	Day  string `json:"day"` // YYYY-MM-DD
	Row  Row    `json:"row"`
	Ord  int64  `json:"ord"`
	Done bool   `json:"done"`

	CreatedAt time.Time `json:"createdAt"`
	CreatedBy *string   `json:"createdBy,omitempty"`
}

// CellKey identifies the (day, row) cell a card belongs to.
type CellKey struct {
	Day string `json:"day"`
	Row Row    `json:"row"`
}

func (c Card) Cell() CellKey { return CellKey{Day: c.Day, Row: c.Row} }

// CardDraft holds the editor-supplied fields of a card that does not exist yet.
type CardDraft struct {
	Name string    `json:"name"`
	Room string    `json:"room"`
	Dx   string    `json:"dx"`
	Proc Procedure `json:"proc"`
	Day  string    `json:"day"`
	Row  Row       `json:"row"`
}

// CardPatch is a partial update. Nil fields are left untouched.
type CardPatch struct {
	Name *string    `json:"name,omitempty"`
	Room *string    `json:"room,omitempty"`
	Dx   *string    `json:"dx,omitempty"`
	Proc *Procedure `json:"proc,omitempty"`
	Day  *string    `json:"day,omitempty"`
	Row  *Row       `json:"row,omitempty"`
	Ord  *int64     `json:"ord,omitempty"`
	Done *bool      `json:"done,omitempty"`
}

func (p CardPatch) IsEmpty() bool {
	return p.Name == nil && p.Room == nil && p.Dx == nil && p.Proc == nil &&
		p.Day == nil && p.Row == nil && p.Ord == nil && p.Done == nil
}

// Apply returns c with the patch fields applied.
func (p CardPatch) Apply(c Card) Card {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Room != nil {
		c.Room = *p.Room
	}
	if p.Dx != nil {
		c.Dx = *p.Dx
	}
	if p.Proc != nil {
		c.Proc = *p.Proc
	}
	if p.Day != nil {
		c.Day = *p.Day
	}
	if p.Row != nil {
		c.Row = *p.Row
	}
	if p.Ord != nil {
		c.Ord = *p.Ord
	}
	if p.Done != nil {
		c.Done = *p.Done
	}
	return c
}

func OrdPatch(ord int64) CardPatch { return CardPatch{Ord: &ord} }

type Role string

const (
	RoleEditor  Role = "editor"
	RoleViewer  Role = "viewer"
	RoleUnknown Role = "unknown"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleEditor, RoleViewer:
		return Role(s), true
	default:
		return RoleUnknown, false
	}
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type Profile struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}
