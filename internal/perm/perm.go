// Package perm holds the capability checks run before every board mutation.
// They are advisory: the store itself does not enforce roles.
package perm

import (
	"errors"

	"hemo-board/internal/model"
)

var (
	ErrNotSignedIn = errors.New("sign in to edit the board")
	ErrForbidden   = errors.New("only editors can change the board")
)

// CanEdit reports whether role may mutate cards.
func CanEdit(role model.Role) bool { return role == model.RoleEditor }

// RequireEditor returns nil for editors, ErrNotSignedIn when nobody is signed
// in and ErrForbidden otherwise.
func RequireEditor(role model.Role) error {
	switch role {
	case model.RoleEditor:
		return nil
	case model.RoleUnknown, "":
		return ErrNotSignedIn
	default:
		return ErrForbidden
	}
}
