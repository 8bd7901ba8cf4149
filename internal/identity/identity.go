// Package identity answers who is using the board and what they may do.
package identity

import (
	"context"
	"strings"

	"hemo-board/internal/model"
	"hemo-board/internal/store"
)

// Provider is the identity collaborator consumed by the CLI and TUI.
type Provider interface {
	// CurrentUser returns nil when nobody is signed in.
	CurrentUser(ctx context.Context) (*model.User, error)
	// RoleOf returns RoleUnknown for a nil user and RoleViewer for a user
	// without a profile.
	RoleOf(ctx context.Context, u *model.User) (model.Role, error)
}

// Session resolves a configured user reference (an id or an email) against
// the profiles table.
type Session struct {
	profiles store.Profiles
	ref      string
}

func NewSession(p store.Profiles, userRef string) *Session {
	return &Session{profiles: p, ref: strings.TrimSpace(userRef)}
}

func (s *Session) CurrentUser(ctx context.Context) (*model.User, error) {
	if s.ref == "" {
		return nil, nil
	}
	if strings.Contains(s.ref, "@") {
		p, ok, err := s.profiles.ProfileByEmail(ctx, s.ref)
		if err != nil {
			return nil, err
		}
		if ok {
			return &model.User{ID: p.UserID, Email: p.Email}, nil
		}
		// Unknown emails still sign in; they get the viewer role.
		return &model.User{ID: strings.ToLower(s.ref), Email: strings.ToLower(s.ref)}, nil
	}
	u := &model.User{ID: s.ref}
	if p, ok, err := s.profiles.Profile(ctx, s.ref); err != nil {
		return nil, err
	} else if ok {
		u.Email = p.Email
	}
	return u, nil
}

func (s *Session) RoleOf(ctx context.Context, u *model.User) (model.Role, error) {
	return RoleOf(ctx, s.profiles, u)
}

// RoleOf looks u up in profiles.
func RoleOf(ctx context.Context, profiles store.Profiles, u *model.User) (model.Role, error) {
	if u == nil || u.ID == "" {
		return model.RoleUnknown, nil
	}
	p, ok, err := profiles.Profile(ctx, u.ID)
	if err != nil {
		return model.RoleUnknown, err
	}
	if !ok {
		return model.RoleViewer, nil
	}
	if r, known := model.ParseRole(string(p.Role)); known {
		return r, nil
	}
	return model.RoleViewer, nil
}

// Resolve returns the current user and their role in one call.
func Resolve(ctx context.Context, p Provider) (*model.User, model.Role, error) {
	u, err := p.CurrentUser(ctx)
	if err != nil {
		return nil, model.RoleUnknown, err
	}
	role, err := p.RoleOf(ctx, u)
	if err != nil {
		return u, model.RoleUnknown, err
	}
	return u, role, nil
}
