package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hemo-board/internal/board"
	"hemo-board/internal/identity"
	"hemo-board/internal/model"
	"hemo-board/internal/perm"
)

var errLoginDisabled = errors.New("login is only available with auth_mode token")

type loginRequest struct {
	Email string `json:"email"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
	Role      model.Role `json:"role"`
}

// actorForRequest resolves who is calling. In token mode a missing token
// yields an anonymous actor; an invalid one is an error.
func (s *Server) actorForRequest(r *http.Request) (board.Actor, *model.User, error) {
	ctx := r.Context()
	if s.cfg.AuthMode == "none" {
		u, role, err := identity.Resolve(ctx, s.cfg.Identity)
		if err != nil {
			return board.Actor{}, nil, err
		}
		return board.Actor{User: u, Role: role}, u, nil
	}

	raw := bearerToken(r)
	if raw == "" {
		return board.Actor{Role: model.RoleUnknown}, nil, nil
	}
	sub, err := s.cfg.Tokens.Verify(raw)
	if err != nil {
		return board.Actor{}, nil, err
	}
	u := &model.User{ID: sub}
	if p, ok, err := s.cfg.Backend.Profile(ctx, sub); err != nil {
		return board.Actor{}, nil, err
	} else if ok {
		u.Email = p.Email
	}
	role, err := identity.RoleOf(ctx, s.cfg.Backend, u)
	if err != nil {
		return board.Actor{}, nil, err
	}
	return board.Actor{User: u, Role: role}, u, nil
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// Browsers cannot set headers on websocket handshakes.
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// handleLogin mails a login link to a known profile email. The link carries
// a magic token that handleVerify exchanges for a session token, so only the
// owner of the mailbox can sign in.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthMode != "token" {
		writeJSONError(w, http.StatusNotFound, errLoginDisabled.Error())
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeJSONError(w, http.StatusBadRequest, "missing email")
		return
	}
	p, ok, err := s.cfg.Backend.ProfileByEmail(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unknown email")
		return
	}
	tok, exp, err := s.cfg.Tokens.IssueMagic(email)
	if err != nil {
		writeError(w, err)
		return
	}
	link := "http://" + r.Host + "/api/login/verify?token=" + url.QueryEscape(tok)
	if err := s.cfg.Mailer.Send(email, "Pizarra: enlace de acceso", link); err != nil {
		s.log.Errorf("send login link to %s: %v", p.UserID, err)
		writeJSONError(w, http.StatusInternalServerError, "could not send login link")
		return
	}
	s.log.Infof("login link sent for %s", p.UserID)
	writeData(w, http.StatusAccepted, map[string]any{"sent": true, "expiresAt": exp})
}

// handleVerify exchanges a magic token, from the query string or a JSON
// body, for a session token.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthMode != "token" {
		writeJSONError(w, http.StatusNotFound, errLoginDisabled.Error())
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" && r.Method == http.MethodPost {
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		raw = strings.TrimSpace(body.Token)
	}
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "missing token")
		return
	}
	email, err := s.cfg.Tokens.VerifyMagic(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	p, ok, err := s.cfg.Backend.ProfileByEmail(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSONError(w, http.StatusForbidden, "email is no longer registered")
		return
	}
	token, exp, err := s.cfg.Tokens.Issue(p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	role, _ := model.ParseRole(string(p.Role))
	if role == model.RoleUnknown {
		role = model.RoleViewer
	}
	s.log.Infof("issued session token for %s", p.UserID)
	writeData(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      model.User{ID: p.UserID, Email: p.Email},
		Role:      role,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	a, u, err := s.actorForRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"user": u, "role": a.Role, "canEdit": perm.CanEdit(a.Role)})
}
