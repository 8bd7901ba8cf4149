package identity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	typSession = "session"
	typMagic   = "magic"
)

// MagicTTL is how long a login link stays valid.
const MagicTTL = 15 * time.Minute

type signedPayload struct {
	Exp int64  `json:"exp"`
	Sub string `json:"sub"`           // user id, or email for magic links
	Typ string `json:"typ,omitempty"` // "session"|"magic"
	N   string `json:"n,omitempty"`
}

// Tokens issues and verifies HMAC-SHA256 signed tokens. Session tokens
// authenticate API calls; magic tokens travel in a login link and can only
// be exchanged for a session.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a session token for userID valid for the configured TTL.
func (t *Tokens) Issue(userID string) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("missing user id")
	}
	return t.sign(typSession, userID, t.ttl)
}

// IssueMagic returns a short-lived login token for email.
func (t *Tokens) IssueMagic(email string) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", time.Time{}, errors.New("missing email")
	}
	return t.sign(typMagic, email, MagicTTL)
}

// Verify returns the user id carried by a session token.
func (t *Tokens) Verify(token string) (string, error) {
	return t.verify(token, typSession)
}

// VerifyMagic returns the email carried by a login token.
func (t *Tokens) VerifyMagic(token string) (string, error) {
	return t.verify(token, typMagic)
}

func (t *Tokens) sign(typ, sub string, ttl time.Duration) (string, time.Time, error) {
	exp := t.now().Add(ttl)
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", time.Time{}, err
	}
	b, err := json.Marshal(signedPayload{
		Exp: exp.Unix(),
		Sub: sub,
		Typ: typ,
		N:   base64.RawURLEncoding.EncodeToString(nonce),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	p := base64.RawURLEncoding.EncodeToString(b)
	return p + "." + t.mac(p), exp, nil
}

func (t *Tokens) verify(token, typ string) (string, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}
	p, sig := parts[0], parts[1]
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidToken
	}
	want, _ := base64.RawURLEncoding.DecodeString(t.mac(p))
	if !hmac.Equal(want, got) {
		return "", ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return "", ErrInvalidToken
	}
	var sp signedPayload
	if err := json.Unmarshal(raw, &sp); err != nil || sp.Sub == "" || sp.Exp == 0 || sp.Typ != typ {
		return "", ErrInvalidToken
	}
	if t.now().Unix() > sp.Exp {
		return "", ErrExpiredToken
	}
	return sp.Sub, nil
}

func (t *Tokens) mac(p string) string {
	mac := hmac.New(sha256.New, t.secret)
	_, _ = mac.Write([]byte(p))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
