package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"hemo-board/internal/model"
	"hemo-board/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profiles(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.UpsertProfile(ctx, model.Profile{UserID: "u-ed", Email: "ed@hosp.es", Role: model.RoleEditor}))
	require.NoError(t, mem.UpsertProfile(ctx, model.Profile{UserID: "u-view", Email: "view@hosp.es", Role: model.RoleViewer}))
	return mem
}

func TestSessionRoles(t *testing.T) {
	mem := profiles(t)
	ctx := context.Background()

	cases := []struct {
		ref    string
		wantID string
		role   model.Role
	}{
		{"", "", model.RoleUnknown},
		{"u-ed", "u-ed", model.RoleEditor},
		{"ED@hosp.es", "u-ed", model.RoleEditor},
		{"view@hosp.es", "u-view", model.RoleViewer},
		{"stranger", "stranger", model.RoleViewer},
		{"new@hosp.es", "new@hosp.es", model.RoleViewer},
	}
	for _, tc := range cases {
		u, role, err := Resolve(ctx, NewSession(mem, tc.ref))
		require.NoError(t, err, tc.ref)
		if tc.wantID == "" {
			assert.Nil(t, u)
		} else {
			require.NotNil(t, u, tc.ref)
			assert.Equal(t, tc.wantID, u.ID)
		}
		assert.Equal(t, tc.role, role, tc.ref)
	}
}

func TestTokensRoundTrip(t *testing.T) {
	tok := NewTokens("s3cret", time.Hour)
	raw, exp, err := tok.Issue("u-ed")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	sub, err := tok.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-ed", sub)
}

func TestTokensRejectTampering(t *testing.T) {
	tok := NewTokens("s3cret", time.Hour)
	raw, _, err := tok.Issue("u-ed")
	require.NoError(t, err)

	_, err = NewTokens("other", time.Hour).Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	parts := strings.Split(raw, ".")
	_, err = tok.Verify(parts[0] + "x." + parts[1])
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tok.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMagicTokensOnlyExchange(t *testing.T) {
	tok := NewTokens("s3cret", time.Hour)
	magic, exp, err := tok.IssueMagic(" Ed@Hosp.es ")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(MagicTTL), exp, 5*time.Second)

	email, err := tok.VerifyMagic(magic)
	require.NoError(t, err)
	assert.Equal(t, "ed@hosp.es", email)

	_, err = tok.Verify(magic)
	assert.ErrorIs(t, err, ErrInvalidToken, "a login link is not a session")

	session, _, err := tok.Issue("u-ed")
	require.NoError(t, err)
	_, err = tok.VerifyMagic(session)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensExpire(t *testing.T) {
	tok := NewTokens("s3cret", time.Minute)
	raw, _, err := tok.Issue("u-ed")
	require.NoError(t, err)
	tok.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tok.Verify(raw)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
