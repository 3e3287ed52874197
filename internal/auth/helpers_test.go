package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *TokenIssuer {
	return &TokenIssuer{
		key:        []byte("secret"),
		accessTTL:  15 * time.Minute,
		refreshTTL: 24 * time.Hour,
		now:        time.Now,
	}
}

func TestTokenIssuer(t *testing.T) {
	issuer := newTestIssuer()

	access, err := issuer.AccessToken("abc")
	require.NoError(t, err)
	refresh, err := issuer.RefreshToken("abc")
	require.NoError(t, err)

	expired := newTestIssuer()
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, err := expired.AccessToken("abc")
	require.NoError(t, err)

	other := newTestIssuer()
	other.key = []byte("other")
	foreign, err := other.AccessToken("abc")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantErr bool
	}{
		{name: "valid access", token: access, wantID: "abc"},
		{name: "refresh used as access", token: refresh, wantErr: true},
		{name: "expired", token: expiredToken, wantErr: true},
		{name: "wrong key", token: foreign, wantErr: true},
		{name: "garbage", token: "lmaooolol", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := issuer.ValidateAccess(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}

	id, err := issuer.ValidateRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("pwd123")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("pwd123", hash))
	assert.False(t, CheckPasswordHash("nope", hash))
}
