package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
	"github.com/jrsteele09/datum-mcp-bridge/oauth2"
	"github.com/jrsteele09/datum-mcp-bridge/token"
	"github.com/stretchr/testify/require"
)

func signedIDToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestSubjectFromIDToken(t *testing.T) {
	t.Run("returns sub claim", func(t *testing.T) {
		raw := signedIDToken(t, jwtlib.MapClaims{"sub": "user-123", "aud": "client"})
		require.Equal(t, "user-123", utils.Value(token.SubjectFromIDToken(raw)))
	})

	t.Run("missing sub", func(t *testing.T) {
		raw := signedIDToken(t, jwtlib.MapClaims{"aud": "client"})
		require.Nil(t, token.SubjectFromIDToken(raw))
	})

	t.Run("malformed token", func(t *testing.T) {
		require.Nil(t, token.SubjectFromIDToken("not-a-jwt"))
		require.Nil(t, token.SubjectFromIDToken("a.b.c"))
		require.Nil(t, token.SubjectFromIDToken(""))
	})
}

func TestToSession(t *testing.T) {
	now := time.Unix(1700000000, 0)

	t.Run("full token set", func(t *testing.T) {
		idToken := signedIDToken(t, jwtlib.MapClaims{"sub": "u1"})
		s := token.ToSession(&oauth2.TokenResponse{
			AccessToken:  "access",
			RefreshToken: utils.Ptr("refresh"),
			ExpiresIn:    3600,
			IdToken:      &idToken,
		}, now)

		require.Equal(t, "access", utils.Value(s.AccessToken))
		require.Equal(t, "refresh", utils.Value(s.RefreshToken))
		require.Equal(t, int64(1700003600), utils.Value(s.ExpiresAt))
		require.Equal(t, idToken, utils.Value(s.IDToken))
		require.Equal(t, "u1", utils.Value(s.UserID))
		require.Equal(t, now.UnixMilli(), s.UpdatedAt)
	})

	t.Run("minimal token set", func(t *testing.T) {
		s := token.ToSession(&oauth2.TokenResponse{AccessToken: "access"}, now)

		require.Equal(t, "access", utils.Value(s.AccessToken))
		require.Nil(t, s.RefreshToken)
		require.Nil(t, s.ExpiresAt)
		require.Nil(t, s.IDToken)
		require.Nil(t, s.UserID)
	})
}
