package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rollcall/internal/auth"
)

func TestNewUser(t *testing.T) {
	t.Run("student id is role-prefixed and unique", func(t *testing.T) {
		u1, err := auth.NewUser("Ann", auth.RoleStudent)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(u1.ID, "student-"))

		u2, err := auth.NewUser("Ann", auth.RoleStudent)
		require.NoError(t, err)
		require.NotEqual(t, u1.ID, u2.ID)
	})

	t.Run("lecturer role", func(t *testing.T) {
		u, err := auth.NewUser("Dr. Okafor", auth.RoleLecturer)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(u.ID, "lecturer-"))
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := auth.NewUser("", auth.RoleStudent)
		require.Error(t, err)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := auth.NewUser("Ann", "admin")
		require.Error(t, err)
	})
}

func TestIssueAndParse(t *testing.T) {
	user := auth.User{Name: "Ann", Role: auth.RoleStudent, ID: "student-abc"}

	t.Run("round trip", func(t *testing.T) {
		tok, err := auth.Issue(user, "rollcall", "secret", time.Hour)
		require.NoError(t, err)
		require.NotEmpty(t, tok.AccessToken)

		claims, err := auth.Parse(tok.AccessToken, "secret", "rollcall")
		require.NoError(t, err)
		require.Equal(t, "student-abc", claims.Subject)
		require.Equal(t, "Ann", claims.Name)
		require.Equal(t, auth.RoleStudent, claims.Role)
	})

	t.Run("wrong key", func(t *testing.T) {
		tok, err := auth.Issue(user, "rollcall", "secret", time.Hour)
		require.NoError(t, err)

		_, err = auth.Parse(tok.AccessToken, "other", "rollcall")
		require.Error(t, err)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		tok, err := auth.Issue(user, "rollcall", "secret", time.Hour)
		require.NoError(t, err)

		_, err = auth.Parse(tok.AccessToken, "secret", "someone-else")
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		tok, err := auth.Issue(user, "rollcall", "secret", -time.Minute)
		require.NoError(t, err)

		_, err = auth.Parse(tok.AccessToken, "secret", "rollcall")
		require.Error(t, err)
	})
}
